// Package extract turns a product page into a crawler.ProductRecord.
package extract

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/htmlmeta"
)

// fields is what one extraction layer found. Empty values mean "unknown".
type fields struct {
	title       string
	sku         string
	price       crawler.Price
	description string
	categories  []string
	images      []string
	documents   []string
}

// layer extracts fields from a parsed document.
type layer struct {
	name string
	run  func(doc *htmlmeta.Document) fields
}

// Extractor implements crawler.Extractor with a JSON-LD, OpenGraph, DOM
// precedence: a later layer only fills what earlier layers left empty.
type Extractor struct {
	clock  crawler.Clock
	logger *zap.Logger
	layers []layer
	html   *bluemonday.Policy
	text   *bluemonday.Policy
}

var _ crawler.Extractor = (*Extractor)(nil)

// New builds an Extractor. A nil clock uses time.Now.
func New(clock crawler.Clock, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		clock:  clock,
		logger: logger.Named("extract"),
		layers: []layer{
			{name: "jsonld", run: fromJSONLD},
			{name: "opengraph", run: fromOpenGraph},
			{name: "dom", run: fromDOM},
		},
		html: bluemonday.UGCPolicy(),
		text: bluemonday.StrictPolicy(),
	}
}

// Extract implements crawler.Extractor.
func (e *Extractor) Extract(body []byte, pageURL string) (crawler.ProductRecord, error) {
	doc, err := htmlmeta.Parse(body, pageURL)
	if err != nil {
		return crawler.ProductRecord{}, fmt.Errorf("%w: %w", crawler.ErrExtractionFailure, err)
	}

	var merged fields
	for _, l := range e.layers {
		found := l.run(doc)
		filled := merged.fill(found)
		if len(filled) > 0 {
			e.logger.Debug("layer filled fields",
				zap.String("url", pageURL),
				zap.String("layer", l.name),
				zap.Strings("fields", filled))
		}
	}

	record := crawler.ProductRecord{
		SourceURL:   pageURL,
		Title:       merged.title,
		SKU:         merged.sku,
		Price:       merged.price,
		Categories:  dedupeStrings(merged.categories, merged.title),
		ImageURLs:   resolveAll(doc, merged.images),
		Documents:   resolveAll(doc, merged.documents),
		Associated:  relatedProducts(doc, pageURL),
		ExtractedAt: e.now(),
	}
	if merged.description != "" {
		record.DescriptionHTML = e.html.Sanitize(merged.description)
		record.DescriptionText = htmlmeta.CollapseSpace(html.UnescapeString(e.text.Sanitize(merged.description)))
	}
	if err := record.Validate(); err != nil {
		return crawler.ProductRecord{}, err
	}
	return record, nil
}

func (e *Extractor) now() time.Time {
	if e.clock == nil {
		return time.Now().UTC()
	}
	return e.clock.Now().UTC()
}

// fill copies every field of other that f has not set yet and returns the
// names of the fields it filled.
func (f *fields) fill(other fields) []string {
	var filled []string
	if f.title == "" && other.title != "" {
		f.title = other.title
		filled = append(filled, "title")
	}
	if f.sku == "" && other.sku != "" {
		f.sku = other.sku
		filled = append(filled, "sku")
	}
	if f.price.IsZero() && !other.price.IsZero() {
		f.price = other.price
		filled = append(filled, "price")
	}
	if f.description == "" && other.description != "" {
		f.description = other.description
		filled = append(filled, "description")
	}
	if len(f.categories) == 0 && len(other.categories) > 0 {
		f.categories = other.categories
		filled = append(filled, "categories")
	}
	if len(f.images) == 0 && len(other.images) > 0 {
		f.images = other.images
		filled = append(filled, "images")
	}
	if len(f.documents) == 0 && len(other.documents) > 0 {
		f.documents = other.documents
		filled = append(filled, "documents")
	}
	return filled
}

func resolveAll(doc *htmlmeta.Document, refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	var out []string
	for _, ref := range refs {
		abs, ok := doc.Resolve(ref)
		if !ok {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out
}

// dedupeStrings drops blanks, duplicates and any entry equal to exclude.
func dedupeStrings(in []string, exclude string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		s = htmlmeta.CollapseSpace(s)
		if s == "" || strings.EqualFold(s, exclude) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

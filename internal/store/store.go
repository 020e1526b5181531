// Package store persists product records as one directory per product.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/metrics"
	"github.com/JakeFAU/product-crawler/internal/storage/local"
)

const (
	metadataFile      = "metadata.json"
	documentationFile = "documentation.json"
	documentationDir  = "documentation"
	associatedFile    = "associated_products.json"
	summaryFile       = "_summary.json"
)

// Config controls what the store writes.
type Config struct {
	OutputDir string
	// Force rewrites products whose directory already exists.
	Force             bool
	DownloadImages    bool
	DownloadDocuments bool
}

// Store implements crawler.Store on the local filesystem.
type Store struct {
	cfg    Config
	blobs  *local.BlobStore
	assets crawler.AssetDownloader
	logger *zap.Logger
}

var _ crawler.Store = (*Store)(nil)

// New creates the output directory if needed. assets may be nil, in which
// case only metadata is written.
func New(cfg Config, assets crawler.AssetDownloader, logger *zap.Logger) (*Store, error) {
	blobs, err := local.New(local.Config{BaseDir: cfg.OutputDir})
	if err != nil {
		return nil, fmt.Errorf("%w: output dir: %w", crawler.ErrFatalConfiguration, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{cfg: cfg, blobs: blobs, assets: assets, logger: logger.Named("store")}, nil
}

// Exists reports whether a product is stored under slug. A directory without
// metadata.json does not count.
func (s *Store) Exists(slug string) bool {
	if !validSlug(slug) {
		return false
	}
	return s.blobs.Exists(path.Join(slug, metadataFile))
}

// Lookup returns the source URL recorded under slug. Metadata that cannot be
// decoded is reported as taken with an empty source.
func (s *Store) Lookup(slug string) (string, bool) {
	if !s.Exists(slug) {
		return "", false
	}
	raw, err := s.blobs.Get(path.Join(slug, metadataFile))
	if err != nil {
		return "", true
	}
	var meta struct {
		SourceURL string `json:"source_url"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return "", true
	}
	return meta.SourceURL, true
}

// Write stores record under slug. metadata.json lands atomically before any
// asset download starts.
func (s *Store) Write(ctx context.Context, slug string, record crawler.ProductRecord) (crawler.StoreResult, error) {
	result := crawler.StoreResult{Slug: slug}
	if !validSlug(slug) {
		return result, fmt.Errorf("invalid slug %q", slug)
	}
	if err := record.Validate(); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("context canceled: %w", err)
	}

	if s.Exists(slug) && !s.cfg.Force {
		result.Status = crawler.StoreStatusSkipped
		result.Dir = filepath.Join(s.blobs.BaseDir(), slug)
		s.logger.Debug("product already stored", zap.String("slug", slug), zap.String("url", record.SourceURL))
		metrics.ObserveProduct(string(result.Status))
		return result, nil
	}

	payload, err := json.MarshalIndent(newMetadata(record), "", "  ")
	if err != nil {
		return result, fmt.Errorf("marshal metadata: %w", err)
	}

	created := !s.blobs.Exists(slug)
	dir, err := s.blobs.MkdirAll(slug)
	if err != nil {
		return result, fmt.Errorf("create product dir: %w", err)
	}
	result.Dir = dir

	if _, err := s.blobs.PutObject(ctx, path.Join(slug, metadataFile), payload); err != nil {
		if created {
			if rmErr := s.blobs.Remove(slug); rmErr != nil {
				s.logger.Warn("failed to remove product dir", zap.String("slug", slug), zap.Error(rmErr))
			}
		}
		return result, fmt.Errorf("write metadata %s: %w", slug, err)
	}
	result.Status = crawler.StoreStatusWritten
	metrics.ObserveProduct(string(result.Status))

	if len(record.Associated) > 0 {
		if err := s.writeAssociated(ctx, slug, record); err != nil {
			return result, err
		}
	}

	if s.assets != nil && s.cfg.DownloadImages && len(record.ImageURLs) > 0 {
		result.Images = s.assets.DownloadAll(ctx, record.ImageURLs, dir)
		for _, img := range result.Images {
			if img.Status == crawler.ImageStatusSaved {
				result.ImagesSaved++
			}
		}
	}
	if s.assets != nil && s.cfg.DownloadDocuments && len(record.Documents) > 0 {
		if err := s.writeDocuments(ctx, slug, dir, record.Documents, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *Store) writeDocuments(ctx context.Context, slug, dir string, urls []string, result *crawler.StoreResult) error {
	docs := s.assets.DownloadAll(ctx, urls, filepath.Join(dir, documentationDir))
	for _, d := range docs {
		if d.Status == crawler.ImageStatusSaved {
			result.DocumentsSent++
		}
	}
	payload, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal documentation: %w", err)
	}
	if _, err := s.blobs.PutObject(ctx, path.Join(slug, documentationFile), payload); err != nil {
		return fmt.Errorf("write documentation %s: %w", slug, err)
	}
	return nil
}

func (s *Store) writeAssociated(ctx context.Context, slug string, record crawler.ProductRecord) error {
	payload, err := json.MarshalIndent(associatedProducts{
		SourceURL:   record.SourceURL,
		ExtractedAt: formatTime(record.ExtractedAt),
		Products:    record.Associated,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal associated products: %w", err)
	}
	if _, err := s.blobs.PutObject(ctx, path.Join(slug, associatedFile), payload); err != nil {
		return fmt.Errorf("write associated products %s: %w", slug, err)
	}
	return nil
}

// WriteSummary writes _summary.json at the root of the output directory.
func (s *Store) WriteSummary(ctx context.Context, summary crawler.RunSummary) error {
	if summary.Items == nil {
		summary.Items = []crawler.SummaryItem{}
	}
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if _, err := s.blobs.PutObject(ctx, summaryFile, payload); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func validSlug(slug string) bool {
	return slug != "" && slug != "." && slug != ".." && !strings.ContainsAny(slug, `/\`)
}

// metadata is the on-disk schema. Absent values are written as null.
type metadata struct {
	SourceURL       string   `json:"source_url"`
	Title           *string  `json:"title"`
	SKU             *string  `json:"sku"`
	Price           *float64 `json:"price"`
	PriceRaw        *string  `json:"price_raw"`
	Currency        *string  `json:"currency"`
	DescriptionHTML *string  `json:"description_html"`
	DescriptionText *string  `json:"description_text"`
	Categories      []string `json:"categories"`
	Images          []string `json:"images"`
	ExtractedAt     *string  `json:"extracted_at"`
}

func newMetadata(r crawler.ProductRecord) metadata {
	m := metadata{
		SourceURL:       r.SourceURL,
		Title:           optional(r.Title),
		SKU:             optional(r.SKU),
		Price:           r.Price.Amount,
		PriceRaw:        optional(r.Price.Raw),
		Currency:        optional(r.Price.Currency),
		DescriptionHTML: optional(r.DescriptionHTML),
		DescriptionText: optional(r.DescriptionText),
	}
	if len(r.Categories) > 0 {
		m.Categories = r.Categories
	}
	if len(r.ImageURLs) > 0 {
		m.Images = r.ImageURLs
	}
	m.ExtractedAt = formatTime(r.ExtractedAt)
	return m
}

type associatedProducts struct {
	SourceURL   string                      `json:"source_url"`
	ExtractedAt *string                     `json:"extracted_at"`
	Products    []crawler.AssociatedProduct `json:"associated_products"`
}

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	ts := t.UTC().Format(time.RFC3339)
	return &ts
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

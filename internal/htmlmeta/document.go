// Package htmlmeta reads the structured signals a product page carries:
// JSON-LD blocks, OpenGraph tags, links and price-like text.
package htmlmeta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

// Document is a parsed page plus the URL relative links resolve against.
type Document struct {
	Doc  *goquery.Document
	Base *url.URL
}

// Parse builds a Document. A <base href> element overrides pageURL for
// link resolution.
func Parse(body []byte, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}
	return &Document{Doc: doc, Base: base}, nil
}

// Resolve turns href into an absolute, normalized http(s) URL.
func (d *Document) Resolve(href string) (string, bool) {
	return crawler.ResolveURL(d.Base, href)
}

// Links returns every a[href] target in document order, resolved,
// normalized and deduplicated.
func (d *Document) Links() []string {
	seen := make(map[string]struct{})
	var links []string
	d.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := d.Resolve(href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

// Text returns the whitespace-collapsed visible text of the body.
func (d *Document) Text() string {
	body := d.Doc.Find("body")
	if body.Length() == 0 {
		return CollapseSpace(d.Doc.Text())
	}
	return SelectionText(body)
}

// SelectionText returns the whitespace-collapsed visible text of s.
func SelectionText(s *goquery.Selection) string {
	clone := s.Clone()
	clone.Find("script, style, noscript, template").Remove()
	return CollapseSpace(clone.Text())
}

// JSONLD decodes every application/ld+json block. Blocks that fail to
// decode are skipped.
func (d *Document) JSONLD() []any {
	var blocks []any
	d.Doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return
		}
		blocks = append(blocks, v)
	})
	return blocks
}

// NodesOfType walks JSON-LD blocks, including arrays and @graph containers,
// and returns the objects whose @type matches typeName.
func (d *Document) NodesOfType(typeName string) []map[string]any {
	var out []map[string]any
	var walk func(v any)
	walk = func(v any) {
		switch node := v.(type) {
		case []any:
			for _, item := range node {
				walk(item)
			}
		case map[string]any:
			if HasType(node, typeName) {
				out = append(out, node)
			}
			if graph, ok := node["@graph"]; ok {
				walk(graph)
			}
		}
	}
	for _, block := range d.JSONLD() {
		walk(block)
	}
	return out
}

// HasType reports whether a JSON-LD node declares typeName, accepting
// string or array @type values and schema.org prefixes.
func HasType(node map[string]any, typeName string) bool {
	match := func(v any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		s = strings.TrimSpace(s)
		if i := strings.LastIndexAny(s, "/:"); i >= 0 {
			s = s[i+1:]
		}
		return strings.EqualFold(s, typeName)
	}
	switch t := node["@type"].(type) {
	case string:
		return match(t)
	case []any:
		for _, item := range t {
			if match(item) {
				return true
			}
		}
	}
	return false
}

// CollapseSpace trims s and folds internal whitespace runs to one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

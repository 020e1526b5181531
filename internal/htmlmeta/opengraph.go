package htmlmeta

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// OpenGraph holds og:* and product:* meta values in document order.
type OpenGraph map[string][]string

// OpenGraph collects meta tags keyed by property (or name) with an og: or
// product: prefix.
func (d *Document) OpenGraph() OpenGraph {
	og := make(OpenGraph)
	d.Doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("property")
		if !ok {
			key, ok = s.Attr("name")
		}
		if !ok {
			return
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if !strings.HasPrefix(key, "og:") && !strings.HasPrefix(key, "product:") {
			return
		}
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		og[key] = append(og[key], content)
	})
	return og
}

// Get returns the first value for key.
func (og OpenGraph) Get(key string) string {
	if values := og[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// First returns the first non-empty value among keys.
func (og OpenGraph) First(keys ...string) string {
	for _, k := range keys {
		if v := og.Get(k); v != "" {
			return v
		}
	}
	return ""
}

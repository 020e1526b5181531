// Package slug derives filesystem-safe product directory names.
package slug

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/hash/sha256"
)

const (
	// DefaultMaxLen caps slugs so directory names stay portable.
	DefaultMaxLen = 80
	// SuffixLen is the number of hex characters in a disambiguator.
	SuffixLen = 8
	fallback  = "product"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// LookupFunc reports the source URL stored under slug, if the slug is taken.
type LookupFunc func(slug string) (sourceURL string, exists bool)

// Generator implements crawler.Slugger. Lookup is the only side effect.
type Generator struct {
	Lookup LookupFunc
	MaxLen int
}

var _ crawler.Slugger = Generator{}

// Slugify returns the base slug for the record, or the base slug plus an
// 8-character hash of sourceURL when the base is already taken by a
// different source.
func (g Generator) Slugify(title, sku, sourceURL string) string {
	maxLen := g.MaxLen
	if maxLen <= SuffixLen+1 {
		maxLen = DefaultMaxLen
	}
	base := Base(title, sku, sourceURL, maxLen)
	if g.Lookup == nil {
		return base
	}
	existing, taken := g.Lookup(base)
	if !taken || existing == sourceURL {
		return base
	}
	suffix := "-" + sha256.Short(sourceURL, SuffixLen)
	return truncate(base, maxLen-len(suffix)) + suffix
}

// Base builds the undisambiguated slug: title and SKU, else the last URL
// path segment, else "product".
func Base(title, sku, sourceURL string, maxLen int) string {
	t := Normalize(title)
	s := Normalize(sku)

	base := t
	switch {
	case s == "":
	case t == "":
		base = s
	case !strings.Contains(t, s):
		base = t + "-" + s
	}
	if base == "" {
		segment := crawler.LastPathSegment(sourceURL)
		base = Normalize(strings.TrimSuffix(segment, path.Ext(segment)))
	}
	if base == "" {
		base = fallback
	}
	return truncate(base, maxLen)
}

// Normalize lowercases s, folds accents, and collapses every run of
// non-alphanumeric characters into a single "-".
func Normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	return strings.Trim(nonAlnum.ReplaceAllString(folded, "-"), "-")
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	s = s[:maxLen]
	if i := strings.LastIndex(s, "-"); i > maxLen/2 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "-")
	if s == "" {
		return fallback
	}
	return s
}

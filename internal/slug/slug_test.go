package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase(t *testing.T) {
	tests := []struct {
		name  string
		title string
		sku   string
		url   string
		want  string
	}{
		{"title and sku", "Widget", "W-1", "https://example.com/p/1", "widget-w-1"},
		{"sku already in title", "Widget W-1", "w-1", "https://example.com/p/1", "widget-w-1"},
		{"punctuation collapses", "  Super -- Deluxe!!  Widget (Blue) ", "", "", "super-deluxe-widget-blue"},
		{"accents fold", "Crème Brûlée Torch", "", "", "creme-brulee-torch"},
		{"sku only", "", "AB/12", "", "ab-12"},
		{"url fallback", "", "", "https://example.com/catalog/Blue_Hose.html", "blue-hose"},
		{"final fallback", "", "", "https://example.com/", "product"},
		{"symbols only", "***", "", "", "product"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Base(tt.title, tt.sku, tt.url, DefaultMaxLen))
		})
	}
}

func TestBaseIsLengthCapped(t *testing.T) {
	title := strings.Repeat("very long product name ", 20)
	got := Base(title, "", "", 40)
	assert.LessOrEqual(t, len(got), 40)
	assert.False(t, strings.HasSuffix(got, "-"))
	assert.True(t, strings.HasPrefix(got, "very-long-product-name"))
}

func TestSlugifyWithoutCollision(t *testing.T) {
	var looked []string
	g := Generator{Lookup: func(s string) (string, bool) {
		looked = append(looked, s)
		return "", false
	}}
	assert.Equal(t, "widget-w-1", g.Slugify("Widget", "W-1", "https://example.com/widget"))
	assert.Equal(t, []string{"widget-w-1"}, looked)
}

func TestSlugifySameSourceReusesSlug(t *testing.T) {
	g := Generator{Lookup: func(string) (string, bool) {
		return "https://example.com/widget", true
	}}
	assert.Equal(t, "widget-w-1", g.Slugify("Widget", "W-1", "https://example.com/widget"))
}

func TestSlugifyDisambiguatesDifferentSource(t *testing.T) {
	g := Generator{Lookup: func(s string) (string, bool) {
		return "https://example.com/widget", s == "widget"
	}}

	first := g.Slugify("Widget", "", "https://example.com/widget-red")
	second := g.Slugify("Widget", "", "https://example.com/widget-red")
	other := g.Slugify("Widget", "", "https://example.com/widget-blue")

	require.Len(t, first, len("widget-")+SuffixLen)
	assert.True(t, strings.HasPrefix(first, "widget-"))
	assert.Equal(t, first, second, "suffix is deterministic")
	assert.NotEqual(t, first, other)
}

func TestSlugifyCollisionRespectsMaxLen(t *testing.T) {
	g := Generator{
		MaxLen: 20,
		Lookup: func(string) (string, bool) { return "https://example.com/a", true },
	}
	got := g.Slugify("an extremely long product title", "", "https://example.com/b")
	assert.LessOrEqual(t, len(got), 20)
	assert.Regexp(t, `-[0-9a-f]{8}$`, got)
}

func TestNilLookup(t *testing.T) {
	assert.Equal(t, "widget", Generator{}.Slugify("Widget", "", ""))
}

package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/htmlmeta"
)

func TestClassify(t *testing.T) {
	c := New(nil)

	tests := []struct {
		name   string
		url    string
		body   string
		kind   crawler.PageKind
		signal string
	}{
		{
			name:   "json-ld product",
			url:    "https://example.com/widget",
			body:   `<script type="application/ld+json">{"@type":"Product","name":"Widget"}</script>`,
			kind:   crawler.PageKindProduct,
			signal: "jsonld",
		},
		{
			name:   "json-ld product inside graph",
			url:    "https://example.com/widget",
			body:   `<script type="application/ld+json">{"@graph":[{"@type":"Organization"},{"@type":["Product"]}]}</script>`,
			kind:   crawler.PageKindProduct,
			signal: "jsonld",
		},
		{
			name:   "opengraph product",
			url:    "https://example.com/widget",
			body:   `<meta property="og:type" content="product"><a href="/x">x</a>`,
			kind:   crawler.PageKindProduct,
			signal: "opengraph",
		},
		{
			name:   "price near add to cart",
			url:    "https://example.com/widget",
			body:   `<h1>Widget</h1><span class="price">$19.99</span><button class="btn">Add to Cart</button>`,
			kind:   crawler.PageKindProduct,
			signal: "heuristic",
		},
		{
			name: "price in the buy box around the cart form",
			url:  "https://example.com/widget",
			body: `<div class="buy-box"><div class="row"><span class="amount">$19.99</span></div>
<form action="/cart/add"><button>Add to basket</button></form></div>`,
			kind:   crawler.PageKindProduct,
			signal: "heuristic",
		},
		{
			name: "grid prices far from a global cart button",
			url:  "https://example.com/category/shirts",
			body: `<div class="toolbar"><button>Add to cart</button></div>
<ul class="grid"><li><a href="/c/red">Red</a> $5.00</li><li><a href="/c/blue">Blue</a> $6.00</li></ul>`,
			kind:   crawler.PageKindListing,
			signal: "links",
		},
		{
			name:   "product path",
			url:    "https://example.com/products/blue-widget",
			body:   `<h1>Blue Widget</h1>`,
			kind:   crawler.PageKindProduct,
			signal: "heuristic",
		},
		{
			name:   "catalog index is a listing",
			url:    "https://example.com/products/",
			body:   `<a href="/products/blue-widget">Blue</a>`,
			kind:   crawler.PageKindListing,
			signal: "links",
		},
		{
			name:   "add to cart without price is not enough",
			url:    "https://example.com/cart-help",
			body:   `<button id="add-to-cart">Add</button><a href="/faq">faq</a>`,
			kind:   crawler.PageKindListing,
			signal: "links",
		},
		{
			name:   "only off-site links",
			url:    "https://example.com/about",
			body:   `<p>About us</p><a href="https://twitter.com/example">t</a>`,
			kind:   crawler.PageKindIrrelevant,
			signal: "none",
		},
		{
			name:   "empty page",
			url:    "https://example.com/blank",
			body:   ``,
			kind:   crawler.PageKindIrrelevant,
			signal: "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify([]byte(tt.body), tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.signal, got.Signal)
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	var calls []string
	record := func(name string, result bool) Strategy {
		return Strategy{Name: name, Match: func(*htmlmeta.Document) bool {
			calls = append(calls, name)
			return result
		}}
	}
	c := NewWithStrategies(record("a", false), record("b", true), record("c", true))

	got, err := c.Classify([]byte(`<p>x</p>`), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, crawler.PageKindProduct, got.Kind)
	assert.Equal(t, "b", got.Signal)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestClassifyReturnsNormalizedLinks(t *testing.T) {
	c := New(nil)
	got, err := c.Classify([]byte(`
<a href="/Shop/">shop</a>
<a href="/Shop#reviews">dup</a>
<a href="HTTP://EXAMPLE.COM:80/about">about</a>
<a href="tel:+15551234">call</a>`), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/Shop", "http://example.com/about"}, got.Links)
}

func TestClassifyCustomKeywords(t *testing.T) {
	c := New([]string{"/sku/"})
	got, err := c.Classify([]byte(`<p>hi</p>`), "https://example.com/sku/123")
	require.NoError(t, err)
	assert.Equal(t, crawler.PageKindProduct, got.Kind)

	got, err = c.Classify([]byte(`<p>hi</p>`), "https://example.com/product/123")
	require.NoError(t, err)
	assert.Equal(t, crawler.PageKindIrrelevant, got.Kind)
}

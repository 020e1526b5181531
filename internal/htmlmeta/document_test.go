package htmlmeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!doctype html>
<html><head>
<meta property="og:type" content="product">
<meta property="og:image" content="/img/a.jpg">
<meta property="og:image" content="/img/b.jpg">
<meta name="product:price:amount" content="19.99">
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
  {"@type":"WebPage","name":"page"},
  {"@type":["Thing","schema:Product"],"name":"Widget"}
]}
</script>
<script type="application/ld+json">{broken json</script>
<script type="application/ld+json">[{"@type":"BreadcrumbList"},{"@type":"Product","name":"Other"}]</script>
</head>
<body>
<a href="/b#top">B</a>
<a href="/a/">A</a>
<a href="HTTPS://Example.com/a">A again</a>
<a href="mailto:x@example.com">mail</a>
<a href="javascript:void(0)">js</a>
<a href="#frag">frag</a>
<a href="https://other.com/x?b=2&a=1">other</a>
<script>var hidden = "$5.00";</script>
<p>  Only   $19.99 today </p>
</body></html>`

func TestLinksAreResolvedNormalizedAndDeduplicated(t *testing.T) {
	doc, err := Parse([]byte(samplePage), "https://example.com/product/widget")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://example.com/b",
		"https://example.com/a",
		"https://other.com/x?a=1&b=2",
	}, doc.Links())
}

func TestBaseHrefOverridesPageURL(t *testing.T) {
	doc, err := Parse([]byte(`<html><head><base href="https://example.com/shop/"></head>
<body><a href="item/1">x</a></body></html>`), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/shop/item/1"}, doc.Links())
}

func TestNodesOfTypeWalksGraphsAndArrays(t *testing.T) {
	doc, err := Parse([]byte(samplePage), "https://example.com/")
	require.NoError(t, err)

	nodes := doc.NodesOfType("Product")
	require.Len(t, nodes, 2)
	assert.Equal(t, "Widget", nodes[0]["name"])
	assert.Equal(t, "Other", nodes[1]["name"])
	assert.Len(t, doc.NodesOfType("BreadcrumbList"), 1)
	assert.Empty(t, doc.NodesOfType("Offer"))
}

func TestOpenGraphKeepsAllValues(t *testing.T) {
	doc, err := Parse([]byte(samplePage), "https://example.com/")
	require.NoError(t, err)

	og := doc.OpenGraph()
	assert.Equal(t, "product", og.Get("og:type"))
	assert.Equal(t, []string{"/img/a.jpg", "/img/b.jpg"}, og["og:image"])
	assert.Equal(t, "19.99", og.First("og:price:amount", "product:price:amount"))
	assert.Empty(t, og.Get("og:title"))
}

func TestTextSkipsScripts(t *testing.T) {
	doc, err := Parse([]byte(samplePage), "https://example.com/")
	require.NoError(t, err)

	text := doc.Text()
	assert.Contains(t, text, "Only $19.99 today")
	assert.NotContains(t, text, "$5.00")
}

func TestFindPrice(t *testing.T) {
	tests := []struct {
		in       string
		raw      string
		amount   string
		currency string
	}{
		{"Now $19.99!", "$19.99", "19.99", "$"},
		{"Price: 1.299,00 €", "1.299,00 €", "1.299,00", "€"},
		{"USD 1,250", "USD 1,250", "1,250", "USD"},
		{"only 45 EUR left", "45 EUR", "45", "EUR"},
		{"£5 or $7", "£5", "5", "£"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, ok := FindPrice(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.raw, m.Raw)
			assert.Equal(t, tt.amount, m.Amount)
			assert.Equal(t, tt.currency, m.Currency)
		})
	}

	_, ok := FindPrice("no prices here, 42 apples")
	assert.False(t, ok)
	assert.False(t, ContainsPrice("Call 555-1234"))
}

func TestHasType(t *testing.T) {
	assert.True(t, HasType(map[string]any{"@type": "product"}, "Product"))
	assert.True(t, HasType(map[string]any{"@type": "http://schema.org/Product"}, "Product"))
	assert.True(t, HasType(map[string]any{"@type": []any{"Thing", "Product"}}, "Product"))
	assert.False(t, HasType(map[string]any{"@type": "ProductGroup"}, "Product"))
	assert.False(t, HasType(map[string]any{}, "Product"))
}

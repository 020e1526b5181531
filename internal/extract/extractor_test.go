package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-crawler/internal/clock/system"
	"github.com/JakeFAU/product-crawler/internal/crawler"
)

var extractedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return New(system.Fixed{T: extractedAt}, nil)
}

func TestExtractWidgetFromJSONLD(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product","name":"Widget","sku":"W-1",
 "offers":{"@type":"Offer","price":"19.99","priceCurrency":"USD"},
 "image":["/img/widget-1.jpg","https://cdn.example.com/widget-2.jpg","/img/widget-1.jpg"]}
</script></head><body><h1>Ignored heading</h1></body></html>`

	rec, err := newTestExtractor().Extract([]byte(page), "https://example.com/product/widget")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/product/widget", rec.SourceURL)
	assert.Equal(t, "Widget", rec.Title)
	assert.Equal(t, "W-1", rec.SKU)
	require.NotNil(t, rec.Price.Amount)
	assert.InDelta(t, 19.99, *rec.Price.Amount, 1e-9)
	assert.Equal(t, "USD", rec.Price.Currency)
	assert.Equal(t, "19.99", rec.Price.Raw)
	assert.Equal(t, []string{
		"https://example.com/img/widget-1.jpg",
		"https://cdn.example.com/widget-2.jpg",
	}, rec.ImageURLs)
	assert.Equal(t, extractedAt, rec.ExtractedAt)
}

func TestJSONLDTakesPrecedenceOverOpenGraph(t *testing.T) {
	page := `<html><head>
<meta property="og:title" content="OG Title">
<meta property="og:description" content="OG description">
<meta property="og:image" content="/og.jpg">
<meta property="product:price:amount" content="5.00">
<meta property="product:price:currency" content="EUR">
<script type="application/ld+json">{"@type":"Product","name":"LD Title","offers":{"price":42,"priceCurrency":"GBP"}}</script>
</head><body></body></html>`

	rec, err := newTestExtractor().Extract([]byte(page), "https://example.com/p/1")
	require.NoError(t, err)

	assert.Equal(t, "LD Title", rec.Title)
	require.NotNil(t, rec.Price.Amount)
	assert.InDelta(t, 42.0, *rec.Price.Amount, 1e-9)
	assert.Equal(t, "GBP", rec.Price.Currency)
	assert.Equal(t, "OG description", rec.DescriptionText, "gaps are filled by the next layer")
	assert.Equal(t, []string{"https://example.com/og.jpg"}, rec.ImageURLs)
}

func TestOpenGraphBeatsDOM(t *testing.T) {
	page := `<html><head>
<meta property="og:title" content="OG Widget">
<meta property="product:retailer_item_id" content="OG-7">
</head><body>
<h1>DOM Widget</h1>
<span class="price">$3.50</span>
<nav aria-label="Breadcrumb"><ol><li><a href="/">Home</a></li><li><a href="/tools">Tools</a></li><li>OG Widget</li></ol></nav>
</body></html>`

	rec, err := newTestExtractor().Extract([]byte(page), "https://example.com/p/7")
	require.NoError(t, err)

	assert.Equal(t, "OG Widget", rec.Title)
	assert.Equal(t, "OG-7", rec.SKU)
	require.NotNil(t, rec.Price.Amount)
	assert.InDelta(t, 3.5, *rec.Price.Amount, 1e-9)
	assert.Equal(t, "USD", rec.Price.Currency)
	assert.Equal(t, "$3.50", rec.Price.Raw)
	assert.Equal(t, []string{"Tools"}, rec.Categories)
}

func TestExtractFromDOMOnly(t *testing.T) {
	page := `<html><body>
<div class="breadcrumbs"><a href="/">Home</a> / <a href="/garden">Garden</a> / <a href="/garden/hoses">Hoses</a></div>
<h1>  Garden   Hose </h1>
<div class="product-sku">SKU: GH-100</div>
<p>Was <span>£30</span></p>
<div class="product-gallery">
  <img src="/img/hose.jpg"><img data-src="/img/hose-2.jpg" src="data:image/gif;base64,AAAA">
</div>
<div class="product-description"><p>Flexible <b>hose</b>.</p><script>alert(1)</script></div>
<a href="/docs/manual.PDF?v=2">Manual</a>
</body></html>`

	rec, err := newTestExtractor().Extract([]byte(page), "https://example.com/garden/hose")
	require.NoError(t, err)

	assert.Equal(t, "Garden Hose", rec.Title)
	assert.Equal(t, "GH-100", rec.SKU)
	require.NotNil(t, rec.Price.Amount)
	assert.InDelta(t, 30.0, *rec.Price.Amount, 1e-9)
	assert.Equal(t, "GBP", rec.Price.Currency)
	assert.Equal(t, []string{"Garden", "Hoses"}, rec.Categories)
	assert.Equal(t, []string{"https://example.com/img/hose.jpg", "https://example.com/img/hose-2.jpg"}, rec.ImageURLs)
	assert.Equal(t, []string{"https://example.com/docs/manual.PDF?v=2"}, rec.Documents)
	assert.Contains(t, rec.DescriptionHTML, "<b>hose</b>")
	assert.NotContains(t, rec.DescriptionHTML, "script")
	assert.Equal(t, "Flexible hose.", rec.DescriptionText)
}

func TestExtractJSONLDBreadcrumbsAndAggregateOffer(t *testing.T) {
	page := `<script type="application/ld+json">[
{"@type":"BreadcrumbList","itemListElement":[
  {"@type":"ListItem","position":1,"name":"Home"},
  {"@type":"ListItem","position":2,"item":{"name":"Lighting"}},
  {"@type":"ListItem","position":3,"name":"Lamps"}]},
{"@type":"Product","name":"Desk Lamp","image":{"@type":"ImageObject","url":"/lamp.png"},
 "offers":[{"@type":"AggregateOffer","lowPrice":"1,299.00","priceCurrency":"usd"}]}
]</script>`

	rec, err := newTestExtractor().Extract([]byte(page), "https://example.com/lamp")
	require.NoError(t, err)
	assert.Equal(t, []string{"Lighting", "Lamps"}, rec.Categories)
	assert.Equal(t, []string{"https://example.com/lamp.png"}, rec.ImageURLs)
	require.NotNil(t, rec.Price.Amount)
	assert.InDelta(t, 1299.0, *rec.Price.Amount, 1e-9)
	assert.Equal(t, "USD", rec.Price.Currency)
	assert.Equal(t, "1,299.00", rec.Price.Raw)
}

func TestExtractFailsWithoutTitleOrSKU(t *testing.T) {
	_, err := newTestExtractor().Extract([]byte(`<html><body><p>nothing here</p></body></html>`), "https://example.com/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrExtractionFailure)
}

func TestExtractWithoutPriceLeavesItEmpty(t *testing.T) {
	rec, err := newTestExtractor().Extract([]byte(`<h1>Plain</h1>`), "https://example.com/plain")
	require.NoError(t, err)
	assert.True(t, rec.Price.IsZero())
	assert.Empty(t, rec.ImageURLs)
	assert.Empty(t, rec.DescriptionHTML)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw      string
		amount   *float64
		currency string
	}{
		{"$19.99", ptr(19.99), "USD"},
		{"$1,299.00", ptr(1299), "USD"},
		{"1.299,00 €", ptr(1299), "EUR"},
		{"19,99 €", ptr(19.99), "EUR"},
		{"£1,250", ptr(1250), "GBP"},
		{"EUR 1.234.567", ptr(1234567), "EUR"},
		{"¥ 3000", ptr(3000), "JPY"},
		{"C$12", ptr(12), "CAD"},
		{"€1.299", nil, "EUR"},
		{"$12,34,56", nil, "USD"},
		{"49.5", ptr(49.5), ""},
		{"Call for price", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p := ParsePrice(tt.raw)
			assert.Equal(t, tt.raw, p.Raw)
			assert.Equal(t, tt.currency, p.Currency)
			if tt.amount == nil {
				assert.Nil(t, p.Amount)
				return
			}
			require.NotNil(t, p.Amount)
			assert.InDelta(t, *tt.amount, *p.Amount, 1e-9)
		})
	}
}

func TestParsePriceFirstMatchWins(t *testing.T) {
	p := ParsePrice("€10.00 / $11.50")
	require.NotNil(t, p.Amount)
	assert.InDelta(t, 10.0, *p.Amount, 1e-9)
	assert.Equal(t, "EUR", p.Currency)
}

func TestExtractAssociatedProducts(t *testing.T) {
	body := `<html><body>
<h1>Widget</h1>
<div class="product-gallery"><img src="/widget.jpg"></div>
<section class="related-products">
  <a href="/product/gizmo">Gizmo</a>
  <a href="/product/gizmo"><img src="/g.jpg" alt="Gizmo again"></a>
  <a href="/product/doohickey" title="Doohickey"><img src="/d.jpg"></a>
  <a href="/product/widget">Widget</a>
  <a href="https://elsewhere.example.org/product/x">Offsite</a>
</section>
<div class="upsell-grid"><a href="/product/thing"><img src="/t.jpg" alt="Thing"></a></div>
<a href="/product/not-related">Unrelated</a>
</body></html>`

	rec, err := newTestExtractor().Extract([]byte(body), "https://shop.example.com/product/widget")
	require.NoError(t, err)
	assert.Equal(t, []crawler.AssociatedProduct{
		{URL: "https://shop.example.com/product/gizmo", Title: "Gizmo"},
		{URL: "https://shop.example.com/product/doohickey", Title: "Doohickey"},
		{URL: "https://shop.example.com/product/thing", Title: "Thing"},
	}, rec.Associated)
	assert.Equal(t, []string{"https://shop.example.com/widget.jpg"}, rec.ImageURLs,
		"thumbnails of related products are not gallery images")
}

func ptr(v float64) *float64 { return &v }

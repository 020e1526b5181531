package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/htmlmeta"
)

var (
	titleSelectors       = []string{"h1", `[itemtype*="Product"] [itemprop="name"]`, "h2", "title"}
	skuSelectors         = []string{`[itemprop="sku"]`, `[itemprop="mpn"]`, ".sku", "#sku", `[class*="sku"]`, `[data-sku]`}
	priceSelectors       = []string{`[itemprop="price"]`, ".price", "#price", `[class*="price"]`, `[id*="price"]`}
	descriptionSelectors = []string{
		`[itemprop="description"]`, "#description", ".product-description",
		"#product-description", `[class*="description"]`,
	}
	breadcrumbSelectors = []string{
		`[itemtype*="BreadcrumbList"] [itemprop="name"]`,
		`nav[aria-label*="readcrumb"] li`,
		`nav[aria-label*="readcrumb"] a`,
		".breadcrumb li", ".breadcrumbs li",
		".breadcrumb a", ".breadcrumbs a",
	}
	imageSelectors = []string{
		`[itemprop="image"]`,
		".product-gallery img", ".gallery img", `[class*="gallery"] img`,
		`[class*="product"] img`,
	}
	imageAttrs    = []string{"data-zoom-image", "data-large", "data-src", "src", "content", "href"}
	relatedBlocks = []string{
		`[class*="related"]`, `[id*="related"]`, `[class*="associated"]`,
		`[class*="cross-sell"]`, `[class*="upsell"]`,
	}
)

func fromDOM(doc *htmlmeta.Document) fields {
	var f fields
	f.title = firstText(doc.Doc, titleSelectors)
	f.sku = skuText(doc.Doc)
	f.price = domPrice(doc)
	f.description = descriptionHTML(doc.Doc)
	f.categories = breadcrumbs(doc.Doc)
	f.images = galleryImages(doc.Doc)
	f.documents = documentLinks(doc.Doc)
	return f
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		var out string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
				out = htmlmeta.CollapseSpace(v)
			} else {
				out = htmlmeta.CollapseSpace(s.Text())
			}
			return out == ""
		})
		if out != "" {
			return out
		}
	}
	return ""
}

func skuText(doc *goquery.Document) string {
	if v, ok := doc.Find("[data-sku]").First().Attr("data-sku"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	raw := firstText(doc, skuSelectors)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	for _, label := range []string{"sku:", "sku", "item #", "item:", "part #"} {
		if strings.HasPrefix(lower, label) {
			raw = strings.TrimSpace(raw[len(label):])
			break
		}
	}
	return strings.TrimSpace(strings.TrimLeft(raw, ":#"))
}

func domPrice(doc *htmlmeta.Document) crawler.Price {
	item := doc.Doc.Find(`[itemprop="price"]`).First()
	if item.Length() > 0 {
		value, ok := item.Attr("content")
		if !ok || strings.TrimSpace(value) == "" {
			value = item.Text()
		}
		currency := ""
		if c := doc.Doc.Find(`[itemprop="priceCurrency"]`).First(); c.Length() > 0 {
			currency, _ = c.Attr("content")
			if currency == "" {
				currency = c.Text()
			}
		}
		if p := parseStructuredPrice(htmlmeta.CollapseSpace(value), currency); !p.IsZero() {
			return p
		}
	}

	for _, sel := range priceSelectors[1:] {
		var price crawler.Price
		doc.Doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m, ok := htmlmeta.FindPrice(htmlmeta.CollapseSpace(s.Text())); ok {
				price = ParsePrice(m.Raw)
				return false
			}
			return true
		})
		if !price.IsZero() {
			return price
		}
	}

	if m, ok := htmlmeta.FindPrice(doc.Text()); ok {
		return ParsePrice(m.Raw)
	}
	return crawler.Price{}
}

func descriptionHTML(doc *goquery.Document) string {
	for _, sel := range descriptionSelectors {
		var out string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
				out = strings.TrimSpace(v)
				return false
			}
			if strings.TrimSpace(s.Text()) == "" {
				return true
			}
			inner, err := s.Html()
			if err != nil {
				return true
			}
			out = strings.TrimSpace(inner)
			return out == ""
		})
		if out != "" {
			return out
		}
	}
	return ""
}

func breadcrumbs(doc *goquery.Document) []string {
	for _, sel := range breadcrumbSelectors {
		var out []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			name := htmlmeta.CollapseSpace(s.Text())
			name = strings.Trim(name, "/>›» ")
			if name == "" || strings.EqualFold(name, "home") {
				return
			}
			out = append(out, name)
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func galleryImages(doc *goquery.Document) []string {
	related := strings.Join(relatedBlocks, ", ")
	for _, sel := range imageSelectors {
		var out []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if s.Closest(related).Length() > 0 {
				return
			}
			for _, attr := range imageAttrs {
				if v, ok := s.Attr(attr); ok && isImageRef(v) {
					out = append(out, strings.TrimSpace(v))
					return
				}
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func isImageRef(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.HasPrefix(v, "data:")
}

func documentLinks(doc *goquery.Document) []string {
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		path := strings.ToLower(href)
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
		if strings.HasSuffix(path, ".pdf") {
			out = append(out, href)
		}
	})
	return out
}

// relatedProducts collects same-site links found inside related-product
// blocks, skipping the page itself.
func relatedProducts(doc *htmlmeta.Document, pageURL string) []crawler.AssociatedProduct {
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	self, _ := crawler.NormalizeURL(pageURL)

	index := make(map[string]int)
	var out []crawler.AssociatedProduct
	anchors := make([]string, len(relatedBlocks))
	for i, block := range relatedBlocks {
		anchors[i] = block + " a[href]"
	}
	doc.Doc.Find(strings.Join(anchors, ", ")).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := doc.Resolve(href)
		if !ok || abs == self || !crawler.SameSite(page, abs) {
			return
		}
		title := linkTitle(s)
		if i, dup := index[abs]; dup {
			if out[i].Title == "" {
				out[i].Title = title
			}
			return
		}
		index[abs] = len(out)
		out = append(out, crawler.AssociatedProduct{URL: abs, Title: title})
	})
	return out
}

func linkTitle(s *goquery.Selection) string {
	if t := htmlmeta.CollapseSpace(s.Text()); t != "" {
		return t
	}
	if t, ok := s.Attr("title"); ok && strings.TrimSpace(t) != "" {
		return htmlmeta.CollapseSpace(t)
	}
	alt, _ := s.Find("img[alt]").First().Attr("alt")
	return htmlmeta.CollapseSpace(alt)
}

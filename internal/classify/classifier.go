// Package classify decides whether a fetched page is a product page, a
// listing page or irrelevant.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/htmlmeta"
)

// DefaultProductPathKeywords are matched against the URL path when no
// structured data marks the page.
var DefaultProductPathKeywords = []string{"/product/", "/products/", "/p/", "/item/"}

// Strategy is one product signal. Strategies run in order and the first
// match decides.
type Strategy struct {
	Name  string
	Match func(doc *htmlmeta.Document) bool
}

// Classifier implements crawler.Classifier.
type Classifier struct {
	strategies []Strategy
}

var _ crawler.Classifier = (*Classifier)(nil)

// New builds the default strategy chain: JSON-LD, OpenGraph, then DOM and
// URL heuristics.
func New(pathKeywords []string) *Classifier {
	if len(pathKeywords) == 0 {
		pathKeywords = DefaultProductPathKeywords
	}
	return NewWithStrategies(
		Strategy{Name: "jsonld", Match: JSONLDProduct},
		Strategy{Name: "opengraph", Match: OpenGraphProduct},
		Strategy{Name: "heuristic", Match: Heuristic(pathKeywords)},
	)
}

// NewWithStrategies builds a Classifier with a custom chain.
func NewWithStrategies(strategies ...Strategy) *Classifier {
	return &Classifier{strategies: strategies}
}

// Classify implements crawler.Classifier.
func (c *Classifier) Classify(body []byte, pageURL string) (crawler.Classification, error) {
	doc, err := htmlmeta.Parse(body, pageURL)
	if err != nil {
		return crawler.Classification{}, err
	}
	links := doc.Links()

	for _, s := range c.strategies {
		if s.Match(doc) {
			return crawler.Classification{Kind: crawler.PageKindProduct, Signal: s.Name, Links: links}, nil
		}
	}

	for _, link := range links {
		if crawler.SameSite(doc.Base, link) {
			return crawler.Classification{Kind: crawler.PageKindListing, Signal: "links", Links: links}, nil
		}
	}
	return crawler.Classification{Kind: crawler.PageKindIrrelevant, Signal: "none", Links: links}, nil
}

// JSONLDProduct matches pages declaring a schema.org Product.
func JSONLDProduct(doc *htmlmeta.Document) bool {
	return len(doc.NodesOfType("Product")) > 0
}

// OpenGraphProduct matches og:type=product.
func OpenGraphProduct(doc *htmlmeta.Document) bool {
	return strings.EqualFold(doc.OpenGraph().Get("og:type"), "product")
}

var addToCartExpr = regexp.MustCompile(`(?i)add[\s_-]*to[\s_-]*(cart|basket|bag)|addtocart|buy[\s_-]*now`)

// Heuristic matches a product-like URL path, or price-like text near an
// add-to-cart control.
func Heuristic(pathKeywords []string) func(doc *htmlmeta.Document) bool {
	keywords := make([]string, 0, len(pathKeywords))
	for _, kw := range pathKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return func(doc *htmlmeta.Document) bool {
		if pathMatches(doc.Base, keywords) {
			return true
		}
		return PriceNearAddToCart(doc)
	}
}

const (
	cartCandidates = "button, a, input[type=submit], input[type=button], form"
	productScopes  = `form, [class*="product"], [id*="product"], [itemtype*="Product"]`
	// nearDepth bounds how many ancestors of a cart control are searched.
	nearDepth = 3
)

// PriceNearAddToCart reports whether an add-to-cart control shares its
// product container, or one of its closest ancestors, with price-like text.
// body only counts when the control sits directly inside it.
func PriceNearAddToCart(doc *htmlmeta.Document) bool {
	found := false
	cartControls(doc).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = priceNear(s)
		return !found
	})
	return found
}

func cartControls(doc *htmlmeta.Document) *goquery.Selection {
	return doc.Doc.Find(cartCandidates).FilterFunction(func(_ int, s *goquery.Selection) bool {
		candidates := []string{goquery.NodeName(s) + " " + strings.TrimSpace(s.Text())}
		for _, attr := range []string{"value", "class", "id", "name", "action", "aria-label"} {
			if v, ok := s.Attr(attr); ok {
				candidates = append(candidates, v)
			}
		}
		for _, c := range candidates {
			if addToCartExpr.MatchString(c) {
				return true
			}
		}
		return false
	})
}

func priceNear(control *goquery.Selection) bool {
	if scope := control.Closest(productScopes); scope.Length() > 0 && htmlmeta.ContainsPrice(htmlmeta.SelectionText(scope)) {
		return true
	}
	p := control.Parent()
	for i := 0; i < nearDepth && p.Length() > 0; i++ {
		if p.Is("html") || (i > 0 && p.Is("body")) {
			return false
		}
		if htmlmeta.ContainsPrice(htmlmeta.SelectionText(p)) {
			return true
		}
		p = p.Parent()
	}
	return false
}

func pathMatches(u *url.URL, keywords []string) bool {
	if u == nil {
		return false
	}
	p := strings.ToLower(u.Path)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	for _, kw := range keywords {
		idx := strings.Index(p, kw)
		// "/products/" alone is the catalog index, not a product.
		if idx >= 0 && strings.Trim(p[idx+len(kw):], "/") != "" {
			return true
		}
	}
	return false
}

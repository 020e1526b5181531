package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/htmlmeta"
)

func fromJSONLD(doc *htmlmeta.Document) fields {
	var f fields
	products := doc.NodesOfType("Product")
	if len(products) == 0 {
		return f
	}
	p := products[0]

	f.title = htmlmeta.CollapseSpace(stringValue(p["name"]))
	f.sku = firstString(p, "sku", "mpn", "productID")
	f.description = strings.TrimSpace(stringValue(p["description"]))
	f.images = imageValues(p["image"])
	f.price = offerPrice(p["offers"])
	f.categories = categoryValues(p["category"])

	if len(f.categories) == 0 {
		for _, crumbs := range doc.NodesOfType("BreadcrumbList") {
			f.categories = breadcrumbNames(crumbs)
			if len(f.categories) > 0 {
				break
			}
		}
	}
	return f
}

func offerPrice(v any) (price crawler.Price) {
	switch offer := v.(type) {
	case []any:
		for _, item := range offer {
			if p := offerPrice(item); !p.IsZero() {
				return p
			}
		}
	case map[string]any:
		currency := stringValue(offer["priceCurrency"])
		for _, key := range []string{"price", "lowPrice", "highPrice"} {
			if raw := stringValue(offer[key]); raw != "" {
				return parseStructuredPrice(raw, currency)
			}
		}
		if spec, ok := offer["priceSpecification"]; ok {
			return offerPrice(spec)
		}
		if nested, ok := offer["offers"]; ok {
			return offerPrice(nested)
		}
	}
	return price
}

func imageValues(v any) []string {
	switch img := v.(type) {
	case string:
		if s := strings.TrimSpace(img); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, item := range img {
			out = append(out, imageValues(item)...)
		}
		return out
	case map[string]any:
		if u := firstString(img, "url", "contentUrl", "@id"); u != "" {
			return []string{u}
		}
	}
	return nil
}

func categoryValues(v any) []string {
	switch c := v.(type) {
	case string:
		var out []string
		for _, part := range strings.FieldsFunc(c, func(r rune) bool { return r == '>' || r == '/' }) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range c {
			out = append(out, categoryValues(item)...)
		}
		return out
	case map[string]any:
		return categoryValues(c["name"])
	}
	return nil
}

func breadcrumbNames(list map[string]any) []string {
	items, _ := list["itemListElement"].([]any)
	var out []string
	for _, it := range items {
		entry, ok := it.(map[string]any)
		if !ok {
			continue
		}
		name := stringValue(entry["name"])
		if name == "" {
			if inner, ok := entry["item"].(map[string]any); ok {
				name = stringValue(inner["name"])
			}
		}
		if name = htmlmeta.CollapseSpace(name); name != "" && !strings.EqualFold(name, "home") {
			out = append(out, name)
		}
	}
	return out
}

func firstString(node map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(stringValue(node[k])); s != "" {
			return s
		}
	}
	return ""
}

// stringValue renders JSON scalars as text. Numbers keep their shortest
// decimal form so 19.99 stays "19.99".
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

package extract

import (
	"github.com/JakeFAU/product-crawler/internal/htmlmeta"
)

func fromOpenGraph(doc *htmlmeta.Document) fields {
	og := doc.OpenGraph()
	f := fields{
		title:       htmlmeta.CollapseSpace(og.Get("og:title")),
		sku:         og.First("product:retailer_item_id", "product:sku", "og:product:retailer_item_id"),
		description: og.Get("og:description"),
		images:      append([]string(nil), og["og:image"]...),
	}
	if len(f.images) == 0 {
		f.images = append(f.images, og["og:image:url"]...)
	}
	if amount := og.First("product:price:amount", "og:price:amount"); amount != "" {
		f.price = parseStructuredPrice(amount, og.First("product:price:currency", "og:price:currency"))
	}
	if category := og.Get("product:category"); category != "" {
		f.categories = categoryValues(category)
	}
	return f
}

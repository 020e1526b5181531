package htmlmeta

import "regexp"

const (
	amountExpr   = `\d(?:[\d.,]*\d)?`
	codeExpr     = `USD|EUR|GBP|JPY|CAD|AUD|INR|CHF|SEK|NOK|DKK|NZD`
	symbolPrefix = `US\$|C\$|A\$|NZ\$|\$|€|£|¥|₹`
)

// priceExpr matches a currency marker adjacent to a number, on either side.
var priceExpr = regexp.MustCompile(
	`(?i)(?:(` + symbolPrefix + `|\b(?:` + codeExpr + `))\s?(` + amountExpr + `))` +
		`|(?:(` + amountExpr + `)\s?(€|£|\b(?:` + codeExpr + `)\b|kr\b))`)

// PriceMatch is one price-like span found in text.
type PriceMatch struct {
	Raw      string
	Amount   string
	Currency string
}

// FindPrice returns the first price-like span in text.
func FindPrice(text string) (PriceMatch, bool) {
	m := priceExpr.FindStringSubmatch(text)
	if m == nil {
		return PriceMatch{}, false
	}
	if m[2] != "" {
		return PriceMatch{Raw: m[0], Currency: m[1], Amount: m[2]}, true
	}
	return PriceMatch{Raw: m[0], Amount: m[3], Currency: m[4]}, true
}

// ContainsPrice reports whether text has a price-like span.
func ContainsPrice(text string) bool {
	return priceExpr.MatchString(text)
}

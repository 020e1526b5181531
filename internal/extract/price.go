package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/product-crawler/internal/crawler"
	"github.com/JakeFAU/product-crawler/internal/htmlmeta"
)

var currencySymbols = map[string]string{
	"US$": "USD",
	"C$":  "CAD",
	"A$":  "AUD",
	"NZ$": "NZD",
	"$":   "USD",
	"€":   "EUR",
	"£":   "GBP",
	"¥":   "JPY",
	"₹":   "INR",
	"KR":  "SEK",
}

var machineNumber = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)

// ParsePrice parses human-formatted price text such as "$1,299.00" or
// "19,99 €". The raw text is always kept. Amount stays nil when the digits
// are ambiguous.
func ParsePrice(raw string) crawler.Price {
	raw = htmlmeta.CollapseSpace(raw)
	price := crawler.Price{Raw: raw}
	if raw == "" {
		return price
	}
	m, ok := htmlmeta.FindPrice(raw)
	if !ok {
		if machineNumber.MatchString(raw) {
			price.Amount = parseFloat(raw)
		} else if digits := firstNumber(raw); digits != "" {
			price.Amount = normalizeAmount(digits)
		}
		return price
	}
	price.Currency = NormalizeCurrency(m.Currency)
	price.Amount = normalizeAmount(m.Amount)
	return price
}

// parseStructuredPrice handles JSON-LD and meta tag values, which use a dot
// as the decimal separator.
func parseStructuredPrice(value, currency string) crawler.Price {
	value = strings.TrimSpace(value)
	if value == "" {
		return crawler.Price{}
	}
	if machineNumber.MatchString(value) {
		return crawler.Price{Raw: value, Amount: parseFloat(value), Currency: NormalizeCurrency(currency)}
	}
	price := ParsePrice(value)
	if c := NormalizeCurrency(currency); c != "" {
		price.Currency = c
	}
	return price
}

// NormalizeCurrency maps a symbol or code to an upper-case ISO 4217 code.
func NormalizeCurrency(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if code, ok := currencySymbols[s]; ok {
		return code
	}
	return s
}

var numberExpr = regexp.MustCompile(`\d(?:[\d.,]*\d)?`)

func firstNumber(s string) string {
	return numberExpr.FindString(s)
}

// normalizeAmount resolves thousands and decimal separators. With both a dot
// and a comma present, the last one is the decimal separator. A lone
// separator followed by exactly three digits is read as a thousands
// separator for a comma and is ambiguous for a dot.
func normalizeAmount(s string) *float64 {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots == 0 && commas == 0:
		return parseFloat(s)
	case dots > 0 && commas > 0:
		decimal, thousands := ".", ","
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			decimal, thousands = ",", "."
		}
		if strings.Count(s, decimal) > 1 {
			return nil
		}
		intPart, frac, _ := strings.Cut(s, decimal)
		if !validGroups(intPart, thousands) {
			return nil
		}
		return parseFloat(strings.ReplaceAll(intPart, thousands, "") + "." + frac)
	}

	sep := "."
	if commas > 0 {
		sep = ","
	}
	if strings.Count(s, sep) > 1 {
		if !validGroups(s, sep) {
			return nil
		}
		return parseFloat(strings.ReplaceAll(s, sep, ""))
	}

	intPart, frac, _ := strings.Cut(s, sep)
	switch {
	case len(frac) == 3 && sep == "," && len(intPart) <= 3:
		return parseFloat(intPart + frac)
	case len(frac) == 3:
		return nil
	case len(frac) <= 2:
		return parseFloat(intPart + "." + frac)
	default:
		return nil
	}
}

func validGroups(s, sep string) bool {
	groups := strings.Split(s, sep)
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return len(groups) == 1
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

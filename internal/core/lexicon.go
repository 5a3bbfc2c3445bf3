package core

import (
	"regexp"
	"strings"
)

// CategoryTerms are the words that signal each category, most specific first
var CategoryTerms = map[Category][]string{
	CategoryBills:        {"bill", "bills", "invoice", "invoices", "utility", "utilities", "payment due", "amount due", "statement"},
	CategoryUniversities: {"university", "universities", "college", "admission", "admissions", "application portal", "campus", "scholarship"},
	CategoryPromotions:   {"promotion", "promotions", "promo", "discount", "discounts", "deal", "deals", "offer", "coupon", "sale"},
	CategoryOrders:       {"order", "orders", "receipt", "receipts", "purchase", "order confirmation"},
	CategoryShipping:     {"shipping", "shipment", "shipped", "delivery", "tracking", "package", "parcel"},
	CategoryBanking:      {"bank", "banking", "account balance", "transfer", "deposit", "credit card", "transaction"},
	CategoryInsurance:    {"insurance", "policy", "premium", "claim", "coverage"},
	CategoryTravel:       {"travel", "flight", "flights", "booking", "hotel", "itinerary", "boarding pass", "reservation"},
	CategoryTax:          {"tax", "taxes", "irs", "tax return", "refund", "w-2", "1099"},
}

var termPatterns = func() map[Category][]*regexp.Regexp {
	out := make(map[Category][]*regexp.Regexp, len(CategoryTerms))
	for c, terms := range CategoryTerms {
		for _, t := range terms {
			out[c] = append(out[c], regexp.MustCompile(`\b`+regexp.QuoteMeta(t)+`\b`))
		}
	}
	return out
}()

// CategoryScore counts lexicon hits for category c in text
func CategoryScore(c Category, text string) int {
	lower := strings.ToLower(text)
	hits := 0
	for _, re := range termPatterns[c] {
		if re.MatchString(lower) {
			hits++
		}
	}
	return hits
}

// DetectCategory returns the category with the most lexicon hits in text.
// Ties resolve to the earlier category in Categories.
func DetectCategory(text string) (Category, bool) {
	best, bestHits := CategoryGeneral, 0
	for _, c := range Categories {
		if hits := CategoryScore(c, text); hits > bestHits {
			best, bestHits = c, hits
		}
	}
	return best, bestHits > 0
}

package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order by ParseDate. Slash dates are read month first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"2.1.2006",
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700",
}

var ordinalSuffix = regexp.MustCompile(`(\d)(st|nd|rd|th)\b`)

// ParseDate reads a calendar date in any of the common formats and returns
// it as a UTC midnight. ok is false when no layout matches.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ".,;:!?"))
	if s == "" {
		return time.Time{}, false
	}
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseLeadingDate finds the longest run of leading words in s that reads as a date
func ParseLeadingDate(s string) (time.Time, bool) {
	words := strings.Fields(s)
	n := len(words)
	if n > 6 {
		n = 6
	}
	for ; n > 0; n-- {
		if t, ok := ParseDate(strings.Join(words[:n], " ")); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

var yearlessLayouts = []string{"Jan 2", "January 2", "2 Jan", "2 January"}

// ParseDateNear is ParseLeadingDate that also reads dates without a year,
// placing them in the year of ref or the next one when that would land more
// than a month before ref
func ParseDateNear(s string, ref time.Time) (time.Time, bool) {
	if t, ok := ParseLeadingDate(s); ok {
		return t, true
	}
	if ref.IsZero() {
		return time.Time{}, false
	}
	words := strings.Fields(ordinalSuffix.ReplaceAllString(s, "$1"))
	for n := min(len(words), 2); n > 0; n-- {
		candidate := strings.TrimRight(strings.Join(words[:n], " "), ".,;:!?")
		for _, layout := range yearlessLayouts {
			t, err := time.Parse(layout, candidate)
			if err != nil {
				continue
			}
			ref = ref.UTC()
			out := time.Date(ref.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			if out.Before(ref.AddDate(0, -1, 0)) {
				out = out.AddDate(1, 0, 0)
			}
			return out, true
		}
	}
	return time.Time{}, false
}

var currencySymbols = []struct{ symbol, code string }{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
}

var (
	currencyCode = regexp.MustCompile(`\b(USD|EUR|GBP|JPY|INR|CAD|AUD|CHF|SEK|NOK|DKK|PLN|MXN|BRL)\b`)
	// a minus directly before the number or its symbol marks a credit
	amountNumber = regexp.MustCompile(`(-)?(?:[$€£¥₹]\s*)?(\d[\d.,]*)`)
)

// ParseAmount reads a money amount tolerating decimal comma or point,
// thousands separators, a leading minus and a currency symbol or ISO code.
// The earliest symbol wins; currency is empty when none is present.
func ParseAmount(s string) (amount float64, currency string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", false
	}

	first := -1
	for _, cs := range currencySymbols {
		if i := strings.Index(s, cs.symbol); i >= 0 && (first < 0 || i < first) {
			first, currency = i, cs.code
		}
	}
	if m := currencyCode.FindString(strings.ToUpper(s)); m != "" {
		currency = m
	}

	m := amountNumber.FindStringSubmatch(s)
	if m == nil {
		return 0, currency, false
	}
	num := strings.TrimRight(m[2], ".,")
	v, err := strconv.ParseFloat(normalizeSeparators(num), 64)
	if err != nil {
		return 0, currency, false
	}
	if m[1] != "" {
		v = -v
	}
	return v, currency, true
}

func normalizeSeparators(num string) string {
	lastDot := strings.LastIndex(num, ".")
	lastComma := strings.LastIndex(num, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.234,56
			return strings.Replace(strings.ReplaceAll(num, ".", ""), ",", ".", 1)
		}
		// 1,234.56
		return strings.ReplaceAll(num, ",", "")
	case lastComma >= 0:
		if strings.Count(num, ",") == 1 && len(num)-lastComma-1 <= 2 {
			return strings.Replace(num, ",", ".", 1)
		}
		return strings.ReplaceAll(num, ",", "")
	case lastDot >= 0:
		if strings.Count(num, ".") > 1 {
			return strings.ReplaceAll(num, ".", "")
		}
		return num
	default:
		return num
	}
}

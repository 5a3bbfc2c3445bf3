package core

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Category is the fixed classification of an indexed email
type Category string

const (
	CategoryBills        Category = "bills"
	CategoryUniversities Category = "universities"
	CategoryPromotions   Category = "promotions"
	CategoryOrders       Category = "orders"
	CategoryShipping     Category = "shipping"
	CategoryBanking      Category = "banking"
	CategoryInsurance    Category = "insurance"
	CategoryTravel       Category = "travel"
	CategoryTax          Category = "tax"
	CategoryGeneral      Category = "general"
)

// Categories lists every valid category in display order
var Categories = []Category{
	CategoryBills,
	CategoryUniversities,
	CategoryPromotions,
	CategoryOrders,
	CategoryShipping,
	CategoryBanking,
	CategoryInsurance,
	CategoryTravel,
	CategoryTax,
	CategoryGeneral,
}

// ParseCategory returns the category named by s, ignoring case and surrounding space
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Valid reports whether c is part of the enumeration
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// StructuredFields holds domain values extracted from an email
type StructuredFields struct {
	Vendor     string     `json:"vendor,omitempty"`
	Amount     *float64   `json:"amount,omitempty"`
	Currency   string     `json:"currency,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Confidence float64    `json:"confidence"`
}

// Empty reports whether no schema field survived validation
func (f *StructuredFields) Empty() bool {
	return f == nil || (f.Vendor == "" && f.Amount == nil && f.DueDate == nil)
}

// Record is the indexed representation of one source email
type Record struct {
	ID             string
	Category       Category
	Sender         string
	Subject        string
	Date           time.Time
	BodyPreview    string
	Summary        string
	HasAttachments bool
	Fields         *StructuredFields
	Embedding      []float32
}

// CanonicalText is the text an embedding is computed from
func (r *Record) CanonicalText() string {
	text := strings.Join([]string{
		strings.TrimSpace(r.Summary),
		strings.TrimSpace(r.Subject),
		string(r.Category),
	}, "\n")
	return norm.NFKC.String(text)
}

// Clone returns a deep copy so callers never share mutable state with the store
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Embedding != nil {
		c.Embedding = append([]float32(nil), r.Embedding...)
	}
	if r.Fields != nil {
		f := *r.Fields
		if r.Fields.Amount != nil {
			amount := *r.Fields.Amount
			f.Amount = &amount
		}
		if r.Fields.DueDate != nil {
			due := *r.Fields.DueDate
			f.DueDate = &due
		}
		c.Fields = &f
	}
	return &c
}

// RawItem is one email as returned by the source
type RawItem struct {
	ID             string
	Sender         string
	Subject        string
	Date           time.Time
	Body           string
	AttachmentRefs []string
}

// UTCDate truncates t to its calendar date in UTC
func UTCDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive range of calendar dates
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LastDays returns the range ending on the date of now and starting days earlier
func LastDays(now time.Time, days int) DateRange {
	end := UTCDate(now)
	return DateRange{Start: end.AddDate(0, 0, -days), End: end}
}

// Contains reports whether the calendar date of t lies inside the range
func (r DateRange) Contains(t time.Time) bool {
	d := UTCDate(t)
	return !d.Before(UTCDate(r.Start)) && !d.After(UTCDate(r.End))
}

// IsZero reports whether neither bound is set
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Turn is one exchange in the conversation history
type Turn struct {
	Role string
	Text string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

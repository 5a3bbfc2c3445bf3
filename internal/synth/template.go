// Package synth turns a turn outcome into the answer shown to the user.
package synth

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mikey/inbox-agent/internal/core"
)

// DefaultMaxListed bounds how many records an answer lists
const DefaultMaxListed = 10

// TemplateSynthesizer renders deterministic answers. It never fails.
type TemplateSynthesizer struct {
	maxListed int
}

// NewTemplateSynthesizer creates a template synthesizer
func NewTemplateSynthesizer(maxListed int) *TemplateSynthesizer {
	if maxListed <= 0 {
		maxListed = DefaultMaxListed
	}
	return &TemplateSynthesizer{maxListed: maxListed}
}

// Synthesize renders the outcome
func (t *TemplateSynthesizer) Synthesize(_ context.Context, _ string, o *core.TurnOutcome) (string, error) {
	if o == nil {
		return "I could not complete the request.", nil
	}
	if o.Status == core.StatusFailed {
		return failureText(o), nil
	}

	var b strings.Builder
	switch o.Intent {
	case core.IntentScanEmails:
		t.scanText(&b, o)
	case core.IntentAnalyzeSpending:
		t.spendingText(&b, o)
	case core.IntentFindAlternatives:
		t.alternativesText(&b, o)
	case core.IntentSetReminder:
		t.reminderText(&b, o)
	case core.IntentChatFallback:
		t.chatText(&b, o)
	default:
		t.queryText(&b, o)
	}

	if o.Status == core.StatusPartial && len(o.Annotations) > 0 {
		b.WriteString("\n\nSome steps did not complete:")
		for _, a := range o.Annotations {
			fmt.Fprintf(&b, "\n- %s: %s", a.Step, a.Message)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func failureText(o *core.TurnOutcome) string {
	if o.FailureMessage != "" {
		return fmt.Sprintf("I could not complete the request: %s.", o.FailureMessage)
	}
	msgs := make([]string, 0, len(o.Annotations))
	for _, a := range o.Annotations {
		msgs = append(msgs, a.Message)
	}
	if len(msgs) == 0 {
		return "I could not complete the request."
	}
	return fmt.Sprintf("I could not complete the request: %s.", strings.Join(msgs, "; "))
}

// inCategory names the category for a sentence, empty for general
func inCategory(c core.Category) string {
	if c == "" || c == core.CategoryGeneral {
		return ""
	}
	return " in " + cases.Title(language.English).String(string(c))
}

func (t *TemplateSynthesizer) scanText(b *strings.Builder, o *core.TurnOutcome) {
	s := o.Scan
	if s == nil || s.Fetched == 0 {
		fmt.Fprintf(b, "No emails%s matched the selected window, so nothing new was indexed.", inCategory(o.Category))
		return
	}
	fmt.Fprintf(b, "Scanned %d emails: %d new, %d updated, %d filtered out, %d failed.",
		s.Fetched, s.Indexed, s.Updated, s.FilteredOut, s.Failed)
	if s.Indexed+s.Updated == 0 && s.Failed == 0 {
		fmt.Fprintf(b, " None of them belonged%s.", inCategory(o.Category))
	}
	if s.Cancelled > 0 {
		fmt.Fprintf(b, " %d emails were skipped because the scan was interrupted.", s.Cancelled)
	}
	for i, f := range s.Failures {
		if i == t.maxListed {
			fmt.Fprintf(b, "\n- and %d more", len(s.Failures)-i)
			break
		}
		fmt.Fprintf(b, "\n- %s failed (%s): %s", f.ItemID, f.Kind, f.Message)
	}
}

func (t *TemplateSynthesizer) queryText(b *strings.Builder, o *core.TurnOutcome) {
	if len(o.Hits) == 0 {
		fmt.Fprintf(b, "I found no matching emails%s among those scanned so far. Try scanning your inbox first.", inCategory(o.Category))
		return
	}
	fmt.Fprintf(b, "I found %d %s%s:", len(o.Hits), plural(len(o.Hits), "email"), inCategory(o.Category))
	t.listHits(b, o.Hits)
}

func (t *TemplateSynthesizer) listHits(b *strings.Builder, hits []core.Hit) {
	for i, h := range hits {
		if i == t.maxListed {
			fmt.Fprintf(b, "\n- and %d more", len(hits)-i)
			return
		}
		r := h.Record
		fmt.Fprintf(b, "\n- %s | %s | %s", r.Date.Format("2006-01-02"), r.Sender, r.Subject)
		if f := r.Fields; f != nil {
			if f.Amount != nil {
				fmt.Fprintf(b, " | %s", money(*f.Amount, f.Currency))
			}
			if f.DueDate != nil {
				fmt.Fprintf(b, " | due %s", f.DueDate.Format("2006-01-02"))
			}
		}
	}
}

func (t *TemplateSynthesizer) spendingText(b *strings.Builder, o *core.TurnOutcome) {
	s := o.Spending
	if s == nil || s.Count == 0 {
		if len(o.Hits) == 0 {
			b.WriteString("I found no bills or banking emails to analyze.")
		} else {
			fmt.Fprintf(b, "I found %d bills or banking emails but none had an amount I could read.", len(o.Hits))
		}
		return
	}
	fmt.Fprintf(b, "You spent %s across %d %s.", money(s.Total, s.Currency), s.Count, plural(s.Count, "bill"))
	if s.Skipped > 0 {
		fmt.Fprintf(b, " %d more had no readable amount.", s.Skipped)
	}

	vendors := make([]string, 0, len(s.ByVendor))
	for v := range s.ByVendor {
		vendors = append(vendors, v)
	}
	sort.Slice(vendors, func(i, j int) bool {
		if s.ByVendor[vendors[i]] != s.ByVendor[vendors[j]] {
			return s.ByVendor[vendors[i]] > s.ByVendor[vendors[j]]
		}
		return vendors[i] < vendors[j]
	})
	for _, v := range vendors {
		fmt.Fprintf(b, "\n- %s: %s", v, money(s.ByVendor[v], s.Currency))
	}
}

func (t *TemplateSynthesizer) alternativesText(b *strings.Builder, o *core.TurnOutcome) {
	if len(o.WebResults) == 0 {
		b.WriteString("I could not find any alternatives.")
		return
	}
	b.WriteString("Here are some alternatives I found:")
	for i, r := range o.WebResults {
		if i == t.maxListed {
			break
		}
		fmt.Fprintf(b, "\n- %s (%s)", r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(b, ": %s", r.Snippet)
		}
	}
}

func (t *TemplateSynthesizer) reminderText(b *strings.Builder, o *core.TurnOutcome) {
	if len(o.Reminders) == 0 {
		if len(o.Hits) == 0 {
			b.WriteString("I found no bills to set reminders for.")
		} else {
			b.WriteString("None of the bills I found has an upcoming due date.")
		}
		return
	}
	fmt.Fprintf(b, "I scheduled %d %s:", len(o.Reminders), plural(len(o.Reminders), "reminder"))
	for _, r := range o.Reminders {
		fmt.Fprintf(b, "\n- %s", r.Message)
	}
}

func (t *TemplateSynthesizer) chatText(b *strings.Builder, o *core.TurnOutcome) {
	b.WriteString("I can scan your inbox for new emails or answer questions about emails I have already indexed.")
	if len(o.Hits) > 0 {
		b.WriteString(" These indexed emails might be related:")
		t.listHits(b, o.Hits)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}

func money(amount float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

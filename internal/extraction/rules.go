package extraction

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/utils"
)

var (
	labelledAmount = regexp.MustCompile(`(?i)\b(?:amount due|total due|balance due|total amount|amount|total|balance|pay)\b\s*(?:is|of)?\s*[:\-]?\s*` +
		`((?:[A-Z]{3}\s?)?[$€£¥₹]?\s?\d[\d.,]*(?:\s?[A-Z]{3}\b)?)`)
	symbolAmount = regexp.MustCompile(`[$€£¥₹]\s?\d[\d.,]*|\b(?:USD|EUR|GBP)\s?\d[\d.,]*`)
	dueLabel     = regexp.MustCompile(`(?i)\b(?:due date|payment due|due by|due on|pay by|due|deadline|expires|expiration date)\b`)
	dueLead      = regexp.MustCompile(`(?i)^\s*(?:(?:is|by|on|of)\b|[:\-])?\s*(?:(?:by|on)\b)?\s*`)
)

// RuleStrategy drafts fields with regular expressions
type RuleStrategy struct{}

// NewRuleStrategy creates a rule-based field extractor
func NewRuleStrategy() *RuleStrategy {
	return &RuleStrategy{}
}

// Draft finds a labelled amount, a due date and the sender as vendor
func (RuleStrategy) Draft(_ context.Context, item *core.RawItem, text string, _ core.Category) (*core.FieldDraft, error) {
	full := item.Subject + "\n" + text
	draft := &core.FieldDraft{Vendor: vendorOf(item.Sender)}

	if m := labelledAmount.FindStringSubmatch(full); m != nil {
		draft.Amount = strings.TrimRight(strings.TrimSpace(m[1]), ".,")
	} else if m := symbolAmount.FindString(full); m != "" {
		draft.Amount = strings.TrimRight(m, ".,")
	}
	draft.DueDate = dueDateOf(full, item.Date)

	draft.Confidence = 0.3
	if draft.Amount != "" {
		draft.Confidence = 0.6
	}

	summary := strings.TrimSpace(item.Subject)
	if draft.Amount != "" {
		summary = fmt.Sprintf("%s (amount %s", summary, draft.Amount)
		if draft.DueDate != "" {
			summary += ", due " + draft.DueDate
		}
		summary += ")"
	}
	draft.Summary = strings.TrimSpace(summary)
	return draft, nil
}

// dueDateOf reads the first parseable date that follows a due label
func dueDateOf(text string, ref time.Time) string {
	for _, loc := range dueLabel.FindAllStringIndex(text, -1) {
		rest := text[loc[1]:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		rest = dueLead.ReplaceAllString(rest, "")
		if d, ok := utils.ParseDateNear(rest, ref); ok {
			return d.Format("2006-01-02")
		}
	}
	return ""
}

// vendorOf prefers the display name and falls back to the domain label
func vendorOf(sender string) string {
	addr, err := mail.ParseAddress(sender)
	if err != nil {
		return ""
	}
	if name := strings.Trim(strings.TrimSpace(addr.Name), `"`); name != "" {
		return name
	}
	at := strings.LastIndex(addr.Address, "@")
	if at < 0 {
		return ""
	}
	labels := strings.Split(addr.Address[at+1:], ".")
	if len(labels) < 2 {
		return ""
	}
	// billing.citywater.example -> citywater
	return cases.Title(language.English).String(labels[len(labels)-2])
}

// Package planner turns an intent and its slots into a validated plan.
package planner

import (
	"fmt"
	"strings"

	"github.com/mikey/inbox-agent/internal/core"
)

const (
	// ChatContextSize is how many records chat_fallback retrieves as context
	ChatContextSize = 5
	// AmountField is the structured field analyze_spending aggregates
	AmountField = "amount"
)

var spendingCategories = []core.Category{core.CategoryBills, core.CategoryBanking}

// Planner builds plans. It holds no state.
type Planner struct{}

// New creates a planner
func New() *Planner {
	return &Planner{}
}

// Plan validates slots and returns the ordered steps for intent
func (p *Planner) Plan(intent core.Intent, slots core.Slots) (*core.Plan, error) {
	if err := Validate(slots); err != nil {
		return nil, err
	}

	query := queryText(slots)
	base := core.StepParams{
		Category:   slots.Category,
		DateRange:  slots.DateRange,
		MaxResults: slots.MaxResults,
		Keywords:   append([]string(nil), slots.Keywords...),
		QueryText:  query,
	}

	var steps []core.Step
	switch intent {
	case core.IntentScanEmails:
		steps = []core.Step{
			{Kind: core.StepFetch, Params: base},
			{Kind: core.StepFilter, Params: base},
			{Kind: core.StepExtract, Params: base},
			{Kind: core.StepIndex, Params: base},
		}
	case core.IntentQueryHistory:
		q := base
		q.Categories = restrict(slots.Category)
		steps = []core.Step{{Kind: core.StepQuery, Params: q}}
	case core.IntentAnalyzeSpending:
		q := base
		q.Categories = spendingCategories
		agg := base
		agg.Field = AmountField
		steps = []core.Step{
			{Kind: core.StepQuery, Params: q},
			{Kind: core.StepAggregate, Params: agg},
		}
	case core.IntentFindAlternatives:
		q := base
		q.Categories = []core.Category{core.CategoryBills}
		steps = []core.Step{
			{Kind: core.StepQuery, Params: q},
			{Kind: core.StepWebSearch, Params: base},
		}
	case core.IntentSetReminder:
		q := base
		q.Categories = []core.Category{core.CategoryBills}
		steps = []core.Step{
			{Kind: core.StepQuery, Params: q},
			{Kind: core.StepReminder, Params: base},
		}
	case core.IntentChatFallback:
		q := base
		q.MaxResults = ChatContextSize
		// chat context is not limited to the default window
		q.DateRange = core.DateRange{}
		q.Keywords = nil
		steps = []core.Step{{Kind: core.StepQuery, Params: q}}
	default:
		return nil, &core.ValidationError{Field: "intent", Reason: fmt.Sprintf("unknown intent %q", intent)}
	}

	return &core.Plan{Intent: intent, Slots: slots, Steps: steps}, nil
}

// Validate checks the slot invariants every plan relies on
func Validate(slots core.Slots) error {
	if !slots.Category.Valid() {
		return &core.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", slots.Category)}
	}
	if slots.DateRange.Start.IsZero() || slots.DateRange.End.IsZero() {
		return &core.ValidationError{Field: "date_range", Reason: "start and end are required"}
	}
	if slots.DateRange.End.Before(slots.DateRange.Start) {
		return &core.ValidationError{Field: "date_range", Reason: fmt.Sprintf("end %s is before start %s",
			slots.DateRange.End.Format("2006-01-02"), slots.DateRange.Start.Format("2006-01-02"))}
	}
	if slots.MaxResults <= 0 {
		return &core.ValidationError{Field: "max_results", Reason: "must be greater than zero"}
	}
	return nil
}

// restrict maps the general category to no restriction
func restrict(c core.Category) []core.Category {
	if c == core.CategoryGeneral {
		return nil
	}
	return []core.Category{c}
}

func queryText(slots core.Slots) string {
	if q := strings.TrimSpace(slots.Query); q != "" {
		return q
	}
	if len(slots.Keywords) > 0 {
		return strings.Join(slots.Keywords, " ")
	}
	return string(slots.Category)
}

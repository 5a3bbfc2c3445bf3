package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/inbox-agent/internal/core"
)

func validSlots(c core.Category) core.Slots {
	now := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	return core.Slots{Category: c, DateRange: core.LastDays(now, 30), MaxResults: 50, Query: "what bills do I have"}
}

func TestPlan_StepsPerIntent(t *testing.T) {
	tests := []struct {
		intent core.Intent
		kinds  []core.StepKind
	}{
		{core.IntentScanEmails, []core.StepKind{core.StepFetch, core.StepFilter, core.StepExtract, core.StepIndex}},
		{core.IntentQueryHistory, []core.StepKind{core.StepQuery}},
		{core.IntentAnalyzeSpending, []core.StepKind{core.StepQuery, core.StepAggregate}},
		{core.IntentFindAlternatives, []core.StepKind{core.StepQuery, core.StepWebSearch}},
		{core.IntentSetReminder, []core.StepKind{core.StepQuery, core.StepReminder}},
		{core.IntentChatFallback, []core.StepKind{core.StepQuery}},
	}
	p := New()
	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			plan, err := p.Plan(tt.intent, validSlots(core.CategoryBills))
			require.NoError(t, err)
			assert.Equal(t, tt.kinds, plan.Kinds())
			assert.Equal(t, tt.intent, plan.Intent)
		})
	}
}

func TestPlan_QueryCategoryRestriction(t *testing.T) {
	p := New()

	plan, err := p.Plan(core.IntentQueryHistory, validSlots(core.CategoryUniversities))
	require.NoError(t, err)
	assert.Equal(t, []core.Category{core.CategoryUniversities}, plan.Steps[0].Params.Categories)

	plan, err = p.Plan(core.IntentQueryHistory, validSlots(core.CategoryGeneral))
	require.NoError(t, err)
	assert.Nil(t, plan.Steps[0].Params.Categories)

	plan, err = p.Plan(core.IntentAnalyzeSpending, validSlots(core.CategoryGeneral))
	require.NoError(t, err)
	assert.Equal(t, []core.Category{core.CategoryBills, core.CategoryBanking}, plan.Steps[0].Params.Categories)
	assert.Equal(t, AmountField, plan.Steps[1].Params.Field)
}

func TestPlan_ChatFallbackContext(t *testing.T) {
	plan, err := New().Plan(core.IntentChatFallback, validSlots(core.CategoryGeneral))
	require.NoError(t, err)
	step := plan.Steps[0]
	assert.Equal(t, ChatContextSize, step.Params.MaxResults)
	assert.True(t, step.Params.DateRange.IsZero())
	assert.Equal(t, "what bills do I have", step.Params.QueryText)
}

func TestPlan_ValidationErrors(t *testing.T) {
	p := New()

	inverted := validSlots(core.CategoryBills)
	inverted.DateRange.Start, inverted.DateRange.End = inverted.DateRange.End, inverted.DateRange.Start

	zeroMax := validSlots(core.CategoryBills)
	zeroMax.MaxResults = 0

	tests := []struct {
		name   string
		intent core.Intent
		slots  core.Slots
		field  string
	}{
		{"unknown category", core.IntentQueryHistory, validSlots("pets"), "category"},
		{"inverted range", core.IntentScanEmails, inverted, "date_range"},
		{"missing range", core.IntentScanEmails, core.Slots{Category: core.CategoryBills, MaxResults: 5}, "date_range"},
		{"zero max results", core.IntentQueryHistory, zeroMax, "max_results"},
		{"unknown intent", "dance", validSlots(core.CategoryBills), "intent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Plan(tt.intent, tt.slots)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestPlan_SameDayRangeIsValid(t *testing.T) {
	slots := validSlots(core.CategoryBills)
	slots.DateRange.Start = slots.DateRange.End
	_, err := New().Plan(core.IntentScanEmails, slots)
	assert.NoError(t, err)
}

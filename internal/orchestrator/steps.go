package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/utils"
)

// mixedCurrency marks a spending total over more than one currency
const mixedCurrency = "mixed"

var errNotConfigured = errors.New("not configured")

// execute runs the plan steps in order and accumulates the outcome
func (a *Agent) execute(ctx context.Context, plan *core.Plan, logger *zap.Logger) *core.TurnOutcome {
	outcome := &core.TurnOutcome{Intent: plan.Intent, Category: plan.Slots.Category}

	for _, step := range plan.Steps {
		if ctx.Err() != nil {
			outcome.Annotate(step.Kind, fmt.Errorf("step skipped: %w", ctx.Err()))
			continue
		}
		stepLogger := logger.With(zap.String("step", string(step.Kind)))

		switch step.Kind {
		case core.StepFetch:
			a.scan(ctx, step.Params, outcome, stepLogger)
		case core.StepFilter, core.StepExtract, core.StepIndex:
			// run per item inside the fetch fan-out
		case core.StepQuery:
			a.query(ctx, step.Params, outcome, stepLogger)
		case core.StepAggregate:
			outcome.Spending = aggregate(outcome.Hits)
		case core.StepWebSearch:
			a.webSearch(ctx, step.Params, outcome, stepLogger)
		case core.StepReminder:
			a.schedule(ctx, outcome, stepLogger)
		default:
			outcome.Annotate(step.Kind, fmt.Errorf("unsupported step %q", step.Kind))
		}
	}

	outcome.Status = statusOf(outcome)
	return outcome
}

func (a *Agent) query(ctx context.Context, params core.StepParams, outcome *core.TurnOutcome, logger *zap.Logger) {
	filter := core.RecordFilter{Categories: params.Categories, Keywords: params.Keywords}
	if !params.DateRange.IsZero() {
		dr := params.DateRange
		filter.DateRange = &dr
	}
	topK := params.MaxResults
	if a.opts.TopK > 0 && topK > a.opts.TopK {
		topK = a.opts.TopK
	}

	var hits []core.Hit
	err := utils.WithRetry(ctx, logger, a.opts.Retry, func(ctx context.Context) error {
		h, err := a.deps.Store.Query(ctx, params.QueryText, filter, topK)
		if err != nil {
			return err
		}
		hits = h
		return nil
	})
	if err != nil {
		logger.Error("Failed to query records", zap.Error(err))
		outcome.Annotate(core.StepQuery, fmt.Errorf("failed to query records: %w", err))
		return
	}
	outcome.Hits = hits
	logger.Debug("Queried records", zap.Int("hits", len(hits)))
}

// aggregate sums structured amounts over the hits
func aggregate(hits []core.Hit) *core.SpendingSummary {
	sum := &core.SpendingSummary{ByVendor: make(map[string]float64)}
	for _, h := range hits {
		f := h.Record.Fields
		if f == nil || f.Amount == nil {
			sum.Skipped++
			continue
		}
		sum.Total += *f.Amount
		sum.Count++

		vendor := f.Vendor
		if vendor == "" {
			vendor = "unknown"
		}
		sum.ByVendor[vendor] += *f.Amount

		switch {
		case f.Currency == "":
		case sum.Currency == "":
			sum.Currency = f.Currency
		case sum.Currency != f.Currency:
			sum.Currency = mixedCurrency
		}
	}
	return sum
}

func (a *Agent) webSearch(ctx context.Context, params core.StepParams, outcome *core.TurnOutcome, logger *zap.Logger) {
	if a.deps.Searcher == nil {
		outcome.Annotate(core.StepWebSearch, fmt.Errorf("web search is %w", errNotConfigured))
		return
	}
	query := alternativesQuery(outcome.Hits, params)

	var results []core.SearchResult
	err := utils.WithRetry(ctx, logger, a.opts.Retry, func(ctx context.Context) error {
		r, err := a.deps.Searcher.Search(ctx, query)
		if err != nil {
			return err
		}
		results = r
		return nil
	})
	if err != nil {
		logger.Warn("Web search failed", zap.String("query", query), zap.Error(err))
		outcome.Annotate(core.StepWebSearch, fmt.Errorf("failed to search the web: %w", err))
		return
	}
	outcome.WebResults = results
}

// alternativesQuery searches for the vendor of the best bill when one is known
func alternativesQuery(hits []core.Hit, params core.StepParams) string {
	for _, h := range hits {
		if f := h.Record.Fields; f != nil && f.Vendor != "" {
			return fmt.Sprintf("cheaper alternatives to %s", f.Vendor)
		}
	}
	if q := strings.TrimSpace(params.QueryText); q != "" {
		return q
	}
	return "cheaper alternatives for " + string(params.Category)
}

// schedule creates a reminder for every hit with an upcoming due date
func (a *Agent) schedule(ctx context.Context, outcome *core.TurnOutcome, logger *zap.Logger) {
	if a.deps.Reminders == nil {
		outcome.Annotate(core.StepReminder, fmt.Errorf("reminders are %w", errNotConfigured))
		return
	}
	today := core.UTCDate(a.opts.Now())

	for _, h := range outcome.Hits {
		f := h.Record.Fields
		if f == nil || f.DueDate == nil || f.DueDate.Before(today) {
			continue
		}
		reminder := core.Reminder{
			RecordID: h.Record.ID,
			Message:  reminderMessage(h.Record),
			DueDate:  f.DueDate,
		}
		err := utils.WithRetry(ctx, logger, a.opts.Retry, func(ctx context.Context) error {
			return a.deps.Reminders.Schedule(ctx, reminder)
		})
		if err != nil {
			logger.Warn("Failed to schedule reminder", zap.String("item_id", h.Record.ID), zap.Error(err))
			outcome.Annotate(core.StepReminder, fmt.Errorf("failed to schedule reminder for %s: %w", h.Record.ID, err))
			continue
		}
		outcome.Reminders = append(outcome.Reminders, reminder)
	}
}

func reminderMessage(r *core.Record) string {
	f := r.Fields
	subject := r.Subject
	if f.Vendor != "" {
		subject = f.Vendor
	}
	msg := fmt.Sprintf("Reminder: %s is due on %s", subject, f.DueDate.Format("2006-01-02"))
	if f.Amount != nil {
		msg += fmt.Sprintf(" (%s)", strings.TrimSpace(fmt.Sprintf("%.2f %s", *f.Amount, f.Currency)))
	}
	return msg
}

// statusOf separates "nothing matched" from "could not complete"
func statusOf(o *core.TurnOutcome) core.OutcomeStatus {
	gathered := len(o.Hits) + len(o.WebResults) + len(o.Reminders)
	itemProblems := false
	if o.Scan != nil {
		gathered += o.Scan.Indexed + o.Scan.Updated
		itemProblems = o.Scan.Failed > 0 || o.Scan.Cancelled > 0
	}

	switch {
	case len(o.Annotations) > 0 && gathered == 0:
		return core.StatusFailed
	case len(o.Annotations) > 0 || itemProblems:
		return core.StatusPartial
	case o.Intent == core.IntentChatFallback:
		return core.StatusOK
	case gathered == 0:
		return core.StatusEmpty
	}
	return core.StatusOK
}

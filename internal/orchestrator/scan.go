package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/utils"
)

// scanTally guards a ScanOutcome shared by the item workers
type scanTally struct {
	mu  sync.Mutex
	out *core.ScanOutcome
}

func (t *scanTally) update(fn func(o *core.ScanOutcome)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.out)
}

func (t *scanTally) fail(itemID string, err error) {
	ierr := core.NewItemError(itemID, err)
	t.update(func(o *core.ScanOutcome) {
		o.Failed++
		o.Failures = append(o.Failures, core.ItemFailure{ItemID: itemID, Kind: ierr.Kind, Message: ierr.Err.Error()})
	})
}

// scan fetches items and runs filter, extract and index for each of them on
// a bounded pool. Item failures are recorded and never stop other items.
func (a *Agent) scan(ctx context.Context, params core.StepParams, outcome *core.TurnOutcome, logger *zap.Logger) {
	scan := &core.ScanOutcome{}
	outcome.Scan = scan

	hint := params.Category
	if hint == core.CategoryGeneral {
		hint = ""
	}

	var items []*core.RawItem
	err := utils.WithRetry(ctx, logger, a.opts.Retry, func(ctx context.Context) error {
		fetched, err := a.deps.Fetcher.Fetch(ctx, hint, params.DateRange, params.MaxResults)
		if err != nil {
			return err
		}
		items = fetched
		return nil
	})
	if err != nil {
		logger.Error("Failed to fetch items", zap.String("step", string(core.StepFetch)), zap.Error(err))
		outcome.Annotate(core.StepFetch, fmt.Errorf("failed to fetch emails: %w", err))
		return
	}
	scan.Fetched = len(items)
	logger.Info("Fetched items", zap.Int("count", len(items)))

	target := core.RelevanceTarget{Category: params.Category, Keywords: params.Keywords, Query: params.QueryText}
	tally := &scanTally{out: scan}

	g := new(errgroup.Group)
	g.SetLimit(a.opts.Concurrency)
	for i, item := range items {
		if ctx.Err() != nil {
			remaining := len(items) - i
			tally.update(func(o *core.ScanOutcome) { o.Cancelled += remaining })
			break
		}
		g.Go(func() error {
			a.processItem(ctx, item, target, tally, logger)
			return nil
		})
	}
	_ = g.Wait()

	if scan.Cancelled > 0 {
		logger.Warn("Scan cancelled", zap.Int("cancelled", scan.Cancelled))
		outcome.Annotate(core.StepFetch, fmt.Errorf("scan interrupted: %w", context.Canceled))
	}
	logger.Info("Scan finished",
		zap.Int("fetched", scan.Fetched),
		zap.Int("filtered_out", scan.FilteredOut),
		zap.Int("indexed", scan.Indexed),
		zap.Int("updated", scan.Updated),
		zap.Int("failed", scan.Failed))

	a.notifyScan(ctx, scan, logger)
}

// processItem runs one item through the chain. Work that has started is
// detached from cancellation so an upsert is never abandoned half way.
func (a *Agent) processItem(ctx context.Context, item *core.RawItem, target core.RelevanceTarget, tally *scanTally, logger *zap.Logger) {
	if ctx.Err() != nil {
		tally.update(func(o *core.ScanOutcome) { o.Cancelled++ })
		return
	}
	work := context.WithoutCancel(ctx)
	logger = logger.With(zap.String("item_id", item.ID))

	decision := a.deps.Relevance.Evaluate(work, item, target)
	if !decision.Accept {
		logger.Debug("Item filtered out", zap.String("rationale", decision.Rationale))
		tally.update(func(o *core.ScanOutcome) {
			o.FilteredOut++
			o.Rejections = append(o.Rejections, core.Rejection{
				ItemID:    item.ID,
				Subject:   item.Subject,
				Rationale: decision.Rationale,
				Score:     decision.Score,
			})
		})
		return
	}

	record, err := a.deps.Extractor.Extract(work, item, target.Category)
	if err != nil {
		logger.Warn("Failed to extract item", zap.Error(err))
		tally.fail(item.ID, err)
		return
	}
	tally.update(func(o *core.ScanOutcome) { o.Extracted++ })

	var created bool
	err = utils.WithRetry(work, logger, a.opts.Retry, func(ctx context.Context) error {
		c, err := a.deps.Store.Upsert(ctx, record)
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		logger.Warn("Failed to index item", zap.Error(err))
		tally.fail(item.ID, err)
		return
	}
	tally.update(func(o *core.ScanOutcome) {
		if created {
			o.Indexed++
		} else {
			o.Updated++
		}
	})
}

func (a *Agent) notifyScan(ctx context.Context, scan *core.ScanOutcome, logger *zap.Logger) {
	if !a.opts.NotifyOnScan || a.deps.Notifier == nil {
		return
	}
	msg := fmt.Sprintf("Scan finished: %d fetched, %d filtered out, %d indexed, %d updated, %d failed",
		scan.Fetched, scan.FilteredOut, scan.Indexed, scan.Updated, scan.Failed)
	if err := a.deps.Notifier.Send(context.WithoutCancel(ctx), a.opts.NotifyChannel, msg); err != nil {
		logger.Warn("Failed to send scan notification", zap.Error(err))
	}
}

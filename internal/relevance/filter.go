// Package relevance decides whether a fetched email matches what a scan is
// looking for.
package relevance

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/utils"
)

// Filter wraps a strategy with the accept-all shortcut and error absorption
type Filter struct {
	strategy core.RelevanceStrategy
	retry    utils.RetryOptions
	logger   *zap.Logger
}

// NewFilter creates a relevance filter that retries strategy calls with retry
func NewFilter(strategy core.RelevanceStrategy, retry utils.RetryOptions, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{strategy: strategy, retry: retry, logger: logger}
}

// Evaluate never fails: a strategy error becomes a rejection whose rationale
// carries the error
func (f *Filter) Evaluate(ctx context.Context, item *core.RawItem, target core.RelevanceTarget) core.RelevanceDecision {
	if (target.Category == core.CategoryGeneral || target.Category == "") && len(target.Keywords) == 0 {
		return core.RelevanceDecision{Accept: true, Score: 1, Rationale: "no category or keyword restriction"}
	}

	var decision *core.RelevanceDecision
	err := utils.WithRetry(ctx, f.logger, f.retry, func(ctx context.Context) error {
		d, err := f.strategy.Evaluate(ctx, item, target)
		if err != nil {
			return err
		}
		decision = d
		return nil
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", core.ErrFilter, err)
		f.logger.Warn("Relevance strategy failed, rejecting item",
			zap.String("item_id", item.ID),
			zap.String("kind", string(core.KindOf(err))),
			zap.Error(err))
		return core.RelevanceDecision{
			Accept:    false,
			Rationale: fmt.Sprintf("error: %v", err),
		}
	}
	return *decision
}

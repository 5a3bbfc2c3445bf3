package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/config"
	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/relevance"
	"github.com/mikey/inbox-agent/internal/utils"
)

// FilterFactory creates the scan relevance filter
type FilterFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	llm           *LLMFactory
	textProcessor *utils.TextProcessor
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, llm *LLMFactory, textProcessor *utils.TextProcessor) *FilterFactory {
	return &FilterFactory{
		cfg:           cfg,
		logger:        logger,
		llm:           llm,
		textProcessor: textProcessor,
	}
}

// CreateRelevanceFilter creates the filter for agent.strategy
func (f *FilterFactory) CreateRelevanceFilter() (*relevance.Filter, error) {
	var strategy core.RelevanceStrategy = relevance.NewRuleStrategy()
	if f.cfg.GetAgent().Strategy == "llm" {
		client, err := f.llm.CreateLLMClient()
		if err != nil {
			return nil, err
		}
		strategy = relevance.NewLLMStrategy(client, f.textProcessor, f.logger)
	}
	return relevance.NewFilter(strategy, RetryOptions(f.cfg), f.logger), nil
}

// RetryOptions converts scan.retry and scan.item_timeout into retry options
func RetryOptions(cfg *config.Config) utils.RetryOptions {
	scan := cfg.GetScan()
	return utils.RetryOptions{
		MaxAttempts:  scan.Retry.MaxAttempts,
		InitialDelay: scan.Retry.InitialDelay,
		MaxDelay:     scan.Retry.MaxDelay,
		Multiplier:   scan.Retry.Multiplier,
		Timeout:      scan.ItemTimeout,
	}
}

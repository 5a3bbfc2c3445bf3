package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/config"
	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/extraction"
	"github.com/mikey/inbox-agent/internal/factory"
	"github.com/mikey/inbox-agent/internal/intent"
	"github.com/mikey/inbox-agent/internal/logging"
	"github.com/mikey/inbox-agent/internal/orchestrator"
	"github.com/mikey/inbox-agent/internal/planner"
	"github.com/mikey/inbox-agent/internal/relevance"
	"github.com/mikey/inbox-agent/internal/store"
	"github.com/mikey/inbox-agent/internal/utils"
)

// BuildContainer creates and configures a dependency injection container.
// Components are built lazily on the first Invoke that needs them.
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	for _, constructor := range []any{
		factory.NewLLMFactory,
		factory.NewStrategyFactory,
		factory.NewFilterFactory,
		factory.NewStoreFactory,
		factory.NewSourceFactory,
		factory.NewNotifyFactory,
	} {
		if err := container.Provide(constructor); err != nil {
			return nil, err
		}
	}

	// Register embedder and record store
	if err := container.Provide(func(f *factory.LLMFactory) (core.Embedder, error) {
		return f.CreateEmbedder()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StoreFactory, embedder core.Embedder) (*store.Store, error) {
		return f.CreateStore(context.Background(), embedder)
	}); err != nil {
		return nil, err
	}

	// Register mail source
	if err := container.Provide(func(f *factory.SourceFactory) (core.SourceFetcher, error) {
		return f.CreateFetcher()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.SourceFactory) core.AttachmentExtractor {
		return f.CreateAttachmentExtractor()
	}); err != nil {
		return nil, err
	}

	// Register strategies
	if err := container.Provide(func(f *factory.StrategyFactory) (*intent.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StrategyFactory, attachments core.AttachmentExtractor, tp *utils.TextProcessor) (*extraction.Pipeline, error) {
		return f.CreatePipeline(attachments, tp)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StrategyFactory) (core.Synthesizer, error) {
		return f.CreateSynthesizer()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FilterFactory) (*relevance.Filter, error) {
		return f.CreateRelevanceFilter()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(planner.New); err != nil {
		return nil, err
	}

	// Register outbound adapters
	if err := container.Provide(func(f *factory.NotifyFactory) (core.Notifier, error) {
		return f.CreateNotifier()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.NotifyFactory, notifier core.Notifier) core.ReminderSink {
		return f.CreateReminders(notifier)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.NotifyFactory) (core.WebSearcher, error) {
		return f.CreateSearcher()
	}); err != nil {
		return nil, err
	}

	// Register the agent
	if err := container.Provide(newAgent); err != nil {
		return nil, err
	}

	return container, nil
}

type agentParams struct {
	dig.In

	Config      *config.Config
	Logger      *zap.Logger
	Classifier  *intent.Classifier
	Planner     *planner.Planner
	Fetcher     core.SourceFetcher
	Relevance   *relevance.Filter
	Pipeline    *extraction.Pipeline
	Store       *store.Store
	Synthesizer core.Synthesizer
	Searcher    core.WebSearcher
	Reminders   core.ReminderSink
	Notifier    core.Notifier
}

func newAgent(p agentParams) *orchestrator.Agent {
	agentCfg := p.Config.GetAgent()
	notifyCfg := p.Config.GetNotify()

	return orchestrator.New(orchestrator.Deps{
		Classifier:  p.Classifier,
		Planner:     p.Planner,
		Fetcher:     p.Fetcher,
		Relevance:   p.Relevance,
		Extractor:   p.Pipeline,
		Store:       p.Store,
		Synthesizer: p.Synthesizer,
		Searcher:    p.Searcher,
		Reminders:   p.Reminders,
		Notifier:    p.Notifier,
	}, orchestrator.Options{
		Concurrency:   p.Config.GetScan().Concurrency,
		HistoryTurns:  agentCfg.HistoryTurns,
		TopK:          agentCfg.TopK,
		Retry:         factory.RetryOptions(p.Config),
		NotifyOnScan:  notifyCfg.OnScan,
		NotifyChannel: notifyCfg.Channel,
	}, p.Logger)
}

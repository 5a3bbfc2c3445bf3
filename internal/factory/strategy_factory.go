package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/config"
	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/extraction"
	"github.com/mikey/inbox-agent/internal/intent"
	"github.com/mikey/inbox-agent/internal/synth"
	"github.com/mikey/inbox-agent/internal/utils"
)

// StrategyFactory creates the rule-based or model-backed decision makers
type StrategyFactory struct {
	cfg    *config.Config
	logger *zap.Logger
	llm    *LLMFactory
}

// NewStrategyFactory creates a new strategy factory
func NewStrategyFactory(cfg *config.Config, logger *zap.Logger, llm *LLMFactory) *StrategyFactory {
	return &StrategyFactory{
		cfg:    cfg,
		logger: logger,
		llm:    llm,
	}
}

func (f *StrategyFactory) usesLLM() bool {
	return f.cfg.GetAgent().Strategy == "llm"
}

// CreateClassifier creates the intent classifier
func (f *StrategyFactory) CreateClassifier() (*intent.Classifier, error) {
	agentCfg := f.cfg.GetAgent()

	var strategy core.IntentStrategy = intent.NewRuleStrategy()
	if f.usesLLM() {
		client, err := f.llm.CreateLLMClient()
		if err != nil {
			return nil, err
		}
		strategy = intent.NewLLMStrategy(client, nil, f.logger)
	}

	overrides := make(map[string]core.Intent, len(agentCfg.Overrides))
	for phrase, name := range agentCfg.Overrides {
		in, ok := core.ParseIntent(name)
		if !ok {
			f.logger.Warn("Ignoring override with unknown intent",
				zap.String("phrase", phrase),
				zap.String("intent", name))
			continue
		}
		overrides[phrase] = in
	}

	return intent.NewClassifier(strategy, intent.Options{
		Overrides:   overrides,
		DefaultDays: agentCfg.DefaultDays,
		MaxResults:  agentCfg.MaxResults,
	}, f.logger), nil
}

// CreatePipeline creates the extraction pipeline
func (f *StrategyFactory) CreatePipeline(attachments core.AttachmentExtractor, textProcessor *utils.TextProcessor) (*extraction.Pipeline, error) {
	var extractor core.FieldExtractor = extraction.NewRuleStrategy()
	if f.usesLLM() {
		client, err := f.llm.CreateLLMClient()
		if err != nil {
			return nil, err
		}
		extractor = extraction.NewLLMStrategy(client, f.logger)
	}

	scan := f.cfg.GetScan()
	return extraction.NewPipeline(attachments, extractor, textProcessor, extraction.Options{
		BodyPreviewSize: scan.BodyPreviewSize,
		MaxTextSize:     scan.MaxTextSize,
		Retry:           RetryOptions(f.cfg),
	}, f.logger), nil
}

// CreateSynthesizer creates the answer synthesizer for agent.synthesizer
func (f *StrategyFactory) CreateSynthesizer() (core.Synthesizer, error) {
	template := synth.NewTemplateSynthesizer(f.cfg.GetAgent().MaxListed)
	if f.cfg.GetAgent().Synthesizer != "llm" {
		return template, nil
	}
	client, err := f.llm.CreateLLMClient()
	if err != nil {
		return nil, err
	}
	return synth.NewLLMSynthesizer(client, template, f.logger), nil
}

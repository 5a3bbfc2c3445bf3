package openai

import (
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/config"
	"github.com/mikey/inbox-agent/internal/core"
)

// Factory creates OpenAI chat clients and embedders
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new factory for OpenAI clients
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *Factory) client() (*openai.Client, error) {
	openaiCfg := f.cfg.GetOpenAI()
	if openaiCfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key is required", core.ErrAuth)
	}
	clientCfg := openai.DefaultConfig(openaiCfg.APIKey)
	if openaiCfg.BaseURL != "" {
		clientCfg.BaseURL = openaiCfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg), nil
}

// CreateLLMClient creates a new OpenAIClient
func (f *Factory) CreateLLMClient() (core.LLMClient, error) {
	client, err := f.client()
	if err != nil {
		return nil, err
	}
	openaiCfg := f.cfg.GetOpenAI()
	return NewOpenAIClient(
		client,
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		f.logger,
	), nil
}

// CreateEmbedder creates an OpenAI embedder
func (f *Factory) CreateEmbedder() (core.Embedder, error) {
	client, err := f.client()
	if err != nil {
		return nil, err
	}
	return NewEmbedder(client, f.cfg.GetEmbedding().Model), nil
}

package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mikey/inbox-agent/internal/config"
	"github.com/mikey/inbox-agent/internal/core"
)

// Factory creates Gemini chat clients and embedders
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new factory for Gemini clients
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *Factory) client(ctx context.Context) (*genai.Client, error) {
	apiKey := f.cfg.GetGemini().APIKey
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", core.ErrAuth)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// CreateLLMClient creates a new GeminiClient
func (f *Factory) CreateLLMClient() (core.LLMClient, error) {
	client, err := f.client(context.Background())
	if err != nil {
		return nil, err
	}
	geminiCfg := f.cfg.GetGemini()
	return NewGeminiClient(
		client,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		f.logger,
	), nil
}

// CreateEmbedder creates a Gemini embedder
func (f *Factory) CreateEmbedder() (core.Embedder, error) {
	client, err := f.client(context.Background())
	if err != nil {
		return nil, err
	}
	return NewEmbedder(client, f.cfg.GetEmbedding().Model), nil
}

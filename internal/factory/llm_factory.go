package factory

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/adapters/bedrock"
	"github.com/mikey/inbox-agent/internal/adapters/embedding"
	"github.com/mikey/inbox-agent/internal/adapters/gemini"
	"github.com/mikey/inbox-agent/internal/adapters/openai"
	"github.com/mikey/inbox-agent/internal/config"
	"github.com/mikey/inbox-agent/internal/core"
)

// providerFactory is implemented by every model provider adapter
type providerFactory interface {
	CreateLLMClient() (core.LLMClient, error)
	CreateEmbedder() (core.Embedder, error)
}

// LLMFactory creates LLM clients and embedders
type LLMFactory struct {
	cfg    *config.Config
	logger *zap.Logger

	once   sync.Once
	client core.LLMClient
	err    error
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *LLMFactory) provider(name string) (providerFactory, error) {
	switch name {
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger), nil
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger), nil
	case "openai":
		return openai.NewFactory(f.cfg, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", name)
	}
}

// CreateLLMClient returns the client for llm.provider. The client is built
// on first use and shared by every model-backed strategy.
func (f *LLMFactory) CreateLLMClient() (core.LLMClient, error) {
	f.once.Do(func() {
		p, err := f.provider(f.cfg.GetLLM().Provider)
		if err != nil {
			f.err = err
			return
		}
		f.client, f.err = p.CreateLLMClient()
		if f.err == nil {
			f.logger.Info("Created LLM client", zap.String("model", f.client.Name()))
		}
	})
	return f.client, f.err
}

// CreateEmbedder returns the embedder for embedding.provider
func (f *LLMFactory) CreateEmbedder() (core.Embedder, error) {
	embeddingCfg := f.cfg.GetEmbedding()
	if embeddingCfg.Provider == "hash" {
		return embedding.NewHashEmbedder(embeddingCfg.Dimensions), nil
	}
	p, err := f.provider(embeddingCfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("unsupported embedding provider: %s", embeddingCfg.Provider)
	}
	return p.CreateEmbedder()
}

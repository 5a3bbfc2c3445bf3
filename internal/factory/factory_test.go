package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/adapters/embedding"
	"github.com/mikey/inbox-agent/internal/adapters/gmail"
	"github.com/mikey/inbox-agent/internal/adapters/mailbox"
	"github.com/mikey/inbox-agent/internal/adapters/notify"
	"github.com/mikey/inbox-agent/internal/adapters/openai"
	"github.com/mikey/inbox-agent/internal/adapters/websearch"
	"github.com/mikey/inbox-agent/internal/config"
	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/synth"
	"github.com/mikey/inbox-agent/internal/utils"
)

func testConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()
	cfg := config.NewFromViper(config.NewEmptyViper())
	for k, v := range overrides {
		cfg.Set(k, v)
	}
	return cfg
}

func TestLLMFactory_HashEmbedder(t *testing.T) {
	cfg := testConfig(t, map[string]any{"embedding.provider": "hash", "embedding.dimensions": 32})
	emb, err := NewLLMFactory(cfg, zap.NewNop()).CreateEmbedder()
	require.NoError(t, err)
	hash, ok := emb.(*embedding.HashEmbedder)
	require.True(t, ok)
	assert.Equal(t, 32, hash.Dimensions())
}

func TestLLMFactory_Providers(t *testing.T) {
	cfg := testConfig(t, map[string]any{"llm.provider": "openai", "openai.api_key": ""})
	_, err := NewLLMFactory(cfg, zap.NewNop()).CreateLLMClient()
	assert.ErrorIs(t, err, core.ErrAuth)

	cfg = testConfig(t, map[string]any{"llm.provider": "openai", "openai.api_key": "sk-test", "openai.model_name": "gpt-4o-mini"})
	f := NewLLMFactory(cfg, zap.NewNop())
	first, err := f.CreateLLMClient()
	require.NoError(t, err)
	second, err := f.CreateLLMClient()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.IsType(t, &openai.OpenAIClient{}, first)

	cfg = testConfig(t, map[string]any{"llm.provider": "claude"})
	_, err = NewLLMFactory(cfg, zap.NewNop()).CreateLLMClient()
	assert.ErrorContains(t, err, "unsupported LLM provider")

	cfg = testConfig(t, map[string]any{"embedding.provider": "word2vec"})
	_, err = NewLLMFactory(cfg, zap.NewNop()).CreateEmbedder()
	assert.ErrorContains(t, err, "unsupported embedding provider")
}

func TestRetryOptions(t *testing.T) {
	cfg := testConfig(t, map[string]any{
		"scan.retry.max_attempts":  5,
		"scan.retry.initial_delay": "100ms",
		"scan.retry.max_delay":     "2s",
		"scan.retry.multiplier":    3.0,
		"scan.item_timeout":        "15s",
	})
	assert.Equal(t, utils.RetryOptions{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   3,
		Timeout:      15 * time.Second,
	}, RetryOptions(cfg))
}

func TestStrategyFactory_Rules(t *testing.T) {
	cfg := testConfig(t, map[string]any{
		"agent.strategy":    "rules",
		"agent.synthesizer": "template",
		"agent.overrides":   map[string]string{"show my stuff": "query_history", "bogus": "dance"},
	})
	llm := NewLLMFactory(cfg, zap.NewNop())
	f := NewStrategyFactory(cfg, zap.NewNop(), llm)

	classifier, err := f.CreateClassifier()
	require.NoError(t, err)
	cls, err := classifier.Classify(context.Background(), "Show my stuff", nil)
	require.NoError(t, err)
	assert.Equal(t, core.IntentQueryHistory, cls.Intent)

	pipeline, err := f.CreatePipeline(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, pipeline)

	s, err := f.CreateSynthesizer()
	require.NoError(t, err)
	assert.IsType(t, &synth.TemplateSynthesizer{}, s)

	filter, err := NewFilterFactory(cfg, zap.NewNop(), llm, nil).CreateRelevanceFilter()
	require.NoError(t, err)
	assert.NotNil(t, filter)
}

func TestStrategyFactory_LLMNeedsProvider(t *testing.T) {
	cfg := testConfig(t, map[string]any{"agent.strategy": "llm", "agent.synthesizer": "llm", "llm.provider": "openai"})
	llm := NewLLMFactory(cfg, zap.NewNop())
	f := NewStrategyFactory(cfg, zap.NewNop(), llm)

	_, err := f.CreateClassifier()
	assert.ErrorIs(t, err, core.ErrAuth)
	_, err = f.CreateSynthesizer()
	assert.ErrorIs(t, err, core.ErrAuth)
	_, err = NewFilterFactory(cfg, zap.NewNop(), llm, nil).CreateRelevanceFilter()
	assert.ErrorIs(t, err, core.ErrAuth)
}

func TestStoreFactory(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewHashEmbedder(16)

	cfg := testConfig(t, map[string]any{"store.type": "memory"})
	s, err := NewStoreFactory(cfg, zap.NewNop()).CreateStore(ctx, emb)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count())
	require.NoError(t, s.Close())

	cfg = testConfig(t, map[string]any{"store.type": "sqlite", "store.dir": t.TempDir()})
	s, err = NewStoreFactory(cfg, zap.NewNop()).CreateStore(ctx, emb)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	cfg = testConfig(t, map[string]any{"store.type": "redis"})
	_, err = NewStoreFactory(cfg, zap.NewNop()).CreateStore(ctx, emb)
	assert.ErrorIs(t, err, core.ErrStore)
}

func TestSourceFactory(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, map[string]any{"source.type": "maildir", "source.maildir": dir, "source.raw_dir": t.TempDir()})
	f := NewSourceFactory(cfg, zap.NewNop())

	fetcher, err := f.CreateFetcher()
	require.NoError(t, err)
	assert.IsType(t, &mailbox.DirFetcher{}, fetcher)
	assert.IsType(t, &mailbox.FileTextExtractor{}, f.CreateAttachmentExtractor())

	cfg = testConfig(t, map[string]any{"source.type": "gmail", "gmail.credentials_file": dir + "/missing.json"})
	fetcher, err = NewSourceFactory(cfg, zap.NewNop()).CreateFetcher()
	require.NoError(t, err, "gmail credentials are only read when fetching")
	assert.IsType(t, &gmail.Fetcher{}, fetcher)

	_, err = fetcher.Fetch(context.Background(), core.CategoryBills, core.DateRange{}, 5)
	assert.ErrorIs(t, err, core.ErrAuth)
}

func TestNotifyFactory(t *testing.T) {
	cfg := testConfig(t, map[string]any{"notify.type": "log", "websearch.type": "none"})
	f := NewNotifyFactory(cfg, zap.NewNop())

	n, err := f.CreateNotifier()
	require.NoError(t, err)
	assert.IsType(t, &notify.LogNotifier{}, n)
	assert.NotNil(t, f.CreateReminders(n))

	searcher, err := f.CreateSearcher()
	require.NoError(t, err)
	assert.Nil(t, searcher)

	cfg = testConfig(t, map[string]any{"notify.type": "smtp", "websearch.type": "searxng", "websearch.url": "http://localhost:8888"})
	f = NewNotifyFactory(cfg, zap.NewNop())
	n, err = f.CreateNotifier()
	require.NoError(t, err)
	assert.IsType(t, &notify.SMTPNotifier{}, n)
	searcher, err = f.CreateSearcher()
	require.NoError(t, err)
	assert.IsType(t, &websearch.SearXNG{}, searcher)

	cfg = testConfig(t, map[string]any{"notify.type": "pager"})
	_, err = NewNotifyFactory(cfg, zap.NewNop()).CreateNotifier()
	assert.Error(t, err)
}

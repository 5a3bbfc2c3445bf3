package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// DefaultEmbeddingModel is used when no embedding model is configured
const DefaultEmbeddingModel = "text-embedding-004"

// Embedder computes embeddings with a Gemini embedding model
type Embedder struct {
	model *genai.EmbeddingModel
}

// NewEmbedder creates a Gemini embedder
func NewEmbedder(client *genai.Client, model string) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{model: client.EmbeddingModel(model)}
}

// Embed returns the embedding of text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content with Gemini: %w", mapError(err))
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding response from Gemini")
	}
	return res.Embedding.Values, nil
}

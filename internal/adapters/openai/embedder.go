package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultEmbeddingModel is used when no embedding model is configured
const DefaultEmbeddingModel = openai.SmallEmbedding3

// Embedder computes embeddings with the OpenAI embeddings endpoint
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewEmbedder creates an OpenAI embedder
func NewEmbedder(client *openai.Client, model string) *Embedder {
	m := openai.EmbeddingModel(model)
	if model == "" {
		m = DefaultEmbeddingModel
	}
	return &Embedder{client: client, model: m}
}

// Embed returns the embedding of text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding with OpenAI: %w", mapError(err))
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response from OpenAI")
	}
	return resp.Data[0].Embedding, nil
}

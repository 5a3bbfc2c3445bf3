package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
)

// DefaultEmbeddingModel is used when no embedding model is configured
const DefaultEmbeddingModel = "amazon.titan-embed-text-v2:0"

// Embedder computes embeddings with a Titan text embedding model
type Embedder struct {
	client  InvokeModelAPI
	modelID string
}

// NewEmbedder creates a Bedrock embedder
func NewEmbedder(client InvokeModelAPI, modelID string) *Embedder {
	if modelID == "" {
		modelID = DefaultEmbeddingModel
	}
	return &Embedder{client: client, modelID: modelID}
}

// Embed returns the embedding of text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]interface{}{"inputText": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding payload: %w", err)
	}
	body, err := invoke(ctx, e.client, e.modelID, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response from %s", e.modelID)
	}
	return resp.Embedding, nil
}

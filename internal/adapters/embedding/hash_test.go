package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cos(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	a, err := e.Embed(context.Background(), "Electricity bill due")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "electricity BILL due")
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
}

func TestHashEmbedder_Normalised(t *testing.T) {
	e := NewHashEmbedder(0)
	v, err := e.Embed(context.Background(), "university admission letter")
	require.NoError(t, err)
	assert.Len(t, v, DefaultDimensions)
	assert.InDelta(t, 1.0, math.Sqrt(cos(v, v)), 1e-5)
}

func TestHashEmbedder_SimilarTextScoresHigher(t *testing.T) {
	e := NewHashEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "water bill")
	near, _ := e.Embed(ctx, "your water bill is ready")
	far, _ := e.Embed(ctx, "flight itinerary to Lisbon")
	assert.Greater(t, cos(q, near), cos(q, far))
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	v, err := NewHashEmbedder(8).Embed(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

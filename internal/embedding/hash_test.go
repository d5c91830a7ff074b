package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedderDeterministicAndNormalized(t *testing.T) {
	h, err := NewHashEmbedder(64)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := h.Embed(ctx, "Grocery list: milk, eggs")
	require.NoError(t, err)
	b, err := h.Embed(ctx, "grocery LIST milk eggs")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b, "tokenisation ignores case and punctuation")

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestHashEmbedderSimilarity(t *testing.T) {
	h, err := NewHashEmbedder(256)
	require.NoError(t, err)
	ctx := context.Background()

	query, _ := h.Embed(ctx, "kubernetes deployment rollout")
	related, _ := h.Embed(ctx, "notes on kubernetes deployment strategies and rollout")
	unrelated, _ := h.Embed(ctx, "banana bread recipe with walnuts")

	assert.Greater(t, cosine(query, related), cosine(query, unrelated))
}

func TestHashEmbedderRejectsEmpty(t *testing.T) {
	h, err := NewHashEmbedder(8)
	require.NoError(t, err)

	_, err = h.Embed(context.Background(), " \n ")
	assert.ErrorIs(t, err, ErrEmbeddingFailure)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestHashEmbedderPunctuationOnly(t *testing.T) {
	h, err := NewHashEmbedder(8)
	require.NoError(t, err)

	vec, err := h.Embed(context.Background(), "?!")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
}

func TestNewHashEmbedderInvalidDimension(t *testing.T) {
	_, err := NewHashEmbedder(0)
	assert.ErrorIs(t, err, ErrEmbeddingFailure)
}

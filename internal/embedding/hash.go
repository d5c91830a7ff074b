package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// HashEmbedder maps tokens into a fixed number of buckets (feature hashing).
// It needs no network or corpus and is deterministic, so texts sharing words
// score higher under cosine similarity than unrelated texts.
type HashEmbedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
}

// NewHashEmbedder creates a hashing embedder producing vectors of length dimension.
func NewHashEmbedder(dimension int) (*HashEmbedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrEmbeddingFailure, dimension)
	}
	return &HashEmbedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+`),
	}, nil
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (h *HashEmbedder) Dimension() int { return h.dimension }

// Embed computes the hashed bag-of-words embedding, L2 normalized.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, ErrEmptyInput)
	}

	tokens := h.tokenPattern.FindAllString(strings.ToLower(trimmed), -1)
	if len(tokens) == 0 {
		// Punctuation-only text still needs a non-zero vector.
		tokens = []string{trimmed}
	}

	vec := make([]float64, h.dimension)
	for _, tok := range tokens {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(tok))
		sum := hasher.Sum64()
		bucket := int(sum % uint64(h.dimension))
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, h.dimension)
	if norm == 0 {
		// Opposite signs cancelled out; fall back to a fixed unit vector.
		out[0] = 1
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

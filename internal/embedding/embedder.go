package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "text-embedding-3-small"

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
	// OpenAI supports up to 2048 texts per batch, but smaller batches reduce TPM pressure.
	DefaultBatchSize = 500
)

// Embedder generates embeddings through an OpenAI-compatible API.
// It batches requests for efficiency and implements exponential backoff on rate limit errors.
type Embedder struct {
	client     *Client
	batchSize  int
	model      string
	dimension  int
	newBackOff func() backoff.BackOff
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithModel selects the embedding model.
func WithModel(model string) Option {
	return func(e *Embedder) {
		if model != "" {
			e.model = model
		}
	}
}

// WithDimension sets the expected vector length. Responses of any other
// length are rejected. text-embedding-3 models are also asked for it.
func WithDimension(d int) Option {
	return func(e *Embedder) { e.dimension = d }
}

// NewEmbedder creates a new Embedder with the given client and optional batch size.
// If batchSize is 0, DefaultBatchSize (500) is used.
func NewEmbedder(client *Client, batchSize int, opts ...Option) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	e := &Embedder{
		client:     client,
		batchSize:  batchSize,
		model:      DefaultModel,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// Dimension returns the configured vector length, 0 if unchecked.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns the embedding of a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, ErrEmptyInput)
	}
	embeddings, err := e.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", ErrEmbeddingFailure, len(embeddings))
	}
	return embeddings[0], nil
}

// GenerateEmbeddings generates embeddings for the given texts, in input order.
// Batches requests and retries with exponential backoff on rate limit errors.
func (e *Embedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	allEmbeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		embeddings, err := e.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %w", ErrEmbeddingFailure, i, end, err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("%w: batch %d-%d returned %d embeddings", ErrEmbeddingFailure, i, end, len(embeddings))
		}
		for _, emb := range embeddings {
			if e.dimension > 0 && len(emb) != e.dimension {
				return nil, fmt.Errorf("%w: %w: expected %d, got %d",
					ErrEmbeddingFailure, ErrDimensionMismatch, e.dimension, len(emb))
			}
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

// embedBatchWithRetry generates embeddings for a single batch with retry logic.
// Retries with exponential backoff on rate limit errors (HTTP 429).
// Other errors are treated as permanent and fail immediately.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimension > 0 && strings.HasPrefix(e.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	var embeddings [][]float32
	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		// Response items carry their input position.
		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			idx := int(data.Index)
			if idx < 0 || idx >= len(embeddings) {
				idx = i
			}
			embeddings[idx] = toFloat32(data.Embedding)
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(e.newBackOff(), ctx))
	return embeddings, err
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}

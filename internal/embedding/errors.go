package embedding

import "errors"

var (
	ErrEmbeddingFailure  = errors.New("embedding failure")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyInput        = errors.New("empty embedding input")
)

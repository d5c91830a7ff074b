package storage

import "errors"

var (
	ErrQdrantUnreachable   = errors.New("qdrant server unreachable")
	ErrCollectionNotFound  = errors.New("collection not found")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
	ErrUpdateNotCompleted  = errors.New("update not completed")
	ErrUnsupportedDistance = errors.New("unsupported distance metric")
	ErrInvalidPointID      = errors.New("invalid point id")
	ErrInvalidRequest      = errors.New("invalid storage request")
)

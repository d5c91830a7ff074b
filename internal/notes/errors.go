package notes

import "errors"

var (
	// ErrBackendUnavailable covers vector store faults: unreachable, timed out, rejected.
	ErrBackendUnavailable = errors.New("vector store unavailable")
	// ErrEmbeddingFailure is returned when a text could not be embedded at the configured dimension.
	ErrEmbeddingFailure = errors.New("embedding failed")
	// ErrPartialIngestion means some chunks of a document were stored and others were not.
	// Stored chunks are not rolled back.
	ErrPartialIngestion = errors.New("partial ingestion")
	// ErrInvalidConfiguration is returned for unusable settings such as a non-positive chunk size.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInvalidPayload marks a stored point whose payload is missing required fields.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrInvalidArgument is returned for caller mistakes such as an empty collection name.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Package api serves the notes REST operations and the browser UI.
package api

import (
	"github.com/bull/vector-notes/internal/storage"
)

// Response is the envelope of every /user_operations reply.
type Response struct {
	Status  string `json:"status"` // "success" or "error"
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Data    any    `json:"data"`
}

// Error kinds reported in Response.Kind.
const (
	KindInvalidRequest       = "invalid_request"
	KindBackendUnavailable   = "backend_unavailable"
	KindEmbeddingFailure     = "embedding_failure"
	KindPartialIngestion     = "partial_ingestion"
	KindInvalidConfiguration = "invalid_configuration"
	KindInternal             = "internal"
)

// CreateCollectionRequest registers a document record.
type CreateCollectionRequest struct {
	CollectionName string `json:"collection_name"`
	OwnerID        string `json:"owner_id,omitempty"`
}

// CreateCollectionResult carries the assigned record id.
type CreateCollectionResult struct {
	AssignedID uint64 `json:"assigned_id"`
}

// StoreDocumentRequest stores content as a single chunk, or chunked for the comprehensive route.
type StoreDocumentRequest struct {
	CollectionName string `json:"collection_name"`
	Content        string `json:"content"`
	MaxChunkSize   int    `json:"max_chunk_size,omitempty"`
}

// SearchRequest ranks the chunks of one collection against a query.
type SearchRequest struct {
	CollectionName string `json:"collection_name"`
	Query          string `json:"query"`
	TopN           int    `json:"top_n,omitempty"`
}

// CollectionRequest names a single collection.
type CollectionRequest struct {
	CollectionName string `json:"collection_name"`
}

// DeleteDocumentsRequest deletes chunks by id.
type DeleteDocumentsRequest struct {
	CollectionName string            `json:"collection_name"`
	DocumentIDs    []storage.PointID `json:"document_ids"`
}

// UpdateDocumentRequest replaces a collection's content.
type UpdateDocumentRequest struct {
	CollectionName string `json:"collection_name"`
	Content        string `json:"content"`
}

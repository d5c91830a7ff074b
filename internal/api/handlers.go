package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bull/vector-notes/internal/notes"
	"github.com/bull/vector-notes/internal/storage"
)

// DefaultTopN is used when a search request omits top_n.
const DefaultTopN = 5

const maxBodyBytes = 10 << 20

// Notes is the document store as seen by the HTTP layer.
type Notes interface {
	CreateDocumentRecord(ctx context.Context, name, ownerID string) (uint64, error)
	StoreDocumentChunk(ctx context.Context, name, content string) error
	StoreDocument(ctx context.Context, name, content string, maxChunkSize int) (*notes.IngestReport, error)
	Search(ctx context.Context, name, query string, topN int) ([]notes.SearchHit, error)
	ListDocumentChunks(ctx context.Context, name string) ([]notes.ListedChunk, error)
	ListKnownCollectionNames(ctx context.Context) ([]string, error)
	DeleteDocument(ctx context.Context, name string) error
	DeleteChunks(ctx context.Context, ids []storage.PointID, name string) error
	RewriteDocument(ctx context.Context, name, content string) (*notes.IngestReport, error)
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, Response{Status: "success", Message: message, Data: data})
}

// writeError maps err to a status code and fixed message. The raw error is
// logged and never sent to the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error, data any) {
	status, kind, message := classify(err)
	logger.Warn("Request failed", "operation", op, "kind", kind, "error", err)
	writeJSON(w, status, Response{Status: "error", Message: message, Kind: kind, Data: data})
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, notes.ErrInvalidArgument):
		return http.StatusBadRequest, KindInvalidRequest, "Invalid request"
	case errors.Is(err, notes.ErrPartialIngestion):
		return http.StatusInternalServerError, KindPartialIngestion, "Document was only partially stored"
	case errors.Is(err, notes.ErrEmbeddingFailure):
		return http.StatusBadGateway, KindEmbeddingFailure, "Embedding backend failed"
	case errors.Is(err, notes.ErrBackendUnavailable):
		return http.StatusBadGateway, KindBackendUnavailable, "Vector store unavailable"
	case errors.Is(err, notes.ErrInvalidConfiguration):
		return http.StatusInternalServerError, KindInvalidConfiguration, "Server misconfigured"
	default:
		return http.StatusInternalServerError, KindInternal, "Internal error"
	}
}

// decode reads a JSON body into v and requires collection_name via name.
func decode(r *http.Request, w http.ResponseWriter, v any, name func() string) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}
	if strings.TrimSpace(name()) == "" {
		return fmt.Errorf("%w: collection_name is required", errBadRequest)
	}
	return nil
}

func makeCreateCollectionHandler(n Notes, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateCollectionRequest
		if err := decode(r, w, &req, func() string { return req.CollectionName }); err != nil {
			writeError(w, logger, "create_collection", err, nil)
			return
		}
		id, err := n.CreateDocumentRecord(r.Context(), req.CollectionName, req.OwnerID)
		if err != nil {
			writeError(w, logger, "create_collection", err, CreateCollectionResult{})
			return
		}
		writeSuccess(w, "Collection created", CreateCollectionResult{AssignedID: id})
	}
}

func makeStoreDocumentHandler(n Notes, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StoreDocumentRequest
		if err := decode(r, w, &req, func() string { return req.CollectionName }); err != nil {
			writeError(w, logger, "store_document", err, nil)
			return
		}
		if err := n.StoreDocumentChunk(r.Context(), req.CollectionName, req.Content); err != nil {
			writeError(w, logger, "store_document", err, nil)
			return
		}
		writeSuccess(w, "Document stored", nil)
	}
}

func makeComprehensiveStoreHandler(n Notes, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StoreDocumentRequest
		if err := decode(r, w, &req, func() string { return req.CollectionName }); err != nil {
			writeError(w, logger, "comprehensive_store_document", err, nil)
			return
		}
		if req.MaxChunkSize < 0 {
			writeError(w, logger, "comprehensive_store_document",
				fmt.Errorf("%w: max_chunk_size must not be negative", errBadRequest), nil)
			return
		}
		report, err := n.StoreDocument(r.Context(), req.CollectionName, req.Content, req.MaxChunkSize)
		if err != nil {
			// The report tells the caller which chunks failed.
			writeError(w, logger, "comprehensive_store_document", err, report)
			return
		}
		writeSuccess(w, "Document stored", report)
	}
}

func makeSearchHandler(n Notes, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := decode(r, w, &req, func() string { return req.CollectionName }); err != nil {
			writeError(w, logger, "search", err, nil)
			return
		}
		if req.TopN == 0 {
			req.TopN = DefaultTopN
		}
		hits, err := n.Search(r.Context(), req.CollectionName, req.Query, req.TopN)
		if err != nil {
			writeError(w, logger, "search", err, []notes.SearchHit{})
			return
		}
		writeSuccess(w, fmt.Sprintf("Found %d results", len(hits)), hits)
	}
}

func makeListDocumentsHandler(n Notes, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CollectionRequest
		if err := decode(r, w, &req, func() string { return req.CollectionName }); err != nil {
			writeError(w, logger, "list_documents", err, nil)
			return
		}
		chunks, err := n.ListDocumentChunks(r.Context(), req.CollectionName)
		if err != nil {
			writeError(w, logger, "list_documents", err, []notes.ListedChunk{})
			return
		}
		writeSuccess(w, fmt.Sprintf("Found %d documents", len(chunks)), chunks)
	}
}

func makeListCollectionsHandler(n Notes, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := n.ListKnownCollectionNames(r.Context())
		if err != nil {
			writeError(w, logger, "list_collections", err, []string{})
			return
		}
		writeSuccess(w, fmt.Sprintf("Found %d collections", len(names)), names)
	}
}

func makeDeleteCollectionHandler(n Notes, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CollectionRequest
		if name := r.URL.Query().Get("collection_name"); name != "" {
			req.CollectionName = name
		} else if err := decode(r, w, &req, func() string { return req.CollectionName }); err != nil {
			writeError(w, logger, "delete_collection", err, nil)
			return
		}
		if err := n.DeleteDocument(r.Context(), req.CollectionName); err != nil {
			writeError(w, logger, "delete_collection", err, nil)
			return
		}
		writeSuccess(w, "Collection deleted", nil)
	}
}

func makeDeleteDocumentsHandler(n Notes, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DeleteDocumentsRequest
		if err := decode(r, w, &req, func() string { return req.CollectionName }); err != nil {
			writeError(w, logger, "delete_documents", err, nil)
			return
		}
		if err := n.DeleteChunks(r.Context(), req.DocumentIDs, req.CollectionName); err != nil {
			writeError(w, logger, "delete_documents", err, nil)
			return
		}
		writeSuccess(w, fmt.Sprintf("Deleted %d documents", len(req.DocumentIDs)), nil)
	}
}

func makeUpdateDocumentHandler(n Notes, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateDocumentRequest
		if err := decode(r, w, &req, func() string { return req.CollectionName }); err != nil {
			writeError(w, logger, "update_document", err, nil)
			return
		}
		report, err := n.RewriteDocument(r.Context(), req.CollectionName, req.Content)
		if err != nil {
			writeError(w, logger, "update_document", err, report)
			return
		}
		writeSuccess(w, "Document updated", report)
	}
}

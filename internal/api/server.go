package api

import (
	"log/slog"
	"net/http"
	"time"
)

// Options holds the dependencies of the HTTP surface.
type Options struct {
	Notes       Notes
	Health      HealthChecker
	Collections CollectionLister // optional, reported by /health
	MCP         http.Handler     // optional, mounted at /mcp
	Logger      *slog.Logger
}

// NewHandler builds the router for the REST operations, /health, /mcp and the UI.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	mux := http.NewServeMux()
	n := opts.Notes

	mux.HandleFunc("POST /user_operations/create_collection", makeCreateCollectionHandler(n, logger))
	mux.HandleFunc("POST /user_operations/store_document", makeStoreDocumentHandler(n, logger))
	mux.HandleFunc("POST /user_operations/comprehensive_store_document", makeComprehensiveStoreHandler(n, logger))
	mux.HandleFunc("PUT /user_operations/search", makeSearchHandler(n, logger))
	mux.HandleFunc("PUT /user_operations/list_documents", makeListDocumentsHandler(n, logger))
	mux.HandleFunc("GET /user_operations/list_collections", makeListCollectionsHandler(n, logger))
	mux.HandleFunc("DELETE /user_operations/delete_collection", makeDeleteCollectionHandler(n, logger))
	mux.HandleFunc("DELETE /user_operations/delete_documents", makeDeleteDocumentsHandler(n, logger))
	mux.HandleFunc("POST /user_operations/update_document", makeUpdateDocumentHandler(n, logger))

	if opts.Health != nil {
		mux.HandleFunc("GET /health", NewHealthHandler(opts.Health, opts.Collections))
	}
	if opts.MCP != nil {
		mux.Handle("/mcp", opts.MCP)
	}
	mux.HandleFunc("GET /{$}", NewUIHandler())

	return logRequests(mux, logger)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses (MCP over HTTP) working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	VectorStore string `json:"vector_store"`
	Collections int    `json:"collections"`
	Timestamp   string `json:"timestamp"`
}

// HealthChecker is implemented by every storage.VectorStore.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// CollectionLister reports the registry size. Optional.
type CollectionLister interface {
	List() []string
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// It returns 200 when the vector store answers within 3 seconds, 503 otherwise.
func NewHealthHandler(store HealthChecker, names CollectionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		err := store.Health(ctx)

		response := HealthResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if names != nil {
			response.Collections = len(names.List())
		}

		w.Header().Set("Content-Type", "application/json")

		if err != nil {
			response.Status = "unhealthy"
			response.VectorStore = "disconnected"
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(response)
			return
		}

		response.Status = "healthy"
		response.VectorStore = "connected"
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

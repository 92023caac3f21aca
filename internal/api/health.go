package api

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string  `json:"status"`
	Store     string  `json:"store"`
	Records   *uint64 `json:"records,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// HealthChecker is implemented by the document store.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RecordCounter is optionally implemented by the document store to report
// how many records it holds.
type RecordCounter interface {
	Count(ctx context.Context) (uint64, error)
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// It answers 503 when the store cannot be reached within 3 seconds.
func NewHealthHandler(store HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		if err := store.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.Store = "disconnected"
			writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}

		response.Status = "healthy"
		response.Store = "connected"
		if counter, ok := store.(RecordCounter); ok {
			if n, err := counter.Count(ctx); err == nil {
				response.Records = &n
			}
		}
		writeJSON(w, http.StatusOK, response)
	}
}

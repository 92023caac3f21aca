package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bull/docrag/internal/search"
)

const missingQueryMessage = "Please provide a 'query' parameter either in the URL or request body."

// Querier answers a query with ranked results.
type Querier interface {
	Query(ctx context.Context, text string, topK int) ([]search.Result, error)
}

// QueryResponse is the body of a successful query.
type QueryResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

type queryBody struct {
	Query string          `json:"query"`
	TopK  json.RawMessage `json:"top_k"`
}

// NewQueryHandler serves /api/query_documents. The query comes from the
// "query" URL parameter or the JSON body; top_k from the URL parameter, then
// the body, then defaultTopK.
func NewQueryHandler(engine Querier, defaultTopK int, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		defer recoverPanic(w, logger, "query_documents")

		body := readQueryBody(r)

		text := strings.TrimSpace(r.URL.Query().Get("query"))
		if text == "" {
			text = strings.TrimSpace(body.Query)
		}
		if text == "" {
			writeError(w, http.StatusBadRequest, missingQueryMessage)
			return
		}

		topK := search.ResolveTopK(r.URL.Query().Get("top_k"), body.TopK, defaultTopK)

		results, err := engine.Query(r.Context(), text, topK)
		if err != nil {
			logger.Error("query failed", "query", text, "error", err)
			writeError(w, statusFor(err), "An error occurred during document querying: "+err.Error())
			return
		}
		if results == nil {
			results = []search.Result{}
		}

		writeJSON(w, http.StatusOK, QueryResponse{Query: text, Results: results})
	}
}

// readQueryBody decodes an optional JSON body. A missing or malformed body
// yields the zero value.
func readQueryBody(r *http.Request) queryBody {
	var body queryBody
	if r.Body == nil {
		return body
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || len(data) == 0 {
		return body
	}
	_ = json.Unmarshal(data, &body)
	return body
}

package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Embedder turns query text into a vector in the same space as the stored
// chunks.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index executes a search request.
type Index interface {
	Search(ctx context.Context, req *Request) ([]Result, error)
}

// Engine embeds queries and runs them against an Index.
type Engine struct {
	embedder     Embedder
	index        Index
	selectFields string
	logger       *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(embedder Embedder, index Index, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder:     embedder,
		index:        index,
		selectFields: DefaultSelect,
		logger:       logger,
	}
}

// Query returns up to topK results for text in the order the index ranks
// them. Empty text and non-positive topK are rejected before any embedding
// or network call.
func (e *Engine) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}

	start := time.Now()

	vector, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := e.index.Search(ctx, NewRequest(text, vector, topK, e.selectFields))
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			e.logger.Error("search request failed", "status", statusErr.StatusCode, "body", statusErr.Body)
		} else {
			e.logger.Error("search request failed", "error", err)
		}
		return nil, err
	}

	e.logger.Info("query completed", "top_k", topK, "results", len(results), "duration", time.Since(start))
	return results, nil
}

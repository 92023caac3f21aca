// Package embedding turns text into fixed-size vectors. The same Embedder is
// used for ingestion and for queries, so stored and query vectors share one
// space.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/docrag/internal/config"
)

const (
	// DefaultMaxTokens is the input budget applied before encoding.
	DefaultMaxTokens = 512

	charsPerToken = 4
)

var (
	// ErrEmptyEmbedding is returned when the backend produced no vector.
	ErrEmptyEmbedding = errors.New("embedding backend returned no vectors")

	// ErrDimensionMismatch is returned when a vector does not have the
	// configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Backend encodes text into one or more vectors. Token-level backends return
// one vector per token; sequence-level backends return a single vector.
type Backend interface {
	Encode(ctx context.Context, text string) ([][]float32, error)
}

// Embedder truncates, encodes, mean-pools and normalizes text.
type Embedder struct {
	backend   Backend
	model     string
	dimension int
	maxTokens int
	logger    *slog.Logger
}

// NewEmbedder creates an Embedder producing vectors of the given dimension.
// If maxTokens is 0, DefaultMaxTokens is used.
func NewEmbedder(backend Backend, dimension, maxTokens int, logger *slog.Logger) *Embedder {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		backend:   backend,
		dimension: dimension,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// NewFromConfig selects the backend named by cfg.Provider.
func NewFromConfig(cfg config.EmbeddingConfig, logger *slog.Logger) (*Embedder, error) {
	var backend Backend
	switch cfg.Provider {
	case config.ProviderTEI:
		backend = NewTEIBackend(cfg.BaseURL, cfg.APIKey)
	case config.ProviderOpenAI, "":
		b, err := NewOpenAIBackend(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimension, cfg.MaxRetries)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	e := NewEmbedder(backend, cfg.Dimension, cfg.MaxTokens, logger)
	e.model = cfg.Model
	return e, nil
}

// Dimension returns the length of every vector Embed produces.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Model returns the configured model name, or "" when the Embedder was built
// directly from a Backend.
func (e *Embedder) Model() string {
	return e.model
}

// Embed returns the unit-length vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	input := truncate(text, e.maxTokens)
	if len(input) < len(text) {
		e.logger.Debug("truncated embedding input", "chars", len([]rune(input)), "max_tokens", e.maxTokens)
	}

	tokens, err := e.backend.Encode(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	vec, ok := meanPool(tokens)
	if !ok {
		return nil, ErrEmptyEmbedding
	}
	normalize(vec)

	if e.dimension > 0 && len(vec) != e.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), e.dimension)
	}
	return vec, nil
}

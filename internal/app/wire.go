// Package app assembles the ingestion pipeline and query engine from
// configuration. Both commands build their components here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/docrag/internal/config"
	"github.com/bull/docrag/internal/indexer"
	"github.com/bull/docrag/internal/loader"
	"github.com/bull/docrag/internal/search"
	"github.com/bull/docrag/internal/splitter"
	"github.com/bull/docrag/internal/storage"
)

// OpenStore connects to the document store and makes sure its container exists.
func OpenStore(ctx context.Context, cfg *config.Config) (*storage.QdrantStorage, error) {
	store, err := storage.NewQdrantStorage(ctx, cfg.Store, cfg.Embedding.Dimension)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureCollection(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure container %s: %w", cfg.Store.Container, err)
	}
	return store, nil
}

// NewSplitter builds the splitter from the configured window and overlap.
func NewSplitter(cfg *config.Config) *splitter.Splitter {
	return splitter.New(
		splitter.WithChunkSize(cfg.Splitter.ChunkSize),
		splitter.WithChunkOverlap(cfg.Splitter.ChunkOverlap),
	)
}

// NewPipeline wires the ingestion pipeline to container.
func NewPipeline(cfg *config.Config, embedder indexer.Embedder, container storage.Container, logger *slog.Logger) *indexer.Pipeline {
	return indexer.NewPipeline(
		loader.New(logger),
		NewSplitter(cfg),
		indexer.NewBuilder(embedder),
		storage.NewWriter(container, logger),
		logger,
	)
}

// NewIndex selects the search backend. store is only needed for the qdrant
// backend and may be nil otherwise.
func NewIndex(cfg *config.Config, store search.RecordSearcher) (search.Index, error) {
	if err := cfg.Search.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Search.Backend {
	case config.BackendAzure:
		return search.NewAzureIndex(cfg.Search), nil
	case config.BackendQdrant:
		if store == nil {
			return nil, errors.New("qdrant search backend needs a document store")
		}
		return search.NewQdrantIndex(store), nil
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Search.Backend)
	}
}

// NewEngine builds the query engine on the configured backend.
func NewEngine(cfg *config.Config, embedder search.Embedder, store search.RecordSearcher, logger *slog.Logger) (*search.Engine, error) {
	index, err := NewIndex(cfg, store)
	if err != nil {
		return nil, err
	}
	return search.NewEngine(embedder, index, logger), nil
}

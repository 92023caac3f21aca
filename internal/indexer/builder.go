package indexer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bull/docrag/internal/splitter"
	"github.com/bull/docrag/internal/storage"
)

const unknownSource = "unknown"

// Embedder turns chunk text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Builder turns chunks into storable records.
type Builder struct {
	embedder Embedder
}

// NewBuilder creates a Builder using embedder for every chunk.
func NewBuilder(embedder Embedder) *Builder {
	return &Builder{embedder: embedder}
}

// Build returns one record per chunk, in order. progress, if non-nil, is
// called after each record. The first embedding failure aborts the batch.
func (b *Builder) Build(ctx context.Context, chunks []splitter.Chunk, progress func(done, total int)) ([]storage.Record, error) {
	records := make([]storage.Record, 0, len(chunks))

	for i, chunk := range chunks {
		rec, err := b.BuildOne(ctx, i, chunk)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)

		if progress != nil {
			progress(i+1, len(chunks))
		}
	}

	return records, nil
}

// BuildOne embeds the chunk at position i of its batch. The record gets a
// fresh UUID; a missing page becomes i+1 and a missing source "unknown".
func (b *Builder) BuildOne(ctx context.Context, i int, chunk splitter.Chunk) (storage.Record, error) {
	vec, err := b.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return storage.Record{}, fmt.Errorf("embed chunk %d: %w", i, err)
	}

	source := chunk.Metadata.Source
	if source == "" {
		source = unknownSource
	}
	page := i + 1
	if chunk.Metadata.Page != nil {
		page = *chunk.Metadata.Page
	}

	return storage.Record{
		ID:        uuid.New().String(),
		Text:      chunk.Text,
		Embedding: vec,
		Metadata: storage.RecordMetadata{
			Source: source,
			Page:   page,
		},
	}, nil
}

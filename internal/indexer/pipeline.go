// Package indexer runs ingestion end to end: load files, split them into
// chunks, embed the chunks and write them to the document store.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/docrag/internal/loader"
	"github.com/bull/docrag/internal/splitter"
	"github.com/bull/docrag/internal/storage"
)

// IngestOptions controls a single ingestion run.
type IngestOptions struct {
	// Clear deletes every stored record before writing the new ones.
	Clear bool

	// Progress is called after each chunk is embedded.
	Progress func(done, total int)
}

// IngestResult contains statistics about an ingestion run.
type IngestResult struct {
	Files       int
	FailedFiles []loader.FailedFile
	Documents   int
	Chunks      int
	Cleared     int
	Written     int
	Duration    time.Duration
}

// Pipeline orchestrates ingestion from a folder to the document store.
type Pipeline struct {
	loader   *loader.Loader
	splitter *splitter.Splitter
	builder  *Builder
	writer   *storage.Writer
	logger   *slog.Logger
}

// NewPipeline creates a new ingestion pipeline with the given components.
func NewPipeline(
	loader *loader.Loader,
	splitter *splitter.Splitter,
	builder *Builder,
	writer *storage.Writer,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		loader:   loader,
		splitter: splitter,
		builder:  builder,
		writer:   writer,
		logger:   logger,
	}
}

// Ingest loads every supported file directly inside folder and stores its
// chunks. It returns loader.ErrNoFiles when the folder holds no files. On a
// write failure the partial result is returned along with the error.
func (p *Pipeline) Ingest(ctx context.Context, folder string, opts IngestOptions) (*IngestResult, error) {
	start := time.Now()
	result := &IngestResult{}

	// 1. List files
	files, err := loader.ListFiles(folder)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", loader.ErrNoFiles, folder)
	}
	result.Files = len(files)
	p.logger.Info("Starting ingestion", "folder", folder, "files", len(files))

	// 2. Load documents; unreadable files are skipped
	loaded := p.loader.Load(ctx, files)
	result.FailedFiles = loaded.Failed
	result.Documents = loaded.Len()

	// 3. Split, keeping pdf, word, csv order
	chunks := p.splitter.SplitDocuments(loaded.PDF, loaded.Word, loaded.CSV)
	result.Chunks = len(chunks)
	p.logger.Info("Split documents", "documents", result.Documents, "chunks", result.Chunks)

	// 4. Embed and build records
	records, err := p.builder.Build(ctx, chunks, opts.Progress)
	if err != nil {
		return result, fmt.Errorf("build records: %w", err)
	}

	// 5. Optional explicit clear, only once every record is ready
	if opts.Clear {
		cleared, err := p.writer.Clear(ctx)
		result.Cleared = cleared
		if err != nil {
			return result, fmt.Errorf("clear: %w", err)
		}
	}

	// 6. Write
	written, err := p.writer.Write(ctx, records)
	result.Written = written
	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("write: %w", err)
	}

	p.logger.Info("Ingestion complete",
		"files", result.Files,
		"failed", len(result.FailedFiles),
		"chunks", result.Chunks,
		"written", result.Written,
		"duration", result.Duration,
	)

	return result, nil
}

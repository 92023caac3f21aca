package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/docrag/internal/indexer"
	"github.com/bull/docrag/internal/loader"
	"github.com/bull/docrag/internal/search"
)

// Querier answers a query with ranked results.
type Querier interface {
	Query(ctx context.Context, text string, topK int) ([]search.Result, error)
}

// Ingester runs ingestion over a folder.
type Ingester interface {
	Ingest(ctx context.Context, folder string, opts indexer.IngestOptions) (*indexer.IngestResult, error)
}

// makeQueryHandler creates the query_documents tool handler.
func makeQueryHandler(engine Querier, defaultTopK int) func(
	context.Context, *mcp.CallToolRequest, QueryDocumentsInput,
) (*mcp.CallToolResult, QueryDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input QueryDocumentsInput) (
		*mcp.CallToolResult, QueryDocumentsOutput, error,
	) {
		topK := input.TopK
		if topK <= 0 {
			topK = defaultTopK
		}

		results, err := engine.Query(ctx, input.Query, topK)
		if err != nil {
			return nil, QueryDocumentsOutput{}, fmt.Errorf("query failed: %w", err)
		}

		out := QueryDocumentsOutput{
			Query:   input.Query,
			Results: make([]QueryResult, 0, len(results)),
		}
		for _, r := range results {
			meta := r.Metadata
			if meta == nil {
				meta = map[string]any{}
			}
			out.Results = append(out.Results, QueryResult{
				Text:            r.Text,
				Metadata:        meta,
				SimilarityScore: r.Score,
			})
		}
		if len(out.Results) == 0 {
			out.Message = "No matching documents found. Try broader search terms."
		}

		return nil, out, nil
	}
}

// makeIngestHandler creates the ingest_documents tool handler.
// An empty folder is reported in the output, not as a tool error.
func makeIngestHandler(pipeline Ingester, folder string) func(
	context.Context, *mcp.CallToolRequest, IngestDocumentsInput,
) (*mcp.CallToolResult, IngestDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestDocumentsInput) (
		*mcp.CallToolResult, IngestDocumentsOutput, error,
	) {
		result, err := pipeline.Ingest(ctx, folder, indexer.IngestOptions{Clear: input.Clear})
		if errors.Is(err, loader.ErrNoFiles) {
			return nil, IngestDocumentsOutput{
				Message:     "No files found in the ingest folder.",
				FailedFiles: []FailedFile{},
			}, nil
		}
		if err != nil {
			return nil, IngestDocumentsOutput{}, fmt.Errorf("ingestion failed: %w", err)
		}

		failed := make([]FailedFile, 0, len(result.FailedFiles))
		for _, f := range result.FailedFiles {
			failed = append(failed, FailedFile{Path: f.Path, Reason: f.Reason})
		}

		return nil, IngestDocumentsOutput{
			Message:     fmt.Sprintf("Successfully processed and ingested %d document chunks.", result.Written),
			Files:       result.Files,
			Chunks:      result.Chunks,
			Written:     result.Written,
			Cleared:     result.Cleared,
			FailedFiles: failed,
		}, nil
	}
}

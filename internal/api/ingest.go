package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bull/docrag/internal/indexer"
	"github.com/bull/docrag/internal/loader"
)

// Ingester runs ingestion over a folder.
type Ingester interface {
	Ingest(ctx context.Context, folder string, opts indexer.IngestOptions) (*indexer.IngestResult, error)
}

// IngestResponse is the body of a successful ingestion.
type IngestResponse struct {
	Message     string              `json:"message"`
	Chunks      int                 `json:"chunks"`
	Written     int                 `json:"written"`
	Cleared     int                 `json:"cleared,omitempty"`
	FailedFiles []loader.FailedFile `json:"failed_files"`
}

// NewIngestHandler serves /api/ingest_documents. Passing clear=true deletes
// the stored records first.
func NewIngestHandler(pipeline Ingester, folder string, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		defer recoverPanic(w, logger, "ingest_documents")

		clearFirst, _ := strconv.ParseBool(r.URL.Query().Get("clear"))

		result, err := pipeline.Ingest(r.Context(), folder, indexer.IngestOptions{Clear: clearFirst})
		if err != nil {
			status := statusFor(err)
			if status == http.StatusNotFound {
				writeError(w, status, "No files found in the ingest folder.")
				return
			}
			logger.Error("ingestion failed", "folder", folder, "error", err)
			writeError(w, status, "An error occurred during document processing: "+err.Error())
			return
		}

		failed := result.FailedFiles
		if failed == nil {
			failed = []loader.FailedFile{}
		}
		writeJSON(w, http.StatusOK, IngestResponse{
			Message:     fmt.Sprintf("Successfully processed and ingested %d document chunks.", result.Written),
			Chunks:      result.Chunks,
			Written:     result.Written,
			Cleared:     result.Cleared,
			FailedFiles: failed,
		})
	}
}

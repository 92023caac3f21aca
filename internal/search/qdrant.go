package search

import (
	"context"

	"github.com/bull/docrag/internal/storage"
)

// RecordSearcher is the similarity search of the document store.
type RecordSearcher interface {
	SearchRecords(ctx context.Context, embedding []float32, limit int) ([]storage.ScoredRecord, error)
}

// QdrantIndex answers requests from the document store directly, using the
// request's single vector query. The full-text part is ignored.
type QdrantIndex struct {
	store RecordSearcher
}

// NewQdrantIndex wraps store.
func NewQdrantIndex(store RecordSearcher) *QdrantIndex {
	return &QdrantIndex{store: store}
}

func (q *QdrantIndex) Search(ctx context.Context, req *Request) ([]Result, error) {
	if len(req.VectorQueries) == 0 {
		return nil, nil
	}
	vq := req.VectorQueries[0]

	records, err := q.store.SearchRecords(ctx, vq.Vector, vq.K)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		results = append(results, Result{
			Text: rec.Text,
			Metadata: map[string]any{
				"source": rec.Metadata.Source,
				"page":   rec.Metadata.Page,
			},
			Score: rec.Score,
		})
	}
	return results, nil
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docrag/internal/config"
	"github.com/bull/docrag/internal/storage"
)

const testDim = 6

type fakeEmbedder struct {
	calls atomic.Int32
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, testDim)
	for i := range vec {
		vec[i] = float32(len(text)+i) / 10
	}
	return vec, nil
}

type fakeIndex struct {
	requests []*Request
	results  []Result
	err      error
}

func (f *fakeIndex) Search(_ context.Context, req *Request) ([]Result, error) {
	f.requests = append(f.requests, req)
	return f.results, f.err
}

func newAzureIndex(t *testing.T, url string) *AzureIndex {
	t.Helper()
	return NewAzureIndex(config.SearchConfig{
		Endpoint:   url,
		Index:      "docs-index",
		APIKey:     "search-key",
		APIVersion: "2024-07-01",
	})
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestNewRequest_Shape(t *testing.T) {
	vec := []float32{0.1, 0.2, 0.3}
	req := NewRequest("revenue growth", vec, 5, DefaultSelect)

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "revenue growth", got["search"])
	assert.EqualValues(t, 5, got["top"])
	assert.Equal(t, "text,metadata", got["select"])

	vqs, ok := got["vectorQueries"].([]any)
	require.True(t, ok)
	require.Len(t, vqs, 1)
	vq := vqs[0].(map[string]any)
	assert.Equal(t, "vector", vq["kind"])
	assert.Equal(t, "embedding", vq["fields"])
	assert.Equal(t, true, vq["exhaustive"])
	assert.EqualValues(t, 5, vq["k"])
	assert.Len(t, vq["vector"], 3)
}

func TestQuery_EmptyTextSendsNothing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	emb := &fakeEmbedder{}
	engine := NewEngine(emb, newAzureIndex(t, srv.URL), nil)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := engine.Query(context.Background(), text, 5)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	}
	assert.Zero(t, emb.calls.Load(), "no embedding for an empty query")
	assert.Zero(t, hits.Load(), "no request for an empty query")
}

func TestQuery_InvalidTopK(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := &fakeIndex{}
	engine := NewEngine(emb, idx, nil)

	_, err := engine.Query(context.Background(), "hello", 0)
	assert.ErrorIs(t, err, ErrInvalidTopK)
	assert.Zero(t, emb.calls.Load())
	assert.Empty(t, idx.requests)
}

func TestQuery_SendsVectorRequest(t *testing.T) {
	var (
		got    Request
		path   string
		apiKey string
		apiVer string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		apiKey = r.Header.Get("api-key")
		apiVer = r.URL.Query().Get("api-version")
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"value":[
			{"@search.score":0.91,"text":"Revenue grew twelve percent.","metadata":{"source":"report.docx","page":1}},
			{"@search.score":0.42,"text":"Costs were flat.","metadata":{"source":"report.docx","page":2}}
		]}`)
	}))
	defer srv.Close()

	engine := NewEngine(&fakeEmbedder{}, newAzureIndex(t, srv.URL), nil)
	results, err := engine.Query(context.Background(), "how did revenue change", 5)
	require.NoError(t, err)

	assert.Equal(t, "/indexes/docs-index/docs/search", path)
	assert.Equal(t, "search-key", apiKey)
	assert.Equal(t, "2024-07-01", apiVer)

	assert.Equal(t, "how did revenue change", got.Search)
	assert.Equal(t, 5, got.Top)
	require.Len(t, got.VectorQueries, 1)
	assert.Equal(t, 5, got.VectorQueries[0].K)
	assert.Len(t, got.VectorQueries[0].Vector, testDim)
	assert.Equal(t, "embedding", got.VectorQueries[0].Fields)
	assert.True(t, got.VectorQueries[0].Exhaustive)

	require.Len(t, results, 2)
	assert.Equal(t, "Revenue grew twelve percent.", results[0].Text)
	assert.InDelta(t, 0.91, results[0].Score, 1e-9)
	assert.Equal(t, "report.docx", results[0].Metadata["source"])
	assert.EqualValues(t, 2, results[1].Metadata["page"])
}

func TestQuery_ErrorStatusLoggedAndReturned(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"message":"service busy"}}`)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	engine := NewEngine(&fakeEmbedder{}, newAzureIndex(t, srv.URL), bufferLogger(&logs))

	_, err := engine.Query(context.Background(), "anything", 5)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "service busy")
	assert.ErrorIs(t, err, ErrSearchFailed)

	assert.Equal(t, int32(1), hits.Load(), "failed searches are not retried")
	assert.Contains(t, logs.String(), "status=503")
	assert.Contains(t, logs.String(), "service busy")
}

func TestQuery_EmbeddingError(t *testing.T) {
	idx := &fakeIndex{}
	engine := NewEngine(&fakeEmbedder{err: errors.New("model unavailable")}, idx, nil)

	_, err := engine.Query(context.Background(), "hello", 3)
	require.Error(t, err)
	assert.Empty(t, idx.requests)
}

func TestQuery_ResultsUntouched(t *testing.T) {
	idx := &fakeIndex{results: []Result{
		{Text: "low", Score: 0.1},
		{Text: "high", Score: 0.9},
	}}
	engine := NewEngine(&fakeEmbedder{}, idx, nil)

	results, err := engine.Query(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Equal(t, idx.results, results, "order is the index's order")
}

func TestDecodeAzureResults_Malformed(t *testing.T) {
	_, err := decodeAzureResults([]byte(`{"value":[{"@search.score":"high"}]}`))
	assert.ErrorIs(t, err, ErrSearchFailed)

	results, err := decodeAzureResults([]byte(`{"value":[]}`))
	require.NoError(t, err)
	assert.Empty(t, results)
}

type fakeRecordSearcher struct {
	limit int
}

func (f *fakeRecordSearcher) SearchRecords(_ context.Context, _ []float32, limit int) ([]storage.ScoredRecord, error) {
	f.limit = limit
	return []storage.ScoredRecord{{
		Record: storage.Record{
			ID:       "id-1",
			Text:     "chunk text",
			Metadata: storage.RecordMetadata{Source: "a.pdf", Page: 4},
		},
		Score: 0.75,
	}}, nil
}

func TestQdrantIndex_MapsRecords(t *testing.T) {
	store := &fakeRecordSearcher{}
	engine := NewEngine(&fakeEmbedder{}, NewQdrantIndex(store), nil)

	results, err := engine.Query(context.Background(), "q", 7)
	require.NoError(t, err)

	assert.Equal(t, 7, store.limit)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk text", results[0].Text)
	assert.Equal(t, "a.pdf", results[0].Metadata["source"])
	assert.Equal(t, 4, results[0].Metadata["page"])
	assert.InDelta(t, 0.75, results[0].Score, 1e-9)
}

func TestResolveTopK(t *testing.T) {
	tests := []struct {
		name  string
		param string
		body  string
		want  int
	}{
		{"param wins", "3", "9", 3},
		{"body when no param", "", "9", 9},
		{"body string", "", `"4"`, 4},
		{"default", "", "", 5},
		{"bad param falls to body", "abc", "8", 8},
		{"non-positive param falls through", "0", "", 5},
		{"negative body falls through", "", "-2", 5},
		{"null body", "", "null", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body json.RawMessage
			if tt.body != "" {
				body = json.RawMessage(tt.body)
			}
			assert.Equal(t, tt.want, ResolveTopK(tt.param, body, 5))
		})
	}
}

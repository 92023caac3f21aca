package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docrag/internal/indexer"
	"github.com/bull/docrag/internal/loader"
	"github.com/bull/docrag/internal/search"
)

type fakeQuerier struct {
	calls   int
	gotText string
	gotTopK int
	results []search.Result
	err     error
	panics  bool
}

func (f *fakeQuerier) Query(_ context.Context, text string, topK int) ([]search.Result, error) {
	if f.panics {
		panic("nil index")
	}
	f.calls++
	f.gotText = text
	f.gotTopK = topK
	return f.results, f.err
}

type fakeIngester struct {
	gotFolder string
	gotOpts   indexer.IngestOptions
	result    *indexer.IngestResult
	err       error
}

func (f *fakeIngester) Ingest(_ context.Context, folder string, opts indexer.IngestOptions) (*indexer.IngestResult, error) {
	f.gotFolder = folder
	f.gotOpts = opts
	return f.result, f.err
}

type fakeStore struct {
	err   error
	count uint64
}

func (f fakeStore) Health(context.Context) error { return f.err }

func (f fakeStore) Count(context.Context) (uint64, error) { return f.count, nil }

func TestQueryHandler_MissingQuery(t *testing.T) {
	q := &fakeQuerier{}
	h := NewQueryHandler(q, 5, nil)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/query_documents", nil),
		httptest.NewRequest(http.MethodGet, "/api/query_documents?query=%20%20", nil),
		httptest.NewRequest(http.MethodPost, "/api/query_documents", strings.NewReader(`{"top_k":3}`)),
		httptest.NewRequest(http.MethodPost, "/api/query_documents", strings.NewReader(`not json`)),
	} {
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Please provide a 'query' parameter")
	}
	assert.Zero(t, q.calls, "no search for a missing query")
}

func TestQueryHandler_URLParams(t *testing.T) {
	q := &fakeQuerier{results: []search.Result{
		{Text: "Revenue grew.", Metadata: map[string]any{"source": "r.docx", "page": 1}, Score: 0.8},
	}}
	rec := httptest.NewRecorder()
	NewQueryHandler(q, 5, nil)(rec, httptest.NewRequest(http.MethodGet, "/api/query_documents?query=revenue&top_k=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "revenue", q.gotText)
	assert.Equal(t, 2, q.gotTopK)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "revenue", body["query"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "Revenue grew.", first["text"])
	assert.InDelta(t, 0.8, first["similarity_score"], 1e-9)
	assert.Equal(t, "r.docx", first["metadata"].(map[string]any)["source"])
}

func TestQueryHandler_TopKPrecedence(t *testing.T) {
	tests := []struct {
		name string
		url  string
		body string
		want int
	}{
		{"param over body", "/q?top_k=3", `{"query":"x","top_k":9}`, 3},
		{"body when no param", "/q", `{"query":"x","top_k":9}`, 9},
		{"default", "/q?query=x", "", 5},
		{"bad param uses body", "/q?top_k=many", `{"query":"x","top_k":4}`, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{}
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(http.MethodPost, tt.url, strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(http.MethodGet, tt.url, nil)
			}
			rec := httptest.NewRecorder()
			NewQueryHandler(q, 5, nil)(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "x", q.gotText)
			assert.Equal(t, tt.want, q.gotTopK)
		})
	}
}

func TestQueryHandler_EmptyResultsIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	NewQueryHandler(&fakeQuerier{}, 5, nil)(rec, httptest.NewRequest(http.MethodGet, "/q?query=x", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestQueryHandler_ErrorStatuses(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&search.StatusError{StatusCode: 503, Body: "busy"}, http.StatusBadGateway},
		{fmt.Errorf("%w: got 0", search.ErrInvalidTopK), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		NewQueryHandler(&fakeQuerier{err: tt.err}, 5, nil)(rec, httptest.NewRequest(http.MethodGet, "/q?query=x", nil))

		assert.Equal(t, tt.want, rec.Code)
		assert.Contains(t, rec.Body.String(), tt.err.Error())
	}
}

func TestQueryHandler_RecoversPanic(t *testing.T) {
	rec := httptest.NewRecorder()
	NewQueryHandler(&fakeQuerier{panics: true}, 5, nil)(rec, httptest.NewRequest(http.MethodGet, "/q?query=x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIngestHandler_Success(t *testing.T) {
	ing := &fakeIngester{result: &indexer.IngestResult{
		Chunks:      12,
		Written:     12,
		FailedFiles: []loader.FailedFile{{Path: "ingest/bad.pdf", Reason: "not a PDF file"}},
	}}
	rec := httptest.NewRecorder()
	NewIngestHandler(ing, "ingest", nil)(rec, httptest.NewRequest(http.MethodPost, "/api/ingest_documents", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ingest", ing.gotFolder)
	assert.False(t, ing.gotOpts.Clear)

	var body IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Successfully processed and ingested 12 document chunks.", body.Message)
	assert.Equal(t, 12, body.Written)
	require.Len(t, body.FailedFiles, 1)
	assert.Equal(t, "ingest/bad.pdf", body.FailedFiles[0].Path)
}

func TestIngestHandler_Clear(t *testing.T) {
	ing := &fakeIngester{result: &indexer.IngestResult{}}
	rec := httptest.NewRecorder()
	NewIngestHandler(ing, "ingest", nil)(rec, httptest.NewRequest(http.MethodPost, "/api/ingest_documents?clear=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ing.gotOpts.Clear)
	assert.Contains(t, rec.Body.String(), `"failed_files":[]`)
}

func TestIngestHandler_NoFiles(t *testing.T) {
	ing := &fakeIngester{err: fmt.Errorf("%w: ingest", loader.ErrNoFiles)}
	rec := httptest.NewRecorder()
	NewIngestHandler(ing, "ingest", nil)(rec, httptest.NewRequest(http.MethodGet, "/api/ingest_documents", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No files found in the ingest folder.")
}

func TestIngestHandler_Failure(t *testing.T) {
	ing := &fakeIngester{err: errors.New("write: connection reset")}
	rec := httptest.NewRecorder()
	NewIngestHandler(ing, "ingest", nil)(rec, httptest.NewRequest(http.MethodPost, "/api/ingest_documents", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection reset")
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(fakeStore{count: 42})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "connected", body.Store)
	require.NotNil(t, body.Records)
	assert.Equal(t, uint64(42), *body.Records)
	assert.NotEmpty(t, body.Timestamp)

	rec = httptest.NewRecorder()
	NewHealthHandler(fakeStore{err: errors.New("dial tcp: refused")})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
}

func TestNewMux_Routes(t *testing.T) {
	mux := NewMux(Routes{
		Pipeline:    &fakeIngester{result: &indexer.IngestResult{}},
		Engine:      &fakeQuerier{},
		Store:       fakeStore{},
		Folder:      "ingest",
		DefaultTopK: 5,
	})

	for path, want := range map[string]int{
		"/":                             http.StatusOK,
		"/health":                       http.StatusOK,
		"/api/query_documents":          http.StatusBadRequest,
		"/api/query_documents?query=hi": http.StatusOK,
		"/api/ingest_documents":         http.StatusOK,
		"/nope":                         http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}

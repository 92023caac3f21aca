package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docrag/internal/config"
)

// hashBackend returns deterministic token vectors derived from the input.
type hashBackend struct {
	dim    int
	inputs []string
}

func (b *hashBackend) Encode(_ context.Context, text string) ([][]float32, error) {
	b.inputs = append(b.inputs, text)
	words := strings.Fields(text)
	if len(words) == 0 {
		words = []string{""}
	}
	tokens := make([][]float32, len(words))
	for i, w := range words {
		vec := make([]float32, b.dim)
		for j := range vec {
			vec[j] = float32((len(w)+j*7+i)%11) + 1
		}
		tokens[i] = vec
	}
	return tokens, nil
}

type errBackend struct{ err error }

func (b errBackend) Encode(context.Context, string) ([][]float32, error) {
	return nil, b.err
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestEmbed_DeterministicUnitVectors(t *testing.T) {
	e := NewEmbedder(&hashBackend{dim: 8}, 8, 0, nil)
	ctx := context.Background()

	a, err := e.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "the quick brown fox")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestEmbed_ConstantDimension(t *testing.T) {
	e := NewEmbedder(&hashBackend{dim: 16}, 16, 0, nil)

	for _, text := range []string{"a", "two words", strings.Repeat("long text ", 500)} {
		vec, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Len(t, vec, e.Dimension())
	}
}

func TestEmbed_TruncatesInput(t *testing.T) {
	backend := &hashBackend{dim: 4}
	e := NewEmbedder(backend, 4, 10, nil)

	_, err := e.Embed(context.Background(), strings.Repeat("x", 100))
	require.NoError(t, err)

	require.Len(t, backend.inputs, 1)
	assert.Len(t, backend.inputs[0], 10*charsPerToken)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	e := NewEmbedder(&hashBackend{dim: 4}, 8, 0, nil)

	_, err := e.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEmbed_BackendError(t *testing.T) {
	boom := errors.New("connection refused")
	e := NewEmbedder(errBackend{err: boom}, 4, 0, nil)

	_, err := e.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, boom)
}

func TestNewFromConfig_TEI(t *testing.T) {
	e, err := NewFromConfig(config.EmbeddingConfig{
		Provider:  config.ProviderTEI,
		Model:     "sentence-transformers/all-MiniLM-L6-v2",
		BaseURL:   "http://localhost:8081",
		Dimension: 384,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", e.Model())
	assert.Equal(t, 384, e.Dimension())

	_, err = NewFromConfig(config.EmbeddingConfig{Provider: "word2vec"}, nil)
	assert.Error(t, err)
}

func TestMeanPool(t *testing.T) {
	pooled, ok := meanPool([][]float32{{1, 2}, {3, 6}})
	require.True(t, ok)
	assert.Equal(t, []float32{2, 4}, pooled)

	_, ok = meanPool(nil)
	assert.False(t, ok)

	_, ok = meanPool([][]float32{{1, 2}, {3}})
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestTruncate_Runes(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, strings.Repeat("é", 8), truncate(strings.Repeat("é", 20), 2))
}

func TestTEIBackend_PoolsTokenVectors(t *testing.T) {
	var got teiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed_all", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[[[1,0,0],[0,1,0]]]`))
	}))
	defer srv.Close()

	e := NewEmbedder(NewTEIBackend(srv.URL+"/", "secret"), 3, 0, nil)
	vec, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, "hello world", got.Inputs)
	assert.True(t, got.Truncate)
	assert.InDelta(t, 1/math.Sqrt2, vec[0], 1e-6)
	assert.InDelta(t, 1/math.Sqrt2, vec[1], 1e-6)
	assert.InDelta(t, 0, vec[2], 1e-6)
}

func TestTEIBackend_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewTEIBackend(srv.URL, "").Encode(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model loading")
}

func TestOpenAIBackend_Encode(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.5,0.5,0.5,0.5]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	backend, err := NewOpenAIBackend("sk-test", srv.URL+"/v1", "text-embedding-3-small", 4, 0)
	require.NoError(t, err)

	vec, err := NewEmbedder(backend, 4, 0, nil).Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-small", body["model"])
	assert.EqualValues(t, 4, body["dimensions"])
	assert.InDelta(t, 1.0, norm(vec), 1e-5)
}

func TestOpenAIBackend_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	backend, err := NewOpenAIBackend("sk-test", srv.URL, "text-embedding-3-small", 4, 3)
	require.NoError(t, err)

	_, err = backend.Encode(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewOpenAIBackend_RequiresKey(t *testing.T) {
	_, err := NewOpenAIBackend("", "", "text-embedding-3-small", 1536, 0)
	assert.Error(t, err)
}

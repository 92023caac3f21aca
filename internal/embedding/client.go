package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend produces one sequence-level vector per text using an
// OpenAI-compatible embeddings endpoint.
type OpenAIBackend struct {
	client     *openai.Client
	model      string
	dimension  int
	maxRetries uint64
}

// NewOpenAIBackend creates a backend for the given model. baseURL may be empty
// to use the public OpenAI API. maxRetries bounds retries on rate limiting only.
func NewOpenAIBackend(apiKey, baseURL, model string, dimension, maxRetries int) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("EMBEDDING_API_KEY or OPENAI_API_KEY environment variable not set")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(60 * time.Second),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	if maxRetries < 0 {
		maxRetries = 0
	}
	return &OpenAIBackend{
		client:     &client,
		model:      model,
		dimension:  dimension,
		maxRetries: uint64(maxRetries),
	}, nil
}

// Encode returns a single vector for text.
func (b *OpenAIBackend) Encode(ctx context.Context, text string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		params := openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: []string{text},
			},
			Model: b.model,
		}
		// Only the text-embedding-3 family accepts a requested size.
		if strings.HasPrefix(b.model, "text-embedding-3") && b.dimension > 0 {
			params.Dimensions = openai.Int(int64(b.dimension))
		}

		resp, err := b.client.Embeddings.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, b.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	return vectors, nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}

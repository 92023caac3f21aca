package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bull/docrag/internal/config"
)

const (
	scoreField    = "@search.score"
	textField     = "text"
	metadataField = "metadata"
)

// AzureIndex queries an Azure AI Search index over REST. Each call is a
// single request; failures are not retried.
type AzureIndex struct {
	endpoint   string
	index      string
	apiKey     string
	apiVersion string
	client     *http.Client
}

// NewAzureIndex creates a client for the index named in cfg.
func NewAzureIndex(cfg config.SearchConfig) *AzureIndex {
	return &AzureIndex{
		endpoint:   cfg.SearchEndpoint(),
		index:      cfg.Index,
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// URL returns the search endpoint for the index.
func (a *AzureIndex) URL() string {
	return fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		a.endpoint, url.PathEscape(a.index), url.QueryEscape(a.apiVersion))
}

// Search posts req and decodes the hits in service order.
func (a *AzureIndex) Search(ctx context.Context, req *Request) ([]Result, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrSearchFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return decodeAzureResults(body)
}

func decodeAzureResults(body []byte) ([]Result, error) {
	var payload struct {
		Value []map[string]json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrSearchFailed, err)
	}

	results := make([]Result, 0, len(payload.Value))
	for i, hit := range payload.Value {
		var r Result
		if raw, ok := hit[textField]; ok {
			if err := json.Unmarshal(raw, &r.Text); err != nil {
				return nil, fmt.Errorf("%w: hit %d text: %v", ErrSearchFailed, i, err)
			}
		}
		if raw, ok := hit[metadataField]; ok {
			if err := json.Unmarshal(raw, &r.Metadata); err != nil {
				return nil, fmt.Errorf("%w: hit %d metadata: %v", ErrSearchFailed, i, err)
			}
		}
		if raw, ok := hit[scoreField]; ok {
			if err := json.Unmarshal(raw, &r.Score); err != nil {
				return nil, fmt.Errorf("%w: hit %d score: %v", ErrSearchFailed, i, err)
			}
		}
		results = append(results, r)
	}
	return results, nil
}

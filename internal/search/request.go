// Package search answers natural-language queries with the stored chunks
// nearest to the query's embedding.
package search

const (
	vectorField = "embedding"
	vectorKind  = "vector"

	// DefaultSelect is the set of fields returned with each hit.
	DefaultSelect = "text,metadata"
)

// Request is the body of a hybrid search call: full-text on Search plus an
// exhaustive k-nearest-neighbour query on the embedding field.
type Request struct {
	Search        string        `json:"search"`
	Select        string        `json:"select,omitempty"`
	Top           int           `json:"top"`
	VectorQueries []VectorQuery `json:"vectorQueries"`
}

// VectorQuery asks for the K nearest documents to Vector.
type VectorQuery struct {
	Kind       string    `json:"kind"`
	Vector     []float32 `json:"vector"`
	K          int       `json:"k"`
	Fields     string    `json:"fields"`
	Exhaustive bool      `json:"exhaustive"`
}

// NewRequest builds the request for text and its embedding. top and k are
// both topK.
func NewRequest(text string, vector []float32, topK int, selectFields string) *Request {
	return &Request{
		Search: text,
		Select: selectFields,
		Top:    topK,
		VectorQueries: []VectorQuery{{
			Kind:       vectorKind,
			Vector:     vector,
			K:          topK,
			Fields:     vectorField,
			Exhaustive: true,
		}},
	}
}

// Result is one hit.
type Result struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"similarity_score"`
}

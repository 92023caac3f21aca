// Package mcp exposes query and ingestion as Model Context Protocol tools.
package mcp

// QueryDocumentsInput defines the input parameters for the query_documents tool.
type QueryDocumentsInput struct {
	// Query is the natural-language search text.
	Query string `json:"query" jsonschema:"the natural-language question or keywords to search for"`
	// TopK is the number of results to return.
	TopK int `json:"top_k,omitempty" jsonschema:"number of results to return; the server default is used when omitted"`
}

// QueryDocumentsOutput contains the ranked results.
type QueryDocumentsOutput struct {
	Query   string        `json:"query"`
	Results []QueryResult `json:"results"`
	// Message provides informational context (e.g., "No matching documents found").
	Message string `json:"message,omitempty"`
}

// QueryResult is a single matching chunk.
type QueryResult struct {
	Text            string         `json:"text"`
	Metadata        map[string]any `json:"metadata"`
	SimilarityScore float64        `json:"similarity_score"`
}

// IngestDocumentsInput defines the input parameters for the ingest_documents tool.
type IngestDocumentsInput struct {
	// Clear deletes every stored record before ingesting.
	Clear bool `json:"clear,omitempty" jsonschema:"delete all stored records before ingesting"`
}

// IngestDocumentsOutput reports the outcome of an ingestion run.
type IngestDocumentsOutput struct {
	Message     string       `json:"message"`
	Files       int          `json:"files"`
	Chunks      int          `json:"chunks"`
	Written     int          `json:"written"`
	Cleared     int          `json:"cleared"`
	FailedFiles []FailedFile `json:"failed_files"`
}

// FailedFile is a file that could not be parsed.
type FailedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

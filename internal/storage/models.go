package storage

// Record is one stored chunk: its text, the vector it was embedded to and
// where it came from.
type Record struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding"`
	Metadata  RecordMetadata `json:"metadata"`
}

// RecordMetadata identifies the origin of a record.
type RecordMetadata struct {
	Source string `json:"source"` // file path, or "unknown"
	Page   int    `json:"page"`   // page number, row index or position in the batch
}

// ScoredRecord is a record returned by similarity search. Embedding is not
// populated.
type ScoredRecord struct {
	Record
	Score float64
}

// Payload keys.
const (
	fieldDatabase = "database"
	fieldText     = "text"
	fieldMetadata = "metadata"
	fieldSource   = "source"
	fieldPage     = "page"
)

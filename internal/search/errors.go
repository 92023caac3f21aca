package search

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuery   = errors.New("query text is empty")
	ErrInvalidTopK  = errors.New("top_k must be positive")
	ErrSearchFailed = errors.New("search request failed")
)

// StatusError is returned when the search service answers with a non-2xx
// status. It wraps ErrSearchFailed.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search service returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrSearchFailed
}

package storage

import "errors"

var (
	ErrStoreUnreachable  = errors.New("document store unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidStoreURL   = errors.New("invalid document store url")
)

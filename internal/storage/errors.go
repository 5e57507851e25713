package storage

import "errors"

var (
	ErrStoreUnreachable  = errors.New("vector store unreachable")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidPayload    = errors.New("invalid point payload")
	ErrPointNotFound     = errors.New("point not found")
)

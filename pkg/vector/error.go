package vector

import "errors"

var (
	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrDimensionMismatch is returned when a record's embedding does not
	// match the index dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

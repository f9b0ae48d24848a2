package rag

import "errors"

var (
	// ErrConfiguration indicates an invalid or incomplete configuration,
	// detected at construction time rather than first use.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrExtractionUnavailable indicates the document yielded no extractable
	// text.
	ErrExtractionUnavailable = errors.New("text extraction unavailable")

	// ErrEmbeddingUnavailable indicates the embedding backend could not
	// produce vectors.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrGenerationUnavailable indicates the generation backend could not
	// produce an answer.
	ErrGenerationUnavailable = errors.New("generation backend unavailable")

	// ErrIndexIntegrity indicates the vector index disagrees with the
	// document store (orphaned vectors or missing chunks).
	ErrIndexIntegrity = errors.New("index integrity violation")
)

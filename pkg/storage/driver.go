// Package storage
package storage

import (
	"context"

	"github.com/passagehq/passage/pkg/rag"
)

// Driver defines the interface for persisting documents and their derived
// chunks. The store is the system of record the vector index is reconciled
// against: a chunk ID present in the index but absent here is an orphan.
type Driver interface {
	// PutDocument stores a document together with ALL of its chunks,
	// replacing any previously stored document and chunks under the same ID.
	// Returns true when an existing document was replaced. The write is
	// atomic: either the new document and every chunk land, or nothing
	// changes.
	PutDocument(ctx context.Context, doc *rag.Document, chunks []rag.Chunk) (bool, error)

	// GetDocument retrieves a document by ID. Returns NotFoundError when the
	// document does not exist.
	GetDocument(ctx context.Context, id string) (*rag.Document, error)

	// ListDocuments returns all stored documents ordered by ID.
	ListDocuments(ctx context.Context) ([]*rag.Document, error)

	// DeleteDocument removes a document and all of its chunks. Returns
	// NotFoundError when the document does not exist.
	DeleteDocument(ctx context.Context, id string) error

	// Chunks returns a document's chunks ordered by index. Returns
	// NotFoundError when the document does not exist.
	Chunks(ctx context.Context, documentID string) ([]rag.Chunk, error)

	// ChunkIDs returns every stored chunk ID in ascending order, across all
	// documents. The integrity check diffs this against the index.
	ChunkIDs(ctx context.Context) ([]string, error)

	// Stats reports store-wide counts for the status surfaces.
	Stats(ctx context.Context) (*Stats, error)

	// Close closes the store and releases any resources.
	Close() error
}

// Stats summarizes the store contents.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

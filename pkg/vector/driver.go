// Package vector provides interfaces and implementations for chunk vector storage and search.
package vector

import "context"

// Record is an indexed chunk with its embedding and provenance.
type Record struct {
	// ChunkID is the unique identifier for the chunk.
	ChunkID string

	// DocumentID is the document this chunk belongs to.
	DocumentID string

	// Text is the chunk's text, stored alongside the embedding so search
	// results hydrate without a second lookup.
	Text string

	// Start and End are the chunk's rune offsets in the source text.
	Start int
	End   int

	// Embedding is the vector representation of Text. Callers normalize
	// before upserting so cosine similarity reduces to a dot product.
	Embedding []float32

	// Metadata holds document-level key/value pairs used for filtering.
	Metadata map[string]string
}

// SearchResult is a record with its similarity score.
type SearchResult struct {
	Record

	// Score is the cosine similarity (higher = more similar).
	Score float32
}

// Filters restrict search candidates before ranking.
type Filters struct {
	// DocumentIDs limits candidates to these documents when non-empty.
	DocumentIDs []string

	// Metadata requires exact matches on every listed key.
	Metadata map[string]string
}

// Empty reports whether the filters impose no restriction.
func (f Filters) Empty() bool {
	return len(f.DocumentIDs) == 0 && len(f.Metadata) == 0
}

// Driver handles storage and similarity search of chunk embeddings.
type Driver interface {
	// Upsert stores records, replacing any existing record with the same
	// ChunkID.
	Upsert(ctx context.Context, records []Record) error

	// Delete removes records by chunk ID. Unknown IDs are ignored.
	Delete(ctx context.Context, chunkIDs []string) error

	// DeleteByDocument removes every record belonging to the document.
	// Deleting an absent document is a no-op, never an error.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Search returns the k most similar records to the embedding, scores
	// descending with ties broken by ascending ChunkID. Filters restrict
	// the candidate set before ranking. k larger than the candidate set
	// returns what exists.
	Search(ctx context.Context, embedding []float32, k int, filters Filters) ([]SearchResult, error)

	// ChunkIDs returns every indexed chunk ID in ascending order.
	ChunkIDs(ctx context.Context) ([]string, error)

	// Count returns the number of indexed records.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}

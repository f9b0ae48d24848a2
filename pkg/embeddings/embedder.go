// Package embeddings
package embeddings

import "context"

// BatchResult holds the outcome of embedding a batch of texts. Vectors and
// Errs are index-aligned with the input: a failed item carries its error at
// its index while successful siblings keep their vectors.
type BatchResult struct {
	Vectors [][]float32
	Errs    []error
}

// FirstError returns the first per-item error in the batch, or nil when
// every item embedded successfully.
func (r BatchResult) FirstError() error {
	for _, err := range r.Errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts a batch of texts into vector embeddings. The
	// result is index-aligned with texts and reports per-item failures in
	// BatchResult.Errs; the returned error is reserved for failures that
	// invalidate the whole batch.
	EmbedBatch(ctx context.Context, texts []string) (BatchResult, error)

	// Close releases any resources held by the embedder.
	Close() error
}

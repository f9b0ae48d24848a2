// Package cache wraps an Embedder with content-addressed vector caching.
// Embedding the same text with the same model is deterministic, so a cache
// hit replaces a backend call entirely.
package cache

import (
	"context"

	"github.com/passagehq/passage/pkg/embeddings"
	"github.com/passagehq/passage/pkg/utils"
)

// Store persists embedding vectors keyed by model and content hash.
type Store interface {
	// Get returns the cached vector for (modelID, contentHash), reporting
	// whether it was present.
	Get(ctx context.Context, modelID, contentHash string) ([]float32, bool, error)

	// Put stores a vector under (modelID, contentHash). Writing an existing
	// key is a no-op.
	Put(ctx context.Context, modelID, contentHash string, vector []float32) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder serves embeddings from a Store, falling back to the wrapped
// embedder on miss.
type Embedder struct {
	next    embeddings.Embedder
	store   Store
	modelID string
}

// New wraps next with the given store. The modelID keys cache entries so
// switching models never serves stale vectors.
func New(next embeddings.Embedder, store Store, modelID string) *Embedder {
	return &Embedder{
		next:    next,
		store:   store,
		modelID: modelID,
	}
}

// Embed returns the cached vector for text when present, otherwise embeds
// through the wrapped embedder and stores the result. Store failures are
// non-fatal; the vector is still returned.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := utils.HashText(text)
	if vector, ok, err := e.store.Get(ctx, e.modelID, hash); err == nil && ok {
		return vector, nil
	}

	vector, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	_ = e.store.Put(ctx, e.modelID, hash, vector)
	return vector, nil
}

// EmbedBatch serves cached items directly and embeds only the misses. When
// the backend call for the misses fails, cached items keep their vectors and
// each missed index carries the error, per the partial-batch contract.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) (embeddings.BatchResult, error) {
	if len(texts) == 0 {
		return embeddings.BatchResult{}, nil
	}

	result := embeddings.BatchResult{
		Vectors: make([][]float32, len(texts)),
		Errs:    make([]error, len(texts)),
	}

	var missIdx []int
	var missTexts []string
	hashes := make([]string, len(texts))

	for i, text := range texts {
		hashes[i] = utils.HashText(text)
		if vector, ok, err := e.store.Get(ctx, e.modelID, hashes[i]); err == nil && ok {
			result.Vectors[i] = vector
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missIdx) == 0 {
		return result, nil
	}

	sub, err := e.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		for _, i := range missIdx {
			result.Errs[i] = err
		}
		return result, nil
	}

	for j, i := range missIdx {
		if sub.Errs[j] != nil {
			result.Errs[i] = sub.Errs[j]
			continue
		}
		result.Vectors[i] = sub.Vectors[j]
		_ = e.store.Put(ctx, e.modelID, hashes[i], sub.Vectors[j])
	}

	return result, nil
}

// Close releases the store and the wrapped embedder.
func (e *Embedder) Close() error {
	if err := e.store.Close(); err != nil {
		e.next.Close()
		return err
	}
	return e.next.Close()
}

// Ensure Embedder implements embeddings.Embedder
var _ embeddings.Embedder = (*Embedder)(nil)

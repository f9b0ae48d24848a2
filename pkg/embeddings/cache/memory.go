package cache

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps cached vectors in process memory. Entries never expire;
// the cache lives only as long as the process.
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore creates an in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		c: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get returns the cached vector for (modelID, contentHash).
func (s *MemoryStore) Get(_ context.Context, modelID, contentHash string) ([]float32, bool, error) {
	x, found := s.c.Get(modelID + ":" + contentHash)
	if !found {
		return nil, false, nil
	}

	vector, ok := x.([]float32)
	if !ok {
		return nil, false, nil
	}
	return vector, true, nil
}

// Put stores a vector under (modelID, contentHash).
func (s *MemoryStore) Put(_ context.Context, modelID, contentHash string, vector []float32) error {
	s.c.Set(modelID+":"+contentHash, vector, gocache.NoExpiration)
	return nil
}

// Close releases resources held by the store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

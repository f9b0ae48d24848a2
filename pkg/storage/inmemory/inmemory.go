package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex guarding both maps
	mu sync.RWMutex

	// documents maps document ID to the stored document
	documents map[string]*rag.Document

	// chunks maps document ID to that document's chunks, ordered by index
	chunks map[string][]rag.Chunk
}

// NewDriver creates a new in-memory document store.
func NewDriver() *Driver {
	return &Driver{
		documents: make(map[string]*rag.Document),
		chunks:    make(map[string][]rag.Chunk),
	}
}

// PutDocument stores a document and all of its chunks, replacing any prior
// version under the same ID. Returns true if a document was replaced.
func (s *Driver) PutDocument(_ context.Context, doc *rag.Document, chunks []rag.Chunk) (bool, error) {
	if doc == nil {
		return false, errors.New("cannot store nil document")
	}
	if doc.ID == "" {
		return false, errors.New("cannot store document without ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, replaced := s.documents[doc.ID]

	stored := *doc
	s.documents[doc.ID] = &stored
	s.chunks[doc.ID] = append([]rag.Chunk(nil), chunks...)

	return replaced, nil
}

// GetDocument retrieves a document by its ID.
func (s *Driver) GetDocument(_ context.Context, id string) (*rag.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, storage.NotFoundError{DocumentID: id}
	}

	return doc, nil
}

// ListDocuments returns all stored documents ordered by ID.
func (s *Driver) ListDocuments(_ context.Context) ([]*rag.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*rag.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ID < docs[j].ID
	})

	return docs, nil
}

// DeleteDocument removes a document and its chunks.
func (s *Driver) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return storage.NotFoundError{DocumentID: id}
	}

	delete(s.documents, id)
	delete(s.chunks, id)

	return nil
}

// Chunks returns a document's chunks ordered by index.
func (s *Driver) Chunks(_ context.Context, documentID string) ([]rag.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.documents[documentID]; !ok {
		return nil, storage.NotFoundError{DocumentID: documentID}
	}

	return append([]rag.Chunk(nil), s.chunks[documentID]...), nil
}

// ChunkIDs returns every stored chunk ID in ascending order.
func (s *Driver) ChunkIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, chunks := range s.chunks {
		for _, c := range chunks {
			ids = append(ids, c.ID)
		}
	}

	sort.Strings(ids)
	return ids, nil
}

// Stats reports document and chunk counts.
func (s *Driver) Stats(_ context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, chunks := range s.chunks {
		total += len(chunks)
	}

	return &storage.Stats{
		Documents: len(s.documents),
		Chunks:    total,
	}, nil
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}

// Ensure Driver implements storage.Driver
var _ storage.Driver = (*Driver)(nil)

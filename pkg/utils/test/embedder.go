package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/passagehq/passage/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
type MockEmbedder struct {
	mu sync.Mutex

	// Embeddings maps input text to its embedding. Texts not in the map get
	// DefaultVector.
	Embeddings map[string][]float32

	// DefaultVector is returned for texts absent from Embeddings.
	DefaultVector []float32

	// FailOn causes Embed and EmbedBatch to fail when the input text matches.
	FailOn string

	// EmbedCalls counts Embed invocations; BatchCalls counts EmbedBatch
	// invocations.
	EmbedCalls int
	BatchCalls int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings:    make(map[string][]float32),
		DefaultVector: []float32{0.1, 0.2, 0.3},
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmbedCalls++

	return m.lookup(text)
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) (embeddings.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchCalls++

	result := embeddings.BatchResult{
		Vectors: make([][]float32, len(texts)),
		Errs:    make([]error, len(texts)),
	}
	for i, text := range texts {
		vector, err := m.lookup(text)
		if err != nil {
			result.Errs[i] = err
			continue
		}
		result.Vectors[i] = vector
	}

	return result, nil
}

func (m *MockEmbedder) lookup(text string) ([]float32, error) {
	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	return m.DefaultVector, nil
}

func (m *MockEmbedder) Close() error {
	return nil
}

// Ensure MockEmbedder implements embeddings.Embedder
var _ embeddings.Embedder = (*MockEmbedder)(nil)

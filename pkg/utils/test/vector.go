package testutils

import (
	"context"
	"sync"

	"github.com/passagehq/passage/pkg/vector"
)

// MockVectorDriver is a call-recording vector driver with injectable
// failures. Use pkg/vector/memory for tests that need real search behavior.
type MockVectorDriver struct {
	mu sync.Mutex

	// Records holds the current contents keyed by chunk ID.
	Records map[string]vector.Record

	// Results is returned by Search, truncated to k.
	Results []vector.SearchResult

	// UpsertErr, DeleteErr, and SearchErr are returned by the matching
	// operation when set.
	UpsertErr error
	DeleteErr error
	SearchErr error

	// UpsertCalls and SearchCalls count invocations.
	UpsertCalls int
	SearchCalls int

	// LastSearchK and LastSearchFilters record the arguments of the most
	// recent Search call.
	LastSearchK       int
	LastSearchFilters vector.Filters
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Records: make(map[string]vector.Record),
	}
}

func (m *MockVectorDriver) Upsert(_ context.Context, records []vector.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++

	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	for _, r := range records {
		m.Records[r.ChunkID] = r
	}
	return nil
}

func (m *MockVectorDriver) Delete(_ context.Context, chunkIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	for _, id := range chunkIDs {
		delete(m.Records, id)
	}
	return nil
}

func (m *MockVectorDriver) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	for id, r := range m.Records {
		if r.DocumentID == documentID {
			delete(m.Records, id)
		}
	}
	return nil
}

func (m *MockVectorDriver) Search(_ context.Context, _ []float32, k int, filters vector.Filters) ([]vector.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCalls++
	m.LastSearchK = k
	m.LastSearchFilters = filters

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	if k > len(m.Results) {
		k = len(m.Results)
	}
	if k < 0 {
		k = 0
	}
	return m.Results[:k], nil
}

func (m *MockVectorDriver) ChunkIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.Records))
	for id := range m.Records {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockVectorDriver) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records), nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

// Ensure MockVectorDriver implements vector.Driver
var _ vector.Driver = (*MockVectorDriver)(nil)

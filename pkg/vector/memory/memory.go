// Package memory provides an in-memory vector driver using brute-force search.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/passagehq/passage/pkg/vector"
)

// Driver implements vector.Driver with an in-memory map and exhaustive
// dot-product scoring. Embeddings are expected to be unit length.
type Driver struct {
	mu sync.RWMutex

	// records maps chunk ID to its record.
	records map[string]vector.Record

	// dimensions is fixed by the first upserted record.
	dimensions int
}

// NewDriver creates an empty in-memory vector driver.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]vector.Record),
	}
}

// Upsert stores records, replacing existing chunk IDs.
func (d *Driver) Upsert(_ context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range records {
		if d.dimensions == 0 {
			d.dimensions = len(r.Embedding)
		}
		if len(r.Embedding) != d.dimensions {
			return fmt.Errorf("%w: expected %d, got %d for chunk %s",
				vector.ErrDimensionMismatch, d.dimensions, len(r.Embedding), r.ChunkID)
		}
		d.records[r.ChunkID] = r
	}

	return nil
}

// Delete removes records by chunk ID.
func (d *Driver) Delete(_ context.Context, chunkIDs []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range chunkIDs {
		delete(d.records, id)
	}
	return nil
}

// DeleteByDocument removes every record belonging to the document.
func (d *Driver) DeleteByDocument(_ context.Context, documentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, r := range d.records {
		if r.DocumentID == documentID {
			delete(d.records, id)
		}
	}
	return nil
}

// Search scores every candidate passing the filters and returns the top k.
func (d *Driver) Search(_ context.Context, embedding []float32, k int, filters vector.Filters) ([]vector.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var results []vector.SearchResult
	for _, r := range d.records {
		if !matches(r, filters) {
			continue
		}
		results = append(results, vector.SearchResult{
			Record: r,
			Score:  dot(r.Embedding, embedding),
		})
	}

	vector.SortResults(results)
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// ChunkIDs returns every indexed chunk ID in ascending order.
func (d *Driver) ChunkIDs(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.records))
	for id := range d.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of indexed records.
func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.records), nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return nil
}

// matches reports whether the record passes the filters.
func matches(r vector.Record, f vector.Filters) bool {
	if len(f.DocumentIDs) > 0 {
		found := false
		for _, id := range f.DocumentIDs {
			if r.DocumentID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for k, v := range f.Metadata {
		if r.Metadata[k] != v {
			return false
		}
	}
	return true
}

// dot computes the dot product over the shared prefix of a and b.
func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Ensure Driver implements vector.Driver
var _ vector.Driver = (*Driver)(nil)

// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for chunk embeddings.
	DefaultCollectionName = "passage"

	// Reserved metadata keys carrying chunk provenance. User metadata keys
	// are stored alongside them.
	metaDocumentID  = "document_id"
	metaStartOffset = "start_offset"
	metaEndOffset   = "end_offset"
)

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *zap.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string
}

// NewDriver creates a new Chroma vector driver and ensures the collection
// exists with cosine distance.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	d := &Driver{
		baseURL:        c.URL,
		collectionName: collectionName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	collectionID, err := d.getOrCreateCollection(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: getting or creating collection %q: %v", vector.ErrConnection, collectionName, err)
	}
	d.collectionID = collectionID

	logger.Info("connected to Chroma",
		zap.String("url", c.URL),
		zap.String("collection", collectionName),
		zap.String("collection_id", collectionID),
	)

	return d, nil
}

// getOrCreateCollection gets an existing collection or creates a new one
// configured for cosine distance.
func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	// Try to get existing collection first
	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s", d.baseURL, d.collectionName)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("creating get request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending get request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var collection chromaCollection
		if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
			return "", fmt.Errorf("decoding collection response: %w", err)
		}
		return collection.ID, nil
	}

	// Collection doesn't exist, create it. hnsw:space pins the distance
	// function so scores stay 1 - cosine distance.
	createURL := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections", d.baseURL)
	createBody := chromaCreateCollectionRequest{
		Name:     d.collectionName,
		Metadata: map[string]any{"hnsw:space": "cosine"},
	}
	jsonBody, err := json.Marshal(createBody)
	if err != nil {
		return "", fmt.Errorf("marshaling create request: %w", err)
	}

	req, err = http.NewRequestWithContext(ctx, "POST", createURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err = d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending create request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to create collection: status %d: %s", resp.StatusCode, string(body))
	}

	var collection chromaCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return "", fmt.Errorf("decoding create response: %w", err)
	}

	return collection.ID, nil
}

// post issues a JSON POST to a collection endpoint and returns the response
// body on 2xx status.
func (d *Driver) post(ctx context.Context, endpoint string, body any) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", endpoint, err)
	}

	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s/%s", d.baseURL, d.collectionID, endpoint)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s failed: status %d: %s", endpoint, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// Upsert stores records, replacing any existing record with the same chunk ID.
func (d *Driver) Upsert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	documents := make([]string, len(records))
	metadatas := make([]map[string]any, len(records))

	for i, r := range records {
		ids[i] = r.ChunkID
		embeddings[i] = r.Embedding
		documents[i] = r.Text

		meta := map[string]any{
			metaDocumentID:  r.DocumentID,
			metaStartOffset: r.Start,
			metaEndOffset:   r.End,
		}
		for k, v := range r.Metadata {
			meta[k] = v
		}
		metadatas[i] = meta
	}

	_, err := d.post(ctx, "upsert", chromaUpsertRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Documents:  documents,
		Metadatas:  metadatas,
	})
	if err != nil {
		return err
	}

	d.logger.Debug("upserted chunks to chroma",
		zap.Int("count", len(records)),
	)

	return nil
}

// Delete removes records by chunk ID. Unknown IDs are ignored.
func (d *Driver) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	if _, err := d.post(ctx, "delete", chromaDeleteRequest{IDs: chunkIDs}); err != nil {
		return err
	}

	d.logger.Debug("deleted chunks from chroma",
		zap.Int("count", len(chunkIDs)),
	)

	return nil
}

// DeleteByDocument removes every record belonging to the document.
func (d *Driver) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := d.post(ctx, "delete", chromaDeleteRequest{
		Where: map[string]any{metaDocumentID: documentID},
	})
	if err != nil {
		return err
	}

	d.logger.Debug("deleted document from chroma",
		zap.String("document_id", documentID),
	)

	return nil
}

// Search returns the k most similar records to the embedding.
func (d *Driver) Search(ctx context.Context, embedding []float32, k int, filters vector.Filters) ([]vector.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	reqBody := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        k,
		Include:         []string{"documents", "metadatas", "distances"},
		Where:           buildWhere(filters),
	}

	respBody, err := d.post(ctx, "query", reqBody)
	if err != nil {
		return nil, err
	}

	var queryResp chromaQueryResponse
	if err := json.Unmarshal(respBody, &queryResp); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}

	var results []vector.SearchResult

	// Process first group (we only query with one embedding)
	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return results, nil
	}

	ids := queryResp.IDs[0]
	distances := queryResp.Distances[0]

	var documents []string
	if len(queryResp.Documents) > 0 {
		documents = queryResp.Documents[0]
	}

	var metadatas []map[string]any
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}

	for i, id := range ids {
		r := vector.Record{ChunkID: id}

		if i < len(documents) {
			r.Text = documents[i]
		}

		if i < len(metadatas) && metadatas[i] != nil {
			hydrateFromMetadata(&r, metadatas[i])
		}

		var score float32
		if i < len(distances) {
			// Cosine distance is 1 - similarity, so invert it back.
			score = 1.0 - distances[i]
		}

		results = append(results, vector.SearchResult{
			Record: r,
			Score:  score,
		})
	}

	vector.SortResults(results)

	d.logger.Debug("queried chroma",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// ChunkIDs returns every indexed chunk ID in ascending order.
func (d *Driver) ChunkIDs(ctx context.Context) ([]string, error) {
	respBody, err := d.post(ctx, "get", chromaGetRequest{Include: []string{}})
	if err != nil {
		return nil, err
	}

	var getResp chromaGetResponse
	if err := json.Unmarshal(respBody, &getResp); err != nil {
		return nil, fmt.Errorf("decoding get response: %w", err)
	}

	ids := append([]string(nil), getResp.IDs...)
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of indexed records.
func (d *Driver) Count(ctx context.Context) (int, error) {
	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s/count", d.baseURL, d.collectionID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating count request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending count request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("count failed: status %d: %s", resp.StatusCode, string(body))
	}

	var count int
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}

	return count, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// buildWhere renders filters as a Chroma where clause, or nil for none.
func buildWhere(f vector.Filters) map[string]any {
	var conds []map[string]any

	if len(f.DocumentIDs) > 0 {
		if len(f.DocumentIDs) == 1 {
			conds = append(conds, map[string]any{metaDocumentID: f.DocumentIDs[0]})
		} else {
			in := make([]any, len(f.DocumentIDs))
			for i, id := range f.DocumentIDs {
				in[i] = id
			}
			conds = append(conds, map[string]any{metaDocumentID: map[string]any{"$in": in}})
		}
	}

	for k, v := range f.Metadata {
		conds = append(conds, map[string]any{k: v})
	}

	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	default:
		return map[string]any{"$and": conds}
	}
}

// hydrateFromMetadata fills record provenance from stored Chroma metadata.
// Remaining keys become the record's user metadata.
func hydrateFromMetadata(r *vector.Record, meta map[string]any) {
	for k, v := range meta {
		switch k {
		case metaDocumentID:
			if s, ok := v.(string); ok {
				r.DocumentID = s
			}
		case metaStartOffset:
			if n, ok := v.(float64); ok {
				r.Start = int(n)
			}
		case metaEndOffset:
			if n, ok := v.(float64); ok {
				r.End = int(n)
			}
		default:
			if s, ok := v.(string); ok {
				if r.Metadata == nil {
					r.Metadata = make(map[string]string)
				}
				r.Metadata[k] = s
			}
		}
	}
}

// Ensure Driver implements vector.Driver
var _ vector.Driver = (*Driver)(nil)

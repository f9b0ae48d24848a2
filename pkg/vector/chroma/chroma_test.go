package chroma_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/vector"
	"github.com/passagehq/passage/pkg/vector/chroma"
)

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

// fakeChroma is a minimal in-process stand-in for the Chroma REST API that
// records request bodies for assertions.
type fakeChroma struct {
	mu sync.Mutex

	server *httptest.Server

	collectionExists bool
	createBody       map[string]any
	upsertBody       map[string]any
	queryBody        map[string]any
	deleteBody       map[string]any

	queryResponse map[string]any
	getResponse   map[string]any
	count         int
}

func newFakeChroma() *fakeChroma {
	f := &fakeChroma{
		queryResponse: map[string]any{
			"ids":       [][]string{},
			"distances": [][]float32{},
			"documents": [][]string{},
			"metadatas": [][]map[string]any{},
		},
		getResponse: map[string]any{"ids": []string{}},
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET "+collectionsPath+"/passage", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		exists := f.collectionExists
		f.mu.Unlock()
		if !exists {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{"id": "col-1", "name": "passage"})
	})

	mux.HandleFunc("POST "+collectionsPath, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.collectionExists = true
		f.createBody = decodeBody(r)
		f.mu.Unlock()
		writeJSON(w, map[string]string{"id": "col-1", "name": "passage"})
	})

	mux.HandleFunc("POST "+collectionsPath+"/col-1/upsert", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.upsertBody = decodeBody(r)
		f.mu.Unlock()
		writeJSON(w, map[string]any{})
	})

	mux.HandleFunc("POST "+collectionsPath+"/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.queryBody = decodeBody(r)
		resp := f.queryResponse
		f.mu.Unlock()
		writeJSON(w, resp)
	})

	mux.HandleFunc("POST "+collectionsPath+"/col-1/get", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		resp := f.getResponse
		f.mu.Unlock()
		writeJSON(w, resp)
	})

	mux.HandleFunc("POST "+collectionsPath+"/col-1/delete", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleteBody = decodeBody(r)
		f.mu.Unlock()
		writeJSON(w, []string{})
	})

	mux.HandleFunc("GET "+collectionsPath+"/col-1/count", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		count := f.count
		f.mu.Unlock()
		writeJSON(w, count)
	})

	f.server = httptest.NewServer(mux)
	return f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request) map[string]any {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body
}

var _ = Describe("Driver", func() {
	var (
		fake   *fakeChroma
		driver *chroma.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		fake = newFakeChroma()
		ctx = context.Background()

		var err error
		driver, err = chroma.NewDriver(ctx, chroma.Config{URL: fake.server.URL}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		fake.server.Close()
	})

	Describe("NewDriver", func() {
		It("returns an error when URL is empty", func() {
			_, err := chroma.NewDriver(ctx, chroma.Config{URL: ""}, zap.NewNop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("chroma URL is required"))
		})

		It("creates the collection with cosine distance when absent", func() {
			Expect(fake.createBody).To(HaveKeyWithValue("name", "passage"))
			metadata, ok := fake.createBody["metadata"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(metadata).To(HaveKeyWithValue("hnsw:space", "cosine"))
		})

		It("reuses an existing collection", func() {
			d2, err := chroma.NewDriver(ctx, chroma.Config{URL: fake.server.URL}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			Expect(d2).NotTo(BeNil())
		})

		It("implements vector.Driver", func() {
			var _ vector.Driver = (*chroma.Driver)(nil)
		})
	})

	Describe("Upsert", func() {
		It("sends ids, embeddings, documents, and provenance metadata", func() {
			err := driver.Upsert(ctx, []vector.Record{
				{
					ChunkID:    "doc1_chunk_0",
					DocumentID: "doc1",
					Text:       "hello world",
					Start:      0,
					End:        11,
					Embedding:  []float32{1, 0},
					Metadata:   map[string]string{"filename": "a.txt"},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(fake.upsertBody["ids"]).To(Equal([]any{"doc1_chunk_0"}))
			Expect(fake.upsertBody["documents"]).To(Equal([]any{"hello world"}))

			metadatas, ok := fake.upsertBody["metadatas"].([]any)
			Expect(ok).To(BeTrue())
			meta := metadatas[0].(map[string]any)
			Expect(meta).To(HaveKeyWithValue("document_id", "doc1"))
			Expect(meta).To(HaveKeyWithValue("filename", "a.txt"))
			Expect(meta).To(HaveKeyWithValue("end_offset", float64(11)))
		})

		It("skips the request for an empty batch", func() {
			Expect(driver.Upsert(ctx, nil)).To(Succeed())
			Expect(fake.upsertBody).To(BeNil())
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			fake.queryResponse = map[string]any{
				"ids":       [][]string{{"doc1_chunk_0", "doc1_chunk_1"}},
				"distances": [][]float32{{0.1, 0.4}},
				"documents": [][]string{{"first text", "second text"}},
				"metadatas": [][]map[string]any{{
					{"document_id": "doc1", "start_offset": float64(0), "end_offset": float64(10)},
					{"document_id": "doc1", "start_offset": float64(8), "end_offset": float64(20), "filename": "a.txt"},
				}},
			}
		})

		It("converts distances to similarity scores and hydrates records", func() {
			results, err := driver.Search(ctx, []float32{1, 0}, 2, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))

			Expect(results[0].ChunkID).To(Equal("doc1_chunk_0"))
			Expect(results[0].Score).To(BeNumerically("~", 0.9, 0.001))
			Expect(results[0].Text).To(Equal("first text"))
			Expect(results[0].DocumentID).To(Equal("doc1"))

			Expect(results[1].ChunkID).To(Equal("doc1_chunk_1"))
			Expect(results[1].Score).To(BeNumerically("~", 0.6, 0.001))
			Expect(results[1].Start).To(Equal(8))
			Expect(results[1].End).To(Equal(20))
			Expect(results[1].Metadata).To(HaveKeyWithValue("filename", "a.txt"))
		})

		It("sends no where clause without filters", func() {
			_, err := driver.Search(ctx, []float32{1, 0}, 2, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.queryBody).NotTo(HaveKey("where"))
		})

		It("renders a single document filter as a direct clause", func() {
			_, err := driver.Search(ctx, []float32{1, 0}, 2, vector.Filters{
				DocumentIDs: []string{"doc1"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.queryBody["where"]).To(Equal(map[string]any{"document_id": "doc1"}))
		})

		It("renders multiple filters as an $and clause", func() {
			_, err := driver.Search(ctx, []float32{1, 0}, 2, vector.Filters{
				DocumentIDs: []string{"doc1", "doc2"},
				Metadata:    map[string]string{"filename": "a.txt"},
			})
			Expect(err).NotTo(HaveOccurred())

			where, ok := fake.queryBody["where"].(map[string]any)
			Expect(ok).To(BeTrue())
			conds, ok := where["$and"].([]any)
			Expect(ok).To(BeTrue())
			Expect(conds).To(HaveLen(2))
		})

		It("returns nothing for k <= 0 without calling the server", func() {
			results, err := driver.Search(ctx, []float32{1, 0}, 0, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
			Expect(fake.queryBody).To(BeNil())
		})
	})

	Describe("Delete", func() {
		It("deletes by chunk IDs", func() {
			Expect(driver.Delete(ctx, []string{"doc1_chunk_0"})).To(Succeed())
			Expect(fake.deleteBody["ids"]).To(Equal([]any{"doc1_chunk_0"}))
		})

		It("deletes a document via a where clause", func() {
			Expect(driver.DeleteByDocument(ctx, "doc1")).To(Succeed())
			Expect(fake.deleteBody["where"]).To(Equal(map[string]any{"document_id": "doc1"}))
		})
	})

	Describe("ChunkIDs", func() {
		It("returns ids in ascending order", func() {
			fake.getResponse = map[string]any{"ids": []string{"b_chunk_0", "a_chunk_0"}}

			ids, err := driver.ChunkIDs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"a_chunk_0", "b_chunk_0"}))
		})
	})

	Describe("Count", func() {
		It("returns the collection count", func() {
			fake.count = 42

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(42))
		})
	})
})

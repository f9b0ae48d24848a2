package ingest_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/chunk"
	"github.com/passagehq/passage/pkg/embeddings"
	"github.com/passagehq/passage/pkg/ingest"
	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/storage/inmemory"
	testutils "github.com/passagehq/passage/pkg/utils/test"
	"github.com/passagehq/passage/pkg/vector/memory"
)

// gatedEmbedder blocks EmbedBatch until released, so tests can hold a worker
// busy deterministically.
type gatedEmbedder struct {
	inner   embeddings.Embedder
	started chan struct{}
	release chan struct{}
}

func (g *gatedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return g.inner.Embed(ctx, text)
}

func (g *gatedEmbedder) EmbedBatch(ctx context.Context, texts []string) (embeddings.BatchResult, error) {
	g.started <- struct{}{}
	<-g.release
	return g.inner.EmbedBatch(ctx, texts)
}

func (g *gatedEmbedder) Close() error {
	return nil
}

var _ = Describe("Pool", func() {
	var (
		ctx   context.Context
		index *memory.Driver
		store *inmemory.Driver
	)

	newOrchestrator := func(embedder embeddings.Embedder) *ingest.Orchestrator {
		chunker, err := chunk.NewChunker(chunk.Config{Size: 20, Overlap: 5})
		Expect(err).NotTo(HaveOccurred())

		orch, err := ingest.NewOrchestrator(&ingest.Config{
			Chunker:  chunker,
			Embedder: embedder,
			Index:    index,
			Store:    store,
			Logger:   zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		return orch
	}

	BeforeEach(func() {
		ctx = context.Background()
		index = memory.NewDriver()
		store = inmemory.NewDriver()
	})

	It("requires an orchestrator", func() {
		_, err := ingest.NewPool(&ingest.PoolConfig{Logger: zap.NewNop()})
		Expect(err).To(MatchError(rag.ErrConfiguration))
	})

	It("ingests queued documents and drains on Close", func() {
		pool, err := ingest.NewPool(&ingest.PoolConfig{
			Orchestrator: newOrchestrator(testutils.NewMockEmbedder()),
			NumWorkers:   2,
			Logger:       zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(pool.Enqueue(rag.IngestRequest{DocumentID: "a", Text: "Document a content."})).To(BeTrue())
		Expect(pool.Enqueue(rag.IngestRequest{DocumentID: "b", Text: "Document b content."})).To(BeTrue())
		Expect(pool.Enqueue(rag.IngestRequest{DocumentID: "c", Text: "Document c content."})).To(BeTrue())

		pool.Close()

		stats, err := store.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Documents).To(Equal(3))
	})

	It("reports every completed ingestion through OnResult", func() {
		var (
			mu      sync.Mutex
			results []rag.IngestionResult
		)

		pool, err := ingest.NewPool(&ingest.PoolConfig{
			Orchestrator: newOrchestrator(testutils.NewMockEmbedder()),
			NumWorkers:   2,
			Logger:       zap.NewNop(),
			OnResult: func(res rag.IngestionResult) {
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(pool.Enqueue(rag.IngestRequest{DocumentID: "good", Text: "Document content."})).To(BeTrue())
		// Empty text with no stored document fails at extraction.
		Expect(pool.Enqueue(rag.IngestRequest{DocumentID: "bad"})).To(BeTrue())

		pool.Close()

		Expect(results).To(HaveLen(2))
		byID := make(map[string]rag.IngestionResult, len(results))
		for _, res := range results {
			byID[res.DocumentID] = res
		}
		Expect(byID["good"].Status).To(Equal(rag.StatusIndexed))
		Expect(byID["bad"].Status).To(Equal(rag.StatusFailed))
	})

	It("drops jobs when the queue is full", func() {
		gated := &gatedEmbedder{
			inner:   testutils.NewMockEmbedder(),
			started: make(chan struct{}, 4),
			release: make(chan struct{}),
		}

		pool, err := ingest.NewPool(&ingest.PoolConfig{
			Orchestrator: newOrchestrator(gated),
			NumWorkers:   1,
			QueueSize:    1,
			Logger:       zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		// First job occupies the single worker...
		Expect(pool.Enqueue(rag.IngestRequest{DocumentID: "a", Text: "Document a content."})).To(BeTrue())
		Eventually(gated.started).Should(Receive())

		// ...second fills the queue, third has nowhere to go.
		Expect(pool.Enqueue(rag.IngestRequest{DocumentID: "b", Text: "Document b content."})).To(BeTrue())
		Expect(pool.Enqueue(rag.IngestRequest{DocumentID: "c", Text: "Document c content."})).To(BeFalse())

		close(gated.release)
		pool.Close()

		stats, err := store.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Documents).To(Equal(2))

		_, err = store.GetDocument(ctx, "c")
		Expect(err).To(HaveOccurred())
	})
})

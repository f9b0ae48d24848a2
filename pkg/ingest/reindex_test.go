package ingest_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/chunk"
	"github.com/passagehq/passage/pkg/ingest"
	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/storage/inmemory"
	testutils "github.com/passagehq/passage/pkg/utils/test"
	"github.com/passagehq/passage/pkg/vector/memory"
)

var _ = Describe("Reindexer", func() {
	var (
		ctx      context.Context
		chunker  *chunk.Chunker
		embedder *testutils.MockEmbedder
		index    *memory.Driver
		store    *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		chunker, err = chunk.NewChunker(chunk.Config{Size: 20, Overlap: 5})
		Expect(err).NotTo(HaveOccurred())

		embedder = testutils.NewMockEmbedder()
		index = memory.NewDriver()
		store = inmemory.NewDriver()

		orch, err := ingest.NewOrchestrator(&ingest.Config{
			Chunker:  chunker,
			Embedder: embedder,
			Index:    index,
			Store:    store,
			Logger:   zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(orch.Ingest(ctx, rag.IngestRequest{DocumentID: "a", Text: "Document a content."}).Status).
			To(Equal(rag.StatusIndexed))
		Expect(orch.Ingest(ctx, rag.IngestRequest{DocumentID: "b", Text: "Document b content."}).Status).
			To(Equal(rag.StatusIndexed))
	})

	It("repairs documents missing from the index", func() {
		Expect(index.DeleteByDocument(ctx, "b")).To(Succeed())

		before, err := index.Count(ctx)
		Expect(err).NotTo(HaveOccurred())

		r := ingest.NewReindexer(store, embedder, index, ingest.Options{}, zap.NewNop())
		result, err := r.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Scanned).To(Equal(2))
		Expect(result.Reindexed).To(Equal(1))
		Expect(result.Skipped).To(Equal(1))
		Expect(result.Failed).To(BeZero())

		after, err := index.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(after).To(BeNumerically(">", before))

		ids, err := index.ChunkIDs(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(ContainElement("b_chunk_0"))
	})

	It("skips everything when the index is complete", func() {
		r := ingest.NewReindexer(store, embedder, index, ingest.Options{}, zap.NewNop())
		result, err := r.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Reindexed).To(BeZero())
		Expect(result.Skipped).To(Equal(2))
	})

	It("re-embeds every document with All", func() {
		batchesBefore := embedder.BatchCalls

		r := ingest.NewReindexer(store, embedder, index, ingest.Options{All: true}, zap.NewNop())
		result, err := r.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Reindexed).To(Equal(2))
		Expect(result.Skipped).To(BeZero())
		Expect(embedder.BatchCalls - batchesBefore).To(Equal(2))
	})

	It("counts but does not write in dry-run mode", func() {
		Expect(index.DeleteByDocument(ctx, "b")).To(Succeed())

		r := ingest.NewReindexer(store, embedder, index, ingest.Options{DryRun: true}, zap.NewNop())
		result, err := r.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Reindexed).To(Equal(1))

		ids, err := index.ChunkIDs(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).NotTo(ContainElement("b_chunk_0"))
	})

	It("isolates per-document embedding failures", func() {
		Expect(index.DeleteByDocument(ctx, "b")).To(Succeed())

		chunks, err := store.Chunks(ctx, "b")
		Expect(err).NotTo(HaveOccurred())
		embedder.FailOn = chunks[0].Text

		r := ingest.NewReindexer(store, embedder, index, ingest.Options{}, zap.NewNop())
		result, err := r.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Failed).To(Equal(1))
		Expect(result.Skipped).To(Equal(1))
		Expect(result.Reindexed).To(BeZero())
	})

	It("summarizes the run", func() {
		r := ingest.NewReindexer(store, embedder, index, ingest.Options{All: true}, zap.NewNop())
		result, err := r.Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		summary := result.Summary()
		Expect(summary).To(ContainSubstring("2 reindexed"))
		Expect(summary).To(ContainSubstring("Scanned 2 documents"))
	})
})

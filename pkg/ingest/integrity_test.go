package ingest_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/chunk"
	"github.com/passagehq/passage/pkg/ingest"
	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/storage/inmemory"
	testutils "github.com/passagehq/passage/pkg/utils/test"
	"github.com/passagehq/passage/pkg/vector"
	"github.com/passagehq/passage/pkg/vector/memory"
)

var _ = Describe("CheckIntegrity", func() {
	var (
		ctx   context.Context
		index *memory.Driver
		store *inmemory.Driver
		orch  *ingest.Orchestrator
	)

	BeforeEach(func() {
		ctx = context.Background()

		chunker, err := chunk.NewChunker(chunk.Config{Size: 20, Overlap: 5})
		Expect(err).NotTo(HaveOccurred())

		index = memory.NewDriver()
		store = inmemory.NewDriver()

		orch, err = ingest.NewOrchestrator(&ingest.Config{
			Chunker:  chunker,
			Embedder: testutils.NewMockEmbedder(),
			Index:    index,
			Store:    store,
			Logger:   zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("passes on a consistent index", func() {
		result := orch.Ingest(ctx, rag.IngestRequest{DocumentID: "doc1", Text: "Some content here."})
		Expect(result.Status).To(Equal(rag.StatusIndexed))

		purged, err := orch.CheckIntegrity(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(purged).To(BeZero())
	})

	It("purges index records whose chunks are gone from the store", func() {
		result := orch.Ingest(ctx, rag.IngestRequest{DocumentID: "doc1", Text: "Some content here."})
		Expect(result.Status).To(Equal(rag.StatusIndexed))

		// Simulate a crash that left a record behind after its document
		// was removed from the store.
		Expect(index.Upsert(ctx, []vector.Record{{
			ChunkID:    "ghost_chunk_0",
			DocumentID: "ghost",
			Text:       "orphaned",
			Embedding:  []float32{0.1, 0.2, 0.3},
		}})).To(Succeed())

		purged, err := orch.CheckIntegrity(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(purged).To(Equal(1))

		ids, err := index.ChunkIDs(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).NotTo(ContainElement("ghost_chunk_0"))
		Expect(ids).To(ContainElement("doc1_chunk_0"))
	})

	It("wraps purge failures with the integrity sentinel", func() {
		failing := testutils.NewMockVectorDriver()
		failing.Records["ghost_chunk_0"] = vector.Record{ChunkID: "ghost_chunk_0", DocumentID: "ghost"}
		failing.DeleteErr = errors.New("index offline")

		chunker, err := chunk.NewChunker(chunk.Config{Size: 20, Overlap: 5})
		Expect(err).NotTo(HaveOccurred())

		orch, err := ingest.NewOrchestrator(&ingest.Config{
			Chunker:  chunker,
			Embedder: testutils.NewMockEmbedder(),
			Index:    failing,
			Store:    inmemory.NewDriver(),
			Logger:   zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = orch.CheckIntegrity(ctx)
		Expect(err).To(MatchError(rag.ErrIndexIntegrity))
	})
})

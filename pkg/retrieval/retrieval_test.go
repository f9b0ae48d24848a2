package retrieval_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/retrieval"
	testutils "github.com/passagehq/passage/pkg/utils/test"
	"github.com/passagehq/passage/pkg/vector"
	"github.com/passagehq/passage/pkg/vector/memory"
)

func searchResult(chunkID, documentID string, score float32, start, end int) vector.SearchResult {
	return vector.SearchResult{
		Record: vector.Record{
			ChunkID:    chunkID,
			DocumentID: documentID,
			Text:       "text of " + chunkID,
			Start:      start,
			End:        end,
		},
		Score: score,
	}
}

var _ = Describe("Retriever", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		index    *testutils.MockVectorDriver
		ret      *retrieval.Retriever
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		index = testutils.NewMockVectorDriver()
		ret = retrieval.New(embedder, index, zap.NewNop())
	})

	Describe("Retrieve", func() {
		It("returns evidence ranked by score with 1-based ranks", func() {
			index.Results = []vector.SearchResult{
				searchResult("doc1_chunk_0", "doc1", 0.95, 0, 100),
				searchResult("doc2_chunk_0", "doc2", 0.80, 0, 100),
				searchResult("doc3_chunk_0", "doc3", 0.75, 0, 100),
			}

			evidence, err := ret.Retrieve(ctx, "what is passage?", 5, 0.7, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(HaveLen(3))

			Expect(evidence[0].ChunkID).To(Equal("doc1_chunk_0"))
			Expect(evidence[0].Score).To(BeNumerically("~", 0.95, 1e-6))
			Expect(evidence[0].Rank).To(Equal(1))
			Expect(evidence[0].Text).To(Equal("text of doc1_chunk_0"))
			Expect(evidence[0].DocumentID).To(Equal("doc1"))

			Expect(evidence[1].Rank).To(Equal(2))
			Expect(evidence[2].Rank).To(Equal(3))
		})

		It("drops results below the similarity threshold", func() {
			index.Results = []vector.SearchResult{
				searchResult("doc1_chunk_0", "doc1", 0.9, 0, 100),
				searchResult("doc2_chunk_0", "doc2", 0.69, 0, 100),
				searchResult("doc3_chunk_0", "doc3", 0.2, 0, 100),
			}

			evidence, err := ret.Retrieve(ctx, "query", 5, 0.7, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(HaveLen(1))
			Expect(evidence[0].ChunkID).To(Equal("doc1_chunk_0"))
		})

		It("returns an empty set when nothing clears the threshold", func() {
			index.Results = []vector.SearchResult{
				searchResult("doc1_chunk_0", "doc1", 0.4, 0, 100),
				searchResult("doc2_chunk_0", "doc2", 0.3, 0, 100),
			}

			evidence, err := ret.Retrieve(ctx, "query", 5, 0.7, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(BeEmpty())
		})

		It("truncates to k after filtering", func() {
			index.Results = []vector.SearchResult{
				searchResult("doc1_chunk_0", "doc1", 0.95, 0, 100),
				searchResult("doc2_chunk_0", "doc2", 0.90, 0, 100),
				searchResult("doc3_chunk_0", "doc3", 0.85, 0, 100),
			}

			evidence, err := ret.Retrieve(ctx, "query", 2, 0.7, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(HaveLen(2))
			Expect(evidence[0].ChunkID).To(Equal("doc1_chunk_0"))
			Expect(evidence[1].ChunkID).To(Equal("doc2_chunk_0"))
		})

		It("oversamples the index so filtering has candidates to spare", func() {
			_, err := ret.Retrieve(ctx, "query", 2, 0.7, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(index.LastSearchK).To(Equal(20))

			_, err = ret.Retrieve(ctx, "query", 10, 0.7, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(index.LastSearchK).To(Equal(30))
		})

		It("passes filters through to the index", func() {
			filters := vector.Filters{
				DocumentIDs: []string{"doc9"},
				Metadata:    map[string]string{"lang": "en"},
			}

			_, err := ret.Retrieve(ctx, "query", 3, 0.7, filters)
			Expect(err).NotTo(HaveOccurred())
			Expect(index.LastSearchFilters.DocumentIDs).To(Equal([]string{"doc9"}))
			Expect(index.LastSearchFilters.Metadata).To(HaveKeyWithValue("lang", "en"))
		})

		It("collapses overlapping chunks from the same document region", func() {
			index.Results = []vector.SearchResult{
				searchResult("doc1_chunk_0", "doc1", 0.90, 0, 120),
				searchResult("doc1_chunk_1", "doc1", 0.85, 100, 220),
				searchResult("doc2_chunk_0", "doc2", 0.80, 0, 120),
			}

			evidence, err := ret.Retrieve(ctx, "query", 5, 0.7, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(HaveLen(2))
			Expect(evidence[0].ChunkID).To(Equal("doc1_chunk_0"))
			Expect(evidence[1].ChunkID).To(Equal("doc2_chunk_0"))
		})

		It("keeps the higher-scoring representative of a collapsed region", func() {
			index.Results = []vector.SearchResult{
				searchResult("doc1_chunk_0", "doc1", 0.75, 0, 120),
				searchResult("doc1_chunk_1", "doc1", 0.92, 100, 220),
			}

			evidence, err := ret.Retrieve(ctx, "query", 5, 0.7, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(HaveLen(1))
			Expect(evidence[0].ChunkID).To(Equal("doc1_chunk_1"))
			Expect(evidence[0].Score).To(BeNumerically("~", 0.92, 1e-6))
		})

		It("treats spans that merely touch as one region", func() {
			index.Results = []vector.SearchResult{
				searchResult("doc1_chunk_0", "doc1", 0.90, 0, 100),
				searchResult("doc1_chunk_1", "doc1", 0.88, 100, 200),
			}

			evidence, err := ret.Retrieve(ctx, "query", 5, 0.7, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(HaveLen(1))
			Expect(evidence[0].ChunkID).To(Equal("doc1_chunk_0"))
		})

		It("keeps separated regions of the same document apart", func() {
			index.Results = []vector.SearchResult{
				searchResult("doc1_chunk_0", "doc1", 0.90, 0, 100),
				searchResult("doc1_chunk_7", "doc1", 0.85, 700, 800),
			}

			evidence, err := ret.Retrieve(ctx, "query", 5, 0.7, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(HaveLen(2))
		})

		It("breaks score ties within a region by smaller chunk ID", func() {
			index.Results = []vector.SearchResult{
				searchResult("doc1_chunk_1", "doc1", 0.9, 100, 220),
				searchResult("doc1_chunk_0", "doc1", 0.9, 0, 120),
			}

			evidence, err := ret.Retrieve(ctx, "query", 5, 0.7, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(HaveLen(1))
			Expect(evidence[0].ChunkID).To(Equal("doc1_chunk_0"))
		})

		It("returns nothing for non-positive k without touching the index", func() {
			evidence, err := ret.Retrieve(ctx, "query", 0, 0.7, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(BeNil())
			Expect(embedder.EmbedCalls).To(BeZero())
			Expect(index.SearchCalls).To(BeZero())
		})

		It("surfaces embedding failures without searching", func() {
			embedder.FailOn = "broken query"

			_, err := ret.Retrieve(ctx, "broken query", 5, 0.7, vector.Filters{})
			Expect(err).To(HaveOccurred())
			Expect(index.SearchCalls).To(BeZero())
		})

		It("surfaces index failures", func() {
			index.SearchErr = context.DeadlineExceeded

			_, err := ret.Retrieve(ctx, "query", 5, 0.7, vector.Filters{})
			Expect(err).To(MatchError(context.DeadlineExceeded))
		})
	})

	Describe("with a real in-memory index", func() {
		It("finds the nearest chunk for the query embedding", func() {
			idx := memory.NewDriver()
			Expect(idx.Upsert(ctx, []vector.Record{
				{ChunkID: "sky_chunk_0", DocumentID: "sky", Text: "The sky is blue.", Start: 0, End: 16, Embedding: []float32{1, 0, 0}},
				{ChunkID: "grass_chunk_0", DocumentID: "grass", Text: "The grass is green.", Start: 0, End: 19, Embedding: []float32{0, 1, 0}},
				{ChunkID: "sun_chunk_0", DocumentID: "sun", Text: "The sun is bright.", Start: 0, End: 18, Embedding: []float32{0, 0, 1}},
			})).To(Succeed())

			embedder.Embeddings["What color is the sky?"] = []float32{0.9, 0.1, 0}

			r := retrieval.New(embedder, idx, zap.NewNop())
			evidence, err := r.Retrieve(ctx, "What color is the sky?", 1, 0.5, vector.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(HaveLen(1))
			Expect(evidence[0].ChunkID).To(Equal("sky_chunk_0"))
			Expect(evidence[0].Text).To(Equal("The sky is blue."))
			Expect(evidence[0].Rank).To(Equal(1))
		})

		It("respects document filters during search", func() {
			idx := memory.NewDriver()
			Expect(idx.Upsert(ctx, []vector.Record{
				{ChunkID: "a_chunk_0", DocumentID: "a", Text: "alpha", Start: 0, End: 5, Embedding: []float32{1, 0, 0}},
				{ChunkID: "b_chunk_0", DocumentID: "b", Text: "beta", Start: 0, End: 4, Embedding: []float32{0.9, 0.1, 0}},
			})).To(Succeed())

			embedder.Embeddings["alpha or beta?"] = []float32{1, 0, 0}

			r := retrieval.New(embedder, idx, zap.NewNop())
			evidence, err := r.Retrieve(ctx, "alpha or beta?", 5, 0.5, vector.Filters{DocumentIDs: []string{"b"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(HaveLen(1))
			Expect(evidence[0].DocumentID).To(Equal("b"))
		})
	})
})

package sqlitevec_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/vector"
	"github.com/passagehq/passage/pkg/vector/sqlitevec"
)

// record builds a 4-dimensional test record.
func record(chunkID, documentID, text string, embedding []float32) vector.Record {
	return vector.Record{
		ChunkID:    chunkID,
		DocumentID: documentID,
		Text:       text,
		Start:      0,
		End:        len(text),
		Embedding:  embedding,
	}
}

var _ = Describe("Driver", func() {
	var logger *zap.Logger

	BeforeEach(func() {
		logger = zap.NewNop()
	})

	Describe("NewDriver", func() {
		It("returns an error when DBPath is empty", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("creates a driver with an in-memory database", func() {
			driver, err := sqlitevec.NewDriver(sqlitevec.Config{
				DBPath:     ":memory:",
				Dimensions: 4,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(driver.Close()).To(Succeed())
		})

		It("errors when dimensions are not specified", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{
				DBPath: ":memory:",
			}, logger)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Interface compliance", func() {
		It("implements vector.Driver", func() {
			var _ vector.Driver = (*sqlitevec.Driver)(nil)
		})
	})

	Context("with an open driver", func() {
		var driver *sqlitevec.Driver
		var ctx context.Context

		BeforeEach(func() {
			var err error
			driver, err = sqlitevec.NewDriver(sqlitevec.Config{
				DBPath:     ":memory:",
				Dimensions: 4,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			ctx = context.Background()
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		Describe("Upsert", func() {
			It("stores records and counts them", func() {
				err := driver.Upsert(ctx, []vector.Record{
					record("doc1_chunk_0", "doc1", "alpha", []float32{1, 0, 0, 0}),
					record("doc1_chunk_1", "doc1", "beta", []float32{0, 1, 0, 0}),
				})
				Expect(err).NotTo(HaveOccurred())

				count, err := driver.Count(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(2))
			})

			It("replaces an existing record with the same chunk ID", func() {
				err := driver.Upsert(ctx, []vector.Record{
					record("doc1_chunk_0", "doc1", "old text", []float32{1, 0, 0, 0}),
				})
				Expect(err).NotTo(HaveOccurred())

				err = driver.Upsert(ctx, []vector.Record{
					record("doc1_chunk_0", "doc1", "new text", []float32{0, 1, 0, 0}),
				})
				Expect(err).NotTo(HaveOccurred())

				count, err := driver.Count(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(1))

				results, err := driver.Search(ctx, []float32{0, 1, 0, 0}, 1, vector.Filters{})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(1))
				Expect(results[0].Text).To(Equal("new text"))
				Expect(results[0].Score).To(BeNumerically("~", 1.0, 0.001))
			})

			It("rejects embeddings with the wrong dimensionality", func() {
				err := driver.Upsert(ctx, []vector.Record{
					record("doc1_chunk_0", "doc1", "alpha", []float32{1, 0}),
				})
				Expect(err).To(MatchError(vector.ErrDimensionMismatch))
			})

			It("accepts an empty batch", func() {
				Expect(driver.Upsert(ctx, nil)).To(Succeed())
			})

			It("round-trips metadata", func() {
				r := record("doc1_chunk_0", "doc1", "alpha", []float32{1, 0, 0, 0})
				r.Metadata = map[string]string{"filename": "a.txt"}
				Expect(driver.Upsert(ctx, []vector.Record{r})).To(Succeed())

				results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 1, vector.Filters{})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(1))
				Expect(results[0].Metadata).To(HaveKeyWithValue("filename", "a.txt"))
			})
		})

		Describe("Search", func() {
			BeforeEach(func() {
				err := driver.Upsert(ctx, []vector.Record{
					record("doc1_chunk_0", "doc1", "exact match", []float32{1, 0, 0, 0}),
					record("doc1_chunk_1", "doc1", "orthogonal", []float32{0, 1, 0, 0}),
					record("doc2_chunk_0", "doc2", "partial match", []float32{0.7071, 0.7071, 0, 0}),
				})
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns results ordered by descending similarity", func() {
				results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 3, vector.Filters{})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(3))
				Expect(results[0].ChunkID).To(Equal("doc1_chunk_0"))
				Expect(results[0].Score).To(BeNumerically("~", 1.0, 0.001))
				Expect(results[1].ChunkID).To(Equal("doc2_chunk_0"))
				Expect(results[1].Score).To(BeNumerically("~", 0.7071, 0.01))
				Expect(results[2].ChunkID).To(Equal("doc1_chunk_1"))
				Expect(results[2].Score).To(BeNumerically("~", 0.0, 0.01))
			})

			It("caps results at k", func() {
				results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 1, vector.Filters{})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(1))
			})

			It("returns everything when k exceeds the record count", func() {
				results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 50, vector.Filters{})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(3))
			})

			It("returns nothing for k <= 0", func() {
				results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 0, vector.Filters{})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(BeEmpty())
			})

			It("breaks score ties by ascending chunk ID", func() {
				err := driver.Upsert(ctx, []vector.Record{
					record("doc3_chunk_1", "doc3", "twin b", []float32{0, 0, 1, 0}),
					record("doc3_chunk_0", "doc3", "twin a", []float32{0, 0, 1, 0}),
				})
				Expect(err).NotTo(HaveOccurred())

				results, err := driver.Search(ctx, []float32{0, 0, 1, 0}, 2, vector.Filters{})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(2))
				Expect(results[0].ChunkID).To(Equal("doc3_chunk_0"))
				Expect(results[1].ChunkID).To(Equal("doc3_chunk_1"))
			})

			It("rejects query embeddings with the wrong dimensionality", func() {
				_, err := driver.Search(ctx, []float32{1, 0}, 3, vector.Filters{})
				Expect(err).To(MatchError(vector.ErrDimensionMismatch))
			})

			It("restricts candidates by document ID", func() {
				results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 10, vector.Filters{
					DocumentIDs: []string{"doc2"},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(1))
				Expect(results[0].ChunkID).To(Equal("doc2_chunk_0"))
			})

			It("restricts candidates by metadata", func() {
				r := record("doc4_chunk_0", "doc4", "tagged", []float32{1, 0, 0, 0})
				r.Metadata = map[string]string{"filename": "notes.txt"}
				Expect(driver.Upsert(ctx, []vector.Record{r})).To(Succeed())

				results, err := driver.Search(ctx, []float32{1, 0, 0, 0}, 10, vector.Filters{
					Metadata: map[string]string{"filename": "notes.txt"},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(1))
				Expect(results[0].ChunkID).To(Equal("doc4_chunk_0"))
			})
		})

		Describe("Delete", func() {
			BeforeEach(func() {
				err := driver.Upsert(ctx, []vector.Record{
					record("doc1_chunk_0", "doc1", "alpha", []float32{1, 0, 0, 0}),
					record("doc1_chunk_1", "doc1", "beta", []float32{0, 1, 0, 0}),
					record("doc2_chunk_0", "doc2", "gamma", []float32{0, 0, 1, 0}),
				})
				Expect(err).NotTo(HaveOccurred())
			})

			It("removes records by chunk ID", func() {
				Expect(driver.Delete(ctx, []string{"doc1_chunk_0"})).To(Succeed())

				count, err := driver.Count(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(2))

				ids, err := driver.ChunkIDs(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(ids).To(Equal([]string{"doc1_chunk_1", "doc2_chunk_0"}))
			})

			It("ignores unknown chunk IDs", func() {
				Expect(driver.Delete(ctx, []string{"nope"})).To(Succeed())

				count, err := driver.Count(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(3))
			})

			It("removes every chunk of a document", func() {
				Expect(driver.DeleteByDocument(ctx, "doc1")).To(Succeed())

				ids, err := driver.ChunkIDs(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(ids).To(Equal([]string{"doc2_chunk_0"}))
			})

			It("treats deleting an absent document as a no-op", func() {
				Expect(driver.DeleteByDocument(ctx, "ghost")).To(Succeed())

				count, err := driver.Count(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(3))
			})
		})

		Describe("ChunkIDs", func() {
			It("returns ids in ascending order", func() {
				err := driver.Upsert(ctx, []vector.Record{
					record("z_chunk_0", "z", "last", []float32{1, 0, 0, 0}),
					record("a_chunk_0", "a", "first", []float32{0, 1, 0, 0}),
				})
				Expect(err).NotTo(HaveOccurred())

				ids, err := driver.ChunkIDs(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(ids).To(Equal([]string{"a_chunk_0", "z_chunk_0"}))
			})

			It("returns nothing for an empty index", func() {
				ids, err := driver.ChunkIDs(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(ids).To(BeEmpty())
			})
		})
	})
})

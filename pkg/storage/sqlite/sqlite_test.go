package sqlite_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/storage"
	"github.com/passagehq/passage/pkg/storage/sqlite"
)

func testDocument(id string) *rag.Document {
	return &rag.Document{
		ID:          id,
		Filename:    id + ".txt",
		ContentHash: "hash-" + id,
		Metadata:    map[string]string{"source": "test"},
		IngestedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func testChunks(documentID string, texts ...string) []rag.Chunk {
	chunks := make([]rag.Chunk, len(texts))
	offset := 0
	for i, text := range texts {
		chunks[i] = rag.Chunk{
			ID:         rag.ChunkID(documentID, i),
			DocumentID: documentID,
			Index:      i,
			Text:       text,
			Start:      offset,
			End:        offset + len([]rune(text)),
		}
		offset += len([]rune(text))
	}
	return chunks
}

var _ = Describe("Driver", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		driver, err = sqlite.NewDriver(sqlite.Config{DBPath: ":memory:"}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewDriver", func() {
		It("creates a driver with a file database", func() {
			tmpDir := GinkgoT().TempDir()
			dbPath := filepath.Join(tmpDir, "test.db")

			s, err := sqlite.NewDriver(sqlite.Config{DBPath: dbPath}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("requires a database path", func() {
			_, err := sqlite.NewDriver(sqlite.Config{}, zap.NewNop())
			Expect(err).To(HaveOccurred())
		})

		It("implements storage.Driver", func() {
			var _ storage.Driver = (*sqlite.Driver)(nil)
		})
	})

	Describe("PutDocument", func() {
		It("stores a document with its chunks", func() {
			doc := testDocument("doc1")
			replaced, err := driver.PutDocument(ctx, doc, testChunks("doc1", "first chunk", "second chunk"))
			Expect(err).NotTo(HaveOccurred())
			Expect(replaced).To(BeFalse())

			stored, err := driver.GetDocument(ctx, "doc1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Filename).To(Equal("doc1.txt"))
			Expect(stored.ContentHash).To(Equal("hash-doc1"))
			Expect(stored.Metadata).To(HaveKeyWithValue("source", "test"))
			Expect(stored.IngestedAt.Unix()).To(Equal(doc.IngestedAt.Unix()))

			chunks, err := driver.Chunks(ctx, "doc1")
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(2))
			Expect(chunks[0].ID).To(Equal("doc1_chunk_0"))
			Expect(chunks[0].Text).To(Equal("first chunk"))
			Expect(chunks[1].Index).To(Equal(1))
		})

		It("replaces the document and all chunks on re-put", func() {
			_, err := driver.PutDocument(ctx, testDocument("doc1"), testChunks("doc1", "one", "two", "three"))
			Expect(err).NotTo(HaveOccurred())

			replaced, err := driver.PutDocument(ctx, testDocument("doc1"), testChunks("doc1", "replacement"))
			Expect(err).NotTo(HaveOccurred())
			Expect(replaced).To(BeTrue())

			chunks, err := driver.Chunks(ctx, "doc1")
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].Text).To(Equal("replacement"))

			ids, err := driver.ChunkIDs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"doc1_chunk_0"}))
		})

		It("stores a document with no chunks", func() {
			_, err := driver.PutDocument(ctx, testDocument("empty"), nil)
			Expect(err).NotTo(HaveOccurred())

			chunks, err := driver.Chunks(ctx, "empty")
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(BeEmpty())
		})

		It("rejects a nil document", func() {
			_, err := driver.PutDocument(ctx, nil, nil)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a document without an ID", func() {
			_, err := driver.PutDocument(ctx, &rag.Document{}, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GetDocument", func() {
		It("returns NotFoundError for an unknown ID", func() {
			_, err := driver.GetDocument(ctx, "missing")
			Expect(err).To(HaveOccurred())

			var notFoundErr storage.NotFoundError
			Expect(errors.As(err, &notFoundErr)).To(BeTrue())
			Expect(notFoundErr.DocumentID).To(Equal("missing"))
		})
	})

	Describe("ListDocuments", func() {
		It("returns documents ordered by ID", func() {
			_, err := driver.PutDocument(ctx, testDocument("beta"), nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.PutDocument(ctx, testDocument("alpha"), nil)
			Expect(err).NotTo(HaveOccurred())

			docs, err := driver.ListDocuments(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
			Expect(docs[0].ID).To(Equal("alpha"))
			Expect(docs[1].ID).To(Equal("beta"))
		})

		It("returns empty for an empty store", func() {
			docs, err := driver.ListDocuments(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})
	})

	Describe("DeleteDocument", func() {
		It("removes the document and its chunks", func() {
			_, err := driver.PutDocument(ctx, testDocument("doc1"), testChunks("doc1", "a", "b"))
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.DeleteDocument(ctx, "doc1")).To(Succeed())

			_, err = driver.GetDocument(ctx, "doc1")
			var notFoundErr storage.NotFoundError
			Expect(errors.As(err, &notFoundErr)).To(BeTrue())

			ids, err := driver.ChunkIDs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(BeEmpty())
		})

		It("returns NotFoundError for an unknown ID", func() {
			err := driver.DeleteDocument(ctx, "missing")
			var notFoundErr storage.NotFoundError
			Expect(errors.As(err, &notFoundErr)).To(BeTrue())
		})
	})

	Describe("Chunks", func() {
		It("returns NotFoundError for an unknown document", func() {
			_, err := driver.Chunks(ctx, "missing")
			var notFoundErr storage.NotFoundError
			Expect(errors.As(err, &notFoundErr)).To(BeTrue())
		})

		It("orders chunks by index", func() {
			_, err := driver.PutDocument(ctx, testDocument("doc1"), testChunks("doc1", "a", "b", "c"))
			Expect(err).NotTo(HaveOccurred())

			chunks, err := driver.Chunks(ctx, "doc1")
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks[0].Index).To(Equal(0))
			Expect(chunks[1].Index).To(Equal(1))
			Expect(chunks[2].Index).To(Equal(2))
		})
	})

	Describe("ChunkIDs", func() {
		It("returns chunk IDs across documents in ascending order", func() {
			_, err := driver.PutDocument(ctx, testDocument("b"), testChunks("b", "x"))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.PutDocument(ctx, testDocument("a"), testChunks("a", "y", "z"))
			Expect(err).NotTo(HaveOccurred())

			ids, err := driver.ChunkIDs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"a_chunk_0", "a_chunk_1", "b_chunk_0"}))
		})
	})

	Describe("Stats", func() {
		It("counts documents and chunks", func() {
			_, err := driver.PutDocument(ctx, testDocument("doc1"), testChunks("doc1", "a", "b"))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.PutDocument(ctx, testDocument("doc2"), testChunks("doc2", "c"))
			Expect(err).NotTo(HaveOccurred())

			stats, err := driver.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Documents).To(Equal(2))
			Expect(stats.Chunks).To(Equal(3))
		})
	})

	Describe("persistence", func() {
		It("retains documents across reopen", func() {
			tmpDir := GinkgoT().TempDir()
			dbPath := filepath.Join(tmpDir, "persist.db")

			s1, err := sqlite.NewDriver(sqlite.Config{DBPath: dbPath}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			_, err = s1.PutDocument(ctx, testDocument("doc1"), testChunks("doc1", "survives"))
			Expect(err).NotTo(HaveOccurred())
			Expect(s1.Close()).To(Succeed())

			s2, err := sqlite.NewDriver(sqlite.Config{DBPath: dbPath}, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			defer s2.Close()

			chunks, err := s2.Chunks(ctx, "doc1")
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].Text).To(Equal("survives"))
		})
	})
})

package retry_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/passagehq/passage/pkg/embeddings"
	"github.com/passagehq/passage/pkg/embeddings/retry"
	"github.com/passagehq/passage/pkg/rag"
)

// flakyEmbedder fails the first failures calls of each method, then succeeds.
type flakyEmbedder struct {
	failures int
	calls    int
	closed   bool

	batch embeddings.BatchResult
}

func (f *flakyEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("backend down")
	}
	return []float32{1, 0}, nil
}

func (f *flakyEmbedder) EmbedBatch(_ context.Context, texts []string) (embeddings.BatchResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return embeddings.BatchResult{}, errors.New("backend down")
	}
	if f.batch.Vectors != nil {
		return f.batch, nil
	}
	return embeddings.BatchResult{
		Vectors: make([][]float32, len(texts)),
		Errs:    make([]error, len(texts)),
	}, nil
}

func (f *flakyEmbedder) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("Embedder", func() {
	Describe("Interface compliance", func() {
		It("implements embeddings.Embedder", func() {
			var _ embeddings.Embedder = (*retry.Embedder)(nil)
		})
	})

	Describe("Embed", func() {
		It("returns immediately on success", func() {
			stub := &flakyEmbedder{}
			e := retry.New(stub, retry.Config{MaxAttempts: 3})

			vector, err := e.Embed(context.Background(), "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(vector).To(Equal([]float32{1, 0}))
			Expect(stub.calls).To(Equal(1))
		})

		It("retries transient failures until success", func() {
			stub := &flakyEmbedder{failures: 1}
			e := retry.New(stub, retry.Config{MaxAttempts: 3})

			vector, err := e.Embed(context.Background(), "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(vector).To(Equal([]float32{1, 0}))
			Expect(stub.calls).To(Equal(2))
		})

		It("wraps exhaustion in the embedding sentinel", func() {
			stub := &flakyEmbedder{failures: 100}
			e := retry.New(stub, retry.Config{MaxAttempts: 2})

			_, err := e.Embed(context.Background(), "hello")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, rag.ErrEmbeddingUnavailable)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("2 attempts"))
			Expect(stub.calls).To(Equal(2))
		})

		It("aborts the backoff when the context is cancelled", func() {
			stub := &flakyEmbedder{failures: 100}
			e := retry.New(stub, retry.Config{MaxAttempts: 3})

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			_, err := e.Embed(ctx, "hello")
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(stub.calls).To(Equal(1))
		})

		It("honors a configured backoff base", func() {
			// Two failures with the default 200ms base would blow the 100ms
			// deadline; a millisecond base fits all retries inside it.
			stub := &flakyEmbedder{failures: 2}
			e := retry.New(stub, retry.Config{
				MaxAttempts: 3,
				BackoffBase: time.Millisecond,
				BackoffMax:  5 * time.Millisecond,
			})

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			vector, err := e.Embed(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(vector).To(Equal([]float32{1, 0}))
			Expect(stub.calls).To(Equal(3))
		})
	})

	Describe("EmbedBatch", func() {
		It("retries batch-level failures", func() {
			stub := &flakyEmbedder{failures: 1}
			e := retry.New(stub, retry.Config{MaxAttempts: 3})

			result, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Vectors).To(HaveLen(2))
			Expect(stub.calls).To(Equal(2))
		})

		It("passes per-item errors through without retrying", func() {
			stub := &flakyEmbedder{
				batch: embeddings.BatchResult{
					Vectors: [][]float32{{1}, nil},
					Errs:    []error{nil, errors.New("item failed")},
				},
			}
			e := retry.New(stub, retry.Config{MaxAttempts: 3})

			result, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.FirstError()).To(HaveOccurred())
			Expect(stub.calls).To(Equal(1))
		})

		It("wraps exhaustion in the embedding sentinel", func() {
			stub := &flakyEmbedder{failures: 100}
			e := retry.New(stub, retry.Config{MaxAttempts: 2})

			_, err := e.EmbedBatch(context.Background(), []string{"a"})
			Expect(errors.Is(err, rag.ErrEmbeddingUnavailable)).To(BeTrue())
		})
	})

	Describe("Close", func() {
		It("closes the wrapped embedder", func() {
			stub := &flakyEmbedder{}
			e := retry.New(stub, retry.Config{})

			Expect(e.Close()).To(Succeed())
			Expect(stub.closed).To(BeTrue())
		})
	})
})

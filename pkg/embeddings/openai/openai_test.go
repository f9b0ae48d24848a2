package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/passagehq/passage/pkg/embeddings"
	"github.com/passagehq/passage/pkg/embeddings/openai"
	"github.com/passagehq/passage/pkg/rag"
)

var _ = Describe("Embedder", func() {
	Describe("Interface compliance", func() {
		It("implements embeddings.Embedder", func() {
			var _ embeddings.Embedder = (*openai.Embedder)(nil)
		})
	})

	Describe("NewEmbedder", func() {
		It("requires an API key", func() {
			_, err := openai.NewEmbedder(openai.EmbedderConfig{})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("API key is required"))
		})

		It("applies defaults for the model", func() {
			e, err := openai.NewEmbedder(openai.EmbedderConfig{APIKey: "sk-test"})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Model()).To(Equal(openai.DefaultEmbeddingModel))
		})
	})

	Describe("Embed", func() {
		It("authenticates with a bearer token", func() {
			var gotAuth string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				Expect(r.URL.Path).To(Equal("/embeddings"))

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"data": []map[string]any{
						{"index": 0, "embedding": []float32{0.5, 0.5}},
					},
				})
			}))
			defer server.Close()

			e, err := openai.NewEmbedder(openai.EmbedderConfig{
				BaseURL: server.URL,
				APIKey:  "sk-test",
			})
			Expect(err).NotTo(HaveOccurred())

			vector, err := e.Embed(context.Background(), "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(vector).To(HaveLen(2))
			Expect(gotAuth).To(Equal("Bearer sk-test"))
		})

		It("wraps non-200 responses in the embedding sentinel", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			}))
			defer server.Close()

			e, err := openai.NewEmbedder(openai.EmbedderConfig{
				BaseURL: server.URL,
				APIKey:  "sk-test",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.Embed(context.Background(), "hello")
			Expect(errors.Is(err, rag.ErrEmbeddingUnavailable)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("429"))
		})
	})

	Describe("EmbedBatch", func() {
		It("restores input order from the index field", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				// Respond out of order.
				json.NewEncoder(w).Encode(map[string]any{
					"data": []map[string]any{
						{"index": 2, "embedding": []float32{0.3}},
						{"index": 0, "embedding": []float32{0.1}},
						{"index": 1, "embedding": []float32{0.2}},
					},
				})
			}))
			defer server.Close()

			e, err := openai.NewEmbedder(openai.EmbedderConfig{
				BaseURL: server.URL,
				APIKey:  "sk-test",
			})
			Expect(err).NotTo(HaveOccurred())

			result, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Vectors[0][0]).To(BeNumerically("~", 0.1, 1e-6))
			Expect(result.Vectors[1][0]).To(BeNumerically("~", 0.2, 1e-6))
			Expect(result.Vectors[2][0]).To(BeNumerically("~", 0.3, 1e-6))
		})

		It("errors when an input is missing from the response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"data": []map[string]any{
						{"index": 0, "embedding": []float32{0.1}},
					},
				})
			}))
			defer server.Close()

			e, err := openai.NewEmbedder(openai.EmbedderConfig{
				BaseURL: server.URL,
				APIKey:  "sk-test",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})
			Expect(errors.Is(err, rag.ErrEmbeddingUnavailable)).To(BeTrue())
		})

		It("errors on an out-of-range index", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"data": []map[string]any{
						{"index": 5, "embedding": []float32{0.1}},
					},
				})
			}))
			defer server.Close()

			e, err := openai.NewEmbedder(openai.EmbedderConfig{
				BaseURL: server.URL,
				APIKey:  "sk-test",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.Embed(context.Background(), "a")
			Expect(errors.Is(err, rag.ErrEmbeddingUnavailable)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("out of range"))
		})
	})
})

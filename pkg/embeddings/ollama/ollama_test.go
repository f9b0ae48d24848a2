package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/passagehq/passage/pkg/embeddings"
	"github.com/passagehq/passage/pkg/embeddings/ollama"
	"github.com/passagehq/passage/pkg/rag"
)

var _ = Describe("Embedder", func() {
	Describe("Interface compliance", func() {
		It("implements embeddings.Embedder", func() {
			var _ embeddings.Embedder = (*ollama.Embedder)(nil)
		})
	})

	Describe("NewEmbedder", func() {
		It("applies defaults for empty config", func() {
			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Model()).To(Equal(ollama.DefaultEmbeddingModel))
		})

		It("keeps the configured model", func() {
			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{Model: "all-minilm"})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Model()).To(Equal("all-minilm"))
		})
	})

	Describe("Embed", func() {
		It("posts the model and input and returns the first embedding", func() {
			var gotPath string
			var gotBody map[string]any

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"embeddings": [][]float32{{0.1, 0.2, 0.3}},
				})
			}))
			defer server.Close()

			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			vector, err := e.Embed(context.Background(), "hello world")
			Expect(err).NotTo(HaveOccurred())
			Expect(vector).To(HaveLen(3))
			Expect(vector[0]).To(BeNumerically("~", 0.1, 1e-6))

			Expect(gotPath).To(Equal("/api/embed"))
			Expect(gotBody["model"]).To(Equal(ollama.DefaultEmbeddingModel))
			Expect(gotBody["input"]).To(Equal("hello world"))
		})

		It("wraps non-200 responses in the embedding sentinel", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			}))
			defer server.Close()

			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.Embed(context.Background(), "hello")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, rag.ErrEmbeddingUnavailable)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("404"))
		})

		It("errors when the response carries no embeddings", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
			}))
			defer server.Close()

			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.Embed(context.Background(), "hello")
			Expect(errors.Is(err, rag.ErrEmbeddingUnavailable)).To(BeTrue())
		})
	})

	Describe("EmbedBatch", func() {
		It("sends the texts as an array and aligns the result", func() {
			var gotBody map[string]any

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"embeddings": [][]float32{{0.1}, {0.2}, {0.3}},
				})
			}))
			defer server.Close()

			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			result, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Vectors).To(HaveLen(3))
			Expect(result.Errs).To(HaveLen(3))
			Expect(result.FirstError()).To(Succeed())
			Expect(result.Vectors[1][0]).To(BeNumerically("~", 0.2, 1e-6))

			Expect(gotBody["input"]).To(Equal([]any{"a", "b", "c"}))
		})

		It("errors when the embedding count does not match the input", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"embeddings": [][]float32{{0.1}},
				})
			}))
			defer server.Close()

			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})
			Expect(errors.Is(err, rag.ErrEmbeddingUnavailable)).To(BeTrue())
		})

		It("returns an empty result for no texts without calling the API", func() {
			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: "http://127.0.0.1:1"})
			Expect(err).NotTo(HaveOccurred())

			result, err := e.EmbedBatch(context.Background(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Vectors).To(BeEmpty())
		})
	})
})

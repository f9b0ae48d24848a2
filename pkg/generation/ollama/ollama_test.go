package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/passagehq/passage/pkg/generation"
	"github.com/passagehq/passage/pkg/generation/ollama"
	"github.com/passagehq/passage/pkg/rag"
)

var _ = Describe("Backend", func() {
	Describe("Interface compliance", func() {
		It("implements generation.Backend", func() {
			var _ generation.Backend = (*ollama.Backend)(nil)
		})
	})

	Describe("NewBackend", func() {
		It("applies defaults for empty config", func() {
			b, err := ollama.NewBackend(ollama.BackendConfig{})
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Model()).To(Equal(ollama.DefaultModel))
		})

		It("keeps the configured model", func() {
			b, err := ollama.NewBackend(ollama.BackendConfig{Model: "mistral"})
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Model()).To(Equal("mistral"))
		})
	})

	Describe("Complete", func() {
		It("posts a non-streaming chat request and returns the completion", func() {
			var gotPath string
			var gotBody map[string]any

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"message": map[string]string{"role": "assistant", "content": "The sky is blue [1]."},
					"done":    true,
				})
			}))
			defer server.Close()

			b, err := ollama.NewBackend(ollama.BackendConfig{
				BaseURL:     server.URL,
				Temperature: 0.7,
				MaxTokens:   1000,
			})
			Expect(err).NotTo(HaveOccurred())

			completion, err := b.Complete(context.Background(), "What color is the sky?")
			Expect(err).NotTo(HaveOccurred())
			Expect(completion).To(Equal("The sky is blue [1]."))

			Expect(gotPath).To(Equal("/api/chat"))
			Expect(gotBody["model"]).To(Equal(ollama.DefaultModel))
			Expect(gotBody["stream"]).To(BeFalse())

			messages, ok := gotBody["messages"].([]any)
			Expect(ok).To(BeTrue())
			Expect(messages).To(HaveLen(1))
			msg := messages[0].(map[string]any)
			Expect(msg["role"]).To(Equal("user"))
			Expect(msg["content"]).To(Equal("What color is the sky?"))

			options, ok := gotBody["options"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(options["temperature"]).To(BeNumerically("~", 0.7, 1e-6))
			Expect(options["num_predict"]).To(BeNumerically("==", 1000))
		})

		It("wraps non-200 responses in the generation sentinel", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			}))
			defer server.Close()

			b, err := ollama.NewBackend(ollama.BackendConfig{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			_, err = b.Complete(context.Background(), "hello")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, rag.ErrGenerationUnavailable)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("404"))
		})

		It("errors on an empty completion", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"message": map[string]string{"role": "assistant", "content": ""},
					"done":    true,
				})
			}))
			defer server.Close()

			b, err := ollama.NewBackend(ollama.BackendConfig{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			_, err = b.Complete(context.Background(), "hello")
			Expect(errors.Is(err, rag.ErrGenerationUnavailable)).To(BeTrue())
		})

		It("omits num_predict when max tokens is zero", func() {
			var gotBody map[string]any

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"message": map[string]string{"role": "assistant", "content": "ok"},
					"done":    true,
				})
			}))
			defer server.Close()

			b, err := ollama.NewBackend(ollama.BackendConfig{BaseURL: server.URL})
			Expect(err).NotTo(HaveOccurred())

			_, err = b.Complete(context.Background(), "hello")
			Expect(err).NotTo(HaveOccurred())

			options, ok := gotBody["options"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(options).NotTo(HaveKey("num_predict"))
		})
	})
})

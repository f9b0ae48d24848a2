// Package ollama implements pkg/generation's Backend client for Ollama's chat API
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/passagehq/passage/pkg/generation"
	"github.com/passagehq/passage/pkg/rag"
)

const (
	// DefaultModel is the default model used for generation.
	DefaultModel = "llama3.2"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultTimeout bounds generation requests. Local models generate
	// slowly, so the default is generous.
	DefaultTimeout = 120 * time.Second
)

// Backend wraps Ollama's chat API.
type Backend struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   uint
	httpClient  *http.Client
}

// BackendConfig holds configuration for the Ollama generation backend.
type BackendConfig struct {
	// BaseURL is the Ollama API URL (e.g., "http://localhost:11434").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the generation model to use (e.g., "llama3.2", "mistral").
	// Defaults to DefaultModel if empty.
	Model string

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxTokens caps the completion length. Zero leaves the model default.
	MaxTokens uint

	// Timeout bounds each HTTP request. Defaults to DefaultTimeout if zero.
	Timeout time.Duration
}

// chatRequest is the request body for Ollama's chat API.
type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the non-streaming response from Ollama's chat API.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// NewBackend creates a new generation backend using Ollama's chat API.
func NewBackend(cfg BackendConfig) (*Backend, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Backend{
		baseURL:     baseURL,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Model returns the effective generation model name.
func (b *Backend) Model() string {
	return b.model
}

// Complete generates a completion for the prompt.
func (b *Backend) Complete(ctx context.Context, prompt string) (string, error) {
	options := map[string]any{
		"temperature": b.temperature,
	}
	if b.maxTokens > 0 {
		options["num_predict"] = b.maxTokens
	}

	reqBody := chatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Stream:  false,
		Options: options,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", rag.ErrGenerationUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", rag.ErrGenerationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: sending request: %v", rag.ErrGenerationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: ollama returned status %d: %s", rag.ErrGenerationUnavailable, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", rag.ErrGenerationUnavailable, err)
	}

	if chatResp.Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", rag.ErrGenerationUnavailable)
	}

	return chatResp.Message.Content, nil
}

// Close releases resources held by the backend.
func (b *Backend) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// Ensure Backend implements generation.Backend
var _ generation.Backend = (*Backend)(nil)

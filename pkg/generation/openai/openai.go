// Package openai implements pkg/generation's Backend client for OpenAI-compatible chat APIs
package openai

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
	DefaultModel = "gpt-4"

	// DefaultBaseURL is the default OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultTimeout bounds generation requests.
	DefaultTimeout = 120 * time.Second
)

// Backend wraps the OpenAI chat completions API.
type Backend struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   uint
	httpClient  *http.Client
}

// BackendConfig holds configuration for the OpenAI generation backend.
type BackendConfig struct {
	// BaseURL is the API URL. Defaults to DefaultBaseURL if empty; any
	// OpenAI-compatible endpoint works.
	BaseURL string

	// APIKey authenticates requests. Required.
	APIKey string

	// Model is the generation model to use.
	// Defaults to DefaultModel if empty.
	Model string

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxTokens caps the completion length. Zero leaves the model default.
	MaxTokens uint

	// Timeout bounds each HTTP request. Defaults to DefaultTimeout if zero.
	Timeout time.Duration
}

// chatRequest is the request body for the chat completions endpoint.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   uint          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response from the chat completions endpoint.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewBackend creates a new generation backend using the OpenAI chat
// completions API.
func NewBackend(cfg BackendConfig) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

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
		apiKey:      cfg.APIKey,
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
	reqBody := chatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: b.temperature,
		MaxTokens:   b.maxTokens,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", rag.ErrGenerationUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", rag.ErrGenerationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: sending request: %v", rag.ErrGenerationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: openai returned status %d: %s", rag.ErrGenerationUnavailable, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", rag.ErrGenerationUnavailable, err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", rag.ErrGenerationUnavailable)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Close releases resources held by the backend.
func (b *Backend) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// Ensure Backend implements generation.Backend
var _ generation.Backend = (*Backend)(nil)

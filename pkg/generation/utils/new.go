// Package generationutils is the generation utility package
package generationutils

import (
	"fmt"
	"time"

	"github.com/passagehq/passage/pkg/generation"
	"github.com/passagehq/passage/pkg/generation/ollama"
	"github.com/passagehq/passage/pkg/generation/openai"
	"github.com/passagehq/passage/pkg/generation/retry"
)

type NewBackendOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string

	Temperature float64
	MaxTokens   uint

	// Timeout bounds each request to the backend. Zero uses the backend default.
	Timeout time.Duration

	// MaxAttempts, BackoffBase, and BackoffMax configure the retry
	// decorator. Zero values use the decorator defaults.
	MaxAttempts uint
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// NewBackend builds the generation stack for the configured provider:
// backend wrapped with the retry decorator.
func NewBackend(o *NewBackendOpts) (generation.Backend, error) {
	var backend generation.Backend

	switch o.ProviderType {
	case "ollama":
		b, err := ollama.NewBackend(ollama.BackendConfig{
			BaseURL:     o.TargetURL,
			Model:       o.Model,
			Temperature: o.Temperature,
			MaxTokens:   o.MaxTokens,
			Timeout:     o.Timeout,
		})
		if err != nil {
			return nil, err
		}
		backend = b
	case "openai":
		b, err := openai.NewBackend(openai.BackendConfig{
			BaseURL:     o.TargetURL,
			APIKey:      o.APIKey,
			Model:       o.Model,
			Temperature: o.Temperature,
			MaxTokens:   o.MaxTokens,
			Timeout:     o.Timeout,
		})
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", o.ProviderType)
	}

	return retry.New(backend, retry.Config{
		MaxAttempts: o.MaxAttempts,
		BackoffBase: o.BackoffBase,
		BackoffMax:  o.BackoffMax,
	}), nil
}

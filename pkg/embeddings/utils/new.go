// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/embeddings"
	"github.com/passagehq/passage/pkg/embeddings/cache"
	"github.com/passagehq/passage/pkg/embeddings/ollama"
	"github.com/passagehq/passage/pkg/embeddings/openai"
	"github.com/passagehq/passage/pkg/embeddings/retry"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string

	// Cache selects the vector cache: "none", "memory" or "sqlite".
	// Empty behaves as "none".
	Cache string

	// CachePath is the SQLite database path for the "sqlite" cache.
	CachePath string

	// Timeout bounds each request to the backend. Zero uses the backend default.
	Timeout time.Duration

	// MaxAttempts, BackoffBase, and BackoffMax configure the retry
	// decorator. Zero values use the decorator defaults.
	MaxAttempts uint
	BackoffBase time.Duration
	BackoffMax  time.Duration

	Logger *zap.Logger
}

// NewEmbedder builds the embedding stack for the configured provider:
// backend, retry decorator, then the optional cache in front.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var backend embeddings.Embedder
	var model string

	switch o.ProviderType {
	case "ollama":
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			Timeout: o.Timeout,
		})
		if err != nil {
			return nil, err
		}
		backend, model = e, e.Model()
	case "openai":
		e, err := openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL: o.TargetURL,
			APIKey:  o.APIKey,
			Model:   o.Model,
			Timeout: o.Timeout,
		})
		if err != nil {
			return nil, err
		}
		backend, model = e, e.Model()
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}

	wrapped := embeddings.Embedder(retry.New(backend, retry.Config{
		MaxAttempts: o.MaxAttempts,
		BackoffBase: o.BackoffBase,
		BackoffMax:  o.BackoffMax,
	}))

	switch o.Cache {
	case "", "none":
		return wrapped, nil
	case "memory":
		return cache.New(wrapped, cache.NewMemoryStore(), model), nil
	case "sqlite":
		store, err := cache.NewSQLiteStore(cache.SQLiteConfig{DBPath: o.CachePath}, o.Logger)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite embedding cache: %w", err)
		}
		return cache.New(wrapped, store, model), nil
	default:
		return nil, fmt.Errorf("unsupported embedding cache: %s", o.Cache)
	}
}

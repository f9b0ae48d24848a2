// Package retry wraps an Embedder with bounded, backed-off retries.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/passagehq/passage/pkg/embeddings"
	"github.com/passagehq/passage/pkg/rag"
)

const (
	// DefaultMaxAttempts is the number of attempts made before giving up.
	DefaultMaxAttempts = 3

	// DefaultBackoffBase and DefaultBackoffMax bound the backoff schedule
	// when the Config leaves them zero.
	DefaultBackoffBase = 200 * time.Millisecond
	DefaultBackoffMax  = 5 * time.Second
)

// Embedder retries a wrapped Embedder on failure with exponential backoff.
type Embedder struct {
	next        embeddings.Embedder
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
}

// Config holds configuration for the retry decorator.
type Config struct {
	// MaxAttempts bounds the total number of calls per operation.
	// Defaults to DefaultMaxAttempts if zero.
	MaxAttempts uint

	// BackoffBase is the delay before the first retry; each further retry
	// doubles it, capped at BackoffMax. Zero values use the defaults.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// New wraps next with retry behavior.
func New(next embeddings.Embedder, cfg Config) *Embedder {
	maxAttempts := int(cfg.MaxAttempts)
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	base := cfg.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}
	max := cfg.BackoffMax
	if max <= 0 {
		max = DefaultBackoffMax
	}
	if max < base {
		max = base
	}

	return &Embedder{
		next:        next,
		maxAttempts: maxAttempts,
		backoffBase: base,
		backoffMax:  max,
	}
}

// Embed converts text into a vector embedding, retrying transient failures.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.wait(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		vector, err := e.next.Embed(ctx, text)
		if err == nil {
			return vector, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %d attempts: %v", rag.ErrEmbeddingUnavailable, e.maxAttempts, lastErr)
}

// EmbedBatch converts a batch of texts into vector embeddings, retrying the
// whole batch on batch-level failure. Per-item errors inside a returned
// result are not retried.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) (embeddings.BatchResult, error) {
	var lastErr error
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.wait(ctx, attempt-1); err != nil {
				return embeddings.BatchResult{}, err
			}
		}

		result, err := e.next.EmbedBatch(ctx, texts)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return embeddings.BatchResult{}, fmt.Errorf("%w: %d attempts: %v", rag.ErrEmbeddingUnavailable, e.maxAttempts, lastErr)
}

// Close releases resources held by the wrapped embedder.
func (e *Embedder) Close() error {
	return e.next.Close()
}

// wait sleeps for the backoff delay of the given attempt, aborting early
// when the context is cancelled.
func (e *Embedder) wait(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.backoff(attempt)):
		return nil
	}
}

// backoff doubles the base delay per attempt, capped at the configured max.
func (e *Embedder) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return e.backoffMax
	}
	d := e.backoffBase << attempt
	if d > e.backoffMax || d <= 0 {
		d = e.backoffMax
	}
	return d
}

// Ensure Embedder implements embeddings.Embedder
var _ embeddings.Embedder = (*Embedder)(nil)

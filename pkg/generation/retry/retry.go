// Package retry wraps a generation Backend with bounded, backed-off retries.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/passagehq/passage/pkg/generation"
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

// Backend retries a wrapped Backend on failure with exponential backoff.
type Backend struct {
	next        generation.Backend
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
func New(next generation.Backend, cfg Config) *Backend {
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

	return &Backend{
		next:        next,
		maxAttempts: maxAttempts,
		backoffBase: base,
		backoffMax:  max,
	}
}

// Complete generates a completion for the prompt, retrying transient
// failures.
func (b *Backend) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < b.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := b.wait(ctx, attempt-1); err != nil {
				return "", err
			}
		}

		completion, err := b.next.Complete(ctx, prompt)
		if err == nil {
			return completion, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w: %d attempts: %v", rag.ErrGenerationUnavailable, b.maxAttempts, lastErr)
}

// Close releases resources held by the wrapped backend.
func (b *Backend) Close() error {
	return b.next.Close()
}

// wait sleeps for the backoff delay of the given attempt, aborting early
// when the context is cancelled.
func (b *Backend) wait(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.backoff(attempt)):
		return nil
	}
}

// backoff doubles the base delay per attempt, capped at the configured max.
func (b *Backend) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return b.backoffMax
	}
	d := b.backoffBase << attempt
	if d > b.backoffMax || d <= 0 {
		d = b.backoffMax
	}
	return d
}

// Ensure Backend implements generation.Backend
var _ generation.Backend = (*Backend)(nil)

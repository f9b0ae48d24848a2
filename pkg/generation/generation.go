// Package generation
package generation

import "context"

// Backend produces completions from a language model. The prompt carries
// everything the model needs, instructions included; backends add no hidden
// context of their own.
type Backend interface {
	// Complete generates a completion for the prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// Close releases any resources held by the backend.
	Close() error
}

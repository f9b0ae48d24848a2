package testutils

import (
	"context"
	"sync"

	"github.com/passagehq/passage/pkg/generation"
)

// MockGenerator is a test generation backend with a canned response.
type MockGenerator struct {
	mu sync.Mutex

	// Response is returned by Complete. When ResponseFunc is set it takes
	// precedence.
	Response string

	// ResponseFunc computes the completion from the prompt.
	ResponseFunc func(prompt string) (string, error)

	// Err is returned by Complete when set.
	Err error

	// Prompts records every prompt passed to Complete.
	Prompts []string
}

func NewMockGenerator(response string) *MockGenerator {
	return &MockGenerator{Response: response}
}

func (m *MockGenerator) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)

	if m.Err != nil {
		return "", m.Err
	}
	if m.ResponseFunc != nil {
		return m.ResponseFunc(prompt)
	}
	return m.Response, nil
}

func (m *MockGenerator) Close() error {
	return nil
}

// Calls reports how many times Complete ran.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// Ensure MockGenerator implements generation.Backend
var _ generation.Backend = (*MockGenerator)(nil)

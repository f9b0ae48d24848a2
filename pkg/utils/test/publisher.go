package testutils

import (
	"context"
	"sync"

	"github.com/passagehq/passage/pkg/eventstream"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu sync.Mutex

	// Events accumulates every published event in order.
	Events []*eventstream.DocumentEvent

	// Err is returned by Publish when set.
	Err error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, event *eventstream.DocumentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event == nil {
		return eventstream.ErrNilEvent
	}
	if m.Err != nil {
		return m.Err
	}

	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Published returns a snapshot of the recorded events.
func (m *MockPublisher) Published() []*eventstream.DocumentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.DocumentEvent(nil), m.Events...)
}

// Ensure MockPublisher implements eventstream.Publisher
var _ eventstream.Publisher = (*MockPublisher)(nil)

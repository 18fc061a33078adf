// Package publish announces finished crawl sessions to downstream consumers
// such as report builders, so they can pick up the stored session.
package publish

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CompletionEvent is the message emitted once per finished session.
type CompletionEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	Seed      string    `json:"seed"`
	Visited   int       `json:"visited"`
	Failed    int       `json:"failed"`
	Finished  time.Time `json:"finished_at"`
}

// Publisher sends completion events.
type Publisher interface {
	PublishCompletion(ctx context.Context, event CompletionEvent) error
	Close() error
}

// NoOp discards events. Useful when no downstream is configured.
type NoOp struct{}

// PublishCompletion implements Publisher.
func (NoOp) PublishCompletion(context.Context, CompletionEvent) error { return nil }

// Close implements Publisher.
func (NoOp) Close() error { return nil }

// Memory collects events in-process for tests and development.
type Memory struct {
	mu     sync.Mutex
	events []CompletionEvent
}

// NewMemory returns an empty Memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// PublishCompletion implements Publisher.
func (m *Memory) PublishCompletion(_ context.Context, event CompletionEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

// Close implements Publisher.
func (m *Memory) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *Memory) Events() []CompletionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionEvent(nil), m.events...)
}

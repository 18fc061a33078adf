package sinks

import (
	"context"
	"sync"

	"github.com/seoscope/crawler/internal/progress"
)

// LatestStore keeps the most recent snapshot for read-side consumers such as
// the HTTP API. The zero value is unusable; use NewLatestStore.
type LatestStore struct {
	mu   sync.RWMutex
	snap progress.Snapshot
	set  bool
}

// NewLatestStore returns an empty store.
func NewLatestStore() *LatestStore {
	return &LatestStore{}
}

// Consume implements progress.Sink.
func (s *LatestStore) Consume(_ context.Context, snap progress.Snapshot) error {
	s.mu.Lock()
	s.snap = snap
	s.set = true
	s.mu.Unlock()
	return nil
}

// Close implements progress.Sink.
func (s *LatestStore) Close(context.Context) error {
	return nil
}

// Latest returns the newest snapshot and whether one has been stored yet.
func (s *LatestStore) Latest() (progress.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.set
}

package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	snaps  []Snapshot
	closed bool
}

func (c *captureSink) Consume(_ context.Context, snap Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, snap)
	return nil
}

func (c *captureSink) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureSink) all() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Snapshot(nil), c.snaps...)
}

func snapshotN(id uuid.UUID, visited int) Snapshot {
	return Snapshot{SessionID: id, TS: time.Now().UTC(), Visited: visited}
}

func TestHubDeliversSnapshot(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(Config{MinInterval: time.Millisecond}, sink)

	id := uuid.New()
	hub.Emit(snapshotN(id, 1))
	require.NoError(t, hub.Close(context.Background()))

	snaps := sink.all()
	require.NotEmpty(t, snaps)
	require.Equal(t, 1, snaps[len(snaps)-1].Visited)
	require.True(t, sink.closed)
}

func TestHubCoalescesToNewest(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(Config{MinInterval: 50 * time.Millisecond}, sink)

	id := uuid.New()
	for i := 1; i <= 100; i++ {
		hub.Emit(snapshotN(id, i))
	}
	require.NoError(t, hub.Close(context.Background()))

	snaps := sink.all()
	require.NotEmpty(t, snaps)
	// Intermediate snapshots may be dropped, but the final state survives
	// and visited counts never go backwards.
	require.Equal(t, 100, snaps[len(snaps)-1].Visited)
	for i := 1; i < len(snaps); i++ {
		require.GreaterOrEqual(t, snaps[i].Visited, snaps[i-1].Visited)
	}
	require.Less(t, len(snaps), 100)
}

func TestHubDropsInvalidSnapshot(t *testing.T) {
	sink := &captureSink{}
	hub := NewHub(Config{MinInterval: time.Millisecond}, sink)

	hub.Emit(Snapshot{}) // missing session id and timestamp
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.all())
}

func TestHubCloseIdempotent(t *testing.T) {
	hub := NewHub(Config{}, &captureSink{})
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
}

func TestNilHubEmitIsSafe(t *testing.T) {
	var hub *Hub
	hub.Emit(snapshotN(uuid.New(), 1))
}

package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seoscope/crawler/internal/progress"
)

func testSnapshot(visited int) progress.Snapshot {
	return progress.Snapshot{
		SessionID: uuid.New(),
		TS:        time.Now().UTC(),
		Visited:   visited,
		Remaining: 10 - visited,
	}
}

func TestLatestStoreEmpty(t *testing.T) {
	store := NewLatestStore()
	_, ok := store.Latest()
	require.False(t, ok)
}

func TestLatestStoreKeepsNewest(t *testing.T) {
	store := NewLatestStore()
	ctx := context.Background()

	first := testSnapshot(1)
	second := testSnapshot(5)
	require.NoError(t, store.Consume(ctx, first))
	require.NoError(t, store.Consume(ctx, second))

	got, ok := store.Latest()
	require.True(t, ok)
	require.Equal(t, second, got)
}

func TestLogSinkDoesNotError(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	sink := NewLogSink(logger)
	require.NoError(t, sink.Consume(context.Background(), testSnapshot(3)))
	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSinkDeltaTracking(t *testing.T) {
	sink := NewPrometheusSink()
	ctx := context.Background()

	snap := testSnapshot(2)
	require.NoError(t, sink.Consume(ctx, snap))
	require.Equal(t, snap, sink.last)

	snap.Visited = 7
	require.NoError(t, sink.Consume(ctx, snap))
	require.Equal(t, 7, sink.last.Visited)
}

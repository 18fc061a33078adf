package publish

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublisherCollectsEvents(t *testing.T) {
	pub := NewMemory()
	event := CompletionEvent{
		SessionID: uuid.New(),
		Seed:      "https://example.com/",
		Visited:   10,
		Failed:    1,
		Finished:  time.Now().UTC(),
	}

	require.NoError(t, pub.PublishCompletion(context.Background(), event))
	require.NoError(t, pub.Close())

	events := pub.Events()
	require.Len(t, events, 1)
	require.Equal(t, event, events[0])
}

func TestMemoryPublisherEventsCopy(t *testing.T) {
	pub := NewMemory()
	require.NoError(t, pub.PublishCompletion(context.Background(), CompletionEvent{SessionID: uuid.New()}))

	events := pub.Events()
	events[0].Seed = "mutated"
	require.Empty(t, pub.Events()[0].Seed)
}

func TestNoOpPublisher(t *testing.T) {
	var pub NoOp
	require.NoError(t, pub.PublishCompletion(context.Background(), CompletionEvent{}))
	require.NoError(t, pub.Close())
}

package progress

import "context"

// Sink consumes progress snapshots. Implementations must honor ctx deadlines
// and tolerate being handed a newer snapshot than the last one they saw;
// intermediate snapshots may be coalesced away.
type Sink interface {
	Consume(ctx context.Context, snap Snapshot) error
	Close(ctx context.Context) error
}

// Emitter publishes individual snapshots; Hub satisfies this interface so the
// scheduler stays agnostic about buffering and fan-out.
type Emitter interface {
	Emit(snap Snapshot)
}

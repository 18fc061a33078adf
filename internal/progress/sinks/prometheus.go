package sinks

import (
	"context"

	"github.com/seoscope/crawler/internal/metrics"
	"github.com/seoscope/crawler/internal/progress"
)

// PrometheusSink projects snapshot deltas onto the process-wide collectors.
// Snapshots may be coalesced, so it tracks the last seen counts and adds the
// difference.
type PrometheusSink struct {
	last progress.Snapshot
}

// NewPrometheusSink returns an empty sink.
func NewPrometheusSink() *PrometheusSink {
	return &PrometheusSink{}
}

// Consume implements progress.Sink. The hub serializes calls, so no locking
// is needed.
func (s *PrometheusSink) Consume(_ context.Context, snap progress.Snapshot) error {
	if snap.SessionID != s.last.SessionID {
		s.last = progress.Snapshot{SessionID: snap.SessionID}
	}
	addDelta(metrics.PagesVisited, snap.Visited, s.last.Visited)
	addDelta(metrics.PagesFailed, snap.Failed, s.last.Failed)
	addDelta(metrics.PagesSkippedFilter, snap.SkippedFilter, s.last.SkippedFilter)
	addDelta(metrics.PagesSkippedRobots, snap.SkippedRobots, s.last.SkippedRobots)
	metrics.FrontierRemaining.Set(float64(snap.Remaining))
	s.last = snap
	return nil
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type counterAdder interface {
	Add(float64)
}

func addDelta(c counterAdder, current, previous int) {
	if d := current - previous; d > 0 {
		c.Add(float64(d))
	}
}

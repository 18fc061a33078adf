// Package progress defines the snapshot structures emitted by the scheduler.
package progress

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Snapshot is one observation of crawl progress. Snapshots are monotonically
// increasing in Visited; the feed is purely observational and never affects
// crawl correctness, so consumers may miss intermediate snapshots.
type Snapshot struct {
	// SessionID identifies the crawl session the snapshot belongs to.
	SessionID uuid.UUID `json:"session_id"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// Visited counts page records created so far.
	Visited int `json:"visited"`
	// Remaining estimates frontier entries still eligible for dispatch. It is
	// an estimate only.
	Remaining int `json:"remaining"`
	// CurrentURL is the most recently resolved URL, empty on the final snapshot.
	CurrentURL string `json:"current_url,omitempty"`
	// Fetched/Failed/SkippedFilter/SkippedRobots mirror the session counters.
	Fetched       int `json:"fetched"`
	Failed        int `json:"failed"`
	SkippedFilter int `json:"skipped_filter"`
	SkippedRobots int `json:"skipped_robots"`
	// Done marks the terminal snapshot of a session.
	Done bool `json:"done"`
}

// Validate performs coarse validation on Snapshot payloads.
func (s Snapshot) Validate() error {
	if s.SessionID == uuid.Nil {
		return errors.New("session id is required")
	}
	if s.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if s.Visited < 0 || s.Remaining < 0 {
		return errors.New("counts must be >= 0")
	}
	return nil
}

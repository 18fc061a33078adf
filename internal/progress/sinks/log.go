// Package sinks provides progress.Sink implementations: structured logging,
// Prometheus counters, and a latest-snapshot store backing the HTTP API.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/seoscope/crawler/internal/progress"
)

// LogSink writes each flushed snapshot to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wraps logger as a progress sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume implements progress.Sink.
func (s *LogSink) Consume(_ context.Context, snap progress.Snapshot) error {
	s.logger.Info("crawl progress",
		zap.String("session_id", snap.SessionID.String()),
		zap.Int("visited", snap.Visited),
		zap.Int("remaining", snap.Remaining),
		zap.Int("fetched", snap.Fetched),
		zap.Int("failed", snap.Failed),
		zap.String("current_url", snap.CurrentURL),
		zap.Bool("done", snap.Done),
	)
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}

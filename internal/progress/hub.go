package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config controls coalescing and fan-out for the Hub.
//   - MinInterval: minimum gap between sink flushes (default 100ms). Snapshots
//     arriving faster than this are coalesced; the newest wins.
//   - SinkTimeout: per-sink timeout while flushing (default 5s).
//   - BaseContext: parent context passed to sink calls (defaults to
//     context.Background()).
//   - Logger: optional structured logger used for warnings.
type Config struct {
	MinInterval time.Duration
	SinkTimeout time.Duration
	BaseContext context.Context
	Logger      *zap.Logger
}

const (
	defaultMinInterval = 100 * time.Millisecond
	defaultSinkTimeout = 5 * time.Second
)

// Hub fans the latest progress snapshot out to registered sinks. Emit never
// blocks the caller: the hub keeps only the most recent snapshot and flushes
// it at most once per MinInterval, which is all a monotonic progress feed
// needs.
type Hub struct {
	cfg    Config
	sinks  []Sink
	logger *zap.Logger

	mu      sync.Mutex
	latest  Snapshot
	pending bool

	notify chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub initializes a Hub and starts the background fan-out goroutine.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaultMinInterval
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		logger: logger,
		notify: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go h.run()
	return h
}

// Emit records the snapshot as the newest state. It never blocks; an older
// pending snapshot is simply replaced.
func (h *Hub) Emit(snap Snapshot) {
	if h == nil {
		return
	}
	if err := snap.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress snapshot", zap.Error(err))
		return
	}
	h.mu.Lock()
	h.latest = snap
	h.pending = true
	h.mu.Unlock()
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Close flushes the final snapshot, closes sinks, and blocks until the
// background goroutine exits. Safe to call more than once.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closeCtx = ctx
		close(h.stopCh)
	})
	select {
	case <-h.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.doneCh)
	var lastFlush time.Time
	for {
		select {
		case <-h.notify:
			if wait := h.cfg.MinInterval - time.Since(lastFlush); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-h.stopCh:
					timer.Stop()
					h.finish()
					return
				}
			}
			h.flushPending()
			lastFlush = time.Now()
		case <-h.stopCh:
			h.finish()
			return
		}
	}
}

func (h *Hub) finish() {
	h.flushPending()
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}

func (h *Hub) flushPending() {
	h.mu.Lock()
	if !h.pending {
		h.mu.Unlock()
		return
	}
	snap := h.latest
	h.pending = false
	h.mu.Unlock()

	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, snap); err != nil {
			h.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

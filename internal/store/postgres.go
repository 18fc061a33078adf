// Package store persists finished crawl sessions to Postgres.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/seoscope/crawler/internal/crawl"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// SessionStore writes one finished session, its page records, and its link
// graph in a single transaction.
//
// Expected schema:
//
//	CREATE TABLE crawl_sessions (
//	    id UUID PRIMARY KEY,
//	    seed TEXT NOT NULL,
//	    started_at TIMESTAMPTZ NOT NULL,
//	    finished_at TIMESTAMPTZ NOT NULL,
//	    fetched INT NOT NULL,
//	    failed INT NOT NULL,
//	    skipped_filter INT NOT NULL,
//	    skipped_robots INT NOT NULL
//	);
//	CREATE TABLE crawl_pages (
//	    session_id UUID REFERENCES crawl_sessions(id),
//	    url TEXT NOT NULL,
//	    redirected_from TEXT,
//	    depth INT NOT NULL,
//	    discovered_from TEXT,
//	    source TEXT NOT NULL,
//	    status INT NOT NULL,
//	    fetch_error TEXT,
//	    content_type TEXT,
//	    duration_ms BIGINT NOT NULL,
//	    size INT NOT NULL,
//	    attempts INT NOT NULL,
//	    degraded_tls BOOLEAN NOT NULL,
//	    used_render BOOLEAN NOT NULL,
//	    robots_denied BOOLEAN NOT NULL,
//	    fetched_at TIMESTAMPTZ,
//	    archive_uri TEXT,
//	    extraction JSONB,
//	    indexable BOOLEAN NOT NULL,
//	    indexability_status TEXT,
//	    inlinks INT NOT NULL,
//	    unique_inlinks INT NOT NULL,
//	    PRIMARY KEY (session_id, url)
//	);
//	CREATE TABLE crawl_links (
//	    session_id UUID REFERENCES crawl_sessions(id),
//	    source TEXT NOT NULL,
//	    target TEXT NOT NULL,
//	    anchor TEXT
//	);
type SessionStore struct {
	pool   txBeginner
	logger *zap.Logger
}

// NewSessionStore connects a pool using cfg.
func NewSessionStore(ctx context.Context, cfg Config, logger *zap.Logger) (*SessionStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewSessionStoreWithPool(pool, logger)
}

// NewSessionStoreWithPool constructs a store from an existing pool,
// primarily for testing.
func NewSessionStoreWithPool(pool txBeginner, logger *zap.Logger) (*SessionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{pool: pool, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *SessionStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveSession persists export atomically. Either the whole session lands or
// nothing does.
func (s *SessionStore) SaveSession(ctx context.Context, export crawl.Export) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("session store is not configured")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			s.logger.Warn("session rollback failed", zap.Error(rbErr))
		}
	}()

	if _, err := tx.Exec(ctx, `
INSERT INTO crawl_sessions (
	id, seed, started_at, finished_at,
	fetched, failed, skipped_filter, skipped_robots
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		export.ID,
		export.Seed,
		export.Started,
		export.Finished,
		export.Counters.Fetched,
		export.Counters.Failed,
		export.Counters.SkippedFilter,
		export.Counters.SkippedRobots,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, page := range export.Pages {
		extractionJSON, err := json.Marshal(page.Extraction)
		if err != nil {
			return fmt.Errorf("marshal extraction for %s: %w", page.URL, err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO crawl_pages (
	session_id, url, redirected_from, depth, discovered_from, source,
	status, fetch_error, content_type, duration_ms, size, attempts,
	degraded_tls, used_render, robots_denied, fetched_at, archive_uri,
	extraction, indexable, indexability_status, inlinks, unique_inlinks
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22
)`,
			export.ID,
			page.URL,
			page.RedirectedFrom,
			page.Depth,
			page.DiscoveredFrom,
			string(page.Source),
			page.Status,
			page.FetchError,
			page.ContentType,
			page.Duration.Milliseconds(),
			page.Size,
			page.Attempts,
			page.DegradedTLS,
			page.UsedRender,
			page.RobotsDenied,
			page.FetchedAt,
			page.ArchiveURI,
			extractionJSON,
			page.Indexable,
			page.IndexabilityStatus,
			page.Inlinks,
			page.UniqueInlinks,
		); err != nil {
			return fmt.Errorf("insert page %s: %w", page.URL, err)
		}
	}

	for _, edge := range export.Edges {
		if _, err := tx.Exec(ctx, `
INSERT INTO crawl_links (session_id, source, target, anchor)
VALUES ($1,$2,$3,$4)`,
			export.ID,
			edge.Source,
			edge.Target,
			edge.Anchor,
		); err != nil {
			return fmt.Errorf("insert link edge: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

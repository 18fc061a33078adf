package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seoscope/crawler/internal/crawl"
)

func testExport() crawl.Export {
	now := time.Unix(1700000000, 0).UTC()
	return crawl.Export{
		ID:       uuid.New(),
		Seed:     "https://example.com/",
		Started:  now,
		Finished: now.Add(time.Minute),
		Counters: crawl.Counters{Fetched: 2, Failed: 0},
		Pages: []*crawl.PageRecord{
			{
				URL:       "https://example.com/",
				Depth:     0,
				Source:    crawl.SourceSeed,
				Status:    200,
				FetchedAt: now,
				Indexable: true,
			},
			{
				URL:            "https://example.com/about",
				Depth:          1,
				DiscoveredFrom: "https://example.com/",
				Source:         crawl.SourceLink,
				Status:         200,
				FetchedAt:      now,
				Indexable:      true,
			},
		},
		Edges: []crawl.LinkEdge{
			{Source: "https://example.com/", Target: "https://example.com/about", Anchor: "About"},
		},
	}
}

func newMockStore(t *testing.T) (*SessionStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger, _ := zap.NewDevelopment()
	store, err := NewSessionStoreWithPool(mock, logger)
	require.NoError(t, err)
	return store, mock
}

func TestSaveSessionCommitsAllRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	export := testExport()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO crawl_sessions").
		WithArgs(
			export.ID, export.Seed, export.Started, export.Finished,
			2, 0, 0, 0,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for range export.Pages {
		mock.ExpectExec("INSERT INTO crawl_pages").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec("INSERT INTO crawl_links").
		WithArgs(export.ID, export.Edges[0].Source, export.Edges[0].Target, export.Edges[0].Anchor).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveSession(context.Background(), export))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSessionRollsBackOnPageError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	export := testExport()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO crawl_sessions").
		WithArgs(
			export.ID, export.Seed, export.Started, export.Finished,
			2, 0, 0, 0,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO crawl_pages").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.SaveSession(context.Background(), export)
	require.Error(t, err)
	require.Contains(t, err.Error(), "insert page")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSessionStoreRequiresPool(t *testing.T) {
	t.Parallel()
	_, err := NewSessionStoreWithPool(nil, nil)
	require.Error(t, err)
}

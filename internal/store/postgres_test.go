package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_SaveSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rec := testSession("how do go channels work")
	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(pgxmock.AnyArg(), rec.Query, rec.Narrative, rec.Confidence, pgxmock.AnyArg(),
			rec.CacheHit, rec.Terminal, rec.DurationMS, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveSession(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSession_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, query, narrative, confidence, sources, cache_hit, terminal, duration_ms, created_at FROM sessions WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSession(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get session")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSessions(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "query", "narrative", "confidence", "sources", "cache_hit", "terminal", "duration_ms", "created_at"}).
		AddRow("s-1", "query one", "narrative one", 0.9, []byte(`["github"]`), false, "done", int64(1200), now).
		AddRow("s-2", "query two", "narrative two", 0.5, []byte(`["hackernews","stackoverflow"]`), true, "done", int64(30), now.Add(-time.Minute))

	mock.ExpectQuery(`SELECT id, query, narrative, confidence, sources, cache_hit, terminal, duration_ms, created_at FROM sessions WHERE 1=1 ORDER BY created_at DESC`).
		WithArgs(50, 0).
		WillReturnRows(rows)

	got, err := s.ListSessions(context.Background(), SessionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s-1", got[0].ID)
	assert.Equal(t, []string{"hackernews", "stackoverflow"}, got[1].Sources)
	assert.True(t, got[1].CacheHit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSessions_TerminalFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`AND terminal = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("failed", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "query", "narrative", "confidence", "sources", "cache_hit", "terminal", "duration_ms", "created_at"}))

	got, err := s.ListSessions(context.Background(), SessionFilter{Terminal: "failed", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

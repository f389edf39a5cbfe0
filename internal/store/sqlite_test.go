package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deep-research/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testSession(query string) *model.SessionRecord {
	return &model.SessionRecord{
		Query:      query,
		Narrative:  "Go channels are typed conduits for goroutine communication.",
		Confidence: 0.82,
		Sources:    []string{"github", "hackernews"},
		Terminal:   "done",
		DurationMS: 1450,
	}
}

func TestSQLiteStore_SaveAndGetSession(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := testSession("how do go channels work")
	require.NoError(t, s.SaveSession(ctx, rec))
	require.NotEmpty(t, rec.ID, "SaveSession should assign an ID")
	require.False(t, rec.CreatedAt.IsZero())

	got, err := s.GetSession(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Query, got.Query)
	assert.Equal(t, rec.Narrative, got.Narrative)
	assert.InDelta(t, rec.Confidence, got.Confidence, 1e-9)
	assert.Equal(t, rec.Sources, got.Sources)
	assert.False(t, got.CacheHit)
	assert.Equal(t, "done", got.Terminal)
	assert.EqualValues(t, 1450, got.DurationMS)
}

func TestSQLiteStore_GetSession_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.GetSession(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get session")
}

func TestSQLiteStore_ListSessions_Filters(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	done := testSession("query one")
	done.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.SaveSession(ctx, done))

	low := testSession("query two")
	low.Terminal = "done_low_confidence"
	low.Confidence = 0.4
	require.NoError(t, s.SaveSession(ctx, low))

	hit := testSession("query three")
	hit.CacheHit = true
	require.NoError(t, s.SaveSession(ctx, hit))

	all, err := s.ListSessions(ctx, SessionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	lows, err := s.ListSessions(ctx, SessionFilter{Terminal: "done_low_confidence"})
	require.NoError(t, err)
	require.Len(t, lows, 1)
	assert.Equal(t, "query two", lows[0].Query)

	cacheHit := true
	hits, err := s.ListSessions(ctx, SessionFilter{CacheHit: &cacheHit})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "query three", hits[0].Query)
}

func TestSQLiteStore_ListSessions_LimitAndOrder(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-10 * time.Minute)
	for i := 0; i < 5; i++ {
		rec := testSession("query")
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.SaveSession(ctx, rec))
	}

	page, err := s.ListSessions(ctx, SessionFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt) || page[0].CreatedAt.Equal(page[1].CreatedAt),
		"newest session should come first")
}

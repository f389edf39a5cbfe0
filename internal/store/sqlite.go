package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/deep-research/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	query       TEXT NOT NULL,
	narrative   TEXT NOT NULL,
	confidence  REAL NOT NULL,
	sources     TEXT NOT NULL,
	cache_hit   INTEGER NOT NULL DEFAULT 0,
	terminal    TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_sessions_terminal ON sessions(terminal);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSession(ctx context.Context, rec *model.SessionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	sourcesJSON, err := json.Marshal(rec.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, query, narrative, confidence, sources, cache_hit, terminal, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Query, rec.Narrative, rec.Confidence, string(sourcesJSON),
		boolToInt(rec.CacheHit), rec.Terminal, rec.DurationMS, rec.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert session")
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, query, narrative, confidence, sources, cache_hit, terminal, duration_ms, created_at
		 FROM sessions WHERE id = ?`, id)
	rec, err := scanSQLiteSession(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.SessionRecord, error) {
	query := `SELECT id, query, narrative, confidence, sources, cache_hit, terminal, duration_ms, created_at FROM sessions WHERE 1=1`
	args := []any{}
	if filter.Terminal != "" {
		query += ` AND terminal = ?`
		args = append(args, filter.Terminal)
	}
	if filter.CacheHit != nil {
		query += ` AND cache_hit = ?`
		args = append(args, boolToInt(*filter.CacheHit))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var out []model.SessionRecord
	for rows.Next() {
		rec, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list sessions")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (*model.SessionRecord, error) {
	var (
		rec         model.SessionRecord
		sourcesJSON string
		cacheHit    int
	)
	if err := row.Scan(&rec.ID, &rec.Query, &rec.Narrative, &rec.Confidence,
		&sourcesJSON, &cacheHit, &rec.Terminal, &rec.DurationMS, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &rec.Sources); err != nil {
		return nil, eris.Wrap(err, "unmarshal sources")
	}
	rec.CacheHit = cacheHit != 0
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

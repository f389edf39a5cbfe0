package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/deep-research/internal/db"
	"github.com/sells-group/deep-research/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_session": `INSERT INTO sessions (id, query, narrative, confidence, sources, cache_hit, terminal, duration_ms, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"get_session":    `SELECT id, query, narrative, confidence, sources, cache_hit, terminal, duration_ms, created_at FROM sessions WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	query       TEXT NOT NULL,
	narrative   TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	sources     JSONB NOT NULL DEFAULT '[]'::jsonb,
	cache_hit   BOOLEAN NOT NULL DEFAULT FALSE,
	terminal    TEXT NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_terminal ON sessions(terminal);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, rec *model.SessionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	sourcesJSON, err := json.Marshal(rec.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, query, narrative, confidence, sources, cache_hit, terminal, duration_ms, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.Query, rec.Narrative, rec.Confidence, sourcesJSON,
		rec.CacheHit, rec.Terminal, rec.DurationMS, rec.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "postgres: insert session")
	}
	if tag.RowsAffected() != 1 {
		return eris.Errorf("postgres: insert session: %d rows affected", tag.RowsAffected())
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.SessionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, query, narrative, confidence, sources, cache_hit, terminal, duration_ms, created_at FROM sessions WHERE id = $1`, id)
	rec, err := scanPostgresSession(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get session %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.SessionRecord, error) {
	query := `SELECT id, query, narrative, confidence, sources, cache_hit, terminal, duration_ms, created_at FROM sessions WHERE 1=1`
	args := []any{}
	argN := 1
	if filter.Terminal != "" {
		query += fmt.Sprintf(` AND terminal = $%d`, argN)
		args = append(args, filter.Terminal)
		argN++
	}
	if filter.CacheHit != nil {
		query += fmt.Sprintf(` AND cache_hit = $%d`, argN)
		args = append(args, *filter.CacheHit)
		argN++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argN, argN+1)
	args = append(args, limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var out []model.SessionRecord
	for rows.Next() {
		rec, err := scanPostgresSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list sessions")
}

func scanPostgresSession(row pgx.Row) (*model.SessionRecord, error) {
	var (
		rec         model.SessionRecord
		sourcesJSON []byte
	)
	if err := row.Scan(&rec.ID, &rec.Query, &rec.Narrative, &rec.Confidence,
		&sourcesJSON, &rec.CacheHit, &rec.Terminal, &rec.DurationMS, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sourcesJSON, &rec.Sources); err != nil {
		return nil, eris.Wrap(err, "unmarshal sources")
	}
	return &rec, nil
}

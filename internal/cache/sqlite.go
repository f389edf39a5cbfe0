package cache

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/deep-research/internal/embed"
	"github.com/sells-group/deep-research/internal/model"
)

// SQLite is a persistent cache backend using modernc.org/sqlite. WAL mode
// plus busy_timeout make concurrent pipeline instances safe.
type SQLite struct {
	db       *sql.DB
	embedder embed.Embedder
	policy   Policy
}

// NewSQLite opens (and migrates) a cache database at the given path.
func NewSQLite(dsn string, embedder embed.Embedder, policy Policy) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	const migration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	query_text  TEXT PRIMARY KEY,
	embedding   BLOB NOT NULL,
	result      TEXT NOT NULL,
	inserted_at DATETIME NOT NULL,
	hit_count   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_inserted_at ON cache_entries(inserted_at);
`
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate")
	}

	return &SQLite{db: db, embedder: embedder, policy: policy}, nil
}

// Lookup scans non-expired entries and returns the nearest above the
// threshold, incrementing its hit count.
func (s *SQLite) Lookup(ctx context.Context, q model.Query) (*Hit, error) {
	vec := q.Embedding
	if vec == nil {
		embedded, err := s.embedder.Embed(q.Raw)
		if err != nil {
			return nil, eris.Wrap(err, "cache: embed query")
		}
		vec = embedded
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT query_text, embedding, result FROM cache_entries WHERE inserted_at > ?`,
		s.cutoff(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "cache: query entries")
	}
	defer rows.Close()

	var bestText string
	var bestResult string
	bestSim := 0.0
	for rows.Next() {
		var text string
		var blob []byte
		var resultJSON string
		if err := rows.Scan(&text, &blob, &resultJSON); err != nil {
			return nil, eris.Wrap(err, "cache: scan entry")
		}
		sim := embed.Cosine(vec, decodeVector(blob))
		if sim > bestSim {
			bestText, bestResult, bestSim = text, resultJSON, sim
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "cache: iterate entries")
	}

	if bestText == "" || bestSim < s.policy.Threshold {
		return nil, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1 WHERE query_text = ?`,
		bestText,
	); err != nil {
		return nil, eris.Wrap(err, "cache: increment hit count")
	}

	var result model.SynthesisResult
	if err := json.Unmarshal([]byte(bestResult), &result); err != nil {
		return nil, eris.Wrap(err, "cache: unmarshal result")
	}
	result.CacheHit = true
	return &Hit{Result: result, Similarity: bestSim}, nil
}

// Store upserts keyed on normalized query text, then evicts past bounds.
func (s *SQLite) Store(ctx context.Context, q model.Query, result *model.SynthesisResult) error {
	vec := q.Embedding
	if vec == nil {
		embedded, err := s.embedder.Embed(q.Raw)
		if err != nil {
			return eris.Wrap(err, "cache: embed query")
		}
		vec = embedded
	}

	stored := *result
	stored.CacheHit = false
	resultJSON, err := json.Marshal(&stored)
	if err != nil {
		return eris.Wrap(err, "cache: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (query_text, embedding, result, inserted_at, hit_count)
		 VALUES (?, ?, ?, ?, 0)
		 ON CONFLICT(query_text) DO UPDATE SET
		   embedding = excluded.embedding,
		   result = excluded.result,
		   inserted_at = excluded.inserted_at`,
		q.Normalized, encodeVector(vec), string(resultJSON), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "cache: upsert entry")
	}

	return s.evict(ctx)
}

// Stats implements Cache.
func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM cache_entries WHERE inserted_at > ?`,
		s.cutoff(),
	)
	st := Stats{Threshold: s.policy.Threshold, Backend: "sqlite"}
	if err := row.Scan(&st.Entries, &st.TotalHits); err != nil {
		return Stats{}, eris.Wrap(err, "cache: stats")
	}
	return st, nil
}

// Close implements Cache.
func (s *SQLite) Close() error { return s.db.Close() }

// cutoff returns the expiry bound for queries. A zero TTL disables
// expiry, matching the in-memory backend.
func (s *SQLite) cutoff() time.Time {
	if s.policy.TTL <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().Add(-s.policy.TTL)
}

func (s *SQLite) evict(ctx context.Context) error {
	if s.policy.TTL > 0 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE inserted_at <= ?`,
			time.Now().UTC().Add(-s.policy.TTL),
		); err != nil {
			return eris.Wrap(err, "cache: evict expired")
		}
	}
	if s.policy.MaxEntries > 0 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE query_text IN (
			   SELECT query_text FROM cache_entries
			   ORDER BY inserted_at DESC LIMIT -1 OFFSET ?
			 )`,
			s.policy.MaxEntries,
		); err != nil {
			return eris.Wrap(err, "cache: evict overflow")
		}
	}
	return nil
}

// encodeVector packs float32s little-endian for BLOB storage.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deep-research/internal/embed"
	"github.com/sells-group/deep-research/internal/model"
)

// Memory is a lock-guarded in-process cache backend.
type Memory struct {
	embedder embed.Embedder
	policy   Policy

	mu      sync.Mutex
	entries map[string]*memoryEntry // keyed by normalized query text
	hits    int64
	now     func() time.Time
}

type memoryEntry struct {
	queryText  string
	embedding  []float32
	result     model.SynthesisResult
	insertedAt time.Time
	hitCount   int64
}

// NewMemory creates an in-memory cache.
func NewMemory(embedder embed.Embedder, policy Policy) *Memory {
	return &Memory{
		embedder: embedder,
		policy:   policy,
		entries:  make(map[string]*memoryEntry),
		now:      time.Now,
	}
}

// WithNow fixes the clock for tests.
func (m *Memory) WithNow(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Lookup finds the nearest stored embedding by cosine similarity. A hit
// requires similarity at or above the policy threshold and increments the
// entry's hit count. No network, no adapters, no model.
func (m *Memory) Lookup(ctx context.Context, q model.Query) (*Hit, error) {
	vec := q.Embedding
	if vec == nil {
		embedded, err := m.embedder.Embed(q.Raw)
		if err != nil {
			return nil, eris.Wrap(err, "cache: embed query")
		}
		vec = embedded
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictLocked()

	var best *memoryEntry
	var bestSim float64
	for _, e := range m.entries {
		sim := embed.Cosine(vec, e.embedding)
		if sim > bestSim {
			best, bestSim = e, sim
		}
	}
	if best == nil || bestSim < m.policy.Threshold {
		return nil, nil
	}

	best.hitCount++
	m.hits++
	result := best.result
	result.CacheHit = true
	zap.L().Debug("cache: hit",
		zap.String("query", q.Normalized),
		zap.String("matched", best.queryText),
		zap.Float64("similarity", bestSim),
	)
	return &Hit{Result: result, Similarity: bestSim}, nil
}

// Store upserts the result under the query's normalized text. Racing
// stores of near-duplicate queries may briefly coexist as separate
// entries; exact duplicates always collapse to one.
func (m *Memory) Store(ctx context.Context, q model.Query, result *model.SynthesisResult) error {
	vec := q.Embedding
	if vec == nil {
		embedded, err := m.embedder.Embed(q.Raw)
		if err != nil {
			return eris.Wrap(err, "cache: embed query")
		}
		vec = embedded
	}

	stored := *result
	stored.CacheHit = false

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[q.Normalized]; ok {
		existing.embedding = vec
		existing.result = stored
		existing.insertedAt = m.now()
		return nil
	}

	m.entries[q.Normalized] = &memoryEntry{
		queryText:  q.Normalized,
		embedding:  vec,
		result:     stored,
		insertedAt: m.now(),
	}
	m.evictLocked()
	return nil
}

// Stats implements Cache.
func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
	return Stats{
		Entries:   len(m.entries),
		TotalHits: m.hits,
		Threshold: m.policy.Threshold,
		Backend:   "memory",
	}, nil
}

// Close implements Cache.
func (m *Memory) Close() error { return nil }

// evictLocked drops expired entries, then trims oldest-inserted entries
// past the size bound. Caller holds the lock.
func (m *Memory) evictLocked() {
	now := m.now()
	if m.policy.TTL > 0 {
		for key, e := range m.entries {
			if now.Sub(e.insertedAt) > m.policy.TTL {
				delete(m.entries, key)
			}
		}
	}
	if m.policy.MaxEntries <= 0 {
		return
	}
	for len(m.entries) > m.policy.MaxEntries {
		var oldestKey string
		var oldest time.Time
		for key, e := range m.entries {
			if oldestKey == "" || e.insertedAt.Before(oldest) {
				oldestKey, oldest = key, e.insertedAt
			}
		}
		delete(m.entries, oldestKey)
	}
}

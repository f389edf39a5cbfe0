// Package cache implements the semantic result cache: nearest-neighbor
// lookup of prior syntheses by query-embedding cosine similarity.
package cache

import (
	"context"
	"time"

	"github.com/sells-group/deep-research/internal/model"
)

// Hit is a successful lookup: the cached result and how similar the
// stored query was to the probe.
type Hit struct {
	Result     model.SynthesisResult
	Similarity float64
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Entries   int     `json:"entries"`
	TotalHits int64   `json:"total_hits"`
	Threshold float64 `json:"threshold"`
	Backend   string  `json:"backend"`
}

// Cache is the semantic cache contract. Lookup must never perform network
// I/O and must never invoke the search coordinator or synthesizer; it
// either returns a prior result or cleanly misses (nil, nil). Store is
// idempotent per normalized query text: re-storing updates in place.
type Cache interface {
	Lookup(ctx context.Context, q model.Query) (*Hit, error)
	Store(ctx context.Context, q model.Query, result *model.SynthesisResult) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Policy bounds cache growth. Both limits apply: entries older than TTL
// are dropped, and beyond MaxEntries the oldest-inserted entries are
// evicted first.
type Policy struct {
	Threshold  float64
	MaxEntries int
	TTL        time.Duration
}

// DefaultPolicy matches the documented cache targets.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:  0.85,
		MaxEntries: 512,
		TTL:        24 * time.Hour,
	}
}

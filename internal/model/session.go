package model

import "time"

// SessionRecord summarizes one full pipeline run. Written once at
// completion, never read back by the pipeline itself.
type SessionRecord struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Narrative  string    `json:"narrative"`
	Confidence float64   `json:"confidence"`
	Sources    []string  `json:"sources"`
	CacheHit   bool      `json:"cache_hit"`
	Terminal   string    `json:"terminal"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

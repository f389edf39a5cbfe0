package store

import (
	"context"

	"github.com/sells-group/deep-research/internal/model"
)

// SessionFilter specifies criteria for listing session records.
type SessionFilter struct {
	Terminal string `json:"terminal,omitempty"`
	CacheHit *bool  `json:"cache_hit,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for completed research sessions.
// Sessions are written once at pipeline completion and read back only by
// the CLI and the HTTP listing endpoints.
type Store interface {
	SaveSession(ctx context.Context, rec *model.SessionRecord) error
	GetSession(ctx context.Context, id string) (*model.SessionRecord, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.SessionRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 50

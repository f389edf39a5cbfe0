// Package source provides pluggable adapters for external developer
// information sources (GitHub, Hacker News, Stack Overflow).
package source

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/deep-research/internal/model"
)

// ErrUnavailable marks a source that is down or misconfigured. The search
// coordinator absorbs it; it never propagates past a batch.
var ErrUnavailable = eris.New("source unavailable")

// ErrTimeout marks a per-source search that exceeded its deadline.
var ErrTimeout = eris.New("source search timed out")

// Source is the uniform capability implemented once per external source.
type Source interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Search(ctx context.Context, query string, maxResults int) ([]model.Finding, error)
}

// Registry holds the explicitly registered sources. Sources register at
// startup; there is no ambient discovery.
type Registry struct {
	order   []string
	sources map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source. Registering an already-registered name is a
// programmer error.
func (r *Registry) Register(s Source) error {
	if _, dup := r.sources[s.Name()]; dup {
		return eris.Errorf("source: %q already registered", s.Name())
	}
	r.sources[s.Name()] = s
	r.order = append(r.order, s.Name())
	return nil
}

// Get returns the source for name, or nil when unregistered.
func (r *Registry) Get(name string) Source {
	return r.sources[name]
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.sources[name]
	return ok
}

// Names returns the registered source names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Available returns the names of sources reporting availability.
func (r *Registry) Available(ctx context.Context) []string {
	var out []string
	for _, name := range r.order {
		if r.sources[name].IsAvailable(ctx) {
			out = append(out, name)
		}
	}
	return out
}

// newHTTPClient builds the http.Client shared by the adapters.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// newLimiter builds the per-adapter rate limiter. A non-positive rate
// disables limiting.
func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSec), 1)
}

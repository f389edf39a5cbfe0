// Package search fans a query out to source adapters and aggregates the
// findings into a single batch with per-source failure isolation.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/deep-research/internal/model"
	"github.com/sells-group/deep-research/internal/resilience"
	"github.com/sells-group/deep-research/internal/source"
)

// Coordinator runs the fan-out search stage. One Coordinator serves all
// concurrent pipelines; per-source circuit breakers are its only state.
type Coordinator struct {
	registry   *source.Registry
	timeout    time.Duration
	maxResults int
	circuits   map[string]*resilience.Circuit
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithTimeout sets the per-adapter search timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithMaxResults caps findings per source.
func WithMaxResults(n int) Option {
	return func(c *Coordinator) { c.maxResults = n }
}

// WithCircuitConfig installs a circuit breaker per registered source.
func WithCircuitConfig(cfg resilience.CircuitConfig) Option {
	return func(c *Coordinator) {
		for _, name := range c.registry.Names() {
			c.circuits[name] = resilience.NewCircuit(cfg)
		}
	}
}

// NewCoordinator creates a Coordinator over the given registry.
func NewCoordinator(registry *source.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:   registry,
		timeout:    10 * time.Second,
		maxResults: 10,
		circuits:   make(map[string]*resilience.Circuit),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ValidatePlan checks that every source named by the plan is registered.
// An unknown name is a configuration fault, never a runtime one.
func (c *Coordinator) ValidatePlan(plan *model.ResearchPlan) error {
	if len(plan.Sources) == 0 {
		return eris.New("search: plan names no sources")
	}
	for _, name := range plan.Sources {
		if !c.registry.Has(name) {
			return eris.Errorf("search: plan names unregistered source %q", name)
		}
	}
	return nil
}

// SearchAll launches one search per plan source, all started together,
// each bounded by the per-adapter timeout. A failing adapter records a
// status and never aborts the batch; SearchAll errors only on an invalid
// plan. When every adapter fails the batch is returned empty, tagged
// ALL_SOURCES_UNAVAILABLE.
func (c *Coordinator) SearchAll(ctx context.Context, q model.Query, plan *model.ResearchPlan) (*model.SearchBatch, error) {
	if err := c.ValidatePlan(plan); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("query", q.Normalized))

	results := make([]sourceResult, len(plan.Sources))

	g, gCtx := errgroup.WithContext(ctx)
	for i, name := range plan.Sources {
		g.Go(func() error {
			results[i].findings, results[i].status = c.searchOne(gCtx, name, q)
			return nil
		})
	}
	_ = g.Wait()

	batch := &model.SearchBatch{}
	anyOK := false
	for _, r := range results {
		batch.Statuses = append(batch.Statuses, r.status)
		if r.status.State == model.SourceStateOK {
			anyOK = true
			batch.Findings = append(batch.Findings, r.findings...)
		}
	}
	if !anyOK {
		batch.ErrorTag = model.TagAllSourcesUnavailable
		log.Warn("search: all sources unavailable", zap.Int("sources", len(plan.Sources)))
	} else {
		log.Info("search: batch complete",
			zap.Int("findings", len(batch.Findings)),
			zap.Strings("sources", batch.SucceededSources()),
		)
	}
	return batch, nil
}

type sourceResult struct {
	findings []model.Finding
	status   model.SourceStatus
}

// searchOne runs a single adapter with timeout, circuit breaker, and
// failure capture. It never returns an error; faults become statuses.
func (c *Coordinator) searchOne(ctx context.Context, name string, q model.Query) ([]model.Finding, model.SourceStatus) {
	status := model.SourceStatus{Source: name, State: model.SourceStateFailed}

	src := c.registry.Get(name)

	if cb := c.circuits[name]; cb != nil && !cb.Allow() {
		status.Error = "circuit open"
		return nil, status
	}

	if !src.IsAvailable(ctx) {
		status.Error = source.ErrUnavailable.Error()
		c.recordFailure(name)
		return nil, status
	}

	searchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	findings, err := src.Search(searchCtx, q.Raw, c.maxResults)
	if err != nil {
		if errors.Is(searchCtx.Err(), context.DeadlineExceeded) {
			status.State = model.SourceStateTimeout
			status.Error = source.ErrTimeout.Error()
		} else {
			status.Error = err.Error()
		}
		c.recordFailure(name)
		zap.L().Warn("search: source failed",
			zap.String("source", name),
			zap.String("state", string(status.State)),
			zap.Error(err),
		)
		return nil, status
	}

	if cb := c.circuits[name]; cb != nil {
		cb.RecordSuccess()
	}
	status.State = model.SourceStateOK
	status.Findings = len(findings)
	return findings, status
}

func (c *Coordinator) recordFailure(name string) {
	if cb := c.circuits[name]; cb != nil {
		cb.RecordFailure()
	}
}

// Package agent orchestrates one research query through the full
// pipeline: plan, cache check, parallel source search, synthesis,
// validation, and persistence. The orchestrator is the only component
// that decides retries; everything it calls is pure request/response.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deep-research/internal/cache"
	"github.com/sells-group/deep-research/internal/model"
	"github.com/sells-group/deep-research/internal/planner"
	"github.com/sells-group/deep-research/internal/search"
	"github.com/sells-group/deep-research/internal/source"
	"github.com/sells-group/deep-research/internal/store"
	"github.com/sells-group/deep-research/internal/synthesis"
	"github.com/sells-group/deep-research/internal/validate"
)

// Request describes one research query.
type Request struct {
	Query string `json:"query"`
	// Sources overrides the planner's source selection when non-empty.
	Sources []string `json:"sources,omitempty"`
	// SkipCache bypasses both cache lookup and the post-acceptance store.
	SkipCache bool `json:"skip_cache,omitempty"`
}

// Result is the terminal outcome of one pipeline run.
type Result struct {
	SessionID string                 `json:"session_id"`
	Query     string                 `json:"query"`
	Plan      *model.ResearchPlan    `json:"plan,omitempty"`
	Statuses  []model.SourceStatus   `json:"statuses,omitempty"`
	Synthesis *model.SynthesisResult `json:"synthesis"`
	Verdict   validate.Verdict       `json:"verdict"`
	Terminal  State                  `json:"terminal"`
	Retried   bool                   `json:"retried,omitempty"`
	ElapsedMS int64                  `json:"elapsed_ms"`
}

// Agent wires the pipeline stages together.
type Agent struct {
	planner     *planner.Planner
	coordinator *search.Coordinator
	synthesizer *synthesis.Synthesizer
	validator   *validate.Validator
	cache       cache.Cache
	registry    *source.Registry
	sessions    store.Store
	maxRetries  int
	timeout     time.Duration
	now         func() time.Time
}

// Option customizes an Agent.
type Option func(*Agent)

// WithSessionStore enables fire-and-forget session persistence.
func WithSessionStore(s store.Store) Option {
	return func(a *Agent) { a.sessions = s }
}

// WithMaxRetries sets the re-search budget on validation rejection.
func WithMaxRetries(n int) Option {
	return func(a *Agent) {
		if n >= 0 {
			a.maxRetries = n
		}
	}
}

// WithTimeout bounds one full pipeline run.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// New creates an Agent. The session store is optional; every other
// dependency is required.
func New(
	pl *planner.Planner,
	coord *search.Coordinator,
	synth *synthesis.Synthesizer,
	val *validate.Validator,
	c cache.Cache,
	registry *source.Registry,
	opts ...Option,
) *Agent {
	a := &Agent{
		planner:     pl,
		coordinator: coord,
		synthesizer: synth,
		validator:   val,
		cache:       c,
		registry:    registry,
		maxRetries:  1,
		timeout:     2 * time.Minute,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Research runs the full pipeline for one query.
func (a *Agent) Research(ctx context.Context, req Request) (*Result, error) {
	return a.run(ctx, req, nil)
}

// ResearchStream runs the pipeline and emits stage events on the given
// channel as each transition happens. The channel is closed when the
// run finishes. The final event carries Stage "complete" and the Result.
func (a *Agent) ResearchStream(ctx context.Context, req Request, events chan<- Event) (*Result, error) {
	defer close(events)
	return a.run(ctx, req, events)
}

func (a *Agent) run(ctx context.Context, req Request, events chan<- Event) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := a.now()
	log := zap.L().With(zap.String("query", req.Query))
	log.Info("agent: starting research")

	m := newMachine()
	result := &Result{
		SessionID: uuid.New().String(),
		Query:     req.Query,
		Terminal:  StateFailed,
	}
	emit := func(stage Stage, detail string) {
		if events == nil {
			return
		}
		ev := Event{Stage: stage, Detail: detail, ElapsedMS: a.now().Sub(start).Milliseconds()}
		if stage == StageComplete {
			ev.Result = result
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	finish := func(terminal State, err error) (*Result, error) {
		m.to(terminal)
		result.Terminal = terminal
		result.ElapsedMS = a.now().Sub(start).Milliseconds()
		emit(StageComplete, string(terminal))
		a.persistSession(result)
		if err != nil {
			log.Error("agent: research failed", zap.String("terminal", string(terminal)), zap.Error(err))
			return result, err
		}
		log.Info("agent: research complete",
			zap.String("terminal", string(terminal)),
			zap.Int64("elapsed_ms", result.ElapsedMS),
			zap.Bool("cache_hit", result.Synthesis != nil && result.Synthesis.CacheHit),
		)
		return result, nil
	}

	// Planning.
	emit(StagePlanning, "")
	q := model.NewQuery(req.Query)
	if q.Normalized == "" {
		return finish(StateFailed, eris.New("agent: empty query"))
	}
	plan := a.planner.Plan(ctx, q, a.registry)
	if len(req.Sources) > 0 {
		plan = &model.ResearchPlan{
			Sources:    req.Sources,
			Complexity: plan.Complexity,
			Rationale:  "caller-specified sources",
		}
	}
	if err := a.coordinator.ValidatePlan(plan); err != nil {
		return finish(StateFailed, eris.Wrap(err, "agent: plan"))
	}
	result.Plan = plan

	// Cache check.
	m.to(StateCacheCheck)
	emit(StageCacheCheck, "")
	if !req.SkipCache {
		hit, err := a.cache.Lookup(ctx, q)
		if err != nil {
			log.Warn("agent: cache lookup failed, treating as miss", zap.Error(err))
		} else if hit != nil {
			log.Info("agent: cache hit", zap.Float64("similarity", hit.Similarity))
			res := hit.Result
			result.Synthesis = &res
			result.Verdict = validate.Verdict{Accepted: true, Score: res.Confidence}
			return finish(StateDone, nil)
		}
	}

	// Search / synthesize / validate, with one re-search on rejection.
	retriesLeft := a.maxRetries
	var best *model.SynthesisResult
	var bestVerdict validate.Verdict
	for {
		m.to(StateSearching)
		emit(StageSearching, "")
		batch, err := a.coordinator.SearchAll(ctx, q, plan)
		if err != nil {
			return a.finishPartial(m, result, best, bestVerdict, finish, eris.Wrap(err, "agent: search"))
		}
		result.Statuses = batch.Statuses

		m.to(StateSynthesizing)
		emit(StageSynthesizing, "")
		synth, err := a.synthesizer.Synthesize(ctx, q, batch)
		if err != nil {
			if errors.Is(err, synthesis.ErrMalformed) {
				return finish(StateFailed, eris.Wrap(err, "agent: synthesis"))
			}
			return a.finishPartial(m, result, best, bestVerdict, finish, eris.Wrap(err, "agent: synthesis"))
		}

		m.to(StateValidating)
		emit(StageValidating, "")
		verdict := a.validator.Validate(ctx, synth, batch)
		if best == nil || verdict.Score > bestVerdict.Score {
			best, bestVerdict = synth, verdict
		}

		if verdict.Accepted {
			result.Synthesis = synth
			result.Verdict = verdict
			if !req.SkipCache && !batch.Degraded() {
				if err := a.cache.Store(ctx, q, synth); err != nil {
					log.Warn("agent: cache store failed", zap.Error(err))
				}
			}
			return finish(StateDone, nil)
		}
		if retriesLeft == 0 {
			best.LowConfidence = true
			result.Synthesis = best
			result.Verdict = bestVerdict
			return finish(StateDoneLowConfidence, nil)
		}
		retriesLeft--
		result.Retried = true
		plan = a.planner.Expand(a.registry)
		result.Plan = plan
		log.Info("agent: validation rejected, re-searching with expanded plan",
			zap.Float64("score", verdict.Score),
			zap.Strings("sources", plan.Sources),
		)
	}
}

// finishPartial handles unrecoverable stage errors. A timeout with a
// prior synthesis in hand still yields a low-confidence result rather
// than a hard failure.
func (a *Agent) finishPartial(
	m *machine,
	result *Result,
	best *model.SynthesisResult,
	bestVerdict validate.Verdict,
	finish func(State, error) (*Result, error),
	err error,
) (*Result, error) {
	if best != nil && errors.Is(err, context.DeadlineExceeded) {
		best.LowConfidence = true
		result.Synthesis = best
		result.Verdict = bestVerdict
		return finish(StateDoneLowConfidence, nil)
	}
	return finish(StateFailed, err)
}

// persistSession writes the session record without blocking the caller.
// Persistence failures are logged, never surfaced.
func (a *Agent) persistSession(result *Result) {
	if a.sessions == nil {
		return
	}
	rec := &model.SessionRecord{
		ID:         result.SessionID,
		Query:      result.Query,
		Confidence: result.Verdict.Score,
		Terminal:   string(result.Terminal),
		DurationMS: result.ElapsedMS,
		CreatedAt:  a.now().UTC(),
	}
	if result.Synthesis != nil {
		rec.Narrative = result.Synthesis.Narrative
		rec.CacheHit = result.Synthesis.CacheHit
	}
	if result.Plan != nil {
		rec.Sources = result.Plan.Sources
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.sessions.SaveSession(ctx, rec); err != nil {
			zap.L().Warn("agent: session persist failed",
				zap.String("session_id", rec.ID), zap.Error(err))
		}
	}()
}

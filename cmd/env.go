package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deep-research/internal/agent"
	"github.com/sells-group/deep-research/internal/cache"
	"github.com/sells-group/deep-research/internal/embed"
	"github.com/sells-group/deep-research/internal/planner"
	"github.com/sells-group/deep-research/internal/resilience"
	"github.com/sells-group/deep-research/internal/search"
	"github.com/sells-group/deep-research/internal/source"
	"github.com/sells-group/deep-research/internal/store"
	"github.com/sells-group/deep-research/internal/synthesis"
	"github.com/sells-group/deep-research/internal/validate"
	anthropicpkg "github.com/sells-group/deep-research/pkg/anthropic"
)

// env bundles the wired pipeline and its closable resources.
type env struct {
	agent    *agent.Agent
	cache    cache.Cache
	store    store.Store
	registry *source.Registry
}

func (e *env) Close() {
	if e.cache != nil {
		_ = e.cache.Close()
	}
	if e.store != nil {
		_ = e.store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "deep-research.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initCache() (cache.Cache, error) {
	embedder, err := embed.NewHashing(cfg.Cache.EmbeddingDims)
	if err != nil {
		return nil, err
	}
	policy := cache.Policy{
		Threshold:  cfg.Cache.SimilarityThreshold,
		MaxEntries: cfg.Cache.MaxEntries,
		TTL:        time.Duration(cfg.Cache.TTLHours) * time.Hour,
	}
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemory(embedder, policy), nil
	case "sqlite":
		return cache.NewSQLite(cfg.Cache.Path, embedder, policy)
	default:
		return nil, eris.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}

func initRegistry() (*source.Registry, error) {
	registry := source.NewRegistry()
	for _, name := range cfg.Sources.Enabled {
		var s source.Source
		switch name {
		case "github":
			s = source.NewGitHub(cfg.Sources.GitHubToken,
				source.WithGitHubRateLimit(cfg.Sources.RequestsPerSec))
		case "hackernews":
			s = source.NewHackerNews(
				source.WithHackerNewsRateLimit(cfg.Sources.RequestsPerSec))
		case "stackoverflow":
			s = source.NewStackOverflow(
				source.WithStackOverflowRateLimit(cfg.Sources.RequestsPerSec))
		default:
			return nil, eris.Errorf("unknown source: %s", name)
		}
		if err := registry.Register(s); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// initEnv wires the full pipeline from config.
func initEnv(ctx context.Context) (*env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	c, err := initCache()
	if err != nil {
		st.Close()
		return nil, err
	}

	registry, err := initRegistry()
	if err != nil {
		c.Close()
		st.Close()
		return nil, err
	}

	llm := anthropicpkg.NewClient(cfg.Anthropic.Key,
		anthropicpkg.WithFastModel(cfg.Anthropic.FastModel),
		anthropicpkg.WithSmartModel(cfg.Anthropic.SmartModel),
		anthropicpkg.WithMaxTokens(int64(cfg.Anthropic.MaxTokens)),
	)

	coordinator := search.NewCoordinator(registry,
		search.WithTimeout(time.Duration(cfg.Sources.TimeoutSecs)*time.Second),
		search.WithMaxResults(cfg.Sources.MaxResults),
		search.WithCircuitConfig(resilience.CircuitConfig{
			FailureThreshold: cfg.Sources.CircuitThreshold,
			ResetTimeout:     30 * time.Second,
		}),
	)

	valOpts := []validate.Option{}
	if cfg.Pipeline.LLMJudge {
		valOpts = append(valOpts, validate.WithJudge(llm))
	}

	a := agent.New(
		planner.New(llm),
		coordinator,
		synthesis.New(llm),
		validate.New(cfg.Pipeline.AcceptThreshold, valOpts...),
		c,
		registry,
		agent.WithSessionStore(st),
		agent.WithMaxRetries(cfg.Pipeline.MaxRetries),
		agent.WithTimeout(time.Duration(cfg.Pipeline.TimeoutSecs)*time.Second),
	)

	return &env{agent: a, cache: c, store: st, registry: registry}, nil
}

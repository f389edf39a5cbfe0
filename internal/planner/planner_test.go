package planner

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deep-research/internal/model"
	"github.com/sells-group/deep-research/internal/source"
	"github.com/sells-group/deep-research/pkg/anthropic"
)

type stubLLM struct {
	reply string
	err   error

	lastPrompt string
	lastTier   anthropic.ModelTier
}

func (s *stubLLM) Complete(ctx context.Context, prompt string, tier anthropic.ModelTier) (string, error) {
	s.lastPrompt = prompt
	s.lastTier = tier
	return s.reply, s.err
}

type namedSource struct{ name string }

func (n namedSource) Name() string                         { return n.name }
func (n namedSource) IsAvailable(ctx context.Context) bool { return true }
func (n namedSource) Search(ctx context.Context, query string, maxResults int) ([]model.Finding, error) {
	return nil, nil
}

func testRegistry(t *testing.T, names ...string) *source.Registry {
	t.Helper()
	r := source.NewRegistry()
	for _, name := range names {
		require.NoError(t, r.Register(namedSource{name: name}))
	}
	return r
}

func TestPlanParsesModelResponse(t *testing.T) {
	llm := &stubLLM{reply: `{"complexity": "complex", "sources": ["hackernews", "github"], "rationale": "needs community discussion"}`}
	p := New(llm)
	reg := testRegistry(t, "github", "hackernews", "stackoverflow")

	plan := p.Plan(context.Background(), model.NewQuery("compare kafka and nats"), reg)

	require.Equal(t, anthropic.TierFast, llm.lastTier)
	require.Contains(t, llm.lastPrompt, "compare kafka and nats")
	require.Equal(t, model.ComplexityComplex, plan.Complexity)
	require.Equal(t, []string{"hackernews", "github"}, plan.Sources)
	require.Equal(t, "needs community discussion", plan.Rationale)
}

func TestPlanStripsCodeFences(t *testing.T) {
	llm := &stubLLM{reply: "```json\n{\"complexity\": \"simple\", \"sources\": [\"github\"], \"rationale\": \"code question\"}\n```"}
	p := New(llm)
	reg := testRegistry(t, "github", "hackernews")

	plan := p.Plan(context.Background(), model.NewQuery("what is a goroutine"), reg)

	require.Equal(t, model.ComplexitySimple, plan.Complexity)
	require.Equal(t, []string{"github"}, plan.Sources)
}

func TestPlanFiltersUnknownSources(t *testing.T) {
	llm := &stubLLM{reply: `{"complexity": "simple", "sources": ["reddit", "github"], "rationale": "r"}`}
	p := New(llm)
	reg := testRegistry(t, "github", "hackernews")

	plan := p.Plan(context.Background(), model.NewQuery("q"), reg)
	require.Equal(t, []string{"github"}, plan.Sources)
}

func TestPlanAllUnknownSourcesFallsBackToRegistry(t *testing.T) {
	llm := &stubLLM{reply: `{"complexity": "simple", "sources": ["reddit", "twitter"], "rationale": "r"}`}
	p := New(llm)
	reg := testRegistry(t, "github", "hackernews")

	plan := p.Plan(context.Background(), model.NewQuery("q"), reg)
	require.Equal(t, []string{"github", "hackernews"}, plan.Sources)
}

func TestPlanFallbackOnModelError(t *testing.T) {
	llm := &stubLLM{err: eris.New("api down")}
	p := New(llm)
	reg := testRegistry(t, "github", "hackernews", "stackoverflow")

	plan := p.Plan(context.Background(), model.NewQuery("what is a mutex"), reg)

	require.Equal(t, []string{"github", "hackernews", "stackoverflow"}, plan.Sources)
	require.Equal(t, model.ComplexitySimple, plan.Complexity)
}

func TestPlanFallbackOnGarbageResponse(t *testing.T) {
	llm := &stubLLM{reply: "I think you should search GitHub for this one."}
	p := New(llm)
	reg := testRegistry(t, "github")

	plan := p.Plan(context.Background(), model.NewQuery("q"), reg)
	require.Equal(t, []string{"github"}, plan.Sources)
}

func TestFallbackComplexityHeuristic(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  model.Complexity
	}{
		{"short factual", "what is a mutex", model.ComplexitySimple},
		{"comparison keyword", "postgres vs mysql", model.ComplexityComplex},
		{"migrate keyword", "migrate from rails to go", model.ComplexityComplex},
		{"long query", "how should a team structure a large service with many background workers and queues", model.ComplexityComplex},
	}

	llm := &stubLLM{err: eris.New("down")}
	p := New(llm)
	reg := testRegistry(t, "github")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := p.Plan(context.Background(), model.NewQuery(tt.query), reg)
			require.Equal(t, tt.want, plan.Complexity)
		})
	}
}

func TestExpandCoversAllSources(t *testing.T) {
	p := New(&stubLLM{})
	reg := testRegistry(t, "github", "hackernews", "stackoverflow")

	plan := p.Expand(reg)
	require.Equal(t, []string{"github", "hackernews", "stackoverflow"}, plan.Sources)
	require.Equal(t, model.ComplexityComplex, plan.Complexity)
}

func TestStripFences(t *testing.T) {
	require.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, StripFences(`{"a":1}`))
	require.Equal(t, `{"a":1}`, StripFences("  {\"a\":1}  "))
}

// Package planner turns a query into a research plan: which sources to
// query and how complex the question is.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/deep-research/internal/model"
	"github.com/sells-group/deep-research/internal/source"
	"github.com/sells-group/deep-research/pkg/anthropic"
)

// Planner creates research plans with a fast-tier model call, falling
// back to a heuristic plan when the model is unavailable or returns
// unusable output. Planning never fails the pipeline.
type Planner struct {
	llm anthropic.Client
}

// New creates a Planner.
func New(llm anthropic.Client) *Planner {
	return &Planner{llm: llm}
}

const planPromptTemplate = `Analyze this research query and return ONLY valid JSON, no prose.

Query: %q

Available sources: %s

{
  "complexity": "simple" or "complex",
  "sources": ["subset of the available sources, most relevant first"],
  "rationale": "one sentence"
}`

type planResponse struct {
	Complexity string   `json:"complexity"`
	Sources    []string `json:"sources"`
	Rationale  string   `json:"rationale"`
}

// Plan builds a ResearchPlan for q. Source names from the model are
// filtered against the registry; an empty remainder falls back to all
// registered sources.
func (p *Planner) Plan(ctx context.Context, q model.Query, registry *source.Registry) *model.ResearchPlan {
	prompt := fmt.Sprintf(planPromptTemplate, q.Raw, strings.Join(registry.Names(), ", "))

	raw, err := p.llm.Complete(ctx, prompt, anthropic.TierFast)
	if err != nil {
		zap.L().Warn("planner: model call failed, using fallback plan", zap.Error(err))
		return p.fallback(q, registry)
	}

	var parsed planResponse
	if err := json.Unmarshal([]byte(StripFences(raw)), &parsed); err != nil {
		zap.L().Warn("planner: unparsable plan, using fallback", zap.Error(err))
		return p.fallback(q, registry)
	}

	var sources []string
	for _, name := range parsed.Sources {
		if registry.Has(name) {
			sources = append(sources, name)
		}
	}
	if len(sources) == 0 {
		sources = registry.Names()
	}

	complexity := model.ComplexitySimple
	if parsed.Complexity == string(model.ComplexityComplex) {
		complexity = model.ComplexityComplex
	}

	return &model.ResearchPlan{
		Sources:    sources,
		Complexity: complexity,
		Rationale:  parsed.Rationale,
	}
}

// Expand returns a plan covering every registered source, used for the
// re-search pass after a rejected validation.
func (p *Planner) Expand(registry *source.Registry) *model.ResearchPlan {
	return &model.ResearchPlan{
		Sources:    registry.Names(),
		Complexity: model.ComplexityComplex,
		Rationale:  "expanded re-search after low-confidence validation",
	}
}

// fallback classifies complexity by query length and comparison keywords.
func (p *Planner) fallback(q model.Query, registry *source.Registry) *model.ResearchPlan {
	complexity := model.ComplexitySimple
	words := strings.Fields(q.Normalized)
	if len(words) > 8 {
		complexity = model.ComplexityComplex
	}
	for _, w := range words {
		switch w {
		case "compare", "vs", "versus", "tradeoffs", "migrate", "architecture":
			complexity = model.ComplexityComplex
		}
	}
	return &model.ResearchPlan{
		Sources:    registry.Names(),
		Complexity: complexity,
		Rationale:  "fallback: all registered sources",
	}
}

// StripFences removes a surrounding markdown code fence, which models
// frequently add around JSON despite instructions.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

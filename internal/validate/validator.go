// Package validate scores a synthesis for citation coverage and decides
// whether the pipeline accepts it or re-enters search.
package validate

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/deep-research/internal/model"
	"github.com/sells-group/deep-research/pkg/anthropic"
)

// Verdict is the validation outcome.
type Verdict struct {
	Accepted bool    `json:"accepted"`
	Score    float64 `json:"score"`
}

// Validator scores synthesis results. It is pure request/response: the
// orchestrator alone decides retries.
type Validator struct {
	threshold float64
	judge     anthropic.Client // optional secondary model judgment
}

// Option configures the Validator.
type Option func(*Validator)

// WithJudge enables a fast-tier model judgment blended into the score.
func WithJudge(llm anthropic.Client) Option {
	return func(v *Validator) { v.judge = llm }
}

// New creates a Validator with the given acceptance threshold.
func New(threshold float64, opts ...Option) *Validator {
	v := &Validator{threshold: threshold}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Threshold returns the acceptance threshold.
func (v *Validator) Threshold() float64 { return v.threshold }

// Validate computes the confidence score for result against the batch it
// was derived from. The score blends the model's own confidence with
// citation coverage; when a judge is configured its rating joins the
// blend. Accepted iff score meets the threshold.
func (v *Validator) Validate(ctx context.Context, result *model.SynthesisResult, batch *model.SearchBatch) Verdict {
	score := 0.6*result.Confidence + 0.4*coverage(result, batch)

	if v.judge != nil && !batch.Degraded() {
		if js, ok := v.judgeScore(ctx, result); ok {
			score = 0.7*score + 0.3*js
		}
	}

	if score > 1 {
		score = 1
	}
	verdict := Verdict{Accepted: score >= v.threshold, Score: score}

	zap.L().Info("validate: scored synthesis",
		zap.Float64("score", verdict.Score),
		zap.Bool("accepted", verdict.Accepted),
		zap.Int("citations", len(result.Citations)),
		zap.Int("findings", len(batch.Findings)),
	)
	return verdict
}

// coverage measures how much of the available evidence the narrative
// actually cites. A degraded batch has nothing to cover and scores zero.
func coverage(result *model.SynthesisResult, batch *model.SearchBatch) float64 {
	if batch.Degraded() || len(batch.Findings) == 0 {
		return 0
	}

	cited := make(map[string]struct{})
	for _, c := range result.Citations {
		if batch.HasURL(c.URL) {
			cited[c.URL] = struct{}{}
		}
	}
	if len(cited) == 0 {
		return 0
	}

	// Expect at least three distinct citations for a well-grounded
	// answer, fewer when the batch itself is small.
	expected := 3
	if len(batch.Findings) < expected {
		expected = len(batch.Findings)
	}
	cov := float64(len(cited)) / float64(expected)
	if cov > 1 {
		cov = 1
	}
	return cov
}

const judgePrompt = `Rate how well this research answer is supported by its citations.
Reply with ONLY a number between 0.0 and 1.0.

Answer:
%s`

func (v *Validator) judgeScore(ctx context.Context, result *model.SynthesisResult) (float64, bool) {
	raw, err := v.judge.Complete(ctx, strings.Replace(judgePrompt, "%s", clip(result.Narrative, 2000), 1), anthropic.TierFast)
	if err != nil {
		zap.L().Warn("validate: judge call failed, skipping", zap.Error(err))
		return 0, false
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || score < 0 || score > 1 {
		zap.L().Warn("validate: unusable judge score", zap.String("raw", clip(raw, 40)))
		return 0, false
	}
	return score, true
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

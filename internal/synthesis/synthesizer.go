// Package synthesis turns a search batch into a cited narrative via a
// single smart-tier model call.
package synthesis

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deep-research/internal/model"
	"github.com/sells-group/deep-research/internal/planner"
	"github.com/sells-group/deep-research/pkg/anthropic"
)

// ErrMalformed marks model output that could not be parsed into a
// SynthesisResult even after a corrective re-prompt. Fatal to the run.
var ErrMalformed = eris.New("synthesis output malformed")

// degradedConfidenceCap bounds the confidence of a synthesis produced
// without any source evidence.
const degradedConfidenceCap = 0.25

// Synthesizer produces SynthesisResults from search batches.
type Synthesizer struct {
	llm anthropic.Client
}

// New creates a Synthesizer.
func New(llm anthropic.Client) *Synthesizer {
	return &Synthesizer{llm: llm}
}

type rawResult struct {
	Narrative  string           `json:"narrative"`
	Citations  []model.Citation `json:"citations"`
	Confidence float64          `json:"confidence"`
}

// Synthesize flattens and URL-deduplicates the batch, prompts the smart
// tier, and parses the response. Unparsable output gets exactly one
// corrective re-prompt before ErrMalformed. Citations naming URLs absent
// from the batch are dropped. A degraded batch still synthesizes, with
// confidence capped and no citations.
func (s *Synthesizer) Synthesize(ctx context.Context, q model.Query, batch *model.SearchBatch) (*model.SynthesisResult, error) {
	findings := batch.DedupeByURL()
	prompt := BuildPrompt(q, findings)

	raw, err := s.llm.Complete(ctx, prompt, anthropic.TierSmart)
	if err != nil {
		return nil, eris.Wrap(err, "synthesis: model call")
	}

	result, parseErr := s.parse(raw, batch)
	if parseErr != nil {
		zap.L().Warn("synthesis: unparsable output, re-prompting once", zap.Error(parseErr))

		corrective := prompt + "\n\nYour previous reply was not valid JSON. Reply with ONLY the JSON object."
		raw, err = s.llm.Complete(ctx, corrective, anthropic.TierSmart)
		if err != nil {
			return nil, eris.Wrap(err, "synthesis: corrective model call")
		}
		result, parseErr = s.parse(raw, batch)
		if parseErr != nil {
			return nil, eris.Wrap(ErrMalformed, parseErr.Error())
		}
	}

	if batch.Degraded() {
		result.Citations = nil
		if result.Confidence > degradedConfidenceCap {
			result.Confidence = degradedConfidenceCap
		}
		result.LowConfidence = true
	}

	return result, nil
}

func (s *Synthesizer) parse(raw string, batch *model.SearchBatch) (*model.SynthesisResult, error) {
	var parsed rawResult
	if err := json.Unmarshal([]byte(planner.StripFences(raw)), &parsed); err != nil {
		return nil, eris.Wrap(err, "synthesis: decode json")
	}
	if parsed.Narrative == "" {
		return nil, eris.New("synthesis: empty narrative")
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return nil, eris.Errorf("synthesis: confidence %v out of range", parsed.Confidence)
	}

	// Citations must reference findings present in the producing batch.
	citations := make([]model.Citation, 0, len(parsed.Citations))
	for _, c := range parsed.Citations {
		if batch.HasURL(c.URL) {
			citations = append(citations, c)
		} else {
			zap.L().Debug("synthesis: dropping citation outside batch", zap.String("url", c.URL))
		}
	}

	return &model.SynthesisResult{
		Narrative:  parsed.Narrative,
		Citations:  citations,
		Confidence: parsed.Confidence,
	}, nil
}

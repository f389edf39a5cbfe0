package agent

// Stage names the pipeline phase an Event reports on. Stages mirror the
// non-terminal states plus a closing "complete".
type Stage string

const (
	StagePlanning     Stage = "planning"
	StageCacheCheck   Stage = "cache_check"
	StageSearching    Stage = "searching"
	StageSynthesizing Stage = "synthesizing"
	StageValidating   Stage = "validating"
	StageComplete     Stage = "complete"
)

// Event is a progress notification emitted as the pipeline advances.
// The final event carries Stage "complete" and the full Result.
type Event struct {
	Stage     Stage   `json:"stage"`
	Detail    string  `json:"detail,omitempty"`
	ElapsedMS int64   `json:"elapsed_ms"`
	Result    *Result `json:"result,omitempty"`
}

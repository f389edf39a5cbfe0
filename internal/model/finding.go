package model

import "time"

// Finding is one unit of evidence returned by a source adapter. Immutable
// once returned; owned by the adapter that produced it.
type Finding struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Snippet     string    `json:"snippet"`
	Score       float64   `json:"score"`
	Author      string    `json:"author,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// SourceState classifies the outcome of one adapter's search.
type SourceState string

const (
	SourceStateOK      SourceState = "ok"
	SourceStateFailed  SourceState = "failed"
	SourceStateTimeout SourceState = "timeout"
)

// SourceStatus records how a single adapter fared in a batch.
type SourceStatus struct {
	Source   string      `json:"source"`
	State    SourceState `json:"state"`
	Findings int         `json:"findings"`
	Error    string      `json:"error,omitempty"`
}

// TagAllSourcesUnavailable marks a batch in which every adapter failed.
// Downstream stages treat it as a degraded-input signal, not an abort.
const TagAllSourcesUnavailable = "ALL_SOURCES_UNAVAILABLE"

// SearchBatch aggregates the findings for one query across all adapters
// named by the plan. Findings are grouped by source in plan order; within
// a source the adapter's own ranking is preserved.
type SearchBatch struct {
	Findings []Finding      `json:"findings"`
	Statuses []SourceStatus `json:"statuses"`
	ErrorTag string         `json:"error_tag,omitempty"`
}

// Degraded reports whether the batch carries no usable evidence.
func (b *SearchBatch) Degraded() bool {
	return b.ErrorTag == TagAllSourcesUnavailable
}

// SucceededSources returns the names of adapters that returned findings.
func (b *SearchBatch) SucceededSources() []string {
	var out []string
	for _, st := range b.Statuses {
		if st.State == SourceStateOK {
			out = append(out, st.Source)
		}
	}
	return out
}

// HasURL reports whether any finding in the batch carries the given URL.
func (b *SearchBatch) HasURL(url string) bool {
	for _, f := range b.Findings {
		if f.URL == url {
			return true
		}
	}
	return false
}

// DedupeByURL returns the batch findings with duplicate URLs removed,
// keeping the first occurrence. Order is otherwise preserved.
func (b *SearchBatch) DedupeByURL() []Finding {
	seen := make(map[string]struct{}, len(b.Findings))
	out := make([]Finding, 0, len(b.Findings))
	for _, f := range b.Findings {
		if _, dup := seen[f.URL]; dup {
			continue
		}
		seen[f.URL] = struct{}{}
		out = append(out, f)
	}
	return out
}

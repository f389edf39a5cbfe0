package model

// Complexity classifies how much research a query demands.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// ResearchPlan names the sources to query for one research run. Created
// once per query, consumed by the search coordinator, never persisted.
type ResearchPlan struct {
	Sources    []string   `json:"sources"`
	Complexity Complexity `json:"complexity"`
	Rationale  string     `json:"rationale,omitempty"`
}

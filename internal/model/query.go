package model

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Query is an immutable research query. The normalized form and embedding
// are derived once at construction; re-embedding produces a new Query.
type Query struct {
	Raw        string    `json:"raw"`
	Normalized string    `json:"normalized"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewQuery builds a Query from raw text. The embedding is attached
// separately via WithEmbedding so that query construction stays free of
// provider dependencies.
func NewQuery(raw string) Query {
	return Query{
		Raw:        raw,
		Normalized: NormalizeQuery(raw),
		CreatedAt:  time.Now().UTC(),
	}
}

// WithEmbedding returns a copy of q carrying the given embedding. The
// receiver is not modified.
func (q Query) WithEmbedding(vec []float32) Query {
	out := q
	out.Embedding = make([]float32, len(vec))
	copy(out.Embedding, vec)
	return out
}

// NormalizeQuery lowercases, applies Unicode NFKC normalization, and
// collapses runs of whitespace so that semantically identical query texts
// compare equal.
func NormalizeQuery(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.ToLower(s)
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

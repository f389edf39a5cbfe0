package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "How Do Go Channels Work", "how do go channels work"},
		{"collapse whitespace", "  how   do\tgo\nchannels  work ", "how do go channels work"},
		{"nfkc fullwidth", "ｇｏ ｍｏｄｕｌｅｓ", "go modules"},
		{"empty", "   ", ""},
		{"already normal", "go generics", "go generics"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeQuery(tc.in))
		})
	}
}

func TestNewQuery(t *testing.T) {
	q := NewQuery("  What IS Go  ")
	assert.Equal(t, "  What IS Go  ", q.Raw)
	assert.Equal(t, "what is go", q.Normalized)
	assert.False(t, q.CreatedAt.IsZero())
	assert.Nil(t, q.Embedding)
}

func TestQuery_WithEmbedding_CopySemantics(t *testing.T) {
	q := NewQuery("what is go")
	vec := []float32{1, 2, 3}

	q2 := q.WithEmbedding(vec)
	require.Equal(t, []float32{1, 2, 3}, q2.Embedding)
	assert.Nil(t, q.Embedding, "receiver must not be modified")

	// Mutating the caller's slice must not reach the query.
	vec[0] = 99
	assert.Equal(t, float32(1), q2.Embedding[0])
}

func TestQueriesWithSameNormalizedFormCompareEqual(t *testing.T) {
	a := NormalizeQuery("How do goroutines work?")
	b := NormalizeQuery("  how   do goroutines work?  ")
	assert.Equal(t, a, b)
}

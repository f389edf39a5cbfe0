package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchBatch_Degraded(t *testing.T) {
	b := &SearchBatch{}
	assert.False(t, b.Degraded())

	b.ErrorTag = TagAllSourcesUnavailable
	assert.True(t, b.Degraded())
}

func TestSearchBatch_SucceededSources(t *testing.T) {
	b := &SearchBatch{
		Statuses: []SourceStatus{
			{Source: "github", State: SourceStateOK, Findings: 3},
			{Source: "hackernews", State: SourceStateTimeout},
			{Source: "stackoverflow", State: SourceStateFailed, Error: "503"},
		},
	}
	assert.Equal(t, []string{"github"}, b.SucceededSources())
}

func TestSearchBatch_HasURL(t *testing.T) {
	b := &SearchBatch{Findings: []Finding{
		{URL: "https://github.com/golang/go"},
		{URL: "https://news.ycombinator.com/item?id=1"},
	}}
	assert.True(t, b.HasURL("https://github.com/golang/go"))
	assert.False(t, b.HasURL("https://example.com"))
}

func TestSearchBatch_DedupeByURL(t *testing.T) {
	b := &SearchBatch{Findings: []Finding{
		{Source: "github", URL: "https://a.example", Title: "first"},
		{Source: "hackernews", URL: "https://b.example"},
		{Source: "stackoverflow", URL: "https://a.example", Title: "duplicate"},
	}}

	got := b.DedupeByURL()
	assert.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Title, "first occurrence wins")
	assert.Equal(t, "https://b.example", got[1].URL)
}

package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deep-research/internal/model"
)

type stubSource struct {
	name      string
	available bool
}

func (s stubSource) Name() string                     { return s.name }
func (s stubSource) IsAvailable(context.Context) bool { return s.available }
func (s stubSource) Search(context.Context, string, int) ([]model.Finding, error) {
	return nil, nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubSource{name: "github", available: true}))
	require.NoError(t, r.Register(stubSource{name: "hackernews", available: false}))

	assert.True(t, r.Has("github"))
	assert.False(t, r.Has("reddit"))
	assert.NotNil(t, r.Get("github"))
	assert.Nil(t, r.Get("reddit"))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubSource{name: "github"}))
	err := r.Register(stubSource{name: "github"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_NamesPreserveOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"stackoverflow", "github", "hackernews"} {
		require.NoError(t, r.Register(stubSource{name: name}))
	}
	assert.Equal(t, []string{"stackoverflow", "github", "hackernews"}, r.Names())
}

func TestRegistry_Available(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubSource{name: "github", available: true}))
	require.NoError(t, r.Register(stubSource{name: "hackernews", available: false}))
	require.NoError(t, r.Register(stubSource{name: "stackoverflow", available: true}))

	assert.Equal(t, []string{"github", "stackoverflow"}, r.Available(context.Background()))
}

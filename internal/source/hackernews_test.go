package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deep-research/internal/resilience"
)

func newHackerNewsServer(t *testing.T, handler http.HandlerFunc) *HackerNews {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHackerNews(WithHackerNewsBaseURL(srv.URL), WithHackerNewsRateLimit(1000))
}

func TestHackerNews_Search(t *testing.T) {
	h := newHackerNewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "go generics", r.URL.Query().Get("query"))
		assert.Equal(t, "story", r.URL.Query().Get("tags"))

		w.Write([]byte(`{"hits":[
			{"objectID":"100","title":"Go 1.18 released","url":"https://go.dev/blog/go1.18","author":"pcw","points":950,"num_comments":420},
			{"objectID":"200","title":"Ask HN: generics worth it?","story_text":"Curious about experiences.","author":"throwaway","points":80,"num_comments":60}
		]}`))
	})

	findings, err := h.Search(context.Background(), "go generics", 10)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.Equal(t, "hackernews", findings[0].Source)
	assert.Equal(t, "https://go.dev/blog/go1.18", findings[0].URL)
	assert.Equal(t, "950 points, 420 comments", findings[0].Snippet)
	assert.Equal(t, float64(950), findings[0].Score)

	// Stories without an external URL fall back to the HN item page.
	assert.Equal(t, "https://news.ycombinator.com/item?id=200", findings[1].URL)
	assert.Equal(t, "Curious about experiences.", findings[1].Snippet)
}

func TestHackerNews_Search_TransientStatus(t *testing.T) {
	h := newHackerNewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := h.Search(context.Background(), "go", 10)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.True(t, resilience.IsRateLimited(err))
}

func TestHackerNews_Search_BadJSON(t *testing.T) {
	h := newHackerNewsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	})

	_, err := h.Search(context.Background(), "go", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestHackerNews_Metadata(t *testing.T) {
	h := NewHackerNews()
	assert.Equal(t, "hackernews", h.Name())
	assert.True(t, h.IsAvailable(context.Background()))
}

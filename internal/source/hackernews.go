package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/deep-research/internal/model"
	"github.com/sells-group/deep-research/internal/resilience"
)

const hackerNewsDefaultBaseURL = "https://hn.algolia.com/api/v1"

// HackerNews searches stories via the Algolia HN API. No authentication.
type HackerNews struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// HackerNewsOption configures the Hacker News adapter.
type HackerNewsOption func(*HackerNews)

// WithHackerNewsBaseURL overrides the API base URL.
func WithHackerNewsBaseURL(u string) HackerNewsOption {
	return func(h *HackerNews) { h.baseURL = u }
}

// WithHackerNewsHTTPClient overrides the HTTP client.
func WithHackerNewsHTTPClient(hc *http.Client) HackerNewsOption {
	return func(h *HackerNews) { h.http = hc }
}

// WithHackerNewsRateLimit sets the request rate in requests per second.
func WithHackerNewsRateLimit(perSec float64) HackerNewsOption {
	return func(h *HackerNews) { h.limiter = newLimiter(perSec) }
}

// NewHackerNews creates the Hacker News adapter.
func NewHackerNews(opts ...HackerNewsOption) *HackerNews {
	h := &HackerNews{
		baseURL: hackerNewsDefaultBaseURL,
		http:    newHTTPClient(30 * time.Second),
		limiter: newLimiter(2),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Name implements Source.
func (h *HackerNews) Name() string { return "hackernews" }

// IsAvailable implements Source.
func (h *HackerNews) IsAvailable(ctx context.Context) bool { return true }

type hnSearchResponse struct {
	Hits []struct {
		ObjectID    string `json:"objectID"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		StoryText   string `json:"story_text"`
		Author      string `json:"author"`
		Points      int    `json:"points"`
		NumComments int    `json:"num_comments"`
	} `json:"hits"`
}

// Search queries stories ranked by Algolia relevance.
func (h *HackerNews) Search(ctx context.Context, query string, maxResults int) ([]model.Finding, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "hackernews: rate limit wait")
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("tags", "story")
	params.Set("hitsPerPage", fmt.Sprintf("%d", min(maxResults, 50)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "hackernews: create request")
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "hackernews: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "hackernews: read response")
	}

	if resilience.TransientStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("hackernews: status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("hackernews: unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed hnSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "hackernews: decode response")
	}

	now := time.Now().UTC()
	findings := make([]model.Finding, 0, len(parsed.Hits))
	for i, hit := range parsed.Hits {
		if i >= maxResults {
			break
		}
		link := hit.URL
		if link == "" {
			link = "https://news.ycombinator.com/item?id=" + hit.ObjectID
		}
		snippet := hit.StoryText
		if snippet == "" {
			snippet = fmt.Sprintf("%d points, %d comments", hit.Points, hit.NumComments)
		}
		findings = append(findings, model.Finding{
			Source:      h.Name(),
			Title:       hit.Title,
			URL:         link,
			Snippet:     snippet,
			Score:       float64(hit.Points),
			Author:      hit.Author,
			RetrievedAt: now,
		})
	}
	return findings, nil
}

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

const githubDefaultBaseURL = "https://api.github.com"

// GitHub searches public repositories via the GitHub REST API. A token is
// optional; without one the API allows 60 requests per hour.
type GitHub struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// GitHubOption configures the GitHub adapter.
type GitHubOption func(*GitHub)

// WithGitHubBaseURL overrides the API base URL.
func WithGitHubBaseURL(u string) GitHubOption {
	return func(g *GitHub) { g.baseURL = u }
}

// WithGitHubHTTPClient overrides the HTTP client.
func WithGitHubHTTPClient(hc *http.Client) GitHubOption {
	return func(g *GitHub) { g.http = hc }
}

// WithGitHubRateLimit sets the request rate in requests per second.
func WithGitHubRateLimit(perSec float64) GitHubOption {
	return func(g *GitHub) { g.limiter = newLimiter(perSec) }
}

// NewGitHub creates the GitHub adapter.
func NewGitHub(token string, opts ...GitHubOption) *GitHub {
	g := &GitHub{
		token:   token,
		baseURL: githubDefaultBaseURL,
		http:    newHTTPClient(30 * time.Second),
		limiter: newLimiter(1),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Name implements Source.
func (g *GitHub) Name() string { return "github" }

// IsAvailable implements Source. The search endpoint works without a
// token, so the adapter is always available once registered.
func (g *GitHub) IsAvailable(ctx context.Context) bool { return true }

type githubSearchResponse struct {
	Items []struct {
		FullName    string `json:"full_name"`
		HTMLURL     string `json:"html_url"`
		Description string `json:"description"`
		Stars       int    `json:"stargazers_count"`
		Language    string `json:"language"`
		Owner       struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"items"`
}

// Search queries repository search ordered by stars.
func (g *GitHub) Search(ctx context.Context, query string, maxResults int) ([]model.Finding, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "github: rate limit wait")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "stars")
	params.Set("order", "desc")
	params.Set("per_page", fmt.Sprintf("%d", min(maxResults, 30)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search/repositories?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "github: create request")
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if g.token != "" {
		req.Header.Set("Authorization", "token "+g.token)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "github: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "github: read response")
	}

	if resilience.TransientStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("github: status %d: %s", resp.StatusCode, truncate(body, 200)), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("github: unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed githubSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "github: decode response")
	}

	now := time.Now().UTC()
	findings := make([]model.Finding, 0, len(parsed.Items))
	for i, item := range parsed.Items {
		if i >= maxResults {
			break
		}
		snippet := item.Description
		if item.Language != "" {
			snippet = fmt.Sprintf("%s [%s]", snippet, item.Language)
		}
		findings = append(findings, model.Finding{
			Source:      g.Name(),
			Title:       item.FullName,
			URL:         item.HTMLURL,
			Snippet:     snippet,
			Score:       float64(item.Stars),
			Author:      item.Owner.Login,
			RetrievedAt: now,
		})
	}
	return findings, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/deep-research/internal/model"
	"github.com/sells-group/deep-research/internal/resilience"
)

const stackOverflowDefaultBaseURL = "https://api.stackexchange.com/2.3"

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// StackOverflow searches questions via the StackExchange API. No
// authentication; the API applies an IP-based quota.
type StackOverflow struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// StackOverflowOption configures the Stack Overflow adapter.
type StackOverflowOption func(*StackOverflow)

// WithStackOverflowBaseURL overrides the API base URL.
func WithStackOverflowBaseURL(u string) StackOverflowOption {
	return func(s *StackOverflow) { s.baseURL = u }
}

// WithStackOverflowHTTPClient overrides the HTTP client.
func WithStackOverflowHTTPClient(hc *http.Client) StackOverflowOption {
	return func(s *StackOverflow) { s.http = hc }
}

// WithStackOverflowRateLimit sets the request rate in requests per second.
func WithStackOverflowRateLimit(perSec float64) StackOverflowOption {
	return func(s *StackOverflow) { s.limiter = newLimiter(perSec) }
}

// NewStackOverflow creates the Stack Overflow adapter.
func NewStackOverflow(opts ...StackOverflowOption) *StackOverflow {
	s := &StackOverflow{
		baseURL: stackOverflowDefaultBaseURL,
		http:    newHTTPClient(30 * time.Second),
		limiter: newLimiter(2),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name implements Source.
func (s *StackOverflow) Name() string { return "stackoverflow" }

// IsAvailable implements Source.
func (s *StackOverflow) IsAvailable(ctx context.Context) bool { return true }

type soSearchResponse struct {
	Items []struct {
		Title       string   `json:"title"`
		Link        string   `json:"link"`
		Body        string   `json:"body"`
		Score       int      `json:"score"`
		IsAnswered  bool     `json:"is_answered"`
		AnswerCount int      `json:"answer_count"`
		Tags        []string `json:"tags"`
		Owner       struct {
			DisplayName string `json:"display_name"`
		} `json:"owner"`
	} `json:"items"`
}

// Search queries /search/advanced sorted by relevance.
func (s *StackOverflow) Search(ctx context.Context, query string, maxResults int) ([]model.Finding, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "stackoverflow: rate limit wait")
	}

	params := url.Values{}
	params.Set("order", "desc")
	params.Set("sort", "relevance")
	params.Set("q", query)
	params.Set("site", "stackoverflow")
	params.Set("pagesize", fmt.Sprintf("%d", min(maxResults, 30)))
	params.Set("filter", "withbody")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search/advanced?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "stackoverflow: create request")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "stackoverflow: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "stackoverflow: read response")
	}

	if resilience.TransientStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("stackoverflow: status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("stackoverflow: unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed soSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "stackoverflow: decode response")
	}

	now := time.Now().UTC()
	findings := make([]model.Finding, 0, len(parsed.Items))
	for i, item := range parsed.Items {
		if i >= maxResults {
			break
		}
		findings = append(findings, model.Finding{
			Source:      s.Name(),
			Title:       item.Title,
			URL:         item.Link,
			Snippet:     stripHTML(item.Body, 500),
			Score:       float64(item.Score),
			Author:      item.Owner.DisplayName,
			RetrievedAt: now,
		})
	}
	return findings, nil
}

// stripHTML removes tags from question bodies and truncates to limit runes.
func stripHTML(body string, limit int) string {
	text := htmlTagPattern.ReplaceAllString(body, "")
	text = strings.TrimSpace(strings.Join(strings.Fields(text), " "))
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}

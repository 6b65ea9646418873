package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/veridex/veridex/internal/model"
	"github.com/veridex/veridex/internal/util"
)

// HTTPSearcher is the default Searcher. It queries a SearxNG-compatible
// metasearch endpoint (GET /search?q=...&format=json), which keeps the
// search backend self-hostable and free of API keys.
type HTTPSearcher struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	maxResults int
}

// NewHTTPSearcher creates a searcher for the given endpoint base URL
func NewHTTPSearcher(baseURL string, cfg model.HTTPConfig) *HTTPSearcher {
	return &HTTPSearcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
		},
		userAgent:  cfg.UserAgent,
		maxResults: 8,
	}
}

// searxResponse is the subset of the SearxNG JSON format we consume
type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query. An empty result set is a clean outcome, reported
// as a nil slice rather than an error; Service.Gather maps it to ErrNoResults.
func (s *HTTPSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", s.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search %q: unexpected status %d", query, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2_000_000))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed searxResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var results []SearchResult
	for i, hit := range parsed.Results {
		if i >= s.maxResults {
			break
		}
		if hit.URL == "" {
			continue
		}
		results = append(results, SearchResult{
			Title:   hit.Title,
			URL:     hit.URL,
			Snippet: hit.Content,
		})
	}
	return results, nil
}

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"intentforge/internal/logging"
)

// HTTPProvider queries a SearxNG-compatible JSON search endpoint
// (GET {base}/search?q=...&format=json).
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPConfig holds configuration for the HTTP search provider.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewHTTPProvider creates a provider against the given base URL.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
	} `json:"results"`
}

// Search runs the query, degrading to an empty list on any failure.
func (p *HTTPProvider) Search(ctx context.Context, query string, maxResults int) []Result {
	if strings.TrimSpace(query) == "" || p.baseURL == "" {
		return nil
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	start := time.Now()
	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", p.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		logging.Get(logging.CategorySearch).Warn("Search request build failed: %v", err)
		return nil
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logging.Get(logging.CategorySearch).Warn("Search failed after %v: %v", time.Since(start), err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logging.Get(logging.CategorySearch).Warn("Search returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
		return nil
	}

	var parsed searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logging.Get(logging.CategorySearch).Warn("Search response parse failed: %v", err)
		return nil
	}

	results := make([]Result, 0, maxResults)
	for _, r := range parsed.Results {
		if len(results) >= maxResults {
			break
		}
		results = append(results, Result{
			Title:        r.Title,
			Snippet:      r.Content,
			URL:          r.URL,
			SourceDomain: domainOf(r.URL),
		})
	}

	logging.Search("Search %q returned %d results in %v", query, len(results), time.Since(start))
	return results
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}

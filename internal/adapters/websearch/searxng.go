// Package websearch queries a SearXNG instance for deal finding.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
)

// SearXNG searches through the JSON API of a SearXNG instance
type SearXNG struct {
	baseURL    string
	maxResults int
	client     *http.Client
	logger     *zap.Logger
}

// NewSearXNG creates a searcher for the instance at baseURL
func NewSearXNG(baseURL string, maxResults int, timeout time.Duration, logger *zap.Logger) *SearXNG {
	if maxResults <= 0 {
		maxResults = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearXNG{
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search returns at most maxResults results for query
func (s *SearXNG) Search(ctx context.Context, query string) ([]core.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: search returned %s", core.ErrRateLimit, resp.Status)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: search returned %s", core.ErrAuth, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	var body searxResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]core.SearchResult, 0, min(len(body.Results), s.maxResults))
	for _, r := range body.Results {
		if len(results) == s.maxResults {
			break
		}
		if r.URL == "" {
			continue
		}
		results = append(results, core.SearchResult{
			Title:   strings.TrimSpace(r.Title),
			URL:     r.URL,
			Snippet: strings.TrimSpace(r.Content),
		})
	}

	s.logger.Debug("Web search completed", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

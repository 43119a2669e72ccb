// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package websearch is the live web-search collaborator used by the market
// agent. A Tavily-style HTTP backend sits behind a circuit breaker, the
// shared cache, and the retry executor; callers see one Search method.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/pdiddy/decision-engine/internal/cache"
	"github.com/pdiddy/decision-engine/internal/retry"
	"github.com/pdiddy/decision-engine/pkg/types"
)

// Result is one web search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Searcher performs a web search. The market agent depends on this
// interface so tests can supply canned results.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// tavilyAPIURL is the search endpoint. Declared as a var so tests can
// substitute an httptest server.
var tavilyAPIURL = "https://api.tavily.com/search"

// HTTPBackend is the raw Tavily API client.
type HTTPBackend struct {
	cfg    types.WebSearchConfig
	client *http.Client
}

// NewHTTPBackend builds the raw backend with the configured per-call timeout.
func NewHTTPBackend(cfg types.WebSearchConfig) *HTTPBackend {
	return &HTTPBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search queries the API once. Non-2xx statuses are returned as
// *retry.HTTPStatusError for classification by the retry executor.
func (b *HTTPBackend) Search(ctx context.Context, query string) ([]Result, error) {
	if b.cfg.APIKey == "" {
		return nil, retry.Permanent(fmt.Errorf("search API key not configured"))
	}

	maxResults := b.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	payload, err := json.Marshal(tavilyRequest{
		APIKey:     b.cfg.APIKey,
		Query:      query,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIURL, bytes.NewReader(payload))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", b.cfg.UserAgent)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &retry.HTTPStatusError{Status: resp.StatusCode, Body: string(snippet)}
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

// Client wraps a Searcher with caching, retry, and a circuit breaker.
type Client struct {
	backend Searcher
	cache   *cache.Cache
	ttl     time.Duration
	policy  retry.Policy
	breaker *gobreaker.CircuitBreaker
	errored cache.Counter
	logger  *zap.Logger
}

// Instrument counts searches that fail after the resilience layers.
func (c *Client) Instrument(errored cache.Counter) {
	c.errored = errored
}

// NewClient composes the resilience layers around backend. The breaker
// opens after five consecutive failures and probes again after 30s,
// sparing a struggling search API from retry storms.
func NewClient(backend Searcher, c *cache.Cache, ttl time.Duration, policy retry.Policy, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy.Classify = retry.ClassifyNetwork

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "websearch",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		backend: backend,
		cache:   c,
		ttl:     ttl,
		policy:  policy,
		breaker: breaker,
		logger:  logger,
	}
}

// Search returns cached results when available, otherwise calls the
// backend through the breaker and retry executor and caches the outcome.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	key := cache.Fingerprint("websearch", query)

	raw, err := c.cache.GetOrCompute(ctx, key, c.ttl, func(ctx context.Context) ([]byte, error) {
		results, err := retry.Do(ctx, c.logger, c.policy, "websearch", func(ctx context.Context) ([]Result, error) {
			out, err := c.breaker.Execute(func() (any, error) {
				return c.backend.Search(ctx, query)
			})
			if err != nil {
				return nil, err
			}
			return out.([]Result), nil
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(results)
	})
	if err != nil {
		if c.errored != nil {
			c.errored.Inc()
		}
		return nil, err
	}

	var results []Result
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decoding cached results: %w", err)
	}
	return results, nil
}

// FormatResults renders results as numbered context for a model prompt.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No search results found."
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString("[" + strconv.Itoa(i+1) + "] " + r.Title + "\n")
		b.WriteString("URL: " + r.URL + "\n")
		fmt.Fprintf(&b, "Relevance: %.2f\n", r.Score)
		b.WriteString("Summary: " + r.Snippet + "\n")
	}
	return b.String()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/decision-engine/internal/cache"
	"github.com/pdiddy/decision-engine/internal/retry"
	"github.com/pdiddy/decision-engine/pkg/types"
)

func testBackendConfig() types.WebSearchConfig {
	return types.WebSearchConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test/0.1"},
		APIKey:     "tvly-test",
		MaxResults: 3,
	}
}

func fastPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.BaseDelay = time.Microsecond
	p.MaxDelay = time.Millisecond
	return p
}

func withServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	ts := httptest.NewServer(handler)
	old := tavilyAPIURL
	tavilyAPIURL = ts.URL
	t.Cleanup(func() {
		tavilyAPIURL = old
		ts.Close()
	})
}

func searchResponse(w http.ResponseWriter) {
	json.NewEncoder(w).Encode(map[string]any{
		"results": []map[string]any{
			{"title": "Market report", "url": "https://example.com/a", "content": "growing fast", "score": 0.91},
			{"title": "Competitor roundup", "url": "https://example.com/b", "content": "crowded field", "score": 0.72},
		},
	})
}

func TestHTTPBackendParsesResults(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tvly-test", req.APIKey)
		assert.Equal(t, "ai dog walker", req.Query)
		searchResponse(w)
	})

	b := NewHTTPBackend(testBackendConfig())
	results, err := b.Search(context.Background(), "ai dog walker")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Market report", results[0].Title)
	assert.Equal(t, "growing fast", results[0].Snippet)
	assert.InDelta(t, 0.91, results[0].Score, 1e-9)
}

func TestHTTPBackendMissingKeyIsPermanent(t *testing.T) {
	cfg := testBackendConfig()
	cfg.APIKey = ""
	b := NewHTTPBackend(cfg)

	_, err := b.Search(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls int32
	withServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		searchResponse(w)
	})

	c := NewClient(NewHTTPBackend(testBackendConfig()), cache.New(cache.NewMemory(0), nil), time.Minute, fastPolicy(), nil)
	results, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientServesRepeatQueryFromCache(t *testing.T) {
	var calls int32
	withServer(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		searchResponse(w)
	})

	c := NewClient(NewHTTPBackend(testBackendConfig()), cache.New(cache.NewMemory(0), nil), time.Minute, fastPolicy(), nil)

	first, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "repeat query must hit the cache")
}

func TestClientDistinctQueriesNotShared(t *testing.T) {
	var calls int32
	withServer(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		searchResponse(w)
	})

	c := NewClient(NewHTTPBackend(testBackendConfig()), cache.New(cache.NewMemory(0), nil), time.Minute, fastPolicy(), nil)

	_, err := c.Search(context.Background(), "first query")
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "second query")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// erroringSearcher always fails, for driving the breaker open.
type erroringSearcher struct{ calls int32 }

func (s *erroringSearcher) Search(context.Context, string) ([]Result, error) {
	atomic.AddInt32(&s.calls, 1)
	return nil, errors.New("upstream down")
}

func TestClientBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	backend := &erroringSearcher{}
	p := fastPolicy()
	p.MaxAttempts = 1
	c := NewClient(backend, cache.New(cache.NewMemory(0), nil), time.Minute, p, nil)

	for i := 0; i < 5; i++ {
		_, err := c.Search(context.Background(), "q")
		require.Error(t, err)
	}
	before := atomic.LoadInt32(&backend.calls)

	// The breaker is now open; further calls fail without reaching the
	// backend.
	_, err := c.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, before, atomic.LoadInt32(&backend.calls))
}

func TestFormatResults(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		want    []string
	}{
		{"empty", nil, []string{"No search results found."}},
		{
			"numbered entries",
			[]Result{{Title: "A", URL: "u1", Snippet: "s1", Score: 0.5}, {Title: "B", URL: "u2", Snippet: "s2", Score: 0.25}},
			[]string{"[1] A", "[2] B", "Relevance: 0.50", "Relevance: 0.25", "---"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatResults(tt.results)
			for _, want := range tt.want {
				assert.Contains(t, got, want)
			}
		})
	}
}

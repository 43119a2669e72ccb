// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes prometheus collectors for the decision engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every prometheus metric the engine emits. One instance
// per process, created in main and passed to components that record.
type Collector struct {
	registry *prometheus.Registry

	// Workflow metrics
	RunsTotal     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	AgentVerdicts *prometheus.CounterVec

	// Leaf metrics
	RetryAttempts   *prometheus.CounterVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	RetrievalEmpty  prometheus.Counter
	WebSearchErrors prometheus.Counter
}

// NewCollector creates and registers all engine metrics under namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Workflow runs by outcome (done, failed, cancelled).",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_stage_duration_seconds",
			Help:      "Duration of each workflow stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		AgentVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_verdicts_total",
			Help:      "Agent reports by agent and verdict.",
		}, []string{"agent", "verdict"}),
		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Retry executor attempts by operation and result.",
		}, []string{"op", "result"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache lookups served from the backend.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that required computation.",
		}),
		RetrievalEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_empty_total",
			Help:      "Retrieval queries with no passage above the relevance cutoff.",
		}),
		WebSearchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "web_search_errors_total",
			Help:      "Web search calls that failed after retry.",
		}),
	}

	registry.MustRegister(
		c.RunsTotal, c.StageDuration, c.AgentVerdicts, c.RetryAttempts,
		c.CacheHits, c.CacheMisses, c.RetrievalEmpty, c.WebSearchErrors,
	)
	return c
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

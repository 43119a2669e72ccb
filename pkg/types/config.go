// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the per-call HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "decision-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig holds the retry/backoff policy applied to unreliable calls.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first
	// (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay is the delay before the second attempt (default 500ms).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// Multiplier is the exponential backoff factor (default 2.0).
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`

	// MaxDelay caps the backoff delay (default 30s).
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// Jitter is the fraction of random delay spread in [0,1] (default 0.1).
	Jitter float64 `json:"jitter" yaml:"jitter"`
}

// CacheBackendKind selects the cache backend implementation.
type CacheBackendKind string

const (
	CacheMemory CacheBackendKind = "memory"
	CacheRedis  CacheBackendKind = "redis"
)

// CacheConfig holds settings for the cache fronting retrieval, web search,
// and model calls.
type CacheConfig struct {
	// Backend selects the implementation: memory or redis (default memory).
	Backend CacheBackendKind `json:"backend" yaml:"backend"`

	// TTL is the default entry lifetime (default 5m).
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// MaxItems bounds the in-memory backend; least-recently-used entries
	// are evicted past this (default 4096, 0 = unbounded).
	MaxItems int `json:"max_items" yaml:"max_items"`

	// RedisURL is the redis connection URL (e.g. "redis://localhost:6379/0").
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
}

// RetrievalConfig holds settings for the strategy retrieval engine.
type RetrievalConfig struct {
	// TopK is the number of passages returned to callers (default 5).
	TopK int `json:"top_k" yaml:"top_k"`

	// CandidateK is the first-stage candidate pool size; always at least
	// TopK (default 20).
	CandidateK int `json:"candidate_k" yaml:"candidate_k"`

	// MinRelevance drops passages whose effective score is below this
	// cutoff (default 0.35).
	MinRelevance float64 `json:"min_relevance" yaml:"min_relevance"`

	// EnableRerank gates the second-stage reranking pass (default true).
	EnableRerank bool `json:"enable_rerank" yaml:"enable_rerank"`

	// IndexPath is the SQLite strategy index location
	// (default "data/strategy.db").
	IndexPath string `json:"index_path" yaml:"index_path"`
}

// AIConfig holds shared settings for components that call a language-model API.
type AIConfig struct {
	HTTPConfig `yaml:",inline"`

	// Model is the model identifier (e.g. "gpt-4-turbo").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the model API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxTokens bounds completion length (default 1024).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// WebSearchConfig holds settings for the live web-search collaborator used
// by the market agent.
type WebSearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey authenticates against the search API. Empty disables search;
	// the market agent then degrades gracefully.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxResults is the number of results requested per query (default 5).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// ArchiveConfig holds settings for the decision archive.
type ArchiveConfig struct {
	// Path is the SQLite database location (default "data/decisions.db").
	Path string `json:"path" yaml:"path"`
}

// WorkflowConfig holds settings for the decision workflow graph.
type WorkflowConfig struct {
	// AgentTimeout bounds each agent's analysis including external calls.
	// Zero means no workflow-imposed bound beyond per-call HTTP timeouts.
	AgentTimeout time.Duration `json:"agent_timeout" yaml:"agent_timeout"`

	// PromptsDir optionally overrides the embedded prompt templates.
	PromptsDir string `json:"prompts_dir,omitempty" yaml:"prompts_dir,omitempty"`
}

// GuardrailsConfig holds the input screen applied to submitted ideas
// before a run starts.
type GuardrailsConfig struct {
	// MinLength is the minimum idea length in characters (default 10).
	MinLength int `json:"min_length" yaml:"min_length"`

	// MaxLength is the maximum idea length in characters (default 5000).
	MaxLength int `json:"max_length" yaml:"max_length"`

	// MaxWords caps the idea word count (default 1000).
	MaxWords int `json:"max_words" yaml:"max_words"`

	// RateLimit is the number of evaluations allowed per client within
	// RateWindow over the HTTP API (default 10, 0 disables limiting).
	RateLimit int `json:"rate_limit" yaml:"rate_limit"`

	// RateWindow is the rate-limit window (default 1m).
	RateWindow time.Duration `json:"rate_window" yaml:"rate_window"`
}

// ServerConfig holds settings for the HTTP API surface.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// ShutdownGrace is how long in-flight requests get on shutdown
	// (default 10s).
	ShutdownGrace time.Duration `json:"shutdown_grace" yaml:"shutdown_grace"`
}

// EngineConfig groups all component configurations.
type EngineConfig struct {
	AI         AIConfig         `json:"ai" yaml:"ai"`
	WebSearch  WebSearchConfig  `json:"web_search" yaml:"web_search"`
	Retrieval  RetrievalConfig  `json:"retrieval" yaml:"retrieval"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Retry      RetryConfig      `json:"retry" yaml:"retry"`
	Workflow   WorkflowConfig   `json:"workflow" yaml:"workflow"`
	Guardrails GuardrailsConfig `json:"guardrails" yaml:"guardrails"`
	Archive    ArchiveConfig    `json:"archive" yaml:"archive"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}

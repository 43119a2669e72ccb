// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/decision-engine/pkg/types"
)

// loadConfig assembles the engine configuration from viper (config file
// plus DECISION_ENGINE_* environment variables) and the secrets directory.
func loadConfig() types.EngineConfig {
	viper.SetDefault("ai.model", "gpt-4-turbo")
	viper.SetDefault("ai.timeout", 60*time.Second)
	viper.SetDefault("ai.max_tokens", 1024)
	viper.SetDefault("web_search.timeout", 15*time.Second)
	viper.SetDefault("web_search.max_results", 5)
	viper.SetDefault("retrieval.top_k", 5)
	viper.SetDefault("retrieval.candidate_k", 20)
	viper.SetDefault("retrieval.min_relevance", 0.35)
	viper.SetDefault("retrieval.enable_rerank", true)
	viper.SetDefault("retrieval.index_path", "data/strategy.db")
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttl", 5*time.Minute)
	viper.SetDefault("cache.max_items", 4096)
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_delay", 500*time.Millisecond)
	viper.SetDefault("retry.multiplier", 2.0)
	viper.SetDefault("retry.max_delay", 30*time.Second)
	viper.SetDefault("retry.jitter", 0.1)
	viper.SetDefault("workflow.agent_timeout", 2*time.Minute)
	viper.SetDefault("guardrails.min_length", 10)
	viper.SetDefault("guardrails.max_length", 5000)
	viper.SetDefault("guardrails.max_words", 1000)
	viper.SetDefault("guardrails.rate_limit", 10)
	viper.SetDefault("guardrails.rate_window", time.Minute)
	viper.SetDefault("archive.path", "data/decisions.db")
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.shutdown_grace", 10*time.Second)

	userAgent := "decision-engine/" + version
	return types.EngineConfig{
		AI: types.AIConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("ai.timeout"),
				UserAgent: userAgent,
			},
			Model:     viper.GetString("ai.model"),
			APIKey:    secretDefault("openai-api-key", viper.GetString("ai.api_key")),
			MaxTokens: viper.GetInt("ai.max_tokens"),
		},
		WebSearch: types.WebSearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("web_search.timeout"),
				UserAgent: userAgent,
			},
			APIKey:     secretDefault("tavily-api-key", viper.GetString("web_search.api_key")),
			MaxResults: viper.GetInt("web_search.max_results"),
		},
		Retrieval: types.RetrievalConfig{
			TopK:         viper.GetInt("retrieval.top_k"),
			CandidateK:   viper.GetInt("retrieval.candidate_k"),
			MinRelevance: viper.GetFloat64("retrieval.min_relevance"),
			EnableRerank: viper.GetBool("retrieval.enable_rerank"),
			IndexPath:    viper.GetString("retrieval.index_path"),
		},
		Cache: types.CacheConfig{
			Backend:  types.CacheBackendKind(viper.GetString("cache.backend")),
			TTL:      viper.GetDuration("cache.ttl"),
			MaxItems: viper.GetInt("cache.max_items"),
			RedisURL: secretDefault("redis-url", viper.GetString("cache.redis_url")),
		},
		Retry: types.RetryConfig{
			MaxAttempts: viper.GetInt("retry.max_attempts"),
			BaseDelay:   viper.GetDuration("retry.base_delay"),
			Multiplier:  viper.GetFloat64("retry.multiplier"),
			MaxDelay:    viper.GetDuration("retry.max_delay"),
			Jitter:      viper.GetFloat64("retry.jitter"),
		},
		Workflow: types.WorkflowConfig{
			AgentTimeout: viper.GetDuration("workflow.agent_timeout"),
			PromptsDir:   viper.GetString("workflow.prompts_dir"),
		},
		Guardrails: types.GuardrailsConfig{
			MinLength:  viper.GetInt("guardrails.min_length"),
			MaxLength:  viper.GetInt("guardrails.max_length"),
			MaxWords:   viper.GetInt("guardrails.max_words"),
			RateLimit:  viper.GetInt("guardrails.rate_limit"),
			RateWindow: viper.GetDuration("guardrails.rate_window"),
		},
		Archive: types.ArchiveConfig{
			Path: viper.GetString("archive.path"),
		},
		Server: types.ServerConfig{
			Addr:          viper.GetString("server.addr"),
			ShutdownGrace: viper.GetDuration("server.shutdown_grace"),
		},
	}
}

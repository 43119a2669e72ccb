// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pdiddy/decision-engine/internal/agent"
	"github.com/pdiddy/decision-engine/internal/archive"
	"github.com/pdiddy/decision-engine/internal/cache"
	"github.com/pdiddy/decision-engine/internal/guardrails"
	"github.com/pdiddy/decision-engine/internal/llm"
	"github.com/pdiddy/decision-engine/internal/logging"
	"github.com/pdiddy/decision-engine/internal/metrics"
	"github.com/pdiddy/decision-engine/internal/prompts"
	"github.com/pdiddy/decision-engine/internal/retrieval"
	"github.com/pdiddy/decision-engine/internal/retry"
	"github.com/pdiddy/decision-engine/internal/strategy"
	"github.com/pdiddy/decision-engine/internal/websearch"
	"github.com/pdiddy/decision-engine/internal/workflow"
	"github.com/pdiddy/decision-engine/pkg/types"
)

// engine holds the fully wired evaluation pipeline and its closable
// resources.
type engine struct {
	cfg       types.EngineConfig
	logger    *zap.Logger
	runner    *workflow.Runner
	guard     *guardrails.Validator
	archive   *archive.Store
	strategy  *strategy.Store
	prompts   *prompts.Manager
	collector *metrics.Collector
}

func (e *engine) close() {
	if e.archive != nil {
		e.archive.Close()
	}
	if e.strategy != nil {
		e.strategy.Close()
	}
	_ = e.logger.Sync()
}

func newLogger() (*zap.Logger, error) {
	env, _ := rootCmd.PersistentFlags().GetString("env")
	return logging.New(env)
}

// ensureParentDir creates the directory a database path lives in.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

// buildEngine wires every component from configuration. withArchive
// controls whether decisions persist; one-shot evaluations may skip it.
func buildEngine(withArchive bool) (*engine, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	cfg := loadConfig()

	for _, p := range []string{cfg.Retrieval.IndexPath, cfg.Archive.Path} {
		if err := ensureParentDir(p); err != nil {
			return nil, err
		}
	}

	collector := metrics.NewCollector("decision_engine")
	sharedCache := cache.FromConfig(cfg.Cache, logger)
	sharedCache.Instrument(collector.CacheHits, collector.CacheMisses)
	policy := retry.FromConfig(cfg.Retry)
	policy.Classify = retry.ClassifyNetwork
	policy.Observe = func(op, result string) {
		collector.RetryAttempts.WithLabelValues(op, result).Inc()
	}

	strategyStore, err := strategy.NewStore(cfg.Retrieval.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("opening strategy index: %w", err)
	}
	engineRetrieval := retrieval.NewEngine(strategyStore, sharedCache, cfg.Retrieval, logger)

	pm, err := prompts.NewManager(cfg.Workflow.PromptsDir, logger)
	if err != nil {
		strategyStore.Close()
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	client := llm.NewOpenAIClient(cfg.AI)
	var searcher websearch.Searcher
	if cfg.WebSearch.APIKey != "" {
		searchClient := websearch.NewClient(websearch.NewHTTPBackend(cfg.WebSearch), sharedCache, cfg.Cache.TTL, policy, logger)
		searchClient.Instrument(collector.WebSearchErrors)
		searcher = searchClient
	} else {
		logger.Warn("web search disabled, no API key configured")
	}

	agents := []agent.Agent{
		agent.NewMarket(client, pm, searcher, policy, logger),
		agent.NewTech(client, pm, policy, logger),
		agent.NewRisk(client, pm, policy, logger),
		agent.NewUserFeedback(client, pm, policy, logger),
	}

	var archiveStore *archive.Store
	var archiver workflow.Archiver
	if withArchive {
		archiveStore, err = archive.NewStore(cfg.Archive.Path)
		if err != nil {
			strategyStore.Close()
			return nil, fmt.Errorf("opening decision archive: %w", err)
		}
		archiver = archiveStore
	}

	runner := workflow.NewRunner(agents, engineRetrieval, archiver, nil, cfg.Workflow, collector, logger)

	return &engine{
		cfg:       cfg,
		logger:    logger,
		runner:    runner,
		guard:     guardrails.NewValidator(cfg.Guardrails, logger),
		archive:   archiveStore,
		strategy:  strategyStore,
		prompts:   pm,
		collector: collector,
	}, nil
}

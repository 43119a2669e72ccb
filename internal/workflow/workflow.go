// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow orchestrates one product evaluation run: fan the four
// agents out concurrently, join on their reports, retrieve governing
// strategy passages, and synthesize a validated final decision.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/decision-engine/internal/agent"
	"github.com/pdiddy/decision-engine/internal/metrics"
	"github.com/pdiddy/decision-engine/internal/schema"
	"github.com/pdiddy/decision-engine/pkg/types"
)

// Stage names the phases of a run, in execution order.
type Stage string

const (
	StageStart     Stage = "START"
	StageAgents    Stage = "AGENTS_RUNNING"
	StageRetrieval Stage = "STRATEGY_RETRIEVAL"
	StageSynthesis Stage = "SYNTHESIZING"
	StageDone      Stage = "DONE"
)

// WorkflowError is an unrecoverable failure attributed to the stage it
// escaped from. Agent degradation never produces one; those resolve to
// INCONCLUSIVE reports instead.
type WorkflowError struct {
	Stage Stage
	Err   error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("workflow failed at %s: %v", e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// OutcomeKind discriminates the three ways a run can resolve.
type OutcomeKind int

const (
	// OutcomeDecision means the run completed with a validated decision.
	OutcomeDecision OutcomeKind = iota
	// OutcomeCancelled means the caller cancelled the run.
	OutcomeCancelled
	// OutcomeFailed means an unrecoverable error aborted the run.
	OutcomeFailed
)

// Outcome is the result of one run. Decision is set for OutcomeDecision,
// Failure for OutcomeFailed.
type Outcome struct {
	Kind     OutcomeKind
	Decision types.FinalDecision
	Failure  *WorkflowError
}

// StrategyRetriever fetches governing strategy passages for an idea.
// Zero topK and minRelevance mean engine defaults.
type StrategyRetriever interface {
	Query(ctx context.Context, text string, topK int, minRelevance float64) ([]types.RetrievedPassage, error)
}

// Archiver persists finalized decisions.
type Archiver interface {
	Save(ctx context.Context, d types.FinalDecision) error
}

// Runner executes evaluation runs. Runs are isolated; a Runner may serve
// many concurrently.
type Runner struct {
	agents    []agent.Agent
	retriever StrategyRetriever
	archive   Archiver
	validator *schema.Validator
	veto      VetoPredicate
	cfg       types.WorkflowConfig
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewRunner wires a runner. archive may be nil (decisions are returned
// but not persisted); veto nil means DefaultVeto; collector nil disables
// instrumentation.
func NewRunner(agents []agent.Agent, retriever StrategyRetriever, archive Archiver,
	veto VetoPredicate, cfg types.WorkflowConfig, collector *metrics.Collector, logger *zap.Logger) *Runner {

	if logger == nil {
		logger = zap.NewNop()
	}
	if veto == nil {
		veto = DefaultVeto
	}
	return &Runner{
		agents:    agents,
		retriever: retriever,
		archive:   archive,
		validator: schema.NewValidator(),
		veto:      veto,
		cfg:       cfg,
		metrics:   collector,
		logger:    logger,
	}
}

// Run evaluates one idea. It always returns an Outcome; errors are
// carried inside it with stage attribution.
func (r *Runner) Run(ctx context.Context, idea types.ProductIdea) Outcome {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))
	logger.Info("run started", zap.Int("idea_len", len(idea.Text)))

	if ctx.Err() != nil {
		return r.cancelled(logger, StageStart)
	}

	reports, err := r.runAgents(ctx, idea)
	if err != nil {
		return r.failed(logger, StageAgents, err)
	}
	if ctx.Err() != nil {
		return r.cancelled(logger, StageAgents)
	}

	passages, err := r.retrieveStrategy(ctx, idea)
	if err != nil {
		if ctx.Err() != nil {
			return r.cancelled(logger, StageRetrieval)
		}
		return r.failed(logger, StageRetrieval, err)
	}
	if ctx.Err() != nil {
		return r.cancelled(logger, StageRetrieval)
	}

	start := time.Now()
	decision := Synthesize(runID, idea, reports, passages, r.veto, time.Now().UTC())
	if err := r.validator.Validate(decision); err != nil {
		return r.failed(logger, StageSynthesis, err)
	}
	r.observeStage(StageSynthesis, start)

	if r.archive != nil {
		if err := r.archive.Save(ctx, decision); err != nil {
			return r.failed(logger, StageDone, fmt.Errorf("persisting decision: %w", err))
		}
	}

	if r.metrics != nil {
		r.metrics.RunsTotal.WithLabelValues("done").Inc()
	}
	logger.Info("run finished",
		zap.String("verdict", string(decision.Verdict)),
		zap.Float64("confidence", decision.Confidence),
		zap.Int("citations", len(decision.StrategyCitations)))
	return Outcome{Kind: OutcomeDecision, Decision: decision}
}

type agentResult struct {
	name     types.AgentName
	report   types.AgentReport
	panicked error
}

// runAgents fans the agents out, one goroutine each, and joins on the
// full set of reports. Siblings are not cancelled when one degrades; a
// panic aborts the run.
func (r *Runner) runAgents(ctx context.Context, idea types.ProductIdea) (map[types.AgentName]types.AgentReport, error) {
	start := time.Now()
	results := make(chan agentResult, len(r.agents))

	var wg sync.WaitGroup
	for _, a := range r.agents {
		wg.Add(1)
		go func(a agent.Agent) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					results <- agentResult{name: a.Name(), panicked: fmt.Errorf("agent %s panicked: %v", a.Name(), p)}
				}
			}()
			agentCtx := ctx
			if r.cfg.AgentTimeout > 0 {
				var cancel context.CancelFunc
				agentCtx, cancel = context.WithTimeout(ctx, r.cfg.AgentTimeout)
				defer cancel()
			}
			results <- agentResult{name: a.Name(), report: a.Analyze(agentCtx, idea, agent.Context{})}
		}(a)
	}
	wg.Wait()
	close(results)

	reports := make(map[types.AgentName]types.AgentReport, len(r.agents))
	for res := range results {
		if res.panicked != nil {
			return nil, res.panicked
		}
		reports[res.name] = res.report
		if r.metrics != nil {
			r.metrics.AgentVerdicts.WithLabelValues(string(res.name), string(res.report.Verdict)).Inc()
		}
	}
	r.observeStage(StageAgents, start)
	return reports, nil
}

func (r *Runner) retrieveStrategy(ctx context.Context, idea types.ProductIdea) ([]types.RetrievedPassage, error) {
	start := time.Now()
	passages, err := r.retriever.Query(ctx, idea.Text, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("retrieving strategy context: %w", err)
	}
	if len(passages) == 0 && r.metrics != nil {
		r.metrics.RetrievalEmpty.Inc()
	}
	r.observeStage(StageRetrieval, start)
	return passages, nil
}

func (r *Runner) observeStage(stage Stage, start time.Time) {
	if r.metrics != nil {
		r.metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}

func (r *Runner) cancelled(logger *zap.Logger, stage Stage) Outcome {
	if r.metrics != nil {
		r.metrics.RunsTotal.WithLabelValues("cancelled").Inc()
	}
	logger.Info("run cancelled", zap.String("stage", string(stage)))
	return Outcome{Kind: OutcomeCancelled}
}

func (r *Runner) failed(logger *zap.Logger, stage Stage, err error) Outcome {
	if r.metrics != nil {
		r.metrics.RunsTotal.WithLabelValues("failed").Inc()
	}
	logger.Error("run failed", zap.String("stage", string(stage)), zap.Error(err))
	return Outcome{Kind: OutcomeFailed, Failure: &WorkflowError{Stage: stage, Err: err}}
}

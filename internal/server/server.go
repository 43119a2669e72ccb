// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the evaluation engine over HTTP: submit ideas,
// read archived decisions, health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pdiddy/decision-engine/internal/archive"
	"github.com/pdiddy/decision-engine/internal/guardrails"
	"github.com/pdiddy/decision-engine/internal/workflow"
	"github.com/pdiddy/decision-engine/pkg/types"
)

// statusClientClosedRequest reports a cancelled run; nginx convention.
const statusClientClosedRequest = 499

// Evaluator runs one evaluation. Satisfied by *workflow.Runner.
type Evaluator interface {
	Run(ctx context.Context, idea types.ProductIdea) workflow.Outcome
}

// DecisionReader reads archived decisions. Satisfied by *archive.Store.
type DecisionReader interface {
	Get(ctx context.Context, runID string) (types.FinalDecision, error)
	List(ctx context.Context, limit int) ([]types.FinalDecision, error)
}

// HealthCheck probes one dependency; nil means healthy.
type HealthCheck func(ctx context.Context) error

// Server is the HTTP surface. Construct with New, serve via Handler.
type Server struct {
	evaluator Evaluator
	decisions DecisionReader
	metrics   http.Handler
	checks    map[string]HealthCheck
	guard     *guardrails.Validator
	limiter   *guardrails.Limiter
	logger    *zap.Logger
}

// New wires the HTTP surface. metricsHandler may be nil to disable
// /metrics; checks may be nil. Submitted ideas pass the guard config's
// screen before a run starts.
func New(evaluator Evaluator, decisions DecisionReader, metricsHandler http.Handler,
	checks map[string]HealthCheck, guard types.GuardrailsConfig, logger *zap.Logger) *Server {

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		evaluator: evaluator,
		decisions: decisions,
		metrics:   metricsHandler,
		checks:    checks,
		guard:     guardrails.NewValidator(guard, logger),
		limiter:   guardrails.NewLimiter(guard.RateLimit, guard.RateWindow),
		logger:    logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/evaluations", s.handleEvaluate)
		r.Get("/decisions", s.handleListDecisions)
		r.Get("/decisions/{runID}", s.handleGetDecision)
	})
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

type evaluateRequest struct {
	Idea        string `json:"idea"`
	RequesterID string `json:"requester_id,omitempty"`
}

type failureResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failureResponse{Error: "invalid request body"})
		return
	}
	if !s.limiter.Allow(clientID(r, req.RequesterID)) {
		writeJSON(w, http.StatusTooManyRequests, failureResponse{Error: "rate limit exceeded"})
		return
	}
	text, err := s.guard.Check(req.Idea)
	if err != nil {
		var rej *guardrails.RejectionError
		if errors.As(err, &rej) {
			writeJSON(w, http.StatusBadRequest, failureResponse{Error: rej.Reason})
			return
		}
		writeJSON(w, http.StatusBadRequest, failureResponse{Error: "invalid idea"})
		return
	}

	idea := types.ProductIdea{
		Text:        text,
		SubmittedAt: time.Now().UTC(),
		RequesterID: req.RequesterID,
	}
	out := s.evaluator.Run(r.Context(), idea)
	switch out.Kind {
	case workflow.OutcomeDecision:
		writeJSON(w, http.StatusOK, out.Decision)
	case workflow.OutcomeCancelled:
		writeJSON(w, statusClientClosedRequest, failureResponse{Error: "evaluation cancelled"})
	default:
		resp := failureResponse{Error: "evaluation failed"}
		if out.Failure != nil {
			resp.Stage = string(out.Failure.Stage)
		}
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, failureResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}
	decisions, err := s.decisions.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing decisions", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, failureResponse{Error: "listing decisions failed"})
		return
	}
	if decisions == nil {
		decisions = []types.FinalDecision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	d, err := s.decisions.Get(r.Context(), runID)
	switch {
	case errors.Is(err, archive.ErrNotFound):
		writeJSON(w, http.StatusNotFound, failureResponse{Error: "decision not found"})
	case err != nil:
		s.logger.Error("reading decision", zap.String("run_id", runID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, failureResponse{Error: "reading decision failed"})
	default:
		writeJSON(w, http.StatusOK, d)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]string, len(s.checks))
	healthy := true
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// clientID keys rate limiting: the caller-supplied requester when given,
// the peer address otherwise.
func clientID(r *http.Request, requester string) string {
	if requester != "" {
		return requester
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model and configuration for the
// decision engine: product ideas, agent reports, retrieved passages, and
// the final decision record.
package types

import "time"

// Verdict is the outcome class produced by an agent or the synthesis step.
type Verdict string

const (
	VerdictGo           Verdict = "GO"
	VerdictNoGo         Verdict = "NO_GO"
	VerdictPivot        Verdict = "PIVOT"
	VerdictInconclusive Verdict = "INCONCLUSIVE"
)

// Valid reports whether v is one of the four defined verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictGo, VerdictNoGo, VerdictPivot, VerdictInconclusive:
		return true
	}
	return false
}

// AgentName identifies one of the four analysis agents. The set is closed;
// adding an agent means adding a constant here and a case in the workflow.
type AgentName string

const (
	AgentMarket       AgentName = "market"
	AgentTech         AgentName = "tech"
	AgentRisk         AgentName = "risk"
	AgentUserFeedback AgentName = "user_feedback"
)

// AllAgents lists every agent the workflow dispatches, in a fixed order.
var AllAgents = []AgentName{AgentMarket, AgentTech, AgentRisk, AgentUserFeedback}

// ProductIdea is the immutable input to a workflow run.
type ProductIdea struct {
	// Text is the free-form idea description.
	Text string `json:"text" yaml:"text"`

	// SubmittedAt is when the idea entered the system. Zero if unknown.
	SubmittedAt time.Time `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`

	// RequesterID identifies the submitter. Empty if anonymous.
	RequesterID string `json:"requester_id,omitempty" yaml:"requester_id,omitempty"`
}

// AgentReport is the structured verdict one agent produces for one idea.
// Immutable after creation.
type AgentReport struct {
	// Verdict is the agent's recommendation for its dimension.
	Verdict Verdict `json:"verdict" yaml:"verdict"`

	// Confidence is the agent's self-assessed certainty in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Rationale explains the verdict. For a degraded (INCONCLUSIVE) report
	// it names the dependency that failed.
	Rationale string `json:"rationale" yaml:"rationale"`

	// Evidence lists supporting findings in the order the agent produced them.
	Evidence []string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// RetrievedPassage is one strategy-document passage returned by the
// retrieval engine.
type RetrievedPassage struct {
	// Text is the passage content.
	Text string `json:"text" yaml:"text"`

	// SourceDocumentID identifies the document the passage came from.
	SourceDocumentID string `json:"source_document_id" yaml:"source_document_id"`

	// RelevanceScore is the first-stage similarity score in [0,1].
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// RerankScore is the second-stage score, present only when reranking ran.
	RerankScore *float64 `json:"rerank_score,omitempty" yaml:"rerank_score,omitempty"`
}

// EffectiveScore returns the rerank score when present, else the relevance
// score. Retrieval results are ordered by this value, descending.
func (p RetrievedPassage) EffectiveScore() float64 {
	if p.RerankScore != nil {
		return *p.RerankScore
	}
	return p.RelevanceScore
}

// FinalDecision is the validated, versioned decision record. It is the only
// artifact that leaves the core; created once per run and immutable.
type FinalDecision struct {
	// RunID identifies the workflow run that produced this decision.
	RunID string `json:"run_id" yaml:"run_id" validate:"required,uuid4"`

	// SchemaVersion is the decision record shape version.
	SchemaVersion int `json:"schema_version" yaml:"schema_version" validate:"required,min=1"`

	// Verdict is the aggregate GO/NO_GO/PIVOT/INCONCLUSIVE outcome.
	Verdict Verdict `json:"verdict" yaml:"verdict" validate:"required,verdict"`

	// Confidence is the aggregate confidence in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence" validate:"gte=0,lte=1"`

	// Rationale explains the aggregate verdict, citing agent findings and
	// any violated strategy passages.
	Rationale string `json:"rationale" yaml:"rationale" validate:"required"`

	// ContributingReports maps agent name to that agent's report. Exactly
	// one entry per dispatched agent.
	ContributingReports map[AgentName]AgentReport `json:"contributing_reports" yaml:"contributing_reports" validate:"required"`

	// StrategyCitations lists the retrieved strategy passages considered,
	// ordered by descending effective score.
	StrategyCitations []RetrievedPassage `json:"strategy_citations,omitempty" yaml:"strategy_citations,omitempty"`

	// Timestamp is when the decision was finalized.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp" validate:"required"`
}

// DecisionSchemaVersion is the current FinalDecision shape version.
const DecisionSchemaVersion = 1

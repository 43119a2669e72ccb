// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/decision-engine/pkg/types"
)

// payload is the superset of fields the agent prompts ask for. Each
// agent fills its own subset; unknown fields are ignored.
type payload struct {
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`

	KeyFindings        []string `json:"key_findings"`
	Competitors        []string `json:"competitors"`
	MarketSizeEstimate string   `json:"market_size_estimate"`

	RequiredStack []string `json:"required_stack"`
	Challenges    []string `json:"challenges"`
	Feasibility   string   `json:"feasibility"`

	LegalConcerns        []string `json:"legal_concerns"`
	EthicalRisks         []string `json:"ethical_risks"`
	MitigationStrategies []string `json:"mitigation_strategies"`

	PainPoints      []string `json:"pain_points"`
	PositiveSignals []string `json:"positive_signals"`
	Sentiment       string   `json:"sentiment"`
}

// parseReport turns raw model output into a uniform report. The summary
// becomes the rationale and every list field folds into evidence, so
// downstream synthesis sees the same shape from every agent.
func parseReport(raw string) (types.AgentReport, error) {
	var p payload
	if err := json.Unmarshal([]byte(stripFences(raw)), &p); err != nil {
		return types.AgentReport{}, fmt.Errorf("decoding agent response: %w", err)
	}

	verdict := types.Verdict(strings.ToUpper(strings.TrimSpace(p.Verdict)))
	switch verdict {
	case types.VerdictGo, types.VerdictNoGo, types.VerdictPivot:
	default:
		return types.AgentReport{}, fmt.Errorf("unexpected verdict %q", p.Verdict)
	}
	if p.Summary == "" {
		return types.AgentReport{}, fmt.Errorf("response missing summary")
	}

	var evidence []string
	appendAll := func(label string, items []string) {
		for _, item := range items {
			if item = strings.TrimSpace(item); item != "" {
				evidence = append(evidence, label+": "+item)
			}
		}
	}
	appendAll("finding", p.KeyFindings)
	appendAll("competitor", p.Competitors)
	appendAll("stack", p.RequiredStack)
	appendAll("challenge", p.Challenges)
	appendAll("legal", p.LegalConcerns)
	appendAll("ethical", p.EthicalRisks)
	appendAll("mitigation", p.MitigationStrategies)
	appendAll("pain point", p.PainPoints)
	appendAll("signal", p.PositiveSignals)
	if p.MarketSizeEstimate != "" {
		evidence = append(evidence, "market size: "+p.MarketSizeEstimate)
	}
	if p.Feasibility != "" {
		evidence = append(evidence, "feasibility: "+p.Feasibility)
	}
	if p.Sentiment != "" {
		evidence = append(evidence, "sentiment: "+p.Sentiment)
	}

	return types.AgentReport{
		Verdict:    verdict,
		Confidence: clamp01(p.Confidence),
		Rationale:  p.Summary,
		Evidence:   evidence,
	}, nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

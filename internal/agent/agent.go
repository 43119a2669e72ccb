// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent implements the four analysis agents that evaluate a
// product idea: market, tech, risk, and user_feedback. Each agent sends
// the idea to the model API under its own system prompt and parses the
// structured verdict out of the response. Analyze never returns an error;
// any failure along the way degrades to an INCONCLUSIVE report so one
// broken agent cannot sink a whole run.
package agent

import (
	"context"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/decision-engine/internal/llm"
	"github.com/pdiddy/decision-engine/internal/prompts"
	"github.com/pdiddy/decision-engine/internal/retry"
	"github.com/pdiddy/decision-engine/internal/websearch"
	"github.com/pdiddy/decision-engine/pkg/types"
)

// Context carries the shared material an agent may draw on beyond the
// idea itself.
type Context struct {
	// StrategyPassages are the company strategy excerpts retrieved for
	// this idea. May be empty.
	StrategyPassages []types.RetrievedPassage
}

// Agent analyzes a product idea from one perspective. Analyze is total:
// it always produces a report, degrading to INCONCLUSIVE on failure.
type Agent interface {
	Name() types.AgentName
	Analyze(ctx context.Context, idea types.ProductIdea, actx Context) types.AgentReport
}

// analyst is the shared analysis loop: load the system prompt, render the
// user message, call the model with retries, parse the report.
type analyst struct {
	name    types.AgentName
	client  llm.Client
	prompts *prompts.Manager
	policy  retry.Policy
	logger  *zap.Logger
}

func newAnalyst(name types.AgentName, client llm.Client, pm *prompts.Manager, policy retry.Policy, logger *zap.Logger) analyst {
	if logger == nil {
		logger = zap.NewNop()
	}
	return analyst{
		name:    name,
		client:  client,
		prompts: pm,
		policy:  policy,
		logger:  logger.With(zap.String("agent", string(name))),
	}
}

func (a analyst) Name() types.AgentName { return a.name }

var userTmpl = template.Must(template.New("user").Parse(`Product idea:
{{.Idea}}
{{- if .Strategy}}

Company strategy context:
{{- range .Strategy}}
- {{.Text}}
{{- end}}
{{- end}}
{{- if .WebFindings}}

Web search findings:
{{.WebFindings}}
{{- end}}
{{- if .Note}}

Note: {{.Note}}
{{- end}}

Respond with a single JSON object only.`))

type userData struct {
	Idea        string
	Strategy    []types.RetrievedPassage
	WebFindings string
	Note        string
}

// analyze runs the shared loop. webFindings and note extend the user
// message; both may be empty.
func (a analyst) analyze(ctx context.Context, idea types.ProductIdea, actx Context, webFindings, note string) types.AgentReport {
	system, err := a.prompts.Get(string(a.name))
	if err != nil {
		return a.degraded("loading prompt", err)
	}

	var sb strings.Builder
	data := userData{
		Idea:        idea.Text,
		Strategy:    actx.StrategyPassages,
		WebFindings: webFindings,
		Note:        note,
	}
	if err := userTmpl.Execute(&sb, data); err != nil {
		return a.degraded("rendering prompt", err)
	}

	raw, err := retry.Do(ctx, a.logger, a.policy, "agent."+string(a.name), func(ctx context.Context) (string, error) {
		return a.client.Complete(ctx, llm.Request{System: system, User: sb.String()})
	})
	if err != nil {
		return a.degraded("model completion", err)
	}

	report, err := parseReport(raw)
	if err != nil {
		a.logger.Warn("unparseable agent response", zap.Error(err), zap.Int("response_len", len(raw)))
		return a.degraded("parsing response", err)
	}
	return report
}

func (a analyst) degraded(stage string, err error) types.AgentReport {
	a.logger.Warn("agent degraded", zap.String("stage", stage), zap.Error(err))
	return types.AgentReport{
		Verdict:   types.VerdictInconclusive,
		Rationale: "analysis degraded: " + stage + " failed: " + err.Error(),
	}
}

// basicAgent covers the agents that need no collaborators beyond the
// model: tech, risk, and user_feedback.
type basicAgent struct{ analyst }

func (b *basicAgent) Analyze(ctx context.Context, idea types.ProductIdea, actx Context) types.AgentReport {
	return b.analyze(ctx, idea, actx, "", "")
}

// NewTech returns the technical feasibility agent.
func NewTech(client llm.Client, pm *prompts.Manager, policy retry.Policy, logger *zap.Logger) Agent {
	return &basicAgent{newAnalyst(types.AgentTech, client, pm, policy, logger)}
}

// NewRisk returns the legal and ethical risk agent.
func NewRisk(client llm.Client, pm *prompts.Manager, policy retry.Policy, logger *zap.Logger) Agent {
	return &basicAgent{newAnalyst(types.AgentRisk, client, pm, policy, logger)}
}

// NewUserFeedback returns the user sentiment agent.
func NewUserFeedback(client llm.Client, pm *prompts.Manager, policy retry.Policy, logger *zap.Logger) Agent {
	return &basicAgent{newAnalyst(types.AgentUserFeedback, client, pm, policy, logger)}
}

// MarketAgent analyzes market opportunity. It gathers live web results
// for the idea before calling the model; when search fails the analysis
// proceeds on the model's prior knowledge with a note.
type MarketAgent struct {
	analyst
	searcher websearch.Searcher
}

// NewMarket returns the market analysis agent. searcher may be nil, in
// which case analysis runs without web findings.
func NewMarket(client llm.Client, pm *prompts.Manager, searcher websearch.Searcher, policy retry.Policy, logger *zap.Logger) *MarketAgent {
	return &MarketAgent{
		analyst:  newAnalyst(types.AgentMarket, client, pm, policy, logger),
		searcher: searcher,
	}
}

func (m *MarketAgent) Analyze(ctx context.Context, idea types.ProductIdea, actx Context) types.AgentReport {
	findings, note := "", ""
	if m.searcher != nil {
		results, err := m.searcher.Search(ctx, searchQuery(idea.Text))
		switch {
		case err != nil:
			m.logger.Warn("web search unavailable", zap.Error(err))
			note = "web search was unavailable; base the market assessment on prior knowledge."
		case len(results) > 0:
			findings = websearch.FormatResults(results)
		}
	}
	return m.analyze(ctx, idea, actx, findings, note)
}

// searchQuery trims an idea down to a usable search query.
func searchQuery(idea string) string {
	const maxLen = 200
	q := strings.Join(strings.Fields(idea), " ")
	if len(q) > maxLen {
		q = q[:maxLen]
	}
	return q + " market competitors"
}

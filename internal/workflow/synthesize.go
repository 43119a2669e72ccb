// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/decision-engine/pkg/types"
)

// VetoPredicate decides whether a retrieved strategy passage encodes a
// hard constraint the idea violates. The matching rule is policy, not
// core logic, so callers may plug their own.
type VetoPredicate func(idea types.ProductIdea, passage types.RetrievedPassage) (violated bool, reason string)

// vetoStopwords are function words and constraint phrasing that carry no
// subject information when matching a passage against an idea.
var vetoStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "any": {}, "are": {}, "be": {}, "before": {},
	"do": {}, "for": {}, "hard": {}, "in": {}, "is": {}, "it": {}, "must": {},
	"no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "our": {}, "prohibited": {},
	"the": {}, "to": {}, "we": {}, "will": {}, "with": {},
}

// DefaultVeto flags passages marked as hard constraints ("[HARD]" prefix
// or must-not/prohibited phrasing) whose subject terms appear in the idea
// text.
func DefaultVeto(idea types.ProductIdea, passage types.RetrievedPassage) (bool, string) {
	lower := strings.ToLower(passage.Text)
	hard := strings.HasPrefix(passage.Text, "[HARD]") ||
		strings.Contains(lower, "must not") ||
		strings.Contains(lower, "prohibited")
	if !hard {
		return false, ""
	}

	ideaTerms := terms(idea.Text)
	for term := range terms(passage.Text) {
		if _, skip := vetoStopwords[term]; skip {
			continue
		}
		if _, ok := ideaTerms[term]; ok {
			return true, fmt.Sprintf("idea conflicts with hard constraint %q (term %q)",
				strings.TrimSpace(passage.Text), term)
		}
	}
	return false, ""
}

func terms(text string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return ' '
	}, strings.ToLower(text))
	set := make(map[string]struct{})
	for _, f := range strings.Fields(cleaned) {
		set[f] = struct{}{}
	}
	return set
}

// conservatism orders verdicts for tie-breaking: when vote counts tie,
// the more cautious verdict wins.
var conservatism = []types.Verdict{types.VerdictNoGo, types.VerdictPivot, types.VerdictGo}

// Synthesize merges the agent reports and retrieved strategy passages
// into the final decision. Pure and deterministic: same inputs, same
// decision (modulo runID and now).
func Synthesize(runID string, idea types.ProductIdea, reports map[types.AgentName]types.AgentReport,
	passages []types.RetrievedPassage, veto VetoPredicate, now time.Time) types.FinalDecision {

	if veto == nil {
		veto = DefaultVeto
	}

	decision := types.FinalDecision{
		RunID:               runID,
		SchemaVersion:       types.DecisionSchemaVersion,
		ContributingReports: reports,
		StrategyCitations:   passages,
		Timestamp:           now,
	}

	var contributing []types.AgentReport
	for _, r := range reports {
		if r.Verdict != types.VerdictInconclusive {
			contributing = append(contributing, r)
		}
	}
	inconclusive := len(reports) - len(contributing)

	confidence := 0.0
	if len(contributing) > 0 {
		sum := 0.0
		for _, r := range contributing {
			sum += r.Confidence
		}
		mean := sum / float64(len(contributing))
		penalty := 1 - 0.25*float64(inconclusive)/float64(len(reports))
		confidence = mean * penalty
	}

	// A violated hard constraint overrides the vote entirely.
	for _, p := range passages {
		if violated, reason := veto(idea, p); violated {
			decision.Verdict = types.VerdictNoGo
			decision.Confidence = confidence
			decision.Rationale = "strategy veto: " + reason
			return decision
		}
	}

	if len(contributing) == 0 {
		decision.Verdict = types.VerdictInconclusive
		decision.Rationale = "all agents degraded; no verdict could be reached"
		return decision
	}

	votes := make(map[types.Verdict]int)
	for _, r := range contributing {
		votes[r.Verdict]++
	}
	winner := conservatism[len(conservatism)-1]
	best := -1
	for _, v := range conservatism {
		if votes[v] > best {
			winner, best = v, votes[v]
		}
	}

	decision.Verdict = winner
	decision.Confidence = confidence
	decision.Rationale = voteRationale(winner, votes, reports, inconclusive)
	return decision
}

func voteRationale(winner types.Verdict, votes map[types.Verdict]int,
	reports map[types.AgentName]types.AgentReport, inconclusive int) string {

	var agreeing []string
	for name, r := range reports {
		if r.Verdict == winner {
			agreeing = append(agreeing, string(name))
		}
	}
	sort.Strings(agreeing)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d contributing agents voted %s (%s)",
		votes[winner], len(reports)-inconclusive, winner, strings.Join(agreeing, ", "))
	if inconclusive > 0 {
		fmt.Fprintf(&sb, "; %d agent(s) were inconclusive", inconclusive)
	}
	return sb.String()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema validates decision records before they leave the core.
// A decision that fails validation is a bug in synthesis, not an input
// error, so violations are fatal to the run that produced them.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pdiddy/decision-engine/pkg/types"
)

// ViolationError reports a decision record that failed validation.
type ViolationError struct {
	// Problems lists the violated constraints in field order.
	Problems []string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("decision schema violation: %s", strings.Join(e.Problems, "; "))
}

// Validator checks FinalDecision records. Safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds the decision validator with the custom verdict rule
// registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for empty tags or nil funcs.
	if err := v.RegisterValidation("verdict", validVerdict); err != nil {
		panic(err)
	}
	return &Validator{v: v}
}

func validVerdict(fl validator.FieldLevel) bool {
	return types.Verdict(fl.Field().String()).Valid()
}

// Validate checks d against the decision schema and the cross-field rules
// struct tags cannot express. Returns *ViolationError on failure.
func (val *Validator) Validate(d types.FinalDecision) error {
	var problems []string

	if err := val.v.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating decision: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s fails %q", fe.Field(), fe.Tag()))
		}
	}

	problems = append(problems, reportProblems(d)...)

	if len(problems) > 0 {
		return &ViolationError{Problems: problems}
	}
	return nil
}

// reportProblems enforces exactly one report per dispatched agent and
// well-formed per-report fields.
func reportProblems(d types.FinalDecision) []string {
	var problems []string
	for _, name := range types.AllAgents {
		report, ok := d.ContributingReports[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing report for agent %q", name))
			continue
		}
		if !report.Verdict.Valid() {
			problems = append(problems, fmt.Sprintf("agent %q has invalid verdict %q", name, report.Verdict))
		}
		if report.Confidence < 0 || report.Confidence > 1 {
			problems = append(problems, fmt.Sprintf("agent %q confidence %v out of range", name, report.Confidence))
		}
	}
	for name := range d.ContributingReports {
		if !knownAgent(name) {
			problems = append(problems, fmt.Sprintf("report from undispatched agent %q", name))
		}
	}
	return problems
}

func knownAgent(name types.AgentName) bool {
	for _, a := range types.AllAgents {
		if a == name {
			return true
		}
	}
	return false
}

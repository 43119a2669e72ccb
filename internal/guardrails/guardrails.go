// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package guardrails screens submitted idea text before a run starts:
// length and word limits, markup and code-injection patterns, and
// prompt-injection phrases. Rejected ideas never reach the agents.
package guardrails

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/pdiddy/decision-engine/pkg/types"
)

// RejectionError reports why an idea was refused. Callers map it to a
// client error rather than a server failure.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return "idea rejected: " + e.Reason }

var forbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)exec\s*\(`),
}

var injectionPhrases = []string{
	"ignore previous instructions",
	"ignore above",
	"disregard",
	"system prompt",
	"new instructions",
	"forget everything",
	"admin mode",
	"developer mode",
}

// Validator checks and sanitizes idea text against configured limits.
// Safe for concurrent use.
type Validator struct {
	cfg    types.GuardrailsConfig
	logger *zap.Logger
}

// NewValidator wires a validator. Zero limits take the defaults (10
// character minimum, 5000 character maximum, 1000 words). A nil logger
// is replaced with a no-op logger.
func NewValidator(cfg types.GuardrailsConfig, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = 10
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 5000
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = 1000
	}
	return &Validator{cfg: cfg, logger: logger}
}

// Check validates text and returns its sanitized form. Any refusal is a
// *RejectionError.
func (v *Validator) Check(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &RejectionError{Reason: "idea text is empty"}
	}
	if len(text) < v.cfg.MinLength {
		return "", &RejectionError{Reason: fmt.Sprintf("idea too short (minimum %d characters)", v.cfg.MinLength)}
	}
	if len(text) > v.cfg.MaxLength {
		return "", &RejectionError{Reason: fmt.Sprintf("idea too long (maximum %d characters)", v.cfg.MaxLength)}
	}
	if words := len(strings.Fields(text)); words > v.cfg.MaxWords {
		return "", &RejectionError{Reason: fmt.Sprintf("idea has too many words (maximum %d)", v.cfg.MaxWords)}
	}
	for _, p := range forbiddenPatterns {
		if p.MatchString(text) {
			v.logger.Warn("idea blocked by pattern screen",
				zap.String("pattern", p.String()),
				zap.String("prefix", prefix(text, 100)))
			return "", &RejectionError{Reason: "idea contains forbidden markup or code"}
		}
	}
	lower := strings.ToLower(text)
	for _, phrase := range injectionPhrases {
		if strings.Contains(lower, phrase) {
			v.logger.Warn("idea blocked by injection screen",
				zap.String("phrase", phrase),
				zap.String("prefix", prefix(text, 100)))
			return "", &RejectionError{Reason: "idea contains suspicious instructions"}
		}
	}
	return sanitize(text), nil
}

// sanitize drops null bytes and control characters and collapses
// whitespace runs to single spaces.
func sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == 0 || (unicode.IsControl(r) && r != '\n') {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func prefix(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Limiter is a sliding-window rate limiter keyed by caller identity.
type Limiter struct {
	max    int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	history map[string][]time.Time
}

// NewLimiter allows max requests per id within window. max <= 0
// disables limiting; Allow then always succeeds.
func NewLimiter(max int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		max:     max,
		window:  window,
		clock:   time.Now,
		history: make(map[string][]time.Time),
	}
}

// SetClock replaces the time source, for tests.
func (l *Limiter) SetClock(clock func() time.Time) { l.clock = clock }

// Allow reports whether id may proceed now, recording the request if so.
func (l *Limiter) Allow(id string) bool {
	if l.max <= 0 {
		return true
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.history[id][:0]
	for _, t := range l.history[id] {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.max {
		l.history[id] = kept
		return false
	}
	l.history[id] = append(kept, now)
	return true
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry executes fallible operations with bounded exponential
// backoff, jitter, and transient-vs-fatal error classification.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/decision-engine/pkg/types"
)

// Class tells the executor how to react to a failed attempt.
type Class int

const (
	// Transient failures are retried until attempts are exhausted.
	Transient Class = iota

	// Fatal failures abort immediately without further attempts.
	Fatal
)

// Policy configures the executor for one call site. The zero value is not
// usable; start from DefaultPolicy.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration

	// Multiplier is the exponential backoff factor.
	Multiplier float64

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration

	// Jitter is the fraction of random spread applied to each delay:
	// the sleep is delay * (1 ± Jitter).
	Jitter float64

	// Classify maps a failed attempt's error to Transient or Fatal.
	// Nil treats every error as Transient.
	Classify func(error) Class

	// Observe, if set, is called once per attempt with the operation name
	// and the attempt result: success, retried, fatal, or exhausted.
	Observe func(op, result string)
}

// DefaultPolicy returns the standard policy: 3 attempts, 500ms base delay
// doubling up to 30s, 10% jitter, every error transient.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    30 * time.Second,
		Jitter:      0.1,
	}
}

// FromConfig builds a Policy from configuration, filling zero fields with
// the defaults.
func FromConfig(cfg types.RetryConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		p.BaseDelay = cfg.BaseDelay
	}
	if cfg.Multiplier > 0 {
		p.Multiplier = cfg.Multiplier
	}
	if cfg.MaxDelay > 0 {
		p.MaxDelay = cfg.MaxDelay
	}
	if cfg.Jitter > 0 {
		p.Jitter = cfg.Jitter
	}
	return p
}

// ExhaustedError reports that every attempt failed with a transient error.
// It wraps the last error observed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// fatalErr marks an error as Fatal regardless of the policy's classifier.
type fatalErr struct{ err error }

func (e fatalErr) Error() string { return e.err.Error() }
func (e fatalErr) Unwrap() error { return e.err }

// Permanent wraps err so the executor aborts immediately instead of
// retrying. Call sites use it to flag unrecoverable responses (malformed
// requests, auth failures) from inside the operation.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fatalErr{err: err}
}

// IsPermanent reports whether err was wrapped by Permanent.
func IsPermanent(err error) bool {
	var f fatalErr
	return errors.As(err, &f)
}

// Do runs op under the policy, sleeping between transient failures. The
// sleep respects ctx: cancellation during a backoff wait returns ctx.Err().
// A fatal classification, or an error wrapped by Permanent, aborts at once.
// Exhausting attempts returns an *ExhaustedError wrapping the last error.
func Do[T any](ctx context.Context, logger *zap.Logger, p Policy, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	observe := p.Observe
	if observe == nil {
		observe = func(string, string) {}
	}

	var last error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("operation recovered",
					zap.String("op", name), zap.Int("attempt", attempt+1))
			}
			observe(name, "success")
			return v, nil
		}
		last = err

		if IsPermanent(err) || classify(p, err) == Fatal {
			logger.Warn("operation failed fatally",
				zap.String("op", name), zap.Int("attempt", attempt+1), zap.Error(err))
			observe(name, "fatal")
			return zero, err
		}

		if attempt == p.MaxAttempts-1 {
			break
		}

		observe(name, "retried")
		delay := backoff(p, attempt)
		logger.Warn("operation failed, backing off",
			zap.String("op", name),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	logger.Error("operation exhausted retries",
		zap.String("op", name), zap.Int("attempts", p.MaxAttempts), zap.Error(last))
	observe(name, "exhausted")
	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Last: last}
}

func classify(p Policy, err error) Class {
	if p.Classify == nil {
		return Transient
	}
	return p.Classify(err)
}

// backoff computes min(base * multiplier^attempt, max) * (1 ± jitter).
func backoff(p Policy, attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	if p.Jitter > 0 {
		spread := 1 + p.Jitter*(2*rand.Float64()-1)
		d *= spread
	}
	return time.Duration(d)
}

// HTTPStatusError carries a failed HTTP status for classification.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP %d", e.Status)
}

// ClassifyNetwork is the standard classifier for external HTTP calls:
// context deadlines and cancellations, temporary network errors, HTTP 429
// and 5xx are Transient; 4xx other than 429 are Fatal.
func ClassifyNetwork(err error) Class {
	// A per-call timeout is transient: the next attempt gets a fresh
	// window. Run-level cancellation still aborts promptly because Do
	// checks ctx before each backoff sleep.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return Transient
	}

	var se *HTTPStatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusTooManyRequests:
			return Transient
		case se.Status >= 500:
			return Transient
		default:
			return Fatal
		}
	}

	return Transient
}

package runner

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/torosent/perfrun/internal/session"
)

const (
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 10 * time.Second
)

// FailureLogger logs failed measurement attempts.
type FailureLogger interface {
	LogFailure(run int, err error)
}

// SlogFailureLogger writes failures to a structured logger.
type SlogFailureLogger struct {
	Logger *slog.Logger
}

func (l SlogFailureLogger) LogFailure(run int, err error) {
	if err == nil {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("measurement attempt failed", "run", run, "error", err)
}

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, all errors retried
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

// DefaultRetryPolicy retries transport failures with exponential backoff and
// jitter. Timeouts, cancellations and malformed reports are not retried.
func DefaultRetryPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: Retryable,
		DelayFunc: func(attempt int, err error) time.Duration {
			attempt = max(1, min(attempt, 16))
			backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			return backoff + time.Duration(rand.Int64N(int64(backoff/2)+1))
		},
	}
}

// Retryable reports whether another attempt on the same session could help.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var merr *MeasurementError
	if errors.As(err, &merr) {
		return merr.Kind == KindTransport
	}
	return true
}

// retryMeasurer wraps a Measurer with retry logic.
type retryMeasurer struct {
	inner  Measurer
	policy RetryPolicy
}

// WithRetry wraps a Measurer with retry capability.
func WithRetry(m Measurer, policy RetryPolicy) Measurer {
	if policy.MaxAttempts <= 1 {
		return m // no retries needed
	}
	return &retryMeasurer{
		inner:  m,
		policy: policy,
	}
}

func (r *retryMeasurer) Measure(ctx context.Context, run int, sess session.Session) (RunResult, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return RunResult{}, lastErr
			}
			return RunResult{}, &MeasurementError{Run: run, Kind: transportKind(ctx, ctx.Err()), Err: ctx.Err()}
		}

		res, err := r.inner.Measure(ctx, run, sess)
		if err == nil {
			return res, nil
		}
		lastErr = err

		// Don't delay after the last attempt.
		if attempt < r.policy.MaxAttempts {
			if r.policy.ShouldRetry != nil && !r.policy.ShouldRetry(lastErr) {
				return RunResult{}, lastErr
			}
			var delay time.Duration
			if r.policy.DelayFunc != nil {
				delay = r.policy.DelayFunc(attempt, lastErr)
			} else {
				delay = r.policy.Delay
			}
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return RunResult{}, lastErr
				}
			}
		}
	}
	return RunResult{}, lastErr
}

// loggingMeasurer wraps a Measurer with failure logging.
type loggingMeasurer struct {
	inner  Measurer
	logger FailureLogger
}

// WithLogging wraps a Measurer to log failures. Apply it inside WithRetry to
// see every attempt, outside to see only final failures.
func WithLogging(m Measurer, logger FailureLogger) Measurer {
	if logger == nil {
		return m
	}
	return &loggingMeasurer{
		inner:  m,
		logger: logger,
	}
}

func (l *loggingMeasurer) Measure(ctx context.Context, run int, sess session.Session) (RunResult, error) {
	res, err := l.inner.Measure(ctx, run, sess)
	if err != nil {
		l.logger.LogFailure(run, err)
	}
	return res, err
}

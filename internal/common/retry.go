package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/tally/internal/service"
)

var (
	// ErrRateLimit indicates that the API rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// Retry defaults applied to zero RetryOptions fields.
const (
	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = 100 * time.Millisecond
	DefaultRetryMaxDelay   = 30 * time.Second
	DefaultRetryMultiplier = 2.0
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return &RetryableError{Err: err, Retryable: false}
}

// backoff yields the wait before each retry. A rate-limited attempt waits
// RateLimitDelay (MaxDelay when unset) and resumes the exponential
// schedule from there.
type backoff struct {
	opts  service.RetryOptions
	delay time.Duration
}

func newBackoff(opts service.RetryOptions) *backoff {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultRetryAttempts
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultRetryDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultRetryMaxDelay
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = DefaultRetryMultiplier
	}
	if opts.RateLimitDelay <= 0 {
		opts.RateLimitDelay = opts.MaxDelay
	}
	return &backoff{opts: opts, delay: opts.InitialDelay}
}

func (b *backoff) next(err error) time.Duration {
	if errors.Is(err, ErrRateLimit) {
		b.delay = b.opts.RateLimitDelay
	}
	wait := min(b.delay, b.opts.MaxDelay)
	b.delay = min(time.Duration(float64(wait)*b.opts.Multiplier), b.opts.MaxDelay)
	return wait
}

// WithRetry runs operation until it succeeds, returns a permanent error,
// ctx ends, or opts.MaxAttempts is reached. The exhausted error wraps both
// ErrMaxRetries and the last failure.
func WithRetry(ctx context.Context, logger *slog.Logger, operation func() error, opts service.RetryOptions) error {
	logger = OrDiscard(logger)
	b := newBackoff(opts)

	for attempt := 1; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		var retryableErr *RetryableError
		if errors.As(err, &retryableErr) && !retryableErr.Retryable {
			return retryableErr.Err
		}
		if attempt >= b.opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, attempt, err)
		}

		wait := b.next(err)
		logger.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", b.opts.MaxAttempts,
			"delay", wait,
			"error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

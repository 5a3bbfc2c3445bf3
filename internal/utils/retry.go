package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
)

// ErrMaxRetries indicates that all retry attempts have been exhausted
var ErrMaxRetries = errors.New("max retries exceeded")

// RetryOptions bounds an external call
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Timeout applies to each attempt; zero means no per-attempt timeout.
	Timeout time.Duration
}

// permanent errors are never retried
func permanent(err error) bool {
	var verr *core.ValidationError
	return errors.Is(err, core.ErrAuth) ||
		errors.Is(err, core.ErrExtraction) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &verr)
}

// WithRetry runs operation with exponential backoff until it succeeds, fails
// permanently, or the attempt budget is spent
func WithRetry(ctx context.Context, logger *zap.Logger, opts RetryOptions, operation func(ctx context.Context) error) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 5 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	delay := opts.InitialDelay
	for attempt := 1; ; attempt++ {
		err := attemptOnce(ctx, opts.Timeout, operation)
		if err == nil {
			return nil
		}
		if permanent(err) || ctx.Err() != nil {
			return err
		}
		if attempt >= opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, opts.MaxAttempts, err)
		}

		wait := delay
		if errors.Is(err, core.ErrRateLimit) && wait < opts.MaxDelay/2 {
			wait = opts.MaxDelay / 2
		}

		logger.Warn("Operation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", opts.MaxAttempts),
			zap.Duration("delay", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * opts.Multiplier)
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
}

func attemptOnce(ctx context.Context, timeout time.Duration, operation func(ctx context.Context) error) error {
	if timeout <= 0 {
		return operation(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return operation(attemptCtx)
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fazzatti/cacti/internal/ledger"
	"github.com/fazzatti/cacti/internal/model"
)

const (
	defaultRetryAttempts = 3
	defaultMaxTimeout    = 60 * time.Second
	retryBaseDelay       = 250 * time.Millisecond
	retryMaxDelay        = 5 * time.Second
)

// withRetry runs fn up to the session's retry budget, doubling the delay
// between attempts, all under the session's overall deadline. Retries stop
// early for errors that retrying cannot fix: unsupported operations, phase
// violations, and uninitialized sessions.
func (g *Gateway) withRetry(ctx context.Context, s *model.Session, op string, fn func(ctx context.Context) error) error {
	attempts := s.MaxRetries
	if attempts < 1 {
		attempts = defaultRetryAttempts
	}
	timeout := s.MaxTimeout
	if timeout <= 0 {
		timeout = defaultMaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			break
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		g.logger.Warn("operation failed, retrying",
			"session_id", s.ID, "operation", op,
			"attempt", attempt, "attempts", attempts, "error", lastErr)
		if attempt == attempts {
			break
		}
		if err := sleepCtx(ctx, delay); err != nil {
			break
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return fmt.Errorf("session %s: %s exhausted retry budget: %w", s.ID, op, lastErr)
}

func retryable(err error) bool {
	if ledger.IsUnsupported(err) || IsUninitialized(err) {
		return false
	}
	var pe *PhaseError
	return !errors.As(err, &pe)
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fazzatti/cacti/internal/ledger"
	"github.com/fazzatti/cacti/internal/model"
)

func retrySession(retries int, timeout time.Duration) *model.Session {
	return &model.Session{ID: "sess-001", MaxRetries: retries, MaxTimeout: timeout}
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	env := newTestGateway(t, ledger.ClientCapabilities())
	attempts := 0
	err := env.gw.withRetry(context.Background(), retrySession(3, 10*time.Second), "lock-asset",
		func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("chain unavailable")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetry_ExhaustsBudget(t *testing.T) {
	env := newTestGateway(t, ledger.ClientCapabilities())
	attempts := 0
	cause := errors.New("chain unavailable")
	err := env.gw.withRetry(context.Background(), retrySession(2, 10*time.Second), "lock-asset",
		func(ctx context.Context) error {
			attempts++
			return cause
		})
	if err == nil {
		t.Fatal("withRetry succeeded after only failures")
	}
	if !errors.Is(err, cause) {
		t.Errorf("withRetry error = %v, want it to wrap the last failure", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestWithRetry_UnsupportedNotRetried(t *testing.T) {
	env := newTestGateway(t, ledger.ClientCapabilities())
	attempts := 0
	err := env.gw.withRetry(context.Background(), retrySession(5, 10*time.Second), "create-asset",
		func(ctx context.Context) error {
			attempts++
			return &ledger.UnsupportedOperationError{Op: ledger.OpCreateAsset}
		})
	if !ledger.IsUnsupported(err) {
		t.Fatalf("withRetry error = %v, want UnsupportedOperationError", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, unsupported operations must not be retried", attempts)
	}
}

func TestWithRetry_UninitializedNotRetried(t *testing.T) {
	env := newTestGateway(t, ledger.ClientCapabilities())
	attempts := 0
	err := env.gw.withRetry(context.Background(), retrySession(5, 10*time.Second), "lock-asset",
		func(ctx context.Context) error {
			attempts++
			return &SessionUninitializedError{SessionID: "sess-001"}
		})
	if !IsUninitialized(err) {
		t.Fatalf("withRetry error = %v, want SessionUninitializedError", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, uninitialized sessions must not be retried", attempts)
	}
}

func TestWithRetry_HonorsOverallTimeout(t *testing.T) {
	env := newTestGateway(t, ledger.ClientCapabilities())
	attempts := 0
	start := time.Now()
	err := env.gw.withRetry(context.Background(), retrySession(10, 50*time.Millisecond), "lock-asset",
		func(ctx context.Context) error {
			attempts++
			return errors.New("chain unavailable")
		})
	if err == nil {
		t.Fatal("withRetry succeeded after only failures")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("withRetry ran %v, want it bounded by the 50ms budget", elapsed)
	}
	if attempts >= 10 {
		t.Errorf("attempts = %d, want the deadline to cut retries short", attempts)
	}
}

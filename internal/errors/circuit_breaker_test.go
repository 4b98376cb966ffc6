package errors

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failingCall(ctx context.Context) (string, error) {
	return "", errors.New("provider down")
}

func okCall(ctx context.Context) (string, error) {
	return "ok", nil
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := ExecuteFunc(cb, ctx, failingCall); err == nil {
			t.Fatal("expected call failure")
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	// Open circuit rejects without invoking the function.
	called := false
	_, err := ExecuteFunc(cb, ctx, func(ctx context.Context) (string, error) {
		called = true
		return "", nil
	})
	if err == nil {
		t.Fatal("expected rejection while open")
	}
	if !IsDegraded(err) {
		t.Errorf("rejection should be a degraded error, got %v", err)
	}
	if called {
		t.Error("function must not run while circuit is open")
	}
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("recover", CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
	})

	ctx := context.Background()
	if _, err := ExecuteFunc(cb, ctx, failingCall); err == nil {
		t.Fatal("expected failure")
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	time.Sleep(15 * time.Millisecond)

	// First success moves through half-open; second closes.
	if _, err := ExecuteFunc(cb, ctx, okCall); err != nil {
		t.Fatalf("half-open probe should pass: %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}
	if _, err := ExecuteFunc(cb, ctx, okCall); err != nil {
		t.Fatalf("second probe should pass: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after success threshold, got %s", cb.State())
	}
}

func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker("flap", CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
	})

	ctx := context.Background()
	_, _ = ExecuteFunc(cb, ctx, failingCall)
	time.Sleep(15 * time.Millisecond)

	if _, err := ExecuteFunc(cb, ctx, failingCall); err == nil {
		t.Fatal("expected failure")
	}
	if cb.State() != StateOpen {
		t.Errorf("half-open failure must reopen, got %s", cb.State())
	}
}

func TestAllowMarkPairMatchesExecute(t *testing.T) {
	cb := NewCircuitBreaker("manual", CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
	})

	for i := 0; i < 2; i++ {
		if err := cb.Allow(); err != nil {
			t.Fatalf("closed breaker must allow: %v", err)
		}
		cb.Mark(errors.New("fail"))
	}
	if cb.State() != StateOpen {
		t.Errorf("expected open after marked failures, got %s", cb.State())
	}
	if err := cb.Allow(); err == nil {
		t.Error("open breaker must reject")
	}
}

func TestManagerReturnsSameBreakerPerName(t *testing.T) {
	manager := NewCircuitBreakerManager(DefaultCircuitBreakerConfig())

	a := manager.Get("openai")
	b := manager.Get("openai")
	c := manager.Get("embeddings")

	if a != b {
		t.Error("same name must yield the same breaker")
	}
	if a == c {
		t.Error("different names must yield different breakers")
	}
	if got := len(manager.GetMetrics()); got != 2 {
		t.Errorf("expected metrics for 2 breakers, got %d", got)
	}
}

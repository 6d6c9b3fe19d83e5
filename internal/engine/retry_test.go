package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	p := RetryPolicy{Retries: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}

	result, err := p.Execute(context.Background(), func(context.Context) (Record, error) {
		calls++
		return Record{"ok": true}, nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if result["ok"] != true {
		t.Fatalf("unexpected result: %v", result)
	}
}

// TestRetryPolicy_ExhaustsRetries verifies MaxRetries=2 means
// exactly 3 invocations (retries + 1) before the last error is
// re-raised.
func TestRetryPolicy_ExhaustsRetries(t *testing.T) {
	calls := 0
	wantErr := errors.New("boom")
	p := RetryPolicy{Retries: 2, InitialDelay: time.Millisecond, BackoffFactor: 2}

	_, err := p.Execute(context.Background(), func(context.Context) (Record, error) {
		calls++
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped wantErr, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts (retries+1), got %d", calls)
	}
}

// TestRetryPolicy_ZeroRetries covers the MAX_RETRIES=0 boundary:
// exactly one attempt.
func TestRetryPolicy_ZeroRetries(t *testing.T) {
	calls := 0
	p := RetryPolicy{Retries: 0, InitialDelay: time.Millisecond, BackoffFactor: 2}

	_, err := p.Execute(context.Background(), func(context.Context) (Record, error) {
		calls++
		return nil, errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", calls)
	}
}

func TestRetryPolicy_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	p := RetryPolicy{Retries: 5, InitialDelay: time.Millisecond, BackoffFactor: 2}

	result, err := p.Execute(context.Background(), func(context.Context) (Record, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return Record{"attempt": calls}, nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if result["attempt"] != 3 {
		t.Fatalf("unexpected result: %v", result)
	}
}

// TestRetryPolicy_CancellationStopsImmediately verifies that a
// cancelled context aborts the backoff wait instead of sleeping it
// out in full.
func TestRetryPolicy_CancellationStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{Retries: 10, InitialDelay: 5 * time.Second, BackoffFactor: 2}

	calls := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := p.Execute(ctx, func(context.Context) (Record, error) {
			calls++
			return nil, errors.New("fail")
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	}()

	// Let the first attempt fail and enter its backoff wait, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Execute did not return promptly after cancellation")
	}
}

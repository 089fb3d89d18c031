// Copyright 2025 Certen Protocol

package reconnect

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestAttempt_SucceedsOnFirstTry(t *testing.T) {
	h := NewHandler(Config{MaxAttempts: 3, RetryDelay: time.Millisecond})
	h.sleep = noSleep

	calls := 0
	err := h.Attempt(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestAttempt_SucceedsAfterRetries(t *testing.T) {
	h := NewHandler(Config{MaxAttempts: 3, RetryDelay: time.Millisecond})
	h.sleep = noSleep

	calls := 0
	err := h.Attempt(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestAttempt_ExhaustsAttempts(t *testing.T) {
	h := NewHandler(Config{MaxAttempts: 2, RetryDelay: time.Millisecond})
	h.sleep = noSleep

	calls := 0
	err := h.Attempt(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("always fails")
	})
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestAttempt_CancelledContextStopsRetries(t *testing.T) {
	h := NewHandler(Config{MaxAttempts: 5, RetryDelay: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	h.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	err := h.Attempt(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected an error from cancellation")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call before cancellation, got %d", calls)
	}
}

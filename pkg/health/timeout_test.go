// Copyright 2025 Certen Protocol

package health

import (
	"testing"
	"time"
)

func TestActionTimeout_CompleteBeforeTimeout(t *testing.T) {
	clock := time.Unix(0, 0)
	at := NewActionTimeout(DefaultTimeoutConfig(), func() time.Time { return clock })

	at.StartAction("a1")
	if !at.CompleteAction("a1") {
		t.Error("expected completion of tracked action to succeed")
	}
	if at.CompleteAction("a1") {
		t.Error("expected second completion to report not-pending")
	}
}

func TestActionTimeout_CheckTimeouts(t *testing.T) {
	clock := time.Unix(0, 0)
	cfg := DefaultTimeoutConfig()
	cfg.ActionTimeout = 5 * time.Second
	at := NewActionTimeout(cfg, func() time.Time { return clock })

	at.StartAction("slow")
	clock = clock.Add(10 * time.Second)

	timedOut := at.CheckTimeouts()
	if _, ok := timedOut["slow"]; !ok {
		t.Error("expected slow action to be reported timed out")
	}
	if _, ok := at.GetElapsed("slow"); ok {
		t.Error("expected timed-out action to no longer be tracked")
	}
}

func TestErrorRecovery_RetryBudget(t *testing.T) {
	r := NewErrorRecovery(2)
	if !r.ShouldRetry("a1") {
		t.Error("expected fresh action to be retryable")
	}
	r.RecordRetry("a1")
	r.RecordRetry("a1")
	if r.ShouldRetry("a1") {
		t.Error("expected exhausted retry budget to block further retries")
	}
	r.RecordSuccess("a1")
	if r.RetryCount("a1") != 0 {
		t.Error("expected success to clear retry count")
	}
}

func TestDisputeResolution_CreateAndResolve(t *testing.T) {
	clock := time.Unix(100, 0)
	d := NewDisputeResolution(func() time.Time { return clock })

	d.CreateDispute("d1", "invalid proof", map[string]interface{}{"x": 1})
	pending := d.PendingDisputes()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending dispute, got %d", len(pending))
	}

	if err := d.ResolveDispute("d1", "confirmed cheat", "alice"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	dispute, ok := d.GetDispute("d1")
	if !ok || dispute.Status != "resolved" {
		t.Error("expected dispute to be marked resolved")
	}
	if len(d.PendingDisputes()) != 0 {
		t.Error("expected no pending disputes after resolution")
	}
}

func TestDisputeResolution_ResolveUnknown(t *testing.T) {
	d := NewDisputeResolution(nil)
	if err := d.ResolveDispute("missing", "x", ""); err != ErrUnknownDispute {
		t.Errorf("expected ErrUnknownDispute, got %v", err)
	}
}

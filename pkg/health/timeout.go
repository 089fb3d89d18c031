// Copyright 2025 Certen Protocol
//
// Timeout tracking, retry accounting, and dispute records for the protocol.

package health

import (
	"sync"
	"time"
)

// TimeoutReason explains why an action was declared timed out.
type TimeoutReason string

const (
	ReasonNoResponse        TimeoutReason = "no_response"
	ReasonInvalidAction     TimeoutReason = "invalid_action"
	ReasonNetworkError      TimeoutReason = "network_error"
	ReasonProtocolViolation TimeoutReason = "protocol_violation"
)

// TimeoutConfig controls how long the protocol waits before declaring an
// action, response, or commitment exchange stalled.
type TimeoutConfig struct {
	ActionTimeout      time.Duration
	ResponseTimeout    time.Duration
	CommitmentTimeout  time.Duration
	MaxRetries         int
	KeepaliveInterval  time.Duration
}

// DefaultTimeoutConfig mirrors the protocol's original defaults.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		ActionTimeout:     30 * time.Second,
		ResponseTimeout:   15 * time.Second,
		CommitmentTimeout: 60 * time.Second,
		MaxRetries:        3,
		KeepaliveInterval: 10 * time.Second,
	}
}

// ActionTimeout tracks in-flight actions and reports ones that have
// exceeded Config.ActionTimeout.
type ActionTimeout struct {
	mu      sync.Mutex
	config  TimeoutConfig
	pending map[string]time.Time
	now     func() time.Time
}

// NewActionTimeout creates a tracker. now defaults to time.Now when nil.
func NewActionTimeout(config TimeoutConfig, now func() time.Time) *ActionTimeout {
	if now == nil {
		now = time.Now
	}
	return &ActionTimeout{
		config:  config,
		pending: make(map[string]time.Time),
		now:     now,
	}
}

// StartAction begins tracking actionID.
func (a *ActionTimeout) StartAction(actionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[actionID] = a.now()
}

// CompleteAction stops tracking actionID. It reports whether the action was
// still pending.
func (a *ActionTimeout) CompleteAction(actionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.pending[actionID]; !ok {
		return false
	}
	delete(a.pending, actionID)
	return true
}

// CheckTimeouts returns the reasons for every action whose elapsed time now
// exceeds the configured action timeout, removing them from tracking.
func (a *ActionTimeout) CheckTimeouts() map[string]TimeoutReason {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	timedOut := make(map[string]TimeoutReason)
	for id, start := range a.pending {
		if now.Sub(start) > a.config.ActionTimeout {
			timedOut[id] = ReasonNoResponse
			delete(a.pending, id)
		}
	}
	return timedOut
}

// GetElapsed returns how long actionID has been pending, if it is tracked.
func (a *ActionTimeout) GetElapsed(actionID string) (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	start, ok := a.pending[actionID]
	if !ok {
		return 0, false
	}
	return a.now().Sub(start), true
}

// ErrorRecovery tracks retry counts and terminal failures per action.
type ErrorRecovery struct {
	mu            sync.Mutex
	maxRetries    int
	retryCounts   map[string]int
	failedActions map[string]string
}

// NewErrorRecovery creates a retry tracker bounded at maxRetries attempts.
func NewErrorRecovery(maxRetries int) *ErrorRecovery {
	return &ErrorRecovery{
		maxRetries:    maxRetries,
		retryCounts:   make(map[string]int),
		failedActions: make(map[string]string),
	}
}

// ShouldRetry reports whether actionID has retries remaining.
func (r *ErrorRecovery) ShouldRetry(actionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryCounts[actionID] < r.maxRetries
}

// RecordRetry increments and returns the retry count for actionID.
func (r *ErrorRecovery) RecordRetry(actionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryCounts[actionID]++
	return r.retryCounts[actionID]
}

// RecordFailure marks actionID as terminally failed, clearing its retry count.
func (r *ErrorRecovery) RecordFailure(actionID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedActions[actionID] = reason
	delete(r.retryCounts, actionID)
}

// RecordSuccess clears any retry or failure bookkeeping for actionID.
func (r *ErrorRecovery) RecordSuccess(actionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.retryCounts, actionID)
	delete(r.failedActions, actionID)
}

// RetryCount returns the current retry count for actionID.
func (r *ErrorRecovery) RetryCount(actionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryCounts[actionID]
}

// Dispute is a recorded disagreement between the two participants.
type Dispute struct {
	DisputeID  string                 `json:"dispute_id"`
	Reason     string                 `json:"reason"`
	Evidence   map[string]interface{} `json:"evidence"`
	Timestamp  time.Time              `json:"timestamp"`
	Status     string                 `json:"status"`
	Resolution string                 `json:"resolution,omitempty"`
	Winner     string                 `json:"winner,omitempty"`
	ResolvedAt time.Time              `json:"resolved_at,omitempty"`
}

// DisputeResolution tracks disputes raised during the protocol run.
type DisputeResolution struct {
	mu       sync.Mutex
	disputes map[string]*Dispute
	now      func() time.Time
}

// NewDisputeResolution creates an empty dispute tracker.
func NewDisputeResolution(now func() time.Time) *DisputeResolution {
	if now == nil {
		now = time.Now
	}
	return &DisputeResolution{disputes: make(map[string]*Dispute), now: now}
}

// CreateDispute records a new pending dispute.
func (d *DisputeResolution) CreateDispute(disputeID, reason string, evidence map[string]interface{}) *Dispute {
	d.mu.Lock()
	defer d.mu.Unlock()
	dispute := &Dispute{
		DisputeID: disputeID,
		Reason:    reason,
		Evidence:  evidence,
		Timestamp: d.now(),
		Status:    "pending",
	}
	d.disputes[disputeID] = dispute
	return dispute
}

// ResolveDispute marks a pending dispute resolved.
func (d *DisputeResolution) ResolveDispute(disputeID, resolution, winner string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	dispute, ok := d.disputes[disputeID]
	if !ok {
		return ErrUnknownDispute
	}
	dispute.Status = "resolved"
	dispute.Resolution = resolution
	dispute.Winner = winner
	dispute.ResolvedAt = d.now()
	return nil
}

// GetDispute returns the dispute record, if any.
func (d *DisputeResolution) GetDispute(disputeID string) (*Dispute, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dispute, ok := d.disputes[disputeID]
	return dispute, ok
}

// PendingDisputes returns every dispute still awaiting resolution.
func (d *DisputeResolution) PendingDisputes() map[string]*Dispute {
	d.mu.Lock()
	defer d.mu.Unlock()
	pending := make(map[string]*Dispute)
	for id, dispute := range d.disputes {
		if dispute.Status == "pending" {
			pending[id] = dispute
		}
	}
	return pending
}

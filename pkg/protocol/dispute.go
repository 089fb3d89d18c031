// Copyright 2025 Certen Protocol
//
// Disputes — a lighter-weight disagreement channel than a cheat accusation,
// for cases where the two participants disagree on something the protocol
// itself can't adjudicate (e.g. a rules question) and need a recorded,
// resolvable ticket instead of an automatic verdict.

package protocol

import (
	"github.com/google/uuid"

	"github.com/ztprotocol/core/pkg/health"
)

// RaiseDispute opens a new dispute over reason, attaching evidence for
// whoever resolves it.
func (e *Engine) RaiseDispute(reason string, evidence map[string]interface{}) *health.Dispute {
	disputeID := uuid.New().String()
	dispute := e.disputes.CreateDispute(disputeID, reason, evidence)
	e.monitor.RecordWarning()
	e.logger.Printf("dispute raised: %s (%s)", disputeID, reason)
	return dispute
}

// ResolveDispute closes a pending dispute with a resolution and winner.
func (e *Engine) ResolveDispute(disputeID, resolution, winner string) error {
	return e.disputes.ResolveDispute(disputeID, resolution, winner)
}

// PendingDisputes returns every dispute still awaiting resolution.
func (e *Engine) PendingDisputes() map[string]*health.Dispute {
	return e.disputes.PendingDisputes()
}

// Copyright 2025 Certen Protocol
//
// Blockchain sync surface — thin pass-throughs onto the engine's ledgersync
// instance, so callers driving the sync handshake never need to reach past
// the engine into pkg/ledgersync directly.

package protocol

import (
	"fmt"

	"github.com/ztprotocol/core/pkg/ledger"
	"github.com/ztprotocol/core/pkg/ledgersync"
)

// LocalSyncState returns this participant's current sync summary.
func (e *Engine) LocalSyncState() (ledgersync.SyncState, error) {
	return e.ledgerSync.State()
}

// ReceivePeerSyncState records the peer's most recently announced sync
// state for later divergence checks.
func (e *Engine) ReceivePeerSyncState(peer ledgersync.SyncState) {
	e.ledgerSync.UpdatePeerState(peer)
}

// NeedsSync reports whether local and peer ledger state have diverged.
func (e *Engine) NeedsSync() (bool, string, error) {
	return e.ledgerSync.NeedsSync()
}

// MergeTransactions folds transactions received from the peer into the
// local ledger, mining a block if anything new was added.
func (e *Engine) MergeTransactions(txs []ledger.Transaction) (int, string, error) {
	added, message, err := e.ledgerSync.MergeTransactions(txs)
	if err != nil {
		e.metrics.syncAttempts.WithLabelValues("merge_failed").Inc()
		return added, message, fmt.Errorf("protocol: merge transactions: %w", err)
	}
	if added > 0 {
		e.metrics.blocksMined.Inc()
		e.metrics.syncAttempts.WithLabelValues("merged").Inc()
		e.monitor.RecordActivity()
	}
	return added, message, nil
}

// ResolveConflict applies the strict longest-chain rule against the known
// peer state.
func (e *Engine) ResolveConflict() (bool, string, error) {
	return e.ledgerSync.ResolveConflict()
}

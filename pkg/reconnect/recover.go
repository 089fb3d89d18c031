// Copyright 2025 Certen Protocol

package reconnect

import (
	"context"
	"fmt"

	"github.com/ztprotocol/core/pkg/ledgersync"
	"github.com/ztprotocol/core/pkg/snapshot"
)

// Recover drives a full reconnection cycle: retry connect with backoff,
// reload the last persisted snapshot (a missing snapshot is not fatal),
// and check the ledger against the peer's last known state. A divergence
// is logged; no transactions are merged here.
func (h *Handler) Recover(ctx context.Context, connect ConnectFunc, snapshotPath string, sync *ledgersync.Sync, peerState *ledgersync.SyncState) (*snapshot.State, error) {
	if err := h.Attempt(ctx, connect); err != nil {
		return nil, fmt.Errorf("reconnect: %w", err)
	}

	state, found, err := snapshot.Load(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("reconnect: load snapshot: %w", err)
	}
	if found {
		h.logger.Printf("restored state from %s", snapshotPath)
	} else {
		h.logger.Printf("no snapshot found at %s, starting from current state", snapshotPath)
	}

	if peerState != nil {
		sync.UpdatePeerState(*peerState)
		needs, reason, err := sync.NeedsSync()
		if err != nil {
			return state, fmt.Errorf("reconnect: check sync state: %w", err)
		}
		if needs {
			h.logger.Printf("ledger out of sync after reconnect: %s", reason)
		} else {
			h.logger.Printf("ledger verified consistent after reconnect")
		}
	}

	return state, nil
}

// Copyright 2025 Certen Protocol

package ledger

import "errors"

var (
	// ErrChainBroken names a chain whose hash link or block hash no longer
	// matches its recorded value. VerifyChain reports that case as
	// (false, nil) and does not return this error.
	ErrChainBroken = errors.New("ledger: chain integrity check failed")

	// ErrEmptyChain is returned when an operation requires at least the
	// genesis block but the chain has none.
	ErrEmptyChain = errors.New("ledger: chain is empty")

	// ErrUnknownMoveType names a transaction whose move_type does not
	// match a known Kind. Deserialize does not check transaction kinds and
	// does not return this error.
	ErrUnknownMoveType = errors.New("ledger: unknown transaction kind")

	// ErrNothingPending is returned by MineBlock when there are no
	// pending transactions to batch into a block.
	ErrNothingPending = errors.New("ledger: no pending transactions to mine")
)

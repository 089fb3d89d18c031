// Copyright 2025 Certen Protocol

package protocol

import "errors"

var (
	// ErrOpponentNotSet names a missing peer commitment. No Engine method
	// returns it; methods that need a peer commitment report its absence
	// in a VerificationResult.
	ErrOpponentNotSet = errors.New("protocol: opponent commitment not set")

	// ErrEnforcementDisabled names an engine built without turn
	// enforcement. No Engine method returns it; with enforcement disabled,
	// turn-order and timeout checks are skipped.
	ErrEnforcementDisabled = errors.New("protocol: enforcement is disabled")

	// ErrAlreadyRevealed is returned by RevealCommitment when this engine
	// has already revealed, and by RecordMyAction after RevealCommitment
	// has succeeded. A verified opponent revelation does not trigger it,
	// and VerifyOpponentAction and VerifyProof are not gated on either
	// revelation.
	ErrAlreadyRevealed = errors.New("protocol: commitment already revealed")

	// ErrTerminalState is returned when an operation is attempted after
	// the engine has entered Forfeit or Complete.
	ErrTerminalState = errors.New("protocol: protocol is in a terminal state")
)

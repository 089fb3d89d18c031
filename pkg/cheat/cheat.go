// Copyright 2025 Certen Protocol
//
// Cheat detection — records accusations with cryptographic evidence and
// lets any third party independently verify a claim from the evidence
// alone, without trusting the accuser.

package cheat

import (
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/ztprotocol/core/pkg/gridcommit"
	"github.com/ztprotocol/core/pkg/identity"
	"github.com/ztprotocol/core/pkg/ledger"
)

// Type enumerates the kinds of cheating the protocol can detect. Only
// InvalidProof, ForgedSignature, and BlockchainTampering can be verified
// independently of the accuser; the rest require contextual game-rule
// knowledge the accuser holds but this package does not.
type Type string

const (
	InvalidProof        Type = "invalid_proof"
	ForgedSignature     Type = "forged_signature"
	CommitmentMismatch  Type = "commitment_mismatch"
	BlockchainTampering Type = "blockchain_tampering"
	InvalidMove         Type = "invalid_move"
	TimeoutStall        Type = "timeout_stall"
	DoubleMove          Type = "double_move"
)

// Evidence is a recorded accusation, including whatever cryptographic
// material supports it.
type Evidence struct {
	CheatType   Type                   `json:"cheat_type"`
	CheaterID   string                 `json:"cheater_id"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"evidence"`
	Timestamp   float64                `json:"timestamp"`
	WitnessID   string                 `json:"witness_id"`
}

// Detector records cheating witnessed by one participant against its peer.
type Detector struct {
	mu               sync.RWMutex
	participantID    string
	detected         []Evidence
	opponentIsCheater bool
	now              func() float64
}

// NewDetector creates a Detector that attributes witnessed evidence to
// participantID.
func NewDetector(participantID string, now func() float64) *Detector {
	if now == nil {
		now = func() float64 { return float64(time.Now().Unix()) }
	}
	return &Detector{participantID: participantID, now: now}
}

// RecordCheat appends a new accusation to the detector's log.
func (d *Detector) RecordCheat(cheatType Type, cheaterID, description string, evidence map[string]interface{}) Evidence {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := Evidence{
		CheatType:   cheatType,
		CheaterID:   cheaterID,
		Description: description,
		Data:        evidence,
		Timestamp:   d.now(),
		WitnessID:   d.participantID,
	}
	d.detected = append(d.detected, e)
	d.opponentIsCheater = true
	return e
}

// HasDetectedCheating reports whether any cheat has been recorded.
func (d *Detector) HasDetectedCheating() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.detected) > 0
}

// DetectedCheats returns a copy of every recorded accusation.
func (d *Detector) DetectedCheats() []Evidence {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Evidence, len(d.detected))
	copy(out, d.detected)
	return out
}

// VerifyClaim independently re-derives a verdict for evidence from the
// evidence's own cryptographic material, never trusting the accuser's
// say-so. It returns (verifiable, upheld): verifiable is false for claim
// types that cannot be checked without out-of-band game-rule context.
func VerifyClaim(evidence Evidence, chain *ledger.Ledger, accusedPubKey *secp256k1.PublicKey) (verifiable bool, upheld bool) {
	switch evidence.CheatType {
	case InvalidProof:
		proofRaw, okProof := evidence.Data["proof"].(*gridcommit.MerkleProof)
		rootRaw, okRoot := evidence.Data["commitment_root"].([32]byte)
		if !okProof || !okRoot {
			return false, false
		}
		valid := gridcommit.VerifyProof(proofRaw, rootRaw)
		return true, !valid

	case ForgedSignature:
		msg, okMsg := evidence.Data["message"].([]byte)
		sig, okSig := evidence.Data["signature"].(string)
		if !okMsg || !okSig || accusedPubKey == nil {
			return false, false
		}
		valid := identity.Verify(msg, sig, accusedPubKey)
		return true, !valid

	case BlockchainTampering:
		if chain == nil {
			return false, false
		}
		ok, err := chain.VerifyChain()
		if err != nil {
			return false, false
		}
		return true, !ok

	default:
		return false, false
	}
}

// Invalidator tracks participants disqualified by proven cheating.
type Invalidator struct {
	mu           sync.RWMutex
	invalidated  map[string]Evidence
}

// NewInvalidator creates an empty Invalidator.
func NewInvalidator() *Invalidator {
	return &Invalidator{invalidated: make(map[string]Evidence)}
}

// Invalidate disqualifies participantID on the strength of evidence.
func (inv *Invalidator) Invalidate(participantID string, evidence Evidence) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.invalidated[participantID] = evidence
}

// IsInvalidated reports whether participantID has been disqualified.
func (inv *Invalidator) IsInvalidated(participantID string) bool {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	_, ok := inv.invalidated[participantID]
	return ok
}

// InvalidationProof returns the evidence a disqualification rests on.
func (inv *Invalidator) InvalidationProof(participantID string) (Evidence, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	e, ok := inv.invalidated[participantID]
	return e, ok
}

// ForfeitResult is the outcome recorded when a game ends by forfeit.
type ForfeitResult struct {
	GameOver  bool     `json:"game_over"`
	Winner    string   `json:"winner"`
	Reason    string   `json:"reason"`
	Cheater   string   `json:"cheater"`
	CheatType Type     `json:"cheat_type"`
	Evidence  Evidence `json:"evidence"`
	Timestamp float64  `json:"timestamp"`
}

// Forfeit builds the game-over record for a cheater's disqualification.
func (inv *Invalidator) Forfeit(cheaterID, winnerID string, now func() float64) ForfeitResult {
	inv.mu.RLock()
	evidence, ok := inv.invalidated[cheaterID]
	inv.mu.RUnlock()

	result := ForfeitResult{
		GameOver: true,
		Winner:   winnerID,
		Reason:   "opponent_caught_cheating",
		Cheater:  cheaterID,
	}
	if ok {
		result.CheatType = evidence.CheatType
		result.Evidence = evidence
	} else {
		result.CheatType = "unknown"
	}
	if now != nil {
		result.Timestamp = now()
	}
	return result
}

// Copyright 2025 Certen Protocol
//
// Post-game revelation — once play ends, each participant discloses the
// seed and grid layout behind its published commitment root so the other
// side (or any third-party auditor) can rebuild the grid and confirm every
// proof exchanged during play was honest. A participant who never reveals
// within the grace period forfeits by commitment mismatch.

package protocol

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ztprotocol/core/pkg/canon"
	"github.com/ztprotocol/core/pkg/cheat"
	"github.com/ztprotocol/core/pkg/gridcommit"
	"github.com/ztprotocol/core/pkg/identity"
	"github.com/ztprotocol/core/pkg/wire"
)

// revelationSigningPayload is the canonical byte form signed over a
// Revelation, everything but the signature itself.
func revelationSigningPayload(rev wire.Revelation) ([]byte, error) {
	return canon.Marshal(struct {
		ParticipantID  string                 `json:"participant_id"`
		CommitmentData map[string]interface{} `json:"commitment_data"`
		Seed           string                 `json:"seed"`
		Timestamp      float64                `json:"timestamp"`
	}{rev.ParticipantID, rev.CommitmentData, rev.Seed, rev.Timestamp})
}

// RevealCommitment discloses this participant's seed and grid layout,
// signed so the recipient can authenticate the disclosure. It is a
// terminal action: after revealing, RecordMyAction rejects with
// ErrAlreadyRevealed.
func (e *Engine) RevealCommitment() (wire.Revelation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.revealed {
		return wire.Revelation{}, ErrAlreadyRevealed
	}

	payload := CommitmentPayload{Width: e.cfg.GridWidth, Height: e.cfg.GridHeight, Marks: e.cfg.Marks}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return wire.Revelation{}, fmt.Errorf("protocol: marshal commitment payload: %w", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(payloadJSON, &data); err != nil {
		return wire.Revelation{}, fmt.Errorf("protocol: decode commitment payload: %w", err)
	}

	rev := wire.Revelation{
		ParticipantID:  e.id.ParticipantID,
		CommitmentData: data,
		Seed:           hex.EncodeToString(e.cfg.Seed),
		Timestamp:      e.now(),
	}
	msg, err := revelationSigningPayload(rev)
	if err != nil {
		return wire.Revelation{}, fmt.Errorf("protocol: canonicalize revelation: %w", err)
	}
	rev.Signature = e.id.Sign(msg)

	e.revealed = true
	e.state = StateRevealing
	return rev, nil
}

// VerifyOpponentRevelation authenticates a peer's revelation and confirms
// the disclosed seed and grid layout actually reproduce the root the
// opponent published before play began. A mismatch is recorded as a
// CommitmentMismatch cheat.
func (e *Engine) VerifyOpponentRevelation(rev wire.Revelation, originalRoot [32]byte) VerificationResult {
	e.mu.RLock()
	pub := e.opponentPubKey
	e.mu.RUnlock()

	if pub == nil {
		return invalid("opponent commitment not set")
	}

	msg, err := revelationSigningPayload(rev)
	if err != nil {
		return invalid("failed to canonicalize revelation")
	}
	if !identity.Verify(msg, rev.Signature, pub) {
		return invalid("revelation signature verification failed")
	}

	seed, err := hex.DecodeString(rev.Seed)
	if err != nil {
		return invalid("revealed seed is not valid hex")
	}

	payloadJSON, err := json.Marshal(rev.CommitmentData)
	if err != nil {
		return invalid("revealed commitment data could not be re-encoded")
	}
	var payload CommitmentPayload
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return invalid("revealed commitment data has an unexpected shape")
	}

	rebuilt := gridcommit.New(seed, payload.Width, payload.Height, payload.Marks)
	if rebuilt.Root() != originalRoot {
		evidence := e.recordCheat(cheat.CommitmentMismatch, rev.ParticipantID,
			"revealed seed and grid layout do not reproduce the published root",
			map[string]interface{}{"revelation": rev, "expected_root": originalRoot})
		e.invalidator.Invalidate(rev.ParticipantID, evidence)
		return invalidWith("revelation does not match published commitment", map[string]interface{}{"cheat_evidence": evidence})
	}

	e.mu.Lock()
	e.opponentRevealed = true
	e.opponentRevealedAtSec = e.now()
	e.mu.Unlock()
	return valid("revelation matches published commitment")
}

// EnforcePostGameRevelation polls pollRevealed until the opponent reveals
// or timeout elapses. If the opponent never reveals in time, it forfeits
// them on a CommitmentMismatch cheat and the engine transitions to
// Forfeit.
func (e *Engine) EnforcePostGameRevelation(ctx context.Context, pollRevealed func() (wire.Revelation, [32]byte, bool), timeout time.Duration) (cheat.ForfeitResult, VerificationResult) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if rev, root, ok := pollRevealed(); ok {
			result := e.VerifyOpponentRevelation(rev, root)
			if result.Valid {
				e.mu.Lock()
				e.state = StateComplete
				e.mu.Unlock()
			}
			return cheat.ForfeitResult{}, result
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return cheat.ForfeitResult{}, invalid("context cancelled before opponent revealed")
		case <-ticker.C:
		}
	}

	e.mu.RLock()
	opponentID := ""
	if e.opponentPeer != nil {
		opponentID = e.opponentPeer.ParticipantID
	}
	myID := e.id.ParticipantID
	e.mu.RUnlock()

	evidence := e.recordCheat(cheat.CommitmentMismatch, opponentID,
		"opponent failed to reveal commitment within the post-game grace period", nil)
	e.invalidator.Invalidate(opponentID, evidence)
	forfeit := e.invalidator.Forfeit(opponentID, myID, e.cfg.Now)

	e.mu.Lock()
	e.state = StateForfeit
	e.mu.Unlock()

	return forfeit, invalidWith("opponent forfeited by failing to reveal in time", map[string]interface{}{"cheat_evidence": evidence})
}

// Copyright 2025 Certen Protocol
//
// Enforcement — turn order and action-timeout policing for the protocol
// engine. A single enforcement instance tracks whose turn it currently is
// and raises cheat evidence on violations.

package protocol

import (
	"sync"

	"github.com/ztprotocol/core/pkg/cheat"
	"github.com/ztprotocol/core/pkg/health"
)

// enforcement tracks turn order and pending-action timeouts for one engine
// instance. Every action is timed against the configured ActionTimeout;
// customTimeouts is not consulted.
type enforcement struct {
	mu             sync.Mutex
	timeoutManager *health.ActionTimeout
	config         health.TimeoutConfig
	currentTurn    string
	turnSequence   []string
	customTimeouts map[string]float64
}

func newEnforcement(config health.TimeoutConfig) *enforcement {
	return &enforcement{
		timeoutManager: health.NewActionTimeout(config, nil),
		config:         config,
		customTimeouts: make(map[string]float64),
	}
}

// enforceTurnOrder reports whether it is participantID's turn. The first
// caller claims the turn.
func (e *enforcement) enforceTurnOrder(participantID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentTurn == "" {
		e.currentTurn = participantID
		e.turnSequence = append(e.turnSequence, participantID)
		return true
	}
	return e.currentTurn == participantID
}

// switchTurn hands the turn to the other participant.
func (e *enforcement) switchTurn(myID, opponentID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentTurn == "" || opponentID == "" {
		return
	}
	if e.currentTurn == myID {
		e.currentTurn = opponentID
	} else {
		e.currentTurn = myID
	}
	e.turnSequence = append(e.turnSequence, e.currentTurn)
}

func (e *enforcement) currentTurnID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTurn
}

// checkTimeouts returns cheat evidence for every action that has exceeded
// its timeout, attributing it to opponentID.
func (e *enforcement) checkTimeouts(opponentID string) []cheat.Evidence {
	timedOut := e.timeoutManager.CheckTimeouts()
	if len(timedOut) == 0 || opponentID == "" {
		return nil
	}

	var violations []cheat.Evidence
	for actionID := range timedOut {
		violations = append(violations, cheat.Evidence{
			CheatType:   cheat.TimeoutStall,
			CheaterID:   opponentID,
			Description: "timeout on action " + actionID,
			Data:        map[string]interface{}{"action_id": actionID},
		})
	}
	return violations
}

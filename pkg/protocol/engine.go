// Copyright 2025 Certen Protocol
//
// Protocol Engine — wires identity, grid commitment, the hash-linked ledger,
// blockchain sync, health monitoring, cheat detection, snapshotting, and
// reconnection into the single object a participant drives through one
// zero-trust protocol run.

package protocol

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"

	"github.com/ztprotocol/core/pkg/canon"
	"github.com/ztprotocol/core/pkg/cheat"
	"github.com/ztprotocol/core/pkg/gridcommit"
	"github.com/ztprotocol/core/pkg/health"
	"github.com/ztprotocol/core/pkg/identity"
	"github.com/ztprotocol/core/pkg/ledger"
	"github.com/ztprotocol/core/pkg/ledgersync"
	"github.com/ztprotocol/core/pkg/reconnect"
	"github.com/ztprotocol/core/pkg/snapshot"
	"github.com/ztprotocol/core/pkg/wire"
)

// Config configures one Engine instance for one participant's run.
type Config struct {
	// Seed is the participant's secret. It never leaves the engine and is
	// never logged or serialized.
	Seed []byte

	GridWidth  int
	GridHeight int
	Marks      map[int]bool

	EnforcementEnabled bool
	TimeoutConfig      health.TimeoutConfig
	MonitorConfig      health.MonitorConfig
	ReconnectConfig    reconnect.Config

	SnapshotPath     string
	AutoSaveInterval time.Duration

	// Now supplies timestamps for ledger entries and health bookkeeping.
	// Defaults to a Unix-seconds wall clock reading.
	Now func() float64

	Logger *log.Logger
}

// DefaultConfig returns sane defaults for every field except Seed and
// Marks, which the caller must always supply; the grid defaults to 8x8.
func DefaultConfig() *Config {
	return &Config{
		GridWidth:          8,
		GridHeight:         8,
		EnforcementEnabled: true,
		TimeoutConfig:      health.DefaultTimeoutConfig(),
		MonitorConfig:      health.DefaultMonitorConfig(),
		ReconnectConfig:    reconnect.DefaultConfig(),
		SnapshotPath:       "protocol_state.json",
		AutoSaveInterval:   30 * time.Second,
		Now:                func() float64 { return float64(time.Now().Unix()) },
		Logger:             log.New(log.Writer(), "[Protocol] ", log.LstdFlags),
	}
}

// Engine drives one participant's side of a zero-trust protocol session.
// Every public method returns a VerificationResult or a plain error; the
// engine never panics across its boundary for a cryptographic or protocol
// failure, only for genuine programmer misuse (an unset identity). New
// rejects a nil Config with an error.
type Engine struct {
	mu     sync.RWMutex
	cfg    *Config
	logger *log.Logger
	now    func() float64

	id         *identity.Identity
	commitment *gridcommit.GridCommitment

	opponentPeer   *wire.CommitmentEnvelope
	opponentPubKey *secp256k1.PublicKey

	chain       *ledger.Ledger
	ledgerSync  *ledgersync.Sync
	detector    *cheat.Detector
	invalidator *cheat.Invalidator
	disputes    *health.DisputeResolution
	enf         *enforcement
	monitor     *health.Monitor
	autosave    *snapshot.AutoSaver
	reconnector *reconnect.Handler
	metrics     *metricsSet

	state                 State
	myActionsCount        int
	opponentActionsCount  int
	revealed              bool
	opponentRevealed      bool
	opponentRevealedAtSec float64
}

// New builds an Engine from cfg, deriving the participant's identity and
// grid commitment and mining the genesis commitment transaction onto a
// fresh ledger.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("protocol: config must not be nil")
	}
	if len(cfg.Seed) == 0 {
		return nil, fmt.Errorf("protocol: config seed must not be empty")
	}
	if cfg.Now == nil {
		cfg.Now = func() float64 { return float64(time.Now().Unix()) }
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Protocol] ", log.LstdFlags)
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = "protocol_state.json"
	}

	payload := CommitmentPayload{Width: cfg.GridWidth, Height: cfg.GridHeight, Marks: cfg.Marks}
	id, err := identity.Derive(cfg.Seed, payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: derive identity: %w", err)
	}

	commitment := gridcommit.New(cfg.Seed, cfg.GridWidth, cfg.GridHeight, cfg.Marks)

	chain, err := ledger.New(cfg.Now)
	if err != nil {
		return nil, fmt.Errorf("protocol: create ledger: %w", err)
	}

	e := &Engine{
		cfg:         cfg,
		logger:      cfg.Logger,
		now:         cfg.Now,
		id:          id,
		commitment:  commitment,
		chain:       chain,
		ledgerSync:  ledgersync.New(chain),
		detector:    cheat.NewDetector(id.ParticipantID, cfg.Now),
		invalidator: cheat.NewInvalidator(),
		disputes:    health.NewDisputeResolution(nil),
		monitor:     health.NewMonitor(cfg.MonitorConfig),
		reconnector: reconnect.NewHandler(cfg.ReconnectConfig),
		metrics:     newMetrics(id.ParticipantID),
		state:       StateInit,
	}
	if cfg.EnforcementEnabled {
		e.enf = newEnforcement(cfg.TimeoutConfig)
	}
	e.autosave = snapshot.NewAutoSaver(cfg.SnapshotPath, cfg.AutoSaveInterval, e.buildSnapshot)

	root := commitment.Root()
	_, err = e.recordTransaction(ledger.KindCommitment, map[string]interface{}{
		"commitment_root": fmt.Sprintf("%x", root),
	})
	if err != nil {
		return nil, fmt.Errorf("protocol: record genesis commitment: %w", err)
	}
	if _, err := e.chain.MineBlock(); err != nil {
		return nil, fmt.Errorf("protocol: mine genesis commitment block: %w", err)
	}
	e.metrics.blocksMined.Inc()
	e.state = StateCommitmentExchanged

	return e, nil
}

// GetMyCommitment returns the wire envelope announcing this participant's
// identity and commitment root.
func (e *Engine) GetMyCommitment() wire.CommitmentEnvelope {
	e.mu.RLock()
	defer e.mu.RUnlock()
	root := e.commitment.Root()
	return wire.CommitmentEnvelope{
		ParticipantID:  e.id.ParticipantID,
		PublicKey:      e.id.PublicKeyHex(),
		CommitmentRoot: fmt.Sprintf("%x", root),
	}
}

// SetOpponentCommitment records the peer's announced commitment and
// enables opponent-directed signature verification.
func (e *Engine) SetOpponentCommitment(env wire.CommitmentEnvelope) error {
	pub, err := identity.ParsePublicKeyHex(env.PublicKey)
	if err != nil {
		return fmt.Errorf("protocol: opponent public key: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.opponentPeer = &env
	e.opponentPubKey = pub
	e.state = StateActive
	e.monitor.RecordActivity()
	return nil
}

// RecordMyAction signs and appends an action transaction, enforcing turn
// order when enforcement is enabled.
func (e *Engine) RecordMyAction(actionType string, data map[string]interface{}) (ledger.Transaction, error) {
	e.mu.Lock()
	if e.revealed {
		e.mu.Unlock()
		return ledger.Transaction{}, ErrAlreadyRevealed
	}
	if e.state == StateForfeit || e.state == StateComplete {
		e.mu.Unlock()
		return ledger.Transaction{}, ErrTerminalState
	}
	if e.enf != nil && !e.enf.enforceTurnOrder(e.id.ParticipantID) {
		e.mu.Unlock()
		return ledger.Transaction{}, fmt.Errorf("protocol: not this participant's turn")
	}
	actionID := uuid.New().String()
	if e.enf != nil {
		e.enf.timeoutManager.StartAction(actionID)
	}
	e.mu.Unlock()

	payload := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["action_type"] = actionType
	payload["action_id"] = actionID

	tx, err := e.recordTransaction(ledger.KindAction, payload)
	if err != nil {
		return ledger.Transaction{}, err
	}

	e.mu.Lock()
	e.myActionsCount++
	if e.enf != nil {
		e.enf.timeoutManager.CompleteAction(actionID)
		if e.opponentPeer != nil {
			e.enf.switchTurn(e.id.ParticipantID, e.opponentPeer.ParticipantID)
		}
	}
	e.mu.Unlock()

	e.monitor.RecordActivity()
	e.metrics.actionsRecorded.Inc()
	return tx, nil
}

// VerifyOpponentAction independently checks a peer-supplied action
// transaction: signature validity and — when enforcement is enabled — turn
// order. Sequence numbers are not checked. A turn violation is recorded as
// a DoubleMove cheat against the opponent rather than merely rejected.
func (e *Engine) VerifyOpponentAction(tx ledger.Transaction) VerificationResult {
	e.mu.RLock()
	pub := e.opponentPubKey
	opponentID := ""
	if e.opponentPeer != nil {
		opponentID = e.opponentPeer.ParticipantID
	}
	e.mu.RUnlock()

	if pub == nil {
		return invalid("opponent commitment not set")
	}
	if tx.ParticipantID != opponentID {
		return invalid("transaction not attributed to known opponent")
	}
	if e.invalidator.IsInvalidated(opponentID) {
		return invalid("opponent has already been invalidated")
	}

	msg, err := signingPayload(tx)
	if err != nil {
		return invalid("failed to canonicalize action for verification")
	}
	if !identity.Verify(msg, tx.Signature, pub) {
		evidence := e.recordCheat(cheat.ForgedSignature, opponentID, "signature failed verification", map[string]interface{}{
			"message": msg, "signature": tx.Signature,
		})
		e.invalidator.Invalidate(opponentID, evidence)
		return invalidWith("signature verification failed", map[string]interface{}{"cheat_evidence": evidence})
	}

	if e.enf != nil {
		e.mu.Lock()
		ok := e.enf.enforceTurnOrder(opponentID)
		e.mu.Unlock()
		if !ok {
			evidence := e.recordCheat(cheat.DoubleMove, opponentID, "Turn violation: action received out of turn", map[string]interface{}{
				"expected_turn": e.enf.currentTurnID(),
				"action_id":     tx.Data["action_id"],
			})
			e.invalidator.Invalidate(opponentID, evidence)
			return invalidWith("Turn violation: opponent acted out of turn", map[string]interface{}{"cheat_evidence": evidence})
		}
		e.mu.Lock()
		e.enf.switchTurn(opponentID, e.id.ParticipantID)
		e.mu.Unlock()
	}

	e.mu.Lock()
	e.opponentActionsCount++
	e.mu.Unlock()
	e.monitor.RecordActivity()
	return valid("action verified")
}

// GenerateProof produces a signed Merkle inclusion proof for query against
// this participant's own commitment.
func (e *Engine) GenerateProof(query gridcommit.CellQuery) (*gridcommit.MerkleProof, string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	proof, err := e.commitment.GenerateProof(query)
	if err != nil {
		return nil, "", fmt.Errorf("protocol: generate proof: %w", err)
	}
	proofJSON, err := canon.Marshal(proof)
	if err != nil {
		return nil, "", fmt.Errorf("protocol: canonicalize proof: %w", err)
	}
	signature := e.id.Sign(proofJSON)
	return proof, signature, nil
}

// VerifyProof independently verifies a peer-supplied proof against a
// published root and its accompanying signature, recording an InvalidProof
// cheat if verification fails.
func (e *Engine) VerifyProof(proof *gridcommit.MerkleProof, signature string, root [32]byte) VerificationResult {
	e.mu.RLock()
	pub := e.opponentPubKey
	opponentID := ""
	if e.opponentPeer != nil {
		opponentID = e.opponentPeer.ParticipantID
	}
	e.mu.RUnlock()

	if pub == nil {
		return invalid("opponent commitment not set")
	}

	proofJSON, err := canon.Marshal(proof)
	if err != nil {
		return invalid("failed to canonicalize proof")
	}
	if !identity.Verify(proofJSON, signature, pub) {
		return invalid("proof signature verification failed")
	}

	if !gridcommit.VerifyProof(proof, root) {
		evidence := e.recordCheat(cheat.InvalidProof, opponentID, "merkle proof failed verification against published root", map[string]interface{}{
			"proof": proof, "commitment_root": root,
		})
		e.invalidator.Invalidate(opponentID, evidence)
		e.metrics.proofsVerified.WithLabelValues("invalid").Inc()
		return invalidWith("proof does not verify against root", map[string]interface{}{"cheat_evidence": evidence})
	}

	result := wire.ProofResultMiss
	if proof.HasMark {
		result = wire.ProofResultHit
	}
	e.metrics.proofsVerified.WithLabelValues("valid").Inc()
	return VerificationResult{Valid: true, Reason: "proof verified", Details: map[string]interface{}{"result": result, "has_value": proof.HasMark}}
}

// VerifyBlockchainIntegrity checks every hash link in the local ledger.
func (e *Engine) VerifyBlockchainIntegrity() VerificationResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ok, err := e.chain.VerifyChain()
	if err != nil {
		return invalid(fmt.Sprintf("chain verification error: %v", err))
	}
	if !ok {
		return invalid("blockchain hash chain is broken")
	}
	return valid("blockchain integrity confirmed")
}

// VerifyAllSignatures independently re-verifies the signature on every
// opponent transaction recorded in the chain, a pure read with no effect on
// turn order or invalidation state.
func (e *Engine) VerifyAllSignatures() VerificationResult {
	e.mu.RLock()
	pub := e.opponentPubKey
	opponentID := ""
	if e.opponentPeer != nil {
		opponentID = e.opponentPeer.ParticipantID
	}
	e.mu.RUnlock()

	if pub == nil {
		return invalid("opponent commitment not set")
	}

	for _, tx := range e.chain.TransactionsByParticipant(opponentID) {
		msg, err := signingPayload(tx)
		if err != nil {
			return invalid(fmt.Sprintf("failed to canonicalize sequence %d", tx.SequenceNumber))
		}
		if !identity.Verify(msg, tx.Signature, pub) {
			return invalidWith(fmt.Sprintf("signature check failed for sequence %d", tx.SequenceNumber),
				map[string]interface{}{"sequence_number": tx.SequenceNumber})
		}
	}
	return valid("all opponent signatures verified")
}

// ReplayFromBlockchain returns every transaction recorded across the chain,
// in chain order, the audit trail used to reconstruct a session from
// scratch.
func (e *Engine) ReplayFromBlockchain() []ledger.Transaction {
	var all []ledger.Transaction
	for _, b := range e.chain.Chain() {
		all = append(all, b.Transactions...)
	}
	return all
}

// GetProtocolState reports the engine's current lifecycle stage.
func (e *Engine) GetProtocolState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// GetProtocolHealth summarizes liveness, enforcement, and cheat bookkeeping.
func (e *Engine) GetProtocolHealth() HealthReport {
	status := e.monitor.Status()

	e.mu.RLock()
	defer e.mu.RUnlock()
	return HealthReport{
		State:             e.state,
		IsStalled:         status.IsStalled,
		InactivitySeconds: status.InactivitySeconds,
		ActionCount:       e.myActionsCount,
		ErrorCount:        status.Errors,
		OpponentIsCheater: e.detector.HasDetectedCheating(),
		TotalCheatsFound:  len(e.detector.DetectedCheats()),
		ChainLength:       len(e.chain.Chain()),
	}
}

// CheckEnforcement polls for timed-out actions, recording a TimeoutStall
// cheat for each and returning the evidence produced.
func (e *Engine) CheckEnforcement() []cheat.Evidence {
	if e.enf == nil {
		return nil
	}
	e.mu.RLock()
	opponentID := ""
	if e.opponentPeer != nil {
		opponentID = e.opponentPeer.ParticipantID
	}
	e.mu.RUnlock()

	violations := e.enf.checkTimeouts(opponentID)
	for _, v := range violations {
		e.recordCheat(v.CheatType, v.CheaterID, v.Description, v.Data)
	}
	return violations
}

// recordCheat logs cheat evidence, marks the engine monitor's error count,
// and bumps the metric for cheatType.
func (e *Engine) recordCheat(cheatType cheat.Type, cheaterID, description string, data map[string]interface{}) cheat.Evidence {
	evidence := e.detector.RecordCheat(cheatType, cheaterID, description, data)
	e.monitor.RecordError()
	e.metrics.cheatsDetected.WithLabelValues(string(cheatType)).Inc()
	e.logger.Printf("cheat detected: %s by %s: %s", cheatType, cheaterID, description)
	return evidence
}

// recordTransaction signs and appends a transaction of the given kind,
// returning the stored copy (with its assigned sequence number).
func (e *Engine) recordTransaction(kind ledger.Kind, data map[string]interface{}) (ledger.Transaction, error) {
	e.mu.Lock()
	timestamp := e.now()
	tx := ledger.Transaction{
		Kind:          kind,
		ParticipantID: e.id.ParticipantID,
		Data:          data,
		Timestamp:     timestamp,
	}
	e.mu.Unlock()

	msg, err := signingPayload(tx)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("protocol: canonicalize transaction: %w", err)
	}

	e.mu.Lock()
	tx.Signature = e.id.Sign(msg)
	stored := e.chain.AddTransaction(tx)
	e.mu.Unlock()
	return stored, nil
}

// signingPayload is the canonical byte form of a transaction's signable
// fields: everything but the signature and sequence number, which are
// assigned after signing.
func signingPayload(tx ledger.Transaction) ([]byte, error) {
	return canon.Marshal(struct {
		Kind          ledger.Kind            `json:"move_type"`
		ParticipantID string                 `json:"participant_id"`
		Data          map[string]interface{} `json:"data"`
		Timestamp     float64                `json:"timestamp"`
	}{tx.Kind, tx.ParticipantID, tx.Data, tx.Timestamp})
}

// buildSnapshot captures the engine's current state for the auto-saver and
// for an explicit Save call.
func (e *Engine) buildSnapshot() (*snapshot.State, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	chainJSON, err := e.chain.Serialize()
	if err != nil {
		return nil, fmt.Errorf("protocol: serialize ledger: %w", err)
	}

	opponentID := ""
	var opponentCommitment map[string]interface{}
	if e.opponentPeer != nil {
		opponentID = e.opponentPeer.ParticipantID
		opponentCommitment = map[string]interface{}{
			"public_key":      e.opponentPeer.PublicKey,
			"commitment_root": e.opponentPeer.CommitmentRoot,
		}
	}

	root := e.commitment.Root()
	state := &snapshot.State{
		Version:               "1",
		Timestamp:             e.now(),
		Ledger:                chainJSON,
		MyParticipantID:       e.id.ParticipantID,
		OpponentParticipantID: opponentID,
		MyCommitmentRoot:      fmt.Sprintf("%x", root),
		OpponentCommitment:    opponentCommitment,
		MyActionsCount:        e.myActionsCount,
		OpponentActionsCount:  e.opponentActionsCount,
		ProtocolActive:        e.state == StateActive,
		CheatDetection: &snapshot.CheatDetectionState{
			OpponentIsCheater: e.detector.HasDetectedCheating(),
			TotalCheats:       len(e.detector.DetectedCheats()),
		},
	}
	if e.enf != nil {
		state.Enforcement = &snapshot.EnforcementState{
			CurrentTurn:  e.enf.currentTurnID(),
			TurnSequence: append([]string{}, e.enf.turnSequence...),
		}
	}
	return state, nil
}

// Save writes the engine's current state to its configured snapshot path.
func (e *Engine) Save() error {
	state, err := e.buildSnapshot()
	if err != nil {
		return err
	}
	return snapshot.Save(e.cfg.SnapshotPath, state)
}

// StartMonitoring begins the background health monitor and periodic
// auto-save loop.
func (e *Engine) StartMonitoring() error {
	if err := e.monitor.Start(); err != nil {
		return err
	}
	e.autosave.Start()
	return nil
}

// StopMonitoring halts the background health monitor and auto-save loop.
func (e *Engine) StopMonitoring() {
	e.monitor.Stop()
	e.autosave.Stop()
}

// HandleDisconnect records the disconnect as an error in the health monitor
// and logs it. Stall detection is unaffected; it depends only on inactivity.
func (e *Engine) HandleDisconnect() {
	e.monitor.RecordError()
	e.logger.Printf("connection lost, awaiting reconnection")
}

// AttemptReconnect retries connect with exponential backoff, reloads the
// last snapshot, and checks ledger state against peerState. It does not
// merge transactions; a divergence is only logged.
func (e *Engine) AttemptReconnect(ctx context.Context, connect reconnect.ConnectFunc, peerState *ledgersync.SyncState) (*snapshot.State, error) {
	state, err := e.reconnector.Recover(ctx, connect, e.cfg.SnapshotPath, e.ledgerSync, peerState)
	if err != nil {
		e.metrics.syncAttempts.WithLabelValues("failed").Inc()
		return nil, err
	}
	e.metrics.syncAttempts.WithLabelValues("succeeded").Inc()
	e.monitor.RecordActivity()
	return state, nil
}

// VerifyStateAfterReconnect checks that the local blockchain is still
// internally consistent after a reconnection before resuming play.
func (e *Engine) VerifyStateAfterReconnect() VerificationResult {
	return e.VerifyBlockchainIntegrity()
}

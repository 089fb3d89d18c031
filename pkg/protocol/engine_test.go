// Copyright 2025 Certen Protocol

package protocol

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ztprotocol/core/pkg/gridcommit"
	"github.com/ztprotocol/core/pkg/ledger"
)

func seedOf(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func testConfig(seed []byte, width, height int, marks map[int]bool) *Config {
	cfg := DefaultConfig()
	cfg.Seed = seed
	cfg.GridWidth = width
	cfg.GridHeight = height
	cfg.Marks = marks
	cfg.SnapshotPath = "unused.json"
	tick := 0.0
	cfg.Now = func() float64 { tick++; return tick }
	return cfg
}

func newTestEngine(t *testing.T, seed []byte, width, height int, marks map[int]bool) *Engine {
	t.Helper()
	e, err := New(testConfig(seed, width, height, marks))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func exchangeCommitments(t *testing.T, a, b *Engine) {
	t.Helper()
	if err := a.SetOpponentCommitment(b.GetMyCommitment()); err != nil {
		t.Fatalf("a.SetOpponentCommitment: %v", err)
	}
	if err := b.SetOpponentCommitment(a.GetMyCommitment()); err != nil {
		t.Fatalf("b.SetOpponentCommitment: %v", err)
	}
}

func TestScenario1_HappyPath4x4(t *testing.T) {
	p1 := newTestEngine(t, seedOf(0x00), 4, 4, map[int]bool{0: true, 1*4 + 2: true})
	p2 := newTestEngine(t, seedOf(0x01), 4, 4, map[int]bool{3*4 + 3: true})
	exchangeCommitments(t, p1, p2)

	if _, err := p1.RecordMyAction("query", map[string]interface{}{"x": 1, "y": 2}); err != nil {
		t.Fatalf("record action: %v", err)
	}

	proof, sig, err := p2.GenerateProof(gridcommit.CellQuery{X: 1, Y: 2})
	if err != nil {
		t.Fatalf("generate proof: %v", err)
	}
	if proof.HasMark {
		t.Fatal("expected (1,2) to be unmarked on P2's grid")
	}

	result := p1.VerifyProof(proof, sig, p2.commitment.Root())
	if !result.Valid {
		t.Fatalf("expected proof to verify cryptographically, got invalid: %s", result.Reason)
	}
	if result.Details["result"] != "miss" {
		t.Errorf("expected miss, got %v", result.Details["result"])
	}

	if _, err := p2.recordTransaction(ledger.KindResult, map[string]interface{}{
		"position": [2]int{1, 2}, "result": "miss",
	}); err != nil {
		t.Fatalf("record result: %v", err)
	}
	if _, err := p2.chain.MineBlock(); err != nil {
		t.Fatalf("mine result block: %v", err)
	}

	if got := len(p2.chain.Chain()); got != 3 {
		t.Errorf("p2 chain length = %d, want 3 (genesis, commitment, result)", got)
	}
}

func TestProperty_CommitmentBindingDeterministic(t *testing.T) {
	seed := seedOf(0x05)
	marks := map[int]bool{2: true}
	a := gridcommit.New(seed, 3, 3, marks)
	b := gridcommit.New(seed, 3, 3, marks)
	if a.Root() != b.Root() {
		t.Error("same (seed, marks, dims) produced different roots")
	}

	c := gridcommit.New(seed, 3, 3, map[int]bool{3: true})
	if a.Root() == c.Root() {
		t.Error("changing marks did not change the root")
	}

	d := gridcommit.New(seedOf(0x06), 3, 3, marks)
	if a.Root() == d.Root() {
		t.Error("changing seed did not change the root")
	}
}

func TestProperty_TurnOrderInvariance(t *testing.T) {
	p1 := newTestEngine(t, seedOf(0x01), 3, 3, nil)
	p2 := newTestEngine(t, seedOf(0x02), 3, 3, nil)
	exchangeCommitments(t, p1, p2)

	if _, err := p1.RecordMyAction("move", map[string]interface{}{"n": 1}); err != nil {
		t.Fatalf("p1 first move: %v", err)
	}
	if _, err := p1.RecordMyAction("move", map[string]interface{}{"n": 2}); err == nil {
		t.Error("expected second consecutive move by p1 to violate turn order")
	}
}

func TestScenario2_ForgedSignature(t *testing.T) {
	p1 := newTestEngine(t, seedOf(0x01), 3, 3, nil)
	p2 := newTestEngine(t, seedOf(0x02), 3, 3, nil)
	exchangeCommitments(t, p1, p2)

	forged := ledger.Transaction{
		Kind:          ledger.KindAction,
		ParticipantID: p2.id.ParticipantID,
		Data:          map[string]interface{}{"action_type": "move"},
		Timestamp:     1,
		Signature:     "deadbeef",
	}

	result := p1.VerifyOpponentAction(forged)
	if result.Valid {
		t.Fatal("expected forged signature to fail verification")
	}
	cheats := p1.detector.DetectedCheats()
	if len(cheats) != 1 || cheats[0].CheatType != "forged_signature" {
		t.Fatalf("expected one forged_signature cheat, got %+v", cheats)
	}
	if !p1.invalidator.IsInvalidated(p2.id.ParticipantID) {
		t.Error("expected p2 to be invalidated after forged signature")
	}
}

func TestScenario3_DoubleMove(t *testing.T) {
	p1 := newTestEngine(t, seedOf(0x01), 3, 3, nil)
	p2 := newTestEngine(t, seedOf(0x02), 3, 3, nil)
	exchangeCommitments(t, p1, p2)

	firstMove, err := p2.recordTransaction(ledger.KindAction, map[string]interface{}{"action_type": "move"})
	if err != nil {
		t.Fatalf("p2 first move: %v", err)
	}
	first := p1.VerifyOpponentAction(firstMove)
	if !first.Valid {
		t.Fatalf("expected p2's first move to verify cleanly, got: %s", first.Reason)
	}

	secondMove, err := p2.recordTransaction(ledger.KindAction, map[string]interface{}{"action_type": "move"})
	if err != nil {
		t.Fatalf("p2 second move: %v", err)
	}

	result := p1.VerifyOpponentAction(secondMove)
	if result.Valid {
		t.Fatal("expected double move to be rejected")
	}
	if !strings.Contains(result.Reason, "Turn violation") {
		t.Errorf("expected reason to mention Turn violation, got %q", result.Reason)
	}
	if !p1.invalidator.IsInvalidated(p2.id.ParticipantID) {
		t.Error("expected p2 to be invalidated after double move")
	}
}

func TestScenario4_TimeoutStall(t *testing.T) {
	cfg1 := testConfig(seedOf(0x01), 3, 3, nil)
	cfg1.TimeoutConfig.ActionTimeout = 50 * time.Millisecond
	p1, err := New(cfg1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p2 := newTestEngine(t, seedOf(0x02), 3, 3, nil)
	exchangeCommitments(t, p1, p2)

	p1.enf.timeoutManager.StartAction("a1")
	time.Sleep(150 * time.Millisecond)

	violations := p1.CheckEnforcement()
	if len(violations) != 1 {
		t.Fatalf("expected one timeout violation, got %d", len(violations))
	}
	if violations[0].CheatType != "timeout_stall" {
		t.Errorf("expected timeout_stall, got %s", violations[0].CheatType)
	}
}

func TestScenario5_LedgerTampering(t *testing.T) {
	p1 := newTestEngine(t, seedOf(0x01), 3, 3, nil)
	p2 := newTestEngine(t, seedOf(0x02), 3, 3, nil)
	exchangeCommitments(t, p1, p2)
	if _, err := p1.RecordMyAction("move", nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := p1.chain.MineBlock(); err != nil {
		t.Fatalf("mine: %v", err)
	}

	before := p1.VerifyBlockchainIntegrity()
	if !before.Valid {
		t.Fatalf("expected valid chain before tampering: %s", before.Reason)
	}

	chain := p1.chain.Chain()
	chain[1].Transactions[0].Data["n"] = 9999

	after := p1.VerifyBlockchainIntegrity()
	if after.Valid {
		t.Fatal("expected tampered chain to fail integrity check")
	}
}

func TestScenario6_ResyncAfterSplit(t *testing.T) {
	p1 := newTestEngine(t, seedOf(0x01), 3, 3, nil)
	p2 := newTestEngine(t, seedOf(0x02), 3, 3, nil)
	exchangeCommitments(t, p1, p2)

	for i := 0; i < 3; i++ {
		if _, err := p1.recordTransaction(ledger.KindAction, map[string]interface{}{"n": i}); err != nil {
			t.Fatalf("p1 tx %d: %v", i, err)
		}
	}
	if _, err := p1.chain.MineBlock(); err != nil {
		t.Fatalf("p1 mine: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := p2.recordTransaction(ledger.KindAction, map[string]interface{}{"n": i + 100}); err != nil {
			t.Fatalf("p2 tx %d: %v", i, err)
		}
	}
	if _, err := p2.chain.MineBlock(); err != nil {
		t.Fatalf("p2 mine: %v", err)
	}

	p1State, err := p1.LocalSyncState()
	if err != nil {
		t.Fatalf("p1 state: %v", err)
	}
	p2State, err := p2.LocalSyncState()
	if err != nil {
		t.Fatalf("p2 state: %v", err)
	}

	p1.ReceivePeerSyncState(p2State)
	p2.ReceivePeerSyncState(p1State)

	needs1, _, _ := p1.NeedsSync()
	needs2, _, _ := p2.NeedsSync()
	if !needs1 || !needs2 {
		t.Fatal("expected both sides to report needing sync")
	}

	p1Missing := p1.ledgerSync.MissingTransactions(p2State.ParticipantSequences)
	p2Missing := p2.ledgerSync.MissingTransactions(p1State.ParticipantSequences)

	if _, _, err := p1.MergeTransactions(p2Missing); err != nil {
		t.Fatalf("p1 merge: %v", err)
	}
	if _, _, err := p2.MergeTransactions(p1Missing); err != nil {
		t.Fatalf("p2 merge: %v", err)
	}

	final1, _ := p1.LocalSyncState()
	final2, _ := p2.LocalSyncState()
	if final1.ChainLength != final2.ChainLength {
		t.Errorf("chain length mismatch after merge: %d vs %d", final1.ChainLength, final2.ChainLength)
	}
	if final1.TransactionCount != final2.TransactionCount {
		t.Errorf("transaction count mismatch after merge: %d vs %d", final1.TransactionCount, final2.TransactionCount)
	}
}

func TestRevealCommitment_RoundTrip(t *testing.T) {
	p1 := newTestEngine(t, seedOf(0x01), 3, 3, map[int]bool{0: true})
	p2 := newTestEngine(t, seedOf(0x02), 3, 3, nil)
	exchangeCommitments(t, p1, p2)

	rev, err := p1.RevealCommitment()
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	result := p2.VerifyOpponentRevelation(rev, p1.commitment.Root())
	if !result.Valid {
		t.Fatalf("expected revelation to verify: %s", result.Reason)
	}

	if _, err := p1.RevealCommitment(); err != ErrAlreadyRevealed {
		t.Errorf("expected ErrAlreadyRevealed on second reveal, got %v", err)
	}
}

func TestRecordMyAction_RejectsAfterReveal(t *testing.T) {
	p1 := newTestEngine(t, seedOf(0x01), 3, 3, nil)
	p2 := newTestEngine(t, seedOf(0x02), 3, 3, nil)
	exchangeCommitments(t, p1, p2)

	if _, err := p1.RevealCommitment(); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if _, err := p1.RecordMyAction("move", nil); err != ErrAlreadyRevealed {
		t.Errorf("expected ErrAlreadyRevealed, got %v", err)
	}
}

func TestSnapshotRoundTrip_PreservesChain(t *testing.T) {
	p1 := newTestEngine(t, seedOf(0x01), 3, 3, nil)
	p2 := newTestEngine(t, seedOf(0x02), 3, 3, nil)
	exchangeCommitments(t, p1, p2)
	if _, err := p1.RecordMyAction("move", nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	data, err := p1.chain.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	restored, err := ledger.Deserialize(data, p1.cfg.Now)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if len(restored.Chain()) != len(p1.chain.Chain()) {
		t.Error("restored chain length mismatch")
	}
	ok, err := restored.VerifyChain()
	if err != nil || !ok {
		t.Errorf("restored chain should verify: ok=%v err=%v", ok, err)
	}
}

// Copyright 2025 Certen Protocol
//
// Ledger — an append-only, hash-linked chain of transactions recording
// every commitment, action, result, and termination exchanged by the two
// participants. Blocks batch pending transactions; there is no
// proof-of-work, since the two-party protocol needs ordering and
// tamper-evidence, not competitive mining.

package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ztprotocol/core/pkg/canon"
)

// Kind identifies the semantic type of a recorded transaction.
type Kind string

const (
	KindCommitment  Kind = "commitment"
	KindAction      Kind = "action"
	KindResult      Kind = "result"
	KindTermination Kind = "termination"
)

// GenesisPrevHash is the sentinel prev_hash recorded by the first block:
// 64 zero hex characters, the width of a SHA-256 digest.
var GenesisPrevHash = strings.Repeat("0", 64)

// Transaction is one recorded move. SequenceNumber is assigned by the
// ledger when the transaction is added, unless it already carries a
// nonzero value (used on the replay/merge path).
type Transaction struct {
	Kind           Kind                   `json:"move_type"`
	ParticipantID  string                 `json:"participant_id"`
	Data           map[string]interface{} `json:"data"`
	Timestamp      float64                `json:"timestamp"`
	Signature      string                 `json:"signature"`
	SequenceNumber int                    `json:"sequence_number"`
}

// Block is a single block in the chain.
type Block struct {
	PrevHash     string        `json:"prev_hash"`
	Transactions []Transaction `json:"transactions"`
	BlockNumber  int           `json:"block_number"`
	Timestamp    float64       `json:"timestamp"`
	Hash         string        `json:"hash"`
}

// computeHash re-derives this block's hash from its fields.
func (b *Block) computeHash() (string, error) {
	txJSON, err := canon.Marshal(b.Transactions)
	if err != nil {
		return "", fmt.Errorf("ledger: canonicalize transactions: %w", err)
	}
	preimage := fmt.Sprintf("%s%s%d%v", b.PrevHash, txJSON, b.BlockNumber, b.Timestamp)
	sum := sha256.Sum256([]byte(preimage))
	return hex.EncodeToString(sum[:]), nil
}

// newBlock builds and hashes a block. timestamp is supplied by the caller
// so the ledger itself never reads the wall clock.
func newBlock(prevHash string, txs []Transaction, blockNumber int, timestamp float64) (*Block, error) {
	b := &Block{
		PrevHash:     prevHash,
		Transactions: txs,
		BlockNumber:  blockNumber,
		Timestamp:    timestamp,
	}
	h, err := b.computeHash()
	if err != nil {
		return nil, err
	}
	b.Hash = h
	return b, nil
}

// Ledger is the hash-linked chain plus its pending-transaction buffer and
// sequence counters.
type Ledger struct {
	mu                   sync.RWMutex
	chain                []*Block
	pending              []Transaction
	transactionSequence  int
	participantSequences map[string]int

	// Now supplies the timestamp for new blocks. When it is nil, blocks
	// are stamped with 0; the application layer owns wall-clock access so
	// the ledger stays deterministic under test.
	Now func() float64
}

// New creates a ledger containing only the genesis block.
func New(now func() float64) (*Ledger, error) {
	l := &Ledger{
		participantSequences: make(map[string]int),
		Now:                  now,
	}
	genesis, err := newBlock(GenesisPrevHash, nil, 0, l.timestamp())
	if err != nil {
		return nil, fmt.Errorf("ledger: create genesis block: %w", err)
	}
	l.chain = append(l.chain, genesis)
	return l, nil
}

func (l *Ledger) timestamp() float64 {
	if l.Now == nil {
		return 0
	}
	return l.Now()
}

// AddTransaction assigns sequence numbers (global and per-participant, if
// unset) and appends tx to the pending buffer.
func (l *Ledger) AddTransaction(tx Transaction) Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.SequenceNumber == 0 {
		l.transactionSequence++
		tx.SequenceNumber = l.transactionSequence
	} else if tx.SequenceNumber > l.transactionSequence {
		l.transactionSequence = tx.SequenceNumber
	}

	l.participantSequences[tx.ParticipantID]++
	l.pending = append(l.pending, tx)
	return tx
}

// MineBlock batches all pending transactions into a new block appended to
// the chain. It returns ErrNothingPending if there is nothing to batch.
func (l *Ledger) MineBlock() (*Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return nil, ErrNothingPending
	}

	prev := l.chain[len(l.chain)-1]
	block, err := newBlock(prev.Hash, append([]Transaction{}, l.pending...), len(l.chain), l.timestamp())
	if err != nil {
		return nil, err
	}

	l.chain = append(l.chain, block)
	l.pending = nil
	return block, nil
}

// VerifyChain checks every hash link and every block's self-consistency.
func (l *Ledger) VerifyChain() (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := 1; i < len(l.chain); i++ {
		cur, prev := l.chain[i], l.chain[i-1]
		if cur.PrevHash != prev.Hash {
			return false, nil
		}
		wantHash, err := cur.computeHash()
		if err != nil {
			return false, fmt.Errorf("ledger: recompute block %d hash: %w", i, err)
		}
		if cur.Hash != wantHash {
			return false, nil
		}
	}
	return true, nil
}

// Chain returns a copy of the chain slice. The blocks it points to are
// shared with the ledger, not copied.
func (l *Ledger) Chain() []*Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Block, len(l.chain))
	copy(out, l.chain)
	return out
}

// Pending returns a snapshot copy of pending transactions.
func (l *Ledger) Pending() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, len(l.pending))
	copy(out, l.pending)
	return out
}

// ParticipantSequence returns the current per-participant sequence count.
func (l *Ledger) ParticipantSequence(participantID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.participantSequences[participantID]
}

// TransactionsByParticipant returns every transaction in the chain
// authored by participantID, in chain order.
func (l *Ledger) TransactionsByParticipant(participantID string) []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Transaction
	for _, b := range l.chain {
		for _, tx := range b.Transactions {
			if tx.ParticipantID == participantID {
				out = append(out, tx)
			}
		}
	}
	return out
}

// snapshotDoc is the on-disk/wire representation of a Ledger.
type snapshotDoc struct {
	Chain                []*Block      `json:"chain"`
	Pending              []Transaction `json:"pending_transactions"`
	TransactionSequence  int           `json:"transaction_sequence"`
	ParticipantSequences map[string]int `json:"participant_sequences"`
}

// Serialize encodes the ledger to canonical JSON for persistence or
// transport.
func (l *Ledger) Serialize() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	doc := snapshotDoc{
		Chain:                l.chain,
		Pending:              l.pending,
		TransactionSequence:  l.transactionSequence,
		ParticipantSequences: l.participantSequences,
	}
	return canon.Marshal(doc)
}

// Deserialize rebuilds a Ledger from bytes produced by Serialize. The
// chain's recorded hashes are trusted as-is; call VerifyChain afterward to
// confirm integrity.
func Deserialize(data []byte, now func() float64) (*Ledger, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ledger: decode snapshot: %w", err)
	}

	l := &Ledger{
		chain:                doc.Chain,
		pending:              doc.Pending,
		transactionSequence:  doc.TransactionSequence,
		participantSequences: doc.ParticipantSequences,
		Now:                  now,
	}
	if l.participantSequences == nil {
		l.participantSequences = make(map[string]int)
	}
	if len(l.chain) == 0 {
		return nil, ErrEmptyChain
	}
	return l, nil
}

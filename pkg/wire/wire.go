// Copyright 2025 Certen Protocol
//
// Wire — transport payload shapes exchanged between the two participants.
// The engine only ever builds and consumes these; it does not own a
// transport itself.

package wire

import (
	"github.com/ztprotocol/core/pkg/ledger"
	"github.com/ztprotocol/core/pkg/ledgersync"
)

// CommitmentEnvelope announces a participant's identity and grid
// commitment root before play begins.
type CommitmentEnvelope struct {
	ParticipantID  string `json:"participant_id"`
	PublicKey      string `json:"public_key"`
	CommitmentRoot string `json:"commitment_root"`
}

// ActionEnvelope carries one signed move. Data holds action-specific
// fields alongside the fixed envelope fields.
type ActionEnvelope struct {
	ActionType string                 `json:"action_type"`
	Data       map[string]interface{} `json:"data"`
	Timestamp  float64                `json:"timestamp"`
	Signature  string                 `json:"signature"`
}

// ProofPathStep is one sibling hash in a Merkle inclusion proof, in wire
// form.
type ProofPathStep struct {
	Hash   string `json:"hash"`
	IsLeft bool   `json:"is_left"`
}

// ProofEnvelope carries a signed Merkle inclusion proof answering a query
// against a published commitment root.
type ProofEnvelope struct {
	ProofType string          `json:"proof_type"`
	Position  [2]int          `json:"position"`
	Result    string          `json:"result"`
	HasValue  bool            `json:"has_value"`
	LeafData  string          `json:"leaf_data"`
	MerklePath []ProofPathStep `json:"merkle_path"`
	Timestamp float64         `json:"timestamp"`
	Signature string          `json:"signature"`
}

const (
	ProofResultHit  = "hit"
	ProofResultMiss = "miss"
)

// Revelation discloses the seed and commitment data behind a previously
// published commitment root, for post-game audit.
type Revelation struct {
	ParticipantID  string                 `json:"participant_id"`
	CommitmentData map[string]interface{} `json:"commitment_data"`
	Seed           string                 `json:"seed"`
	Timestamp      float64                `json:"timestamp"`
	Signature      string                 `json:"signature"`
}

// SyncRequest announces a participant's ledger state to its peer.
type SyncRequest struct {
	Type  string                 `json:"type"`
	State ledgersync.SyncState   `json:"state"`
}

// SyncResponse answers a SyncRequest, optionally carrying the responder's
// own state and the transactions it believes the requester is missing.
type SyncResponse struct {
	Type         string                `json:"type"`
	NeedsSync    bool                  `json:"needs_sync"`
	Reason       string                `json:"reason"`
	MyState      *ledgersync.SyncState `json:"my_state,omitempty"`
	Transactions []ledger.Transaction  `json:"transactions,omitempty"`
}

const (
	SyncRequestType  = "blockchain_sync"
	SyncResponseType = "blockchain_sync_response"
)

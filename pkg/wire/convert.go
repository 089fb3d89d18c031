// Copyright 2025 Certen Protocol

package wire

import (
	"encoding/hex"
	"fmt"

	"github.com/ztprotocol/core/pkg/gridcommit"
	"github.com/ztprotocol/core/pkg/merklehash"
)

// ProofEnvelopeFromProof builds the wire form of proof for the cell query
// it answers, given the accompanying signature and timestamp. The outcome
// is taken from proof.Result.
func ProofEnvelopeFromProof(proof *gridcommit.MerkleProof, signature string, timestamp float64) ProofEnvelope {
	path := make([]ProofPathStep, len(proof.Path))
	for i, step := range proof.Path {
		path[i] = ProofPathStep{
			Hash:   hex.EncodeToString(step.Sibling[:]),
			IsLeft: step.Side == merklehash.Left,
		}
	}

	return ProofEnvelope{
		ProofType:  "merkle",
		Position:   [2]int{proof.X, proof.Y},
		Result:     proof.Result,
		HasValue:   proof.HasMark,
		LeafData:   proof.LeafData,
		MerklePath: path,
		Timestamp:  timestamp,
		Signature:  signature,
	}
}

// ProofFromEnvelope reconstructs a verifiable gridcommit.MerkleProof from
// its wire form. It rejects an envelope whose Result contradicts its
// HasValue before the proof is even built, the same check (a) VerifyProof
// performs, so a tampered envelope can't sail through the transport
// boundary and rely on a caller to catch it downstream.
func ProofFromEnvelope(env ProofEnvelope) (*gridcommit.MerkleProof, error) {
	expectedResult := ProofResultMiss
	if env.HasValue {
		expectedResult = ProofResultHit
	}
	if env.Result != expectedResult {
		return nil, fmt.Errorf("wire: proof result %q inconsistent with has_value=%v", env.Result, env.HasValue)
	}

	path := make([]merklehash.ProofStep, len(env.MerklePath))
	for i, step := range env.MerklePath {
		sib, err := hex.DecodeString(step.Hash)
		if err != nil || len(sib) != 32 {
			return nil, fmt.Errorf("wire: malformed proof sibling hash at step %d", i)
		}
		side := merklehash.Right
		if step.IsLeft {
			side = merklehash.Left
		}
		var sibling [32]byte
		copy(sibling[:], sib)
		path[i] = merklehash.ProofStep{Sibling: sibling, Side: side}
	}

	return &gridcommit.MerkleProof{
		X:        env.Position[0],
		Y:        env.Position[1],
		HasMark:  env.HasValue,
		Result:   env.Result,
		LeafData: env.LeafData,
		Path:     path,
	}, nil
}

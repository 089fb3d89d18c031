// Copyright 2025 Certen Protocol
//
// Grid Commitment — a seed-hiding Merkle commitment over a rectangular grid
// of cells, each either marked or unmarked. A participant commits to the
// Merkle root before play begins; later it can prove any single cell's
// value against that root without revealing the seed or any other cell.

package gridcommit

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/ztprotocol/core/pkg/merklehash"
)

// ErrOutOfBounds is returned when a queried cell lies outside the grid.
var ErrOutOfBounds = errors.New("gridcommit: cell coordinates out of bounds")

// ResultHit and ResultMiss are the two values a MerkleProof's Result field
// may carry, redundant with HasMark so a verifier can catch a proof that
// contradicts itself.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

// Commitment is the generic contract every commitment scheme in the
// protocol implements: publish a root, prove a query against it, and let
// any verifier check a proof independent of the committer.
type Commitment interface {
	Root() [32]byte
	GenerateProof(query interface{}) (*MerkleProof, error)
	VerifyProof(proof *MerkleProof, root [32]byte) bool
}

// MerkleProof is the wire format for a single-cell inclusion proof. LeafData
// is always the hex-encoded hash of the leaf's hidden bytes, never the raw
// seed: a verifier re-hashes LeafData to reach the tree's leaf layer and
// never learns the seed from a proof.
type MerkleProof struct {
	X        int                    `json:"x"`
	Y        int                    `json:"y"`
	HasMark  bool                   `json:"has_mark"`
	Result   string                 `json:"result"`
	LeafData string                 `json:"leaf_data"`
	Path     []merklehash.ProofStep `json:"path"`
}

// CellQuery identifies a single grid cell to prove.
type CellQuery struct {
	X int
	Y int
}

// GridCommitment is a concrete Commitment over a Width x Height grid.
type GridCommitment struct {
	mu     sync.RWMutex
	width  int
	height int
	seed   []byte
	marks  map[int]bool // linear index -> has_mark
	tree   *merklehash.Tree
	order  []int // linear index in leaf order
}

// New builds a GridCommitment. marks maps linear index (y*width+x) to
// whether that cell carries a mark; omitted indices default to unmarked.
func New(seed []byte, width, height int, marks map[int]bool) *GridCommitment {
	gc := &GridCommitment{
		width:  width,
		height: height,
		seed:   append([]byte{}, seed...),
		marks:  make(map[int]bool, len(marks)),
	}
	for k, v := range marks {
		gc.marks[k] = v
	}

	entries := make([][]byte, 0, width*height)
	order := make([]int, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			order = append(order, idx)
			leafBytes := cellLeafBytes(seed, x, y, gc.marks[idx])
			leafData := merklehash.Hash(leafBytes)
			entries = append(entries, leafData[:])
		}
	}
	gc.order = order
	gc.tree = merklehash.Build(entries)
	return gc
}

// cellLeafBytes builds the seed-hiding leaf preimage: seed || "x:y:has_mark",
// with has_mark rendered as the literal strings "True"/"False" so the byte
// encoding matches across implementations of this protocol.
func cellLeafBytes(seed []byte, x, y int, hasMark bool) []byte {
	mark := "False"
	if hasMark {
		mark = "True"
	}
	suffix := fmt.Sprintf("%d:%d:%s", x, y, mark)
	return append(append([]byte{}, seed...), []byte(suffix)...)
}

// Root returns the grid's Merkle root.
func (gc *GridCommitment) Root() [32]byte {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return gc.tree.Root()
}

func (gc *GridCommitment) indexOf(x, y int) (int, error) {
	if x < 0 || x >= gc.width || y < 0 || y >= gc.height {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}
	linear := y*gc.width + x
	for i, idx := range gc.order {
		if idx == linear {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
}

// GenerateProof produces an inclusion proof for the cell named by query,
// which must be a CellQuery.
func (gc *GridCommitment) GenerateProof(query interface{}) (*MerkleProof, error) {
	cq, ok := query.(CellQuery)
	if !ok {
		return nil, fmt.Errorf("gridcommit: query must be a CellQuery")
	}

	gc.mu.RLock()
	defer gc.mu.RUnlock()

	leafIndex, err := gc.indexOf(cq.X, cq.Y)
	if err != nil {
		return nil, err
	}

	linear := cq.Y*gc.width + cq.X
	hasMark := gc.marks[linear]
	leafBytes := cellLeafBytes(gc.seed, cq.X, cq.Y, hasMark)
	leafHash := merklehash.Hash(leafBytes)

	path, err := gc.tree.Proof(leafIndex)
	if err != nil {
		return nil, fmt.Errorf("gridcommit: %w", err)
	}

	result := ResultMiss
	if hasMark {
		result = ResultHit
	}

	return &MerkleProof{
		X:        cq.X,
		Y:        cq.Y,
		HasMark:  hasMark,
		Result:   result,
		LeafData: fmt.Sprintf("%x", leafHash),
		Path:     path,
	}, nil
}

// VerifyProof checks proof against root without access to the committer's
// seed or any other cell. It never panics: malformed proofs return false.
func (gc *GridCommitment) VerifyProof(proof *MerkleProof, root [32]byte) bool {
	return VerifyProof(proof, root)
}

// VerifyProof is the stand-alone verifier usable by any party holding only
// the published root and a proof, with no GridCommitment instance at hand.
// It performs all three checks a verifier must make: (a) the proof's Result
// is consistent with its HasMark, so a proof can't assert one and claim the
// other; (b) LeafData is well-formed 32-byte hex; (c) refolding LeafData
// with the sibling path reaches root.
func VerifyProof(proof *MerkleProof, root [32]byte) bool {
	if proof == nil {
		return false
	}

	expectedResult := ResultMiss
	if proof.HasMark {
		expectedResult = ResultHit
	}
	if proof.Result != expectedResult {
		return false
	}

	leafBytes, err := leafDataBytes(proof.LeafData)
	if err != nil || len(leafBytes) != 32 {
		return false
	}

	return merklehash.Verify(leafBytes, proof.Path, root)
}

func leafDataBytes(hexStr string) ([]byte, error) {
	return hex.DecodeString(hexStr)
}

// Copyright 2025 Certen Protocol
//
// Merkle Tree Tests

package merklehash

import (
	"bytes"
	"testing"
)

func TestBuild_Empty(t *testing.T) {
	tree := Build(nil)
	if tree.Root() != EmptyRoot {
		t.Errorf("empty tree root mismatch: got %x, want %x", tree.Root(), EmptyRoot)
	}
	if tree.LeafCount() != 0 {
		t.Errorf("leaf count mismatch: got %d, want 0", tree.LeafCount())
	}
}

func TestBuild_SingleLeaf(t *testing.T) {
	tree := Build([][]byte{[]byte("only")})
	want := Hash([]byte("only"))
	if tree.Root() != want {
		t.Errorf("single leaf root mismatch: got %x, want %x", tree.Root(), want)
	}
	proof, err := tree.Proof(0)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if len(proof) != 0 {
		t.Errorf("expected empty proof for single-leaf tree, got %d steps", len(proof))
	}
	if !Verify([]byte("only"), proof, tree.Root()) {
		t.Error("expected verification to succeed")
	}
}

func TestBuild_TwoLeaves(t *testing.T) {
	tree := Build([][]byte{[]byte("a"), []byte("b")})
	want := hashPair(Hash([]byte("a")), Hash([]byte("b")))
	if tree.Root() != want {
		t.Errorf("two leaf root mismatch: got %x, want %x", tree.Root(), want)
	}
}

func TestBuild_OddLeaves_DuplicatesLast(t *testing.T) {
	entries := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	tree := Build(entries)

	h := make([][32]byte, 3)
	for i, e := range entries {
		h[i] = Hash(e)
	}
	level1 := []([32]byte){hashPair(h[0], h[1]), hashPair(h[2], h[2])}
	want := hashPair(level1[0], level1[1])

	if tree.Root() != want {
		t.Errorf("odd leaf root mismatch: got %x, want %x", tree.Root(), want)
	}
}

func TestProofRoundTrip_AllLeaves(t *testing.T) {
	entries := make([][]byte, 7)
	for i := range entries {
		entries[i] = []byte{byte(i)}
	}
	tree := Build(entries)

	for i, e := range entries {
		proof, err := tree.Proof(i)
		if err != nil {
			t.Fatalf("proof(%d): %v", i, err)
		}
		if !Verify(e, proof, tree.Root()) {
			t.Errorf("verify failed for leaf %d", i)
		}
	}
}

func TestVerify_TamperedLeafFails(t *testing.T) {
	entries := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	tree := Build(entries)

	proof, err := tree.Proof(1)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if Verify([]byte("tampered"), proof, tree.Root()) {
		t.Error("expected verification to fail for tampered leaf")
	}
}

func TestVerify_TamperedSiblingFails(t *testing.T) {
	entries := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	tree := Build(entries)

	proof, err := tree.Proof(1)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	proof[0].Sibling[0] ^= 0xFF
	if Verify([]byte("b"), proof, tree.Root()) {
		t.Error("expected verification to fail for tampered sibling")
	}
}

func TestProof_OutOfRange(t *testing.T) {
	tree := Build([][]byte{[]byte("a")})
	if _, err := tree.Proof(5); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestHashPair_OrderMatters(t *testing.T) {
	a, b := Hash([]byte("a")), Hash([]byte("b"))
	ab, ba := hashPair(a, b), hashPair(b, a)
	if bytes.Equal(ab[:], ba[:]) {
		t.Error("hashPair should not be commutative")
	}
}

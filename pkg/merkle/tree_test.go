// Copyright 2025 Covenant Protocol
//
// Merkle Tree Tests

package merkle

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestBuildTree_SingleLeaf(t *testing.T) {
	leaf := sha256.Sum256([]byte("only entry"))
	tree, err := BuildTree([][]byte{leaf[:]})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	if !bytes.Equal(tree.Root(), leaf[:]) {
		t.Errorf("single leaf root mismatch: got %x, want %x", tree.Root(), leaf[:])
	}
	if tree.LeafCount() != 1 {
		t.Errorf("leaf count mismatch: got %d, want 1", tree.LeafCount())
	}
}

func TestBuildTree_TwoLeaves(t *testing.T) {
	leaf1 := sha256.Sum256([]byte("covenant 1"))
	leaf2 := sha256.Sum256([]byte("covenant 2"))

	tree, err := BuildTree([][]byte{leaf1[:], leaf2[:]})
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	combined := make([]byte, 64)
	copy(combined[:32], leaf1[:])
	copy(combined[32:], leaf2[:])
	expected := sha256.Sum256(combined)

	if !bytes.Equal(tree.Root(), expected[:]) {
		t.Errorf("two leaf root mismatch: got %x, want %x", tree.Root(), expected[:])
	}
}

func TestBuildTree_Rejections(t *testing.T) {
	if _, err := BuildTree(nil); err != ErrEmptyTree {
		t.Errorf("empty leaves: got %v, want ErrEmptyTree", err)
	}
	if _, err := BuildTree([][]byte{{0x01, 0x02}}); err == nil {
		t.Error("short leaf accepted")
	}
}

func TestGenerateProof_VerifiesForEveryLeaf(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 8, 13} {
		leaves := make([][]byte, n)
		for i := range leaves {
			h := sha256.Sum256([]byte{byte(i)})
			leaves[i] = h[:]
		}
		tree, err := BuildTree(leaves)
		if err != nil {
			t.Fatalf("build failed for %d leaves: %v", n, err)
		}

		for i := range leaves {
			proof, perr := tree.GenerateProof(i)
			if perr != nil {
				t.Fatalf("proof failed for leaf %d of %d: %v", i, n, perr)
			}
			ok, verr := VerifyProof(leaves[i], proof, tree.Root())
			if verr != nil || !ok {
				t.Errorf("proof does not verify for leaf %d of %d: ok=%v err=%v", i, n, ok, verr)
			}
		}
	}
}

func TestVerifyProof_WrongLeafFails(t *testing.T) {
	leaves := make([][]byte, 4)
	for i := range leaves {
		h := sha256.Sum256([]byte{byte(i)})
		leaves[i] = h[:]
	}
	tree, _ := BuildTree(leaves)
	proof, _ := tree.GenerateProof(0)

	wrong := sha256.Sum256([]byte("not in tree"))
	ok, err := VerifyProof(wrong[:], proof, tree.Root())
	if err != nil {
		t.Fatalf("verify errored: %v", err)
	}
	if ok {
		t.Error("proof verified for a leaf outside the tree")
	}
}

func TestGenerateProofByHash(t *testing.T) {
	leaves := make([][]byte, 3)
	for i := range leaves {
		h := sha256.Sum256([]byte{byte(i)})
		leaves[i] = h[:]
	}
	tree, _ := BuildTree(leaves)

	proof, err := tree.GenerateProofByHash(leaves[2])
	if err != nil {
		t.Fatalf("proof by hash failed: %v", err)
	}
	if proof.LeafIndex != 2 {
		t.Errorf("leaf index mismatch: %d", proof.LeafIndex)
	}

	missing := sha256.Sum256([]byte("missing"))
	if _, err := tree.GenerateProofByHash(missing[:]); err != ErrLeafNotFound {
		t.Errorf("missing leaf: got %v, want ErrLeafNotFound", err)
	}
}

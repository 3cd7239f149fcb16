// Copyright 2025 Covenant Protocol
//
// Chain Resolver Tests

package chain

import (
	"context"
	"testing"
	"time"

	"github.com/covenant-protocol/trust-kernel/pkg/covenant"
	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
	"github.com/covenant-protocol/trust-kernel/pkg/protocol"
	"github.com/covenant-protocol/trust-kernel/pkg/store"
)

func buildChainDoc(t *testing.T, constraints string, parent *covenant.Document, depth int) *covenant.Document {
	t.Helper()
	issuerKP, _ := crypto.GenerateKeyPair()
	benefKP, _ := crypto.GenerateKeyPair()
	opts := &covenant.BuildOptions{
		Issuer:      covenant.Party{ID: "issuer-" + constraints[:4], PublicKey: issuerKP.PublicKeyHex, Role: protocol.RoleIssuer},
		Beneficiary: covenant.Party{ID: "agent", PublicKey: benefKP.PublicKeyHex, Role: protocol.RoleBeneficiary},
		Constraints: constraints,
		PrivateKey:  issuerKP.PrivateKey,
	}
	if parent != nil {
		opts.Chain = &covenant.ChainReference{
			ParentID: parent.ID,
			Relation: protocol.RelationDelegates,
			Depth:    depth,
		}
	}
	doc, err := covenant.BuildCovenant(opts)
	if err != nil {
		t.Fatalf("failed to build chain doc: %v", err)
	}
	return doc
}

func newTestResolver(docs ...*covenant.Document) (*Resolver, *store.MemoryStore) {
	s := store.NewMemoryStore()
	for _, d := range docs {
		s.Put(d)
	}
	return NewResolver(StoreLoader{Store: s}, nil), s
}

func TestResolveChain_RootFirst(t *testing.T) {
	root := buildChainDoc(t, "permit read.** on '**'", nil, 0)
	mid := buildChainDoc(t, "permit read.file on '/data/**'", root, 1)
	leaf := buildChainDoc(t, "permit read.file on '/data/public/**'", mid, 2)
	r, _ := newTestResolver(root, mid, leaf)

	chain, err := r.ResolveChain(context.Background(), leaf.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("chain length mismatch: %d", len(chain))
	}
	if chain[0].ID != root.ID || chain[2].ID != leaf.ID {
		t.Error("chain is not root-first ordered")
	}
}

func TestResolveChain_MissingParent(t *testing.T) {
	root := buildChainDoc(t, "permit read on '**'", nil, 0)
	child := buildChainDoc(t, "deny write on '/x'", root, 1)
	r, _ := newTestResolver(child) // root not stored

	_, err := r.ResolveChain(context.Background(), child.ID)
	if err == nil {
		t.Fatal("expected missing-parent error")
	}
	if !kerrors.IsCode(err, kerrors.ErrorCodeChainMissingParent) {
		t.Errorf("wrong error code: %v", err)
	}
}

func TestResolveChain_CycleDetected(t *testing.T) {
	root := buildChainDoc(t, "permit read on '**'", nil, 0)
	child := buildChainDoc(t, "deny write on '/x'", root, 1)

	// Corrupt the stored root to point back at the child
	looped := *root
	looped.Chain = &covenant.ChainReference{ParentID: child.ID, Relation: protocol.RelationDelegates, Depth: 1}
	s := store.NewMemoryStore()
	s.Put(&looped)
	s.Put(child)
	r := NewResolver(StoreLoader{Store: s}, nil)

	_, err := r.ResolveChain(context.Background(), child.ID)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !kerrors.IsCode(err, kerrors.ErrorCodeChainCycle) {
		t.Errorf("wrong error code: %v", err)
	}
}

func TestResolveChain_Cancellation(t *testing.T) {
	root := buildChainDoc(t, "permit read on '**'", nil, 0)
	r, _ := newTestResolver(root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.ResolveChain(ctx, root.ID); err == nil {
		t.Error("cancelled context not honored")
	}
}

func TestValidateChainNarrowing_DenyOnlyChild(t *testing.T) {
	parent := buildChainDoc(t, "permit read on '**'", nil, 0)
	child := buildChainDoc(t, "deny write on '/system'", parent, 1)

	result, err := ValidateChainNarrowing([]*covenant.Document{parent, child})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("deny-only child should narrow any parent: %+v", result.Violations)
	}
}

func TestValidateChainNarrowing_ViolationReported(t *testing.T) {
	parent := buildChainDoc(t, "permit read on '/data/**'\ndeny write on '**'", nil, 0)
	child := buildChainDoc(t, "permit write on '/data/x'", parent, 1)

	result, err := ValidateChainNarrowing([]*covenant.Document{parent, child})
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if result.Valid {
		t.Fatal("widening child accepted")
	}
	v := result.Violations[0]
	if v.ParentID != parent.ID || v.ChildID != child.ID {
		t.Errorf("violation ids mismatch: %+v", v)
	}
}

func TestComputeEffectiveConstraints_Fold(t *testing.T) {
	root := buildChainDoc(t, "permit read.** on '/data/**'", nil, 0)
	mid := buildChainDoc(t, "deny read.secrets on '**'", root, 1)
	leaf := buildChainDoc(t, "limit read.file 10 per 1 minutes", mid, 2)

	effective, err := ComputeEffectiveConstraints([]*covenant.Document{root, mid, leaf})
	if err != nil {
		t.Fatalf("fold failed: %v", err)
	}
	if len(effective.Permits) != 1 || len(effective.Denies) != 1 || len(effective.Limits) != 1 {
		t.Errorf("effective policy shape wrong: %d/%d/%d",
			len(effective.Permits), len(effective.Denies), len(effective.Limits))
	}
}

func TestVerifyChained_EndToEnd(t *testing.T) {
	root := buildChainDoc(t, "permit read.** on '**'", nil, 0)
	leaf := buildChainDoc(t, "deny read.internal on '**'", root, 1)
	r, _ := newTestResolver(root, leaf)

	chain, err := r.VerifyChained(context.Background(), leaf, time.Now())
	if err != nil {
		t.Fatalf("chained verification failed: %v", err)
	}
	if len(chain) != 2 {
		t.Errorf("chain length mismatch: %d", len(chain))
	}
}

func TestVerifyChained_NarrowingViolationFails(t *testing.T) {
	root := buildChainDoc(t, "deny exec on '**'", nil, 0)
	leaf := buildChainDoc(t, "permit exec on '/bin/sh'", root, 1)
	r, _ := newTestResolver(root, leaf)

	_, err := r.VerifyChained(context.Background(), leaf, time.Now())
	if err == nil {
		t.Fatal("expected narrowing violation")
	}
	if !kerrors.IsCode(err, kerrors.ErrorCodeChainNarrowing) {
		t.Errorf("wrong error code: %v", err)
	}
}

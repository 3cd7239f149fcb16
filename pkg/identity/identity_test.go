// Copyright 2025 Covenant Protocol
//
// Identity Lineage Tests

package identity

import (
	"sort"
	"testing"

	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
)

func createTestIdentity(t *testing.T) (*Document, *crypto.KeyPair) {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate operator keys: %v", err)
	}
	doc, err := CreateIdentity(&CreateOptions{
		OperatorKeyPair: kp,
		Model:           ModelAttestation{Provider: "acme", ModelID: "navigator-2"},
		Capabilities:    []string{"web.search", "code.exec", "data.read"},
		Deployment:      DeploymentContext{Runtime: "container", Region: "eu-1"},
	})
	if err != nil {
		t.Fatalf("failed to create identity: %v", err)
	}
	return doc, kp
}

func TestCreateIdentity_ShapeAndVerify(t *testing.T) {
	doc, _ := createTestIdentity(t)

	if doc.Version != 1 {
		t.Errorf("version mismatch: %d", doc.Version)
	}
	if len(doc.Lineage) != 1 {
		t.Fatalf("lineage length mismatch: %d", len(doc.Lineage))
	}
	if doc.Lineage[0].ParentHash != nil {
		t.Error("first lineage entry must have nil parentHash")
	}
	if doc.Lineage[0].ChangeType != ChangeCreated {
		t.Errorf("change type mismatch: %s", doc.Lineage[0].ChangeType)
	}
	if !sort.StringsAreSorted(doc.Capabilities) {
		t.Error("capabilities not sorted")
	}

	if issues := VerifyIdentity(doc); len(issues) != 0 {
		t.Errorf("fresh identity has issues: %+v", issues)
	}
}

func TestEvolveIdentity_LineageLinks(t *testing.T) {
	doc, kp := createTestIdentity(t)

	evolved, err := EvolveIdentity(doc, &EvolveOptions{
		OperatorKeyPair: kp,
		ChangeType:      ChangeModelUpdate,
		Description:     "upgrade to navigator-3",
		Model:           &ModelAttestation{Provider: "acme", ModelID: "navigator-3"},
	})
	if err != nil {
		t.Fatalf("evolve failed: %v", err)
	}

	if evolved.Version != 2 {
		t.Errorf("version mismatch: %d", evolved.Version)
	}
	if len(evolved.Lineage) != 2 {
		t.Fatalf("lineage length mismatch: %d", len(evolved.Lineage))
	}
	last := evolved.Lineage[1]
	if last.ParentHash == nil || *last.ParentHash != doc.Lineage[0].IdentityHash {
		t.Error("lineage link to predecessor broken")
	}
	if evolved.ID == doc.ID {
		t.Error("evolution must produce a new id")
	}
	if issues := VerifyIdentity(evolved); len(issues) != 0 {
		t.Errorf("evolved identity has issues: %+v", issues)
	}

	// Original untouched
	if len(doc.Lineage) != 1 || doc.Version != 1 {
		t.Error("original identity mutated")
	}
}

func TestEvolveIdentity_CapabilitiesResorted(t *testing.T) {
	doc, kp := createTestIdentity(t)
	evolved, err := EvolveIdentity(doc, &EvolveOptions{
		OperatorKeyPair: kp,
		ChangeType:      ChangeCapabilityChange,
		Description:     "add tools",
		Capabilities:    []string{"z.last", "a.first", "m.middle"},
	})
	if err != nil {
		t.Fatalf("evolve failed: %v", err)
	}
	if !sort.StringsAreSorted(evolved.Capabilities) {
		t.Errorf("capabilities not resorted: %v", evolved.Capabilities)
	}
}

func TestEvolveIdentity_OperatorTransferTwoStep(t *testing.T) {
	doc, oldKP := createTestIdentity(t)
	newKP, _ := crypto.GenerateKeyPair()

	// Step one: the outgoing operator signs an evolution that records the
	// incoming key. Verification against the recorded key fails by design.
	transferred, err := EvolveIdentity(doc, &EvolveOptions{
		OperatorKeyPair:   oldKP,
		ChangeType:        ChangeOperatorTransfer,
		Description:       "handoff to new operator",
		OperatorPublicKey: newKP.PublicKeyHex,
	})
	if err != nil {
		t.Fatalf("transfer evolution failed: %v", err)
	}
	if len(transferred.Lineage) != 2 || transferred.Lineage[1].ChangeType != ChangeOperatorTransfer {
		t.Fatal("transfer lineage entry missing")
	}

	issues := VerifyIdentity(transferred)
	sigFailed := false
	for _, issue := range issues {
		if issue.Check == "signature" {
			sigFailed = true
		}
	}
	if !sigFailed {
		t.Error("signature check should fail mid-handoff")
	}

	// Step two: the incoming operator signs the next evolution; the chain
	// verifies again.
	completed, err := EvolveIdentity(transferred, &EvolveOptions{
		OperatorKeyPair: newKP,
		ChangeType:      ChangeModelUpdate,
		Description:     "first evolution under new operator",
	})
	if err != nil {
		t.Fatalf("completion evolution failed: %v", err)
	}
	if issues := VerifyIdentity(completed); len(issues) != 0 {
		t.Errorf("completed handoff still has issues: %+v", issues)
	}
}

func TestVerifyIdentity_DetectsTampering(t *testing.T) {
	doc, _ := createTestIdentity(t)

	tampered := *doc
	tampered.Capabilities = append([]string{}, doc.Capabilities...)
	tampered.Capabilities[0] = "admin.everything"
	sort.Strings(tampered.Capabilities)

	issues := VerifyIdentity(&tampered)
	if len(issues) == 0 {
		t.Error("tampered identity verified")
	}
}

func TestVerifyIdentity_BrokenLineage(t *testing.T) {
	doc, kp := createTestIdentity(t)
	evolved, _ := EvolveIdentity(doc, &EvolveOptions{
		OperatorKeyPair: kp,
		ChangeType:      ChangeModelUpdate,
		Description:     "update",
	})

	broken := *evolved
	broken.Lineage = append([]LineageEntry{}, evolved.Lineage...)
	badHash := crypto.SHA256String("wrong")
	broken.Lineage[1].ParentHash = &badHash

	found := false
	for _, issue := range VerifyIdentity(&broken) {
		if issue.Check == "lineage" {
			found = true
		}
	}
	if !found {
		t.Error("broken lineage link not detected")
	}
}

func TestVerifyIdentity_VersionMismatch(t *testing.T) {
	doc, _ := createTestIdentity(t)
	wrong := *doc
	wrong.Version = 7

	found := false
	for _, issue := range VerifyIdentity(&wrong) {
		if issue.Check == "version" {
			found = true
		}
	}
	if !found {
		t.Error("version mismatch not detected")
	}
}

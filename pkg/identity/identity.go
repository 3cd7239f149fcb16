// Copyright 2025 Covenant Protocol
//
// Agent Identity Lineage
// An identity is a signed document whose evolution history is a
// hash-linked chain: each lineage entry names its content hash and the
// hash of its predecessor.

package identity

import (
	"crypto/ed25519"
	"sort"

	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
)

// Change types recorded in lineage entries
const (
	ChangeCreated          = "created"
	ChangeModelUpdate      = "model_update"
	ChangeCapabilityChange = "capability_change"
	ChangeOperatorTransfer = "operator_transfer"
	ChangeDeployment       = "deployment_change"
	ChangeFork             = "fork"
)

// ModelAttestation describes the model powering an agent
type ModelAttestation struct {
	Provider     string `json:"provider"`
	ModelID      string `json:"modelId"`
	ModelVersion string `json:"modelVersion,omitempty"`
}

// DeploymentContext describes where and how an agent runs
type DeploymentContext struct {
	Runtime  string `json:"runtime"`
	Region   string `json:"region,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// LineageEntry is one link in the identity evolution chain. The first
// entry has a nil ParentHash; every later entry's ParentHash equals the
// previous entry's IdentityHash.
type LineageEntry struct {
	IdentityHash string  `json:"identityHash"`
	ParentHash   *string `json:"parentHash"`
	ChangeType   string  `json:"changeType"`
	Description  string  `json:"description"`
	Timestamp    string  `json:"timestamp"`
}

// Document is a complete, signed agent identity
type Document struct {
	ID                string            `json:"id"`
	Version           uint32            `json:"version"`
	OperatorPublicKey string            `json:"operatorPublicKey"`
	Model             ModelAttestation  `json:"model"`
	Capabilities      []string          `json:"capabilities"`
	Deployment        DeploymentContext `json:"deployment"`
	Lineage           []LineageEntry    `json:"lineage"`
	CreatedAt         string            `json:"createdAt"`
	UpdatedAt         string            `json:"updatedAt"`
	Signature         string            `json:"signature"`
}

// CreateOptions are the inputs to CreateIdentity
type CreateOptions struct {
	OperatorKeyPair *crypto.KeyPair
	Model           ModelAttestation
	Capabilities    []string
	Deployment      DeploymentContext
}

// EvolveOptions are the inputs to EvolveIdentity. Nil pointer fields keep
// the current values.
type EvolveOptions struct {
	OperatorKeyPair   *crypto.KeyPair
	ChangeType        string
	Description       string
	Model             *ModelAttestation
	Capabilities      []string
	Deployment        *DeploymentContext
	OperatorPublicKey string
}

// contentHash computes the identity hash over the identity-defining
// fields, lineage included.
func contentHash(doc *Document) (string, error) {
	return crypto.SHA256Object(map[string]interface{}{
		"operatorPublicKey": doc.OperatorPublicKey,
		"model":             doc.Model,
		"capabilities":      doc.Capabilities,
		"deployment":        doc.Deployment,
		"lineage":           doc.Lineage,
	})
}

// signingPayload is the canonical form of the identity minus the
// signature field.
func signingPayload(doc *Document) (string, error) {
	m, err := crypto.ObjectToMap(doc)
	if err != nil {
		return "", err
	}
	delete(m, "signature")
	return crypto.CanonicalizeJSON(m)
}

func sortedCopy(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	sort.Strings(out)
	return out
}

// CreateIdentity creates version 1 of an identity: a single "created"
// lineage entry with a nil parent hash, signed by the operator.
func CreateIdentity(opts *CreateOptions) (*Document, error) {
	if opts == nil || opts.OperatorKeyPair == nil {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "operator key pair is required")
	}
	if opts.Model.Provider == "" || opts.Model.ModelID == "" {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "model.provider and model.modelId are required")
	}
	if opts.Capabilities == nil {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "capabilities list is required")
	}

	now := crypto.Timestamp()
	doc := &Document{
		Version:           1,
		OperatorPublicKey: opts.OperatorKeyPair.PublicKeyHex,
		Model:             opts.Model,
		Capabilities:      sortedCopy(opts.Capabilities),
		Deployment:        opts.Deployment,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	hash, err := contentHash(doc)
	if err != nil {
		return nil, err
	}
	doc.Lineage = []LineageEntry{{
		IdentityHash: hash,
		ParentHash:   nil,
		ChangeType:   ChangeCreated,
		Description:  "Identity created",
		Timestamp:    now,
	}}

	return seal(doc, opts.OperatorKeyPair)
}

// EvolveIdentity produces the next version of an identity, appending a
// lineage entry linked to the previous head.
//
// When the change replaces the operator public key, the evolved identity
// is signed by the outgoing operator but records the incoming key.
// Signature verification against the recorded key fails until the new
// operator signs a subsequent evolution; the handoff is deliberately a
// two-step protocol.
func EvolveIdentity(current *Document, opts *EvolveOptions) (*Document, error) {
	if current == nil {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "current identity is required")
	}
	if opts == nil || opts.OperatorKeyPair == nil {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "operator key pair is required")
	}
	if opts.ChangeType == "" || opts.Description == "" {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "changeType and description are required")
	}
	if len(current.Lineage) == 0 {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "current identity has no lineage")
	}

	now := crypto.Timestamp()
	next := &Document{
		Version:           current.Version + 1,
		OperatorPublicKey: current.OperatorPublicKey,
		Model:             current.Model,
		Capabilities:      current.Capabilities,
		Deployment:        current.Deployment,
		Lineage:           append([]LineageEntry{}, current.Lineage...),
		CreatedAt:         current.CreatedAt,
		UpdatedAt:         now,
	}

	if opts.Model != nil {
		next.Model = *opts.Model
	}
	if opts.Capabilities != nil {
		next.Capabilities = sortedCopy(opts.Capabilities)
	}
	if opts.Deployment != nil {
		next.Deployment = *opts.Deployment
	}
	if opts.OperatorPublicKey != "" {
		next.OperatorPublicKey = opts.OperatorPublicKey
	}

	hash, err := contentHash(next)
	if err != nil {
		return nil, err
	}
	parentHash := current.Lineage[len(current.Lineage)-1].IdentityHash
	next.Lineage = append(next.Lineage, LineageEntry{
		IdentityHash: hash,
		ParentHash:   &parentHash,
		ChangeType:   opts.ChangeType,
		Description:  opts.Description,
		Timestamp:    now,
	})

	return seal(next, opts.OperatorKeyPair)
}

// seal recomputes the id over the final lineage and signs the document
func seal(doc *Document, kp *crypto.KeyPair) (*Document, error) {
	id, err := contentHash(doc)
	if err != nil {
		return nil, err
	}
	doc.ID = id

	payload, err := signingPayload(doc)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign([]byte(payload), kp.PrivateKey)
	if err != nil {
		return nil, err
	}
	doc.Signature = crypto.ToHex(sig)
	return doc, nil
}

// VerificationIssue describes one failed identity check
type VerificationIssue struct {
	Check   string `json:"check"`
	Message string `json:"message"`
}

// VerifyIdentity checks the identity's signature, content id, lineage
// links, version, and capability ordering. It returns the issues found;
// an empty list means the identity is valid.
func VerifyIdentity(doc *Document) []VerificationIssue {
	var issues []VerificationIssue
	fail := func(check, message string) {
		issues = append(issues, VerificationIssue{Check: check, Message: message})
	}

	if doc == nil {
		return []VerificationIssue{{Check: "schema", Message: "identity is nil"}}
	}

	// Signature over the canonical form against the recorded operator key
	sigValid := false
	if payload, err := signingPayload(doc); err == nil {
		if sig, herr := crypto.FromHex(doc.Signature); herr == nil {
			if pub, perr := crypto.FromHex(doc.OperatorPublicKey); perr == nil {
				sigValid = crypto.Verify([]byte(payload), sig, ed25519.PublicKey(pub))
			}
		}
	}
	if !sigValid {
		fail("signature", "operator signature verification failed")
	}

	// Id matches content
	if expected, err := contentHash(doc); err != nil || doc.ID != expected {
		fail("id_match", "identity id does not match content hash")
	}

	// Lineage chain links
	if len(doc.Lineage) == 0 {
		fail("lineage", "lineage is empty")
	} else {
		if doc.Lineage[0].ParentHash != nil {
			fail("lineage", "first lineage entry must have a nil parentHash")
		}
		for i := 1; i < len(doc.Lineage); i++ {
			prev := doc.Lineage[i-1]
			cur := doc.Lineage[i]
			if cur.ParentHash == nil || *cur.ParentHash != prev.IdentityHash {
				fail("lineage", "lineage chain broken at entry "+cur.ChangeType)
				break
			}
		}
	}

	// Version matches lineage length
	if int(doc.Version) != len(doc.Lineage) {
		fail("version", "version does not match lineage length")
	}

	// Capabilities sorted
	if !sort.StringsAreSorted(doc.Capabilities) {
		fail("capabilities", "capabilities are not sorted")
	}

	return issues
}

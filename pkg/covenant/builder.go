// Copyright 2025 Covenant Protocol
//
// Covenant Builder
// Construction is validation-heavy: the builder refuses to produce a
// document that would not verify.

package covenant

import (
	"crypto/ed25519"
	"encoding/json"
	"strings"

	"github.com/covenant-protocol/trust-kernel/pkg/ccl"
	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
	"github.com/covenant-protocol/trust-kernel/pkg/protocol"
)

// BuildOptions are the inputs to BuildCovenant
type BuildOptions struct {
	Issuer      Party
	Beneficiary Party
	Constraints string
	PrivateKey  ed25519.PrivateKey
	Obligations []Obligation
	Chain       *ChainReference
	Enforcement map[string]interface{}
	Proof       map[string]interface{}
	Revocation  map[string]interface{}
	Metadata    map[string]interface{}
	ExpiresAt   string
	ActivatesAt string
}

// BuildCovenant constructs, signs, and returns a new covenant document.
// It validates all inputs, parses the CCL constraints, generates a fresh
// nonce, computes the content id, and signs the canonical form with the
// id included.
func BuildCovenant(opts *BuildOptions) (*Document, error) {
	if opts == nil {
		return nil, kerrors.New(kerrors.ErrorCodeCovenantBuild, "build options are required")
	}
	if err := validateParty(&opts.Issuer, protocol.RoleIssuer, "issuer"); err != nil {
		return nil, err
	}
	if err := validateParty(&opts.Beneficiary, protocol.RoleBeneficiary, "beneficiary"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.Constraints) == "" {
		return nil, kerrors.New(kerrors.ErrorCodeCovenantBuild, "constraints is required")
	}
	if len(opts.PrivateKey) != ed25519.PrivateKeySize {
		return nil, kerrors.Newf(kerrors.ErrorCodeCovenantBuild,
			"privateKey must be %d bytes", ed25519.PrivateKeySize)
	}

	parsed, err := ccl.Parse(opts.Constraints)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeCovenantBuild, "invalid CCL constraints", err)
	}
	if len(parsed.Statements) > protocol.MaxConstraints {
		return nil, kerrors.Newf(kerrors.ErrorCodeCovenantBuild,
			"constraints exceed maximum of %d statements (got %d)",
			protocol.MaxConstraints, len(parsed.Statements))
	}

	if opts.Chain != nil {
		if err := validateChainReference(opts.Chain); err != nil {
			return nil, err
		}
	}

	nonce, err := crypto.GenerateNonce()
	if err != nil {
		return nil, err
	}
	createdAt := crypto.Timestamp()

	if opts.ExpiresAt != "" {
		expires, perr := crypto.ParseTimestamp(opts.ExpiresAt)
		if perr != nil {
			return nil, kerrors.Wrap(kerrors.ErrorCodeCovenantBuild, "invalid expiresAt", perr)
		}
		created, _ := crypto.ParseTimestamp(createdAt)
		if !expires.After(created) {
			return nil, kerrors.New(kerrors.ErrorCodeCovenantBuild, "expiresAt must be after createdAt")
		}
	}
	if opts.ActivatesAt != "" {
		if _, perr := crypto.ParseTimestamp(opts.ActivatesAt); perr != nil {
			return nil, kerrors.Wrap(kerrors.ErrorCodeCovenantBuild, "invalid activatesAt", perr)
		}
	}

	doc := &Document{
		Version:     protocol.Version,
		Issuer:      opts.Issuer,
		Beneficiary: opts.Beneficiary,
		Constraints: opts.Constraints,
		Obligations: opts.Obligations,
		Chain:       opts.Chain,
		Enforcement: opts.Enforcement,
		Proof:       opts.Proof,
		Revocation:  opts.Revocation,
		Metadata:    opts.Metadata,
		Nonce:       crypto.ToHex(nonce),
		CreatedAt:   createdAt,
		ExpiresAt:   opts.ExpiresAt,
		ActivatesAt: opts.ActivatesAt,
	}

	if err := sealDocument(doc, opts.PrivateKey); err != nil {
		return nil, err
	}

	serialized, err := json.Marshal(doc)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeCovenantBuild, "failed to serialize document", err)
	}
	if len(serialized) > protocol.MaxDocumentSize {
		return nil, kerrors.Newf(kerrors.ErrorCodeCovenantBuild,
			"serialized document exceeds maximum size of %d bytes", protocol.MaxDocumentSize)
	}

	return doc, nil
}

// ResignCovenant produces a new document from an existing one with a fresh
// nonce, a recomputed id, and a new issuer signature. All countersignatures
// are stripped: they covered the old id. The issuer public key is replaced
// with the one derived from the new private key, so the operation doubles
// as key rotation.
func ResignCovenant(doc *Document, newPrivateKey ed25519.PrivateKey) (*Document, error) {
	if doc == nil {
		return nil, kerrors.New(kerrors.ErrorCodeCovenantBuild, "document is required")
	}
	kp, err := crypto.KeyPairFromPrivateKey(newPrivateKey)
	if err != nil {
		return nil, err
	}

	nonce, err := crypto.GenerateNonce()
	if err != nil {
		return nil, err
	}

	resigned := *doc
	resigned.Issuer.PublicKey = kp.PublicKeyHex
	resigned.Nonce = crypto.ToHex(nonce)
	resigned.Countersignatures = nil
	resigned.ID = ""
	resigned.Signature = ""

	if err := sealDocument(&resigned, kp.PrivateKey); err != nil {
		return nil, err
	}
	return &resigned, nil
}

// sealDocument computes the content id and issuer signature in place
func sealDocument(doc *Document, privateKey ed25519.PrivateKey) error {
	id, err := ComputeID(doc)
	if err != nil {
		return err
	}
	doc.ID = id

	message, err := SigningMessage(doc)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign([]byte(message), privateKey)
	if err != nil {
		return kerrors.Wrap(kerrors.ErrorCodeCovenantBuild, "failed to sign covenant", err)
	}
	doc.Signature = crypto.ToHex(sig)
	return nil
}

func validateParty(p *Party, requiredRole, label string) error {
	if p.ID == "" {
		return kerrors.Newf(kerrors.ErrorCodeCovenantBuild, "%s.id is required", label)
	}
	if !crypto.IsHex(p.PublicKey, 64) {
		return kerrors.Newf(kerrors.ErrorCodeCovenantBuild,
			"%s.publicKey must be 64 hex characters", label)
	}
	if p.Role != requiredRole {
		return kerrors.Newf(kerrors.ErrorCodeCovenantBuild,
			"%s.role must be '%s'", label, requiredRole)
	}
	return nil
}

func validateChainReference(ref *ChainReference) error {
	if !crypto.IsHex(ref.ParentID, 64) {
		return kerrors.New(kerrors.ErrorCodeCovenantBuild, "chain.parentId must be a 64-char hex id")
	}
	if !protocol.ValidRelation(ref.Relation) {
		return kerrors.Newf(kerrors.ErrorCodeCovenantBuild, "unknown chain.relation '%s'", ref.Relation)
	}
	if ref.Depth < 1 || ref.Depth > protocol.MaxChainDepth {
		return kerrors.Newf(kerrors.ErrorCodeCovenantBuild,
			"chain.depth must be between 1 and %d (got %d)", protocol.MaxChainDepth, ref.Depth)
	}
	return nil
}

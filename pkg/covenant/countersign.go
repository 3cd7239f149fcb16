// Copyright 2025 Covenant Protocol
//
// Countersigning
// A countersigner endorses the same message the issuer signed. Because
// countersignatures are excluded from the canonical form, the document id
// is unchanged.

package covenant

import (
	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
	"github.com/covenant-protocol/trust-kernel/pkg/protocol"
)

// CountersignCovenant returns a new document with an appended
// countersignature from the given key pair. The original document is not
// mutated.
func CountersignCovenant(doc *Document, kp *crypto.KeyPair, signerRole string) (*Document, error) {
	if doc == nil {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "document is required")
	}
	if kp == nil {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "signer key pair is required")
	}
	if !protocol.ValidRole(signerRole) {
		return nil, kerrors.Newf(kerrors.ErrorCodeInvalidInput, "unknown signer role '%s'", signerRole)
	}

	message, err := SigningMessage(doc)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign([]byte(message), kp.PrivateKey)
	if err != nil {
		return nil, err
	}

	cs := Countersignature{
		SignerPublicKey: kp.PublicKeyHex,
		SignerRole:      signerRole,
		Signature:       crypto.ToHex(sig),
		Timestamp:       crypto.Timestamp(),
	}

	signed := *doc
	signed.Countersignatures = make([]Countersignature, len(doc.Countersignatures)+1)
	copy(signed.Countersignatures, doc.Countersignatures)
	signed.Countersignatures[len(doc.Countersignatures)] = cs
	return &signed, nil
}

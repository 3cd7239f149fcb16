// Copyright 2025 Covenant Protocol
//
// Wire codec
// Transport uses ordinary JSON; parsers must be order-agnostic. Structural
// validation runs on deserialization so stores never hold half-formed
// documents.

package covenant

import (
	"encoding/json"

	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
	"github.com/covenant-protocol/trust-kernel/pkg/protocol"
)

// Marshal serializes a document to wire JSON
func Marshal(doc *Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeInvalidInput, "failed to serialize covenant", err)
	}
	return b, nil
}

// Unmarshal parses wire JSON into a document and validates its structure.
// Signature and id validity are the verifier's concern, not the codec's.
func Unmarshal(data []byte) (*Document, error) {
	if len(data) > protocol.MaxDocumentSize {
		return nil, kerrors.Newf(kerrors.ErrorCodeInvalidInput,
			"document size %d exceeds maximum of %d bytes", len(data), protocol.MaxDocumentSize)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeInvalidInput, "invalid covenant JSON", err)
	}

	switch {
	case doc.ID == "":
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "missing required field: id")
	case doc.Version == "":
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "missing required field: version")
	case doc.Issuer.ID == "" || doc.Issuer.PublicKey == "":
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "invalid issuer")
	case doc.Beneficiary.ID == "" || doc.Beneficiary.PublicKey == "":
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "invalid beneficiary")
	case doc.Constraints == "":
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "missing required field: constraints")
	case doc.Nonce == "":
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "missing required field: nonce")
	case doc.CreatedAt == "":
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "missing required field: createdAt")
	case doc.Signature == "":
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "missing required field: signature")
	}

	if doc.Chain != nil && !crypto.IsHex(doc.Chain.ParentID, 64) {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "chain.parentId must be a 64-char hex id")
	}

	return &doc, nil
}

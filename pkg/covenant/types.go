// Copyright 2025 Covenant Protocol
//
// Covenant Document Model
// A covenant is a content-addressed, Ed25519-signed behavioral contract
// between an issuer and a beneficiary. Documents are immutable values;
// every mutation produces a new document.

package covenant

import (
	"crypto/ed25519"

	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
)

// Party is a participant in a covenant. The public key is 64 lowercase
// hex characters (32 bytes).
type Party struct {
	ID        string `json:"id"`
	PublicKey string `json:"publicKey"`
	Role      string `json:"role"`
}

// ChainReference links a child covenant to its parent in a delegation
// chain.
type ChainReference struct {
	ParentID string `json:"parentId"`
	Relation string `json:"relation"`
	Depth    int    `json:"depth"`
}

// Obligation is a document-level duty attached to the covenant beyond the
// CCL require statements.
type Obligation struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Terms       map[string]interface{} `json:"terms,omitempty"`
}

// Countersignature is a third-party signature over the same message the
// issuer signed. Countersignatures sit outside the canonical form, so
// appending one leaves the document id unchanged.
type Countersignature struct {
	SignerPublicKey string `json:"signerPublicKey"`
	SignerRole      string `json:"signerRole"`
	Signature       string `json:"signature"`
	Timestamp       string `json:"timestamp"`
}

// Document is a complete, signed covenant document
type Document struct {
	ID                string                 `json:"id"`
	Version           string                 `json:"version"`
	Issuer            Party                  `json:"issuer"`
	Beneficiary       Party                  `json:"beneficiary"`
	Constraints       string                 `json:"constraints"`
	Obligations       []Obligation           `json:"obligations,omitempty"`
	Chain             *ChainReference        `json:"chain,omitempty"`
	Enforcement       map[string]interface{} `json:"enforcement,omitempty"`
	Proof             map[string]interface{} `json:"proof,omitempty"`
	Revocation        map[string]interface{} `json:"revocation,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	Nonce             string                 `json:"nonce"`
	CreatedAt         string                 `json:"createdAt"`
	ExpiresAt         string                 `json:"expiresAt,omitempty"`
	ActivatesAt       string                 `json:"activatesAt,omitempty"`
	Signature         string                 `json:"signature"`
	Countersignatures []Countersignature     `json:"countersignatures,omitempty"`
}

// CanonicalForm computes the canonical serialization used for the content
// id: the document minus id, signature, and countersignatures.
func CanonicalForm(doc *Document) (string, error) {
	m, err := crypto.ObjectToMap(doc)
	if err != nil {
		return "", err
	}
	delete(m, "id")
	delete(m, "signature")
	delete(m, "countersignatures")
	return crypto.CanonicalizeJSON(m)
}

// SigningMessage computes the canonical serialization that issuer and
// countersigners sign: the document minus signature and countersignatures,
// with the id included.
func SigningMessage(doc *Document) (string, error) {
	m, err := crypto.ObjectToMap(doc)
	if err != nil {
		return "", err
	}
	delete(m, "signature")
	delete(m, "countersignatures")
	return crypto.CanonicalizeJSON(m)
}

// ComputeID computes the SHA-256 content id from the canonical form
func ComputeID(doc *Document) (string, error) {
	canonical, err := CanonicalForm(doc)
	if err != nil {
		return "", err
	}
	return crypto.SHA256String(canonical), nil
}

// verifySignatureHex checks a hex signature over a message against a hex
// public key, returning false for any malformed input.
func verifySignatureHex(message, signatureHex, publicKeyHex string) bool {
	sig, err := crypto.FromHex(signatureHex)
	if err != nil {
		return false
	}
	pub, err := crypto.FromHex(publicKeyHex)
	if err != nil {
		return false
	}
	return crypto.Verify([]byte(message), sig, ed25519.PublicKey(pub))
}

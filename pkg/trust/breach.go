// Copyright 2025 Covenant Protocol
//
// Breach Attestations
// A breach attestation is a signed report of a covenant violation. It
// follows the same content-id and signature discipline as covenant
// documents: id = SHA-256 of the canonical form, signature over the
// canonical form with the id included.

package trust

import (
	"crypto/ed25519"
	"fmt"

	"github.com/covenant-protocol/trust-kernel/pkg/ccl"
	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
)

// Attestation is a signed breach report
type Attestation struct {
	ID                   string       `json:"id"`
	CovenantID           string       `json:"covenantId"`
	ViolatorIdentityHash string       `json:"violatorIdentityHash"`
	ViolatedConstraint   string       `json:"violatedConstraint"`
	Severity             ccl.Severity `json:"severity"`
	Action               string       `json:"action"`
	Resource             string       `json:"resource"`
	EvidenceHash         string       `json:"evidenceHash,omitempty"`
	RecommendedAction    string       `json:"recommendedAction,omitempty"`
	ReporterPublicKey    string       `json:"reporterPublicKey"`
	ReporterSignature    string       `json:"reporterSignature"`
	ReportedAt           string       `json:"reportedAt"`
	AffectedCovenants    []string     `json:"affectedCovenants,omitempty"`
}

// AttestationOptions are the inputs to NewAttestation
type AttestationOptions struct {
	CovenantID           string
	ViolatorIdentityHash string
	ViolatedConstraint   string
	Severity             ccl.Severity
	Action               string
	Resource             string
	EvidenceHash         string
	RecommendedAction    string
	AffectedCovenants    []string
}

// attestationCanonicalForm strips id and signature before canonicalization
func attestationCanonicalForm(att *Attestation) (string, error) {
	m, err := crypto.ObjectToMap(att)
	if err != nil {
		return "", err
	}
	delete(m, "id")
	delete(m, "reporterSignature")
	return crypto.CanonicalizeJSON(m)
}

// attestationSigningMessage keeps the id, strips the signature
func attestationSigningMessage(att *Attestation) (string, error) {
	m, err := crypto.ObjectToMap(att)
	if err != nil {
		return "", err
	}
	delete(m, "reporterSignature")
	return crypto.CanonicalizeJSON(m)
}

// NewAttestation builds and signs a breach attestation with the reporter's
// key pair.
func NewAttestation(opts *AttestationOptions, reporter *crypto.KeyPair) (*Attestation, error) {
	if opts == nil {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "attestation options are required")
	}
	if reporter == nil {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "reporter key pair is required")
	}
	if !crypto.IsHex(opts.ViolatorIdentityHash, 64) {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput,
			"violatorIdentityHash must be a 64-char hex hash")
	}
	if !ccl.ValidSeverity(opts.Severity) {
		return nil, kerrors.Newf(kerrors.ErrorCodeInvalidInput, "unknown severity '%s'", opts.Severity)
	}
	if opts.CovenantID == "" || opts.ViolatedConstraint == "" {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput,
			"covenantId and violatedConstraint are required")
	}

	att := &Attestation{
		CovenantID:           opts.CovenantID,
		ViolatorIdentityHash: opts.ViolatorIdentityHash,
		ViolatedConstraint:   opts.ViolatedConstraint,
		Severity:             opts.Severity,
		Action:               opts.Action,
		Resource:             opts.Resource,
		EvidenceHash:         opts.EvidenceHash,
		RecommendedAction:    opts.RecommendedAction,
		ReporterPublicKey:    reporter.PublicKeyHex,
		ReportedAt:           crypto.Timestamp(),
		AffectedCovenants:    opts.AffectedCovenants,
	}

	canonical, err := attestationCanonicalForm(att)
	if err != nil {
		return nil, err
	}
	att.ID = crypto.SHA256String(canonical)

	message, err := attestationSigningMessage(att)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign([]byte(message), reporter.PrivateKey)
	if err != nil {
		return nil, err
	}
	att.ReporterSignature = crypto.ToHex(sig)
	return att, nil
}

// AttestationCheck is the result of one attestation verification check
type AttestationCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// AttestationVerification is the complete outcome of verifying a breach
// attestation. Verification never returns an error for invalid input.
type AttestationVerification struct {
	Valid  bool               `json:"valid"`
	Checks []AttestationCheck `json:"checks"`
}

// VerifyAttestation runs the attestation checks: schema, id_match, and
// signature.
func VerifyAttestation(att *Attestation) *AttestationVerification {
	var checks []AttestationCheck
	add := func(name string, passed bool, message string) {
		checks = append(checks, AttestationCheck{Name: name, Passed: passed, Message: message})
	}

	if att == nil {
		att = &Attestation{}
	}

	schemaMsg := ""
	switch {
	case att.ID == "":
		schemaMsg = "missing required field: id"
	case att.CovenantID == "":
		schemaMsg = "missing required field: covenantId"
	case !crypto.IsHex(att.ViolatorIdentityHash, 64):
		schemaMsg = "violatorIdentityHash must be a 64-char hex hash"
	case !ccl.ValidSeverity(att.Severity):
		schemaMsg = fmt.Sprintf("unknown severity '%s'", att.Severity)
	case att.ViolatedConstraint == "":
		schemaMsg = "missing required field: violatedConstraint"
	case !crypto.IsHex(att.ReporterPublicKey, 64):
		schemaMsg = "reporterPublicKey must be a 64-char hex key"
	case att.ReportedAt == "":
		schemaMsg = "missing required field: reportedAt"
	}
	if schemaMsg == "" {
		if _, err := crypto.ParseTimestamp(att.ReportedAt); err != nil {
			schemaMsg = "reportedAt is not a valid timestamp"
		}
	}
	add("schema", schemaMsg == "", schemaMsg)

	expectedID, err := attestationCanonicalForm(att)
	if err != nil {
		add("id_match", false, fmt.Sprintf("failed to compute canonical form: %v", err))
	} else {
		idOK := att.ID == crypto.SHA256String(expectedID)
		msg := "attestation id matches canonical hash"
		if !idOK {
			msg = "attestation id does not match content"
		}
		add("id_match", idOK, msg)
	}

	sigValid := false
	if message, err := attestationSigningMessage(att); err == nil {
		if sig, herr := crypto.FromHex(att.ReporterSignature); herr == nil {
			if pub, perr := crypto.FromHex(att.ReporterPublicKey); perr == nil {
				sigValid = crypto.Verify([]byte(message), sig, ed25519.PublicKey(pub))
			}
		}
	}
	sigMsg := "reporter signature is valid"
	if !sigValid {
		sigMsg = "reporter signature verification failed"
	}
	add("signature", sigValid, sigMsg)

	valid := true
	for _, c := range checks {
		if !c.Passed {
			valid = false
			break
		}
	}
	return &AttestationVerification{Valid: valid, Checks: checks}
}

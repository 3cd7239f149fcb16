// Copyright 2025 Covenant Protocol
//
// Covenant Verification
// Eleven named checks; all must pass. Verification never returns an
// error for an invalid document — malformed input surfaces as failed
// checks, and the caller's policy decision is deny.

package covenant

import (
	"fmt"
	"time"

	"github.com/covenant-protocol/trust-kernel/pkg/ccl"
	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
	"github.com/covenant-protocol/trust-kernel/pkg/protocol"
)

// Check names, in execution order
const (
	CheckSchema            = "schema"
	CheckIDMatch           = "id_match"
	CheckSignature         = "signature"
	CheckIssuerRole        = "issuer_role"
	CheckBeneficiaryRole   = "beneficiary_role"
	CheckConstraintsSyntax = "constraints_syntax"
	CheckVersionSupported  = "version_supported"
	CheckNotExpired        = "not_expired"
	CheckActivated         = "activated"
	CheckChainDepth        = "chain_depth"
	CheckCountersignatures = "countersignatures"
)

// VerificationCheck is the result of one named check
type VerificationCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// VerificationResult is the complete outcome of verifying a document
type VerificationResult struct {
	Valid  bool                `json:"valid"`
	Checks []VerificationCheck `json:"checks"`
}

// Check returns the named check, or nil if absent
func (r *VerificationResult) Check(name string) *VerificationCheck {
	for i := range r.Checks {
		if r.Checks[i].Name == name {
			return &r.Checks[i]
		}
	}
	return nil
}

// VerifyCovenant runs all eleven checks against the document using the
// system clock.
func VerifyCovenant(doc *Document) *VerificationResult {
	return VerifyCovenantAt(doc, protocol.SystemClock{}.Now())
}

// VerifyCovenantAt runs all eleven checks using the supplied evaluation
// time.
func VerifyCovenantAt(doc *Document, now time.Time) *VerificationResult {
	checks := make([]VerificationCheck, 0, 11)
	add := func(name string, passed bool, message string) {
		checks = append(checks, VerificationCheck{Name: name, Passed: passed, Message: message})
	}

	if doc == nil {
		doc = &Document{}
	}

	// schema: required fields present and well-typed
	schemaMsg := checkSchema(doc)
	add(CheckSchema, schemaMsg == "", orDefault(schemaMsg, "All required fields present"))

	// id_match: content id equals hash of the canonical form
	expectedID, idErr := ComputeID(doc)
	switch {
	case idErr != nil:
		add(CheckIDMatch, false, fmt.Sprintf("Failed to compute id: %v", idErr))
	case doc.ID != expectedID:
		add(CheckIDMatch, false, fmt.Sprintf("Id mismatch: expected %s, got %s", expectedID, doc.ID))
	default:
		add(CheckIDMatch, true, "Document id matches canonical hash")
	}

	// signature: issuer signature over the signing message
	sigValid := false
	if message, err := SigningMessage(doc); err == nil {
		sigValid = verifySignatureHex(message, doc.Signature, doc.Issuer.PublicKey)
	}
	add(CheckSignature, sigValid, orDefault(failUnless(sigValid, "Issuer signature verification failed"),
		"Issuer signature is valid"))

	// Roles
	add(CheckIssuerRole, doc.Issuer.Role == protocol.RoleIssuer,
		fmt.Sprintf("Issuer role is '%s'", doc.Issuer.Role))
	add(CheckBeneficiaryRole, doc.Beneficiary.Role == protocol.RoleBeneficiary,
		fmt.Sprintf("Beneficiary role is '%s'", doc.Beneficiary.Role))

	// constraints_syntax
	if parsed, err := ccl.Parse(doc.Constraints); err != nil {
		add(CheckConstraintsSyntax, false, fmt.Sprintf("CCL parse error: %v", err))
	} else if len(parsed.Statements) > protocol.MaxConstraints {
		add(CheckConstraintsSyntax, false,
			fmt.Sprintf("Constraints exceed maximum of %d statements", protocol.MaxConstraints))
	} else {
		add(CheckConstraintsSyntax, true,
			fmt.Sprintf("CCL parsed successfully (%d statement(s))", len(parsed.Statements)))
	}

	// version_supported
	add(CheckVersionSupported, protocol.SupportedVersions[doc.Version],
		fmt.Sprintf("Document version '%s'", doc.Version))

	// not_expired
	if doc.ExpiresAt == "" {
		add(CheckNotExpired, true, "No expiry set")
	} else if expires, err := crypto.ParseTimestamp(doc.ExpiresAt); err != nil {
		add(CheckNotExpired, false, fmt.Sprintf("Invalid expiresAt: %v", err))
	} else if now.After(expires) {
		add(CheckNotExpired, false, fmt.Sprintf("Document expired at %s", doc.ExpiresAt))
	} else {
		add(CheckNotExpired, true, "Document has not expired")
	}

	// activated
	if doc.ActivatesAt == "" {
		add(CheckActivated, true, "No activation time set")
	} else if activates, err := crypto.ParseTimestamp(doc.ActivatesAt); err != nil {
		add(CheckActivated, false, fmt.Sprintf("Invalid activatesAt: %v", err))
	} else if now.Before(activates) {
		add(CheckActivated, false, fmt.Sprintf("Document activates at %s", doc.ActivatesAt))
	} else {
		add(CheckActivated, true, "Document is active")
	}

	// chain_depth
	if doc.Chain == nil {
		add(CheckChainDepth, true, "No chain reference present")
	} else if doc.Chain.Depth < 1 || doc.Chain.Depth > protocol.MaxChainDepth {
		add(CheckChainDepth, false,
			fmt.Sprintf("Chain depth %d outside [1, %d]", doc.Chain.Depth, protocol.MaxChainDepth))
	} else {
		add(CheckChainDepth, true, fmt.Sprintf("Chain depth %d is within limit", doc.Chain.Depth))
	}

	// countersignatures
	add(checkCountersignatures(doc))

	valid := true
	for _, c := range checks {
		if !c.Passed {
			valid = false
			break
		}
	}
	return &VerificationResult{Valid: valid, Checks: checks}
}

// checkSchema returns an empty string when the document carries every
// required field in a plausible shape, or a failure message.
func checkSchema(doc *Document) string {
	switch {
	case doc.ID == "":
		return "missing required field: id"
	case !crypto.IsHex(doc.ID, 64):
		return "id must be a 64-char hex string"
	case doc.Version == "":
		return "missing required field: version"
	case doc.Issuer.ID == "" || doc.Issuer.PublicKey == "":
		return "issuer must have id and publicKey"
	case !crypto.IsHex(doc.Issuer.PublicKey, 64):
		return "issuer.publicKey must be a 64-char hex string"
	case doc.Beneficiary.ID == "" || doc.Beneficiary.PublicKey == "":
		return "beneficiary must have id and publicKey"
	case !crypto.IsHex(doc.Beneficiary.PublicKey, 64):
		return "beneficiary.publicKey must be a 64-char hex string"
	case doc.Constraints == "":
		return "missing required field: constraints"
	case !crypto.IsHex(doc.Nonce, 64):
		return "nonce must be a 64-char hex string"
	case doc.CreatedAt == "":
		return "missing required field: createdAt"
	case doc.Signature == "":
		return "missing required field: signature"
	}
	if _, err := crypto.ParseTimestamp(doc.CreatedAt); err != nil {
		return "createdAt is not a valid timestamp"
	}
	return ""
}

func checkCountersignatures(doc *Document) (string, bool, string) {
	if len(doc.Countersignatures) == 0 {
		return CheckCountersignatures, true, "No countersignatures present"
	}

	message, err := SigningMessage(doc)
	if err != nil {
		return CheckCountersignatures, false, fmt.Sprintf("Failed to compute signing message: %v", err)
	}

	failed := 0
	for _, cs := range doc.Countersignatures {
		if cs.SignerPublicKey == "" || cs.Signature == "" {
			failed++
			continue
		}
		if !verifySignatureHex(message, cs.Signature, cs.SignerPublicKey) {
			failed++
		}
	}
	if failed > 0 {
		return CheckCountersignatures, false,
			fmt.Sprintf("%d of %d countersignature(s) invalid", failed, len(doc.Countersignatures))
	}
	return CheckCountersignatures, true,
		fmt.Sprintf("All %d countersignature(s) are valid", len(doc.Countersignatures))
}

func orDefault(failMsg, okMsg string) string {
	if failMsg != "" {
		return failMsg
	}
	return okMsg
}

func failUnless(ok bool, msg string) string {
	if ok {
		return ""
	}
	return msg
}

// EvaluateAction is the single access-decision hook framework adapters
// call: it parses the covenant's constraints and evaluates the request
// against them. Any internal failure produces a deny decision, never an
// error.
func EvaluateAction(doc *Document, action, resource string, context map[string]interface{}) *ccl.EvaluationResult {
	if doc == nil {
		return &ccl.EvaluationResult{Permitted: false, Reason: "No covenant document; default deny"}
	}
	parsed, err := ccl.Parse(doc.Constraints)
	if err != nil {
		return &ccl.EvaluationResult{
			Permitted: false,
			Reason:    fmt.Sprintf("Constraints failed to parse; default deny: %v", err),
		}
	}
	return ccl.Evaluate(parsed, action, resource, context)
}

// AccessDecider is the hook interface exposed to framework adapters
type AccessDecider interface {
	EvaluateAction(doc *Document, action, resource string, context map[string]interface{}) *ccl.EvaluationResult
}

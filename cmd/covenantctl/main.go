// Copyright 2025 Covenant Protocol
//
// covenantctl - operator utility for covenant documents
// Subcommands: keygen, build, verify, evaluate, countersign

package main

import (
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/covenant-protocol/trust-kernel/pkg/covenant"
	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
	"github.com/covenant-protocol/trust-kernel/pkg/protocol"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "keygen":
		err = runKeygen(os.Args[2:])
	case "build":
		err = runBuild(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "evaluate":
		err = runEvaluate(os.Args[2:])
	case "countersign":
		err = runCountersign(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: covenantctl <command> [flags]

commands:
  keygen       generate an Ed25519 key pair
  build        build and sign a covenant document
  verify       run the verification checks against a document
  evaluate     evaluate an action/resource request against a document
  countersign  append a countersignature to a document`)
}

func runKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("out", "", "write the private key seed to this file (hex)")
	fs.Parse(args)

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	seed := crypto.ToHex(kp.PrivateKey.Seed())

	fmt.Printf("public key:  %s\n", kp.PublicKeyHex)
	if *out == "" {
		fmt.Printf("private seed: %s\n", seed)
		return nil
	}
	if err := os.WriteFile(*out, []byte(seed+"\n"), 0o600); err != nil {
		return err
	}
	fmt.Printf("private seed written to %s\n", *out)
	return nil
}

func loadKeyPair(path string) (*crypto.KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed, err := crypto.FromHex(stringTrim(raw))
	if err != nil {
		return nil, err
	}
	if len(seed) == ed25519.PrivateKeySize {
		return crypto.KeyPairFromPrivateKey(ed25519.PrivateKey(seed))
	}
	return crypto.KeyPairFromSeed(seed)
}

func stringTrim(raw []byte) string {
	s := string(raw)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	keyPath := fs.String("key", "", "issuer private key file")
	issuerID := fs.String("issuer", "", "issuer id")
	beneficiaryID := fs.String("beneficiary", "", "beneficiary id")
	beneficiaryKey := fs.String("beneficiary-key", "", "beneficiary public key (hex)")
	constraintsPath := fs.String("constraints", "", "CCL constraints file")
	expiresAt := fs.String("expires", "", "expiry timestamp (ISO 8601)")
	out := fs.String("out", "", "output file (default stdout)")
	fs.Parse(args)

	if *keyPath == "" || *issuerID == "" || *beneficiaryID == "" || *beneficiaryKey == "" || *constraintsPath == "" {
		return fmt.Errorf("key, issuer, beneficiary, beneficiary-key, and constraints are required")
	}

	kp, err := loadKeyPair(*keyPath)
	if err != nil {
		return fmt.Errorf("failed to load issuer key: %w", err)
	}
	constraints, err := os.ReadFile(*constraintsPath)
	if err != nil {
		return err
	}

	doc, err := covenant.BuildCovenant(&covenant.BuildOptions{
		Issuer:      covenant.Party{ID: *issuerID, PublicKey: kp.PublicKeyHex, Role: protocol.RoleIssuer},
		Beneficiary: covenant.Party{ID: *beneficiaryID, PublicKey: *beneficiaryKey, Role: protocol.RoleBeneficiary},
		Constraints: string(constraints),
		PrivateKey:  kp.PrivateKey,
		ExpiresAt:   *expiresAt,
	})
	if err != nil {
		return err
	}
	return writeDocument(doc, *out)
}

func loadDocument(path string) (*covenant.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return covenant.Unmarshal(raw)
}

func writeDocument(doc *covenant.Document, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	docPath := fs.String("doc", "", "covenant document file")
	fs.Parse(args)

	if *docPath == "" {
		return fmt.Errorf("doc is required")
	}
	doc, err := loadDocument(*docPath)
	if err != nil {
		return err
	}

	result := covenant.VerifyCovenant(doc)
	for _, check := range result.Checks {
		mark := "ok "
		if !check.Passed {
			mark = "FAIL"
		}
		fmt.Printf("%s  %-20s %s\n", mark, check.Name, check.Message)
	}
	if !result.Valid {
		return fmt.Errorf("document is invalid")
	}
	fmt.Println("document is valid")
	return nil
}

func runEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	docPath := fs.String("doc", "", "covenant document file")
	action := fs.String("action", "", "action to evaluate")
	resource := fs.String("resource", "", "resource to evaluate")
	contextJSON := fs.String("context", "", "request context as JSON")
	fs.Parse(args)

	if *docPath == "" || *action == "" || *resource == "" {
		return fmt.Errorf("doc, action, and resource are required")
	}
	doc, err := loadDocument(*docPath)
	if err != nil {
		return err
	}

	var ctx map[string]interface{}
	if *contextJSON != "" {
		if err := json.Unmarshal([]byte(*contextJSON), &ctx); err != nil {
			return fmt.Errorf("invalid context JSON: %w", err)
		}
	}

	result := covenant.EvaluateAction(doc, *action, *resource, ctx)
	decision := "DENY"
	if result.Permitted {
		decision = "PERMIT"
	}
	fmt.Printf("%s  %s\n", decision, result.Reason)
	return nil
}

func runCountersign(args []string) error {
	fs := flag.NewFlagSet("countersign", flag.ExitOnError)
	docPath := fs.String("doc", "", "covenant document file")
	keyPath := fs.String("key", "", "signer private key file")
	role := fs.String("role", protocol.RoleAuditor, "signer role")
	out := fs.String("out", "", "output file (default stdout)")
	fs.Parse(args)

	if *docPath == "" || *keyPath == "" {
		return fmt.Errorf("doc and key are required")
	}
	doc, err := loadDocument(*docPath)
	if err != nil {
		return err
	}
	kp, err := loadKeyPair(*keyPath)
	if err != nil {
		return fmt.Errorf("failed to load signer key: %w", err)
	}

	signed, err := covenant.CountersignCovenant(doc, kp, *role)
	if err != nil {
		return err
	}
	return writeDocument(signed, *out)
}

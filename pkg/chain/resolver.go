// Copyright 2025 Covenant Protocol
//
// Delegation Chain Resolver
// Walks parent references from a covenant to its root, enforces depth and
// cycle limits, validates narrowing along the chain, and folds the chain
// into an effective policy.

package chain

import (
	"context"
	"log"
	"time"

	"github.com/covenant-protocol/trust-kernel/pkg/ccl"
	"github.com/covenant-protocol/trust-kernel/pkg/covenant"
	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
	"github.com/covenant-protocol/trust-kernel/pkg/protocol"
	"github.com/covenant-protocol/trust-kernel/pkg/store"
)

// Loader fetches covenant documents by id. A missing document is
// (nil, nil).
type Loader interface {
	Load(ctx context.Context, id string) (*covenant.Document, error)
}

// StoreLoader adapts a covenant store to the Loader interface
type StoreLoader struct {
	Store store.Store
}

// Load implements Loader
func (l StoreLoader) Load(_ context.Context, id string) (*covenant.Document, error) {
	return l.Store.Get(id)
}

// ChainViolation ties a narrowing violation to the chain link it occurred
// on.
type ChainViolation struct {
	ParentID  string                 `json:"parentId"`
	ChildID   string                 `json:"childId"`
	Violation ccl.NarrowingViolation `json:"violation"`
}

// ChainValidationResult is the outcome of validating narrowing along a
// resolved chain.
type ChainValidationResult struct {
	Valid      bool             `json:"valid"`
	Violations []ChainViolation `json:"violations"`
}

// Resolver resolves and validates delegation chains against a document
// loader.
type Resolver struct {
	loader Loader
	logger *log.Logger
}

// NewResolver creates a resolver over the given loader
func NewResolver(loader Loader, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(log.Writer(), "[ChainResolver] ", log.LstdFlags)
	}
	return &Resolver{loader: loader, logger: logger}
}

// ResolveChain walks parent references from the covenant with startID and
// returns the chain ordered root first, start last. It fails with
// CHAIN_CYCLE on a repeated id, CHAIN_DEPTH_EXCEEDED past the depth
// limit, and CHAIN_MISSING_PARENT when any document cannot be loaded.
func (r *Resolver) ResolveChain(ctx context.Context, startID string) ([]*covenant.Document, error) {
	var reversed []*covenant.Document
	visited := make(map[string]bool)

	id := startID
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if visited[id] {
			return nil, kerrors.Newf(kerrors.ErrorCodeChainCycle,
				"covenant %s appears twice in its own chain", id)
		}
		if len(reversed) > protocol.MaxChainDepth {
			return nil, kerrors.Newf(kerrors.ErrorCodeChainDepthExceeded,
				"chain exceeds maximum depth of %d", protocol.MaxChainDepth)
		}

		doc, err := r.loader.Load(ctx, id)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.ErrorCodeChainMissingParent,
				"failed to load covenant "+id, err)
		}
		if doc == nil {
			return nil, kerrors.Newf(kerrors.ErrorCodeChainMissingParent,
				"covenant %s not found", id)
		}

		visited[id] = true
		reversed = append(reversed, doc)

		if doc.Chain == nil {
			break
		}
		id = doc.Chain.ParentID
	}

	// Reverse into root-first order
	chain := make([]*covenant.Document, len(reversed))
	for i, doc := range reversed {
		chain[len(reversed)-1-i] = doc
	}
	if len(chain) > 1 {
		r.logger.Printf("resolved chain of %d covenant(s) from %s", len(chain), startID)
	}
	return chain, nil
}

// ValidateChainNarrowing applies the narrowing check to every adjacent
// (parent, child) pair of a root-first chain. Constraint parse failures
// return a CCL syntax error; narrowing violations are reported in the
// result, not as errors.
func ValidateChainNarrowing(chain []*covenant.Document) (*ChainValidationResult, error) {
	result := &ChainValidationResult{Valid: true}

	for i := 0; i+1 < len(chain); i++ {
		parent, child := chain[i], chain[i+1]

		parentDoc, err := ccl.Parse(parent.Constraints)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.ErrorCodeCCLSyntax,
				"parent constraints do not parse: "+parent.ID, err)
		}
		childDoc, err := ccl.Parse(child.Constraints)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.ErrorCodeCCLSyntax,
				"child constraints do not parse: "+child.ID, err)
		}

		narrowing := ccl.ValidateNarrowing(parentDoc, childDoc)
		for _, v := range narrowing.Violations {
			result.Valid = false
			result.Violations = append(result.Violations, ChainViolation{
				ParentID:  parent.ID,
				ChildID:   child.ID,
				Violation: v,
			})
		}
	}
	return result, nil
}

// ComputeEffectiveConstraints left-folds merge over a root-first chain,
// producing the policy a request against the leaf covenant is evaluated
// under.
func ComputeEffectiveConstraints(chain []*covenant.Document) (*ccl.Document, error) {
	if len(chain) == 0 {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "empty chain")
	}

	effective, err := ccl.Parse(chain[0].Constraints)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeCCLSyntax,
			"root constraints do not parse: "+chain[0].ID, err)
	}
	for _, child := range chain[1:] {
		childDoc, err := ccl.Parse(child.Constraints)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.ErrorCodeCCLSyntax,
				"constraints do not parse: "+child.ID, err)
		}
		effective = ccl.Merge(effective, childDoc)
	}
	return effective, nil
}

// VerifyChained performs the full verification of a chained covenant:
// the document itself, every ancestor, and narrowing along the chain.
// The returned chain is root first.
func (r *Resolver) VerifyChained(ctx context.Context, doc *covenant.Document, now time.Time) ([]*covenant.Document, error) {
	if result := covenant.VerifyCovenantAt(doc, now); !result.Valid {
		return nil, kerrors.Newf(kerrors.ErrorCodeCovenantVerify,
			"covenant %s failed verification", doc.ID)
	}

	chain, err := r.ResolveChain(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	// Every ancestor must verify individually
	for _, ancestor := range chain[:len(chain)-1] {
		if result := covenant.VerifyCovenantAt(ancestor, now); !result.Valid {
			return nil, kerrors.Newf(kerrors.ErrorCodeCovenantVerify,
				"ancestor covenant %s failed verification", ancestor.ID)
		}
	}

	validation, err := ValidateChainNarrowing(chain)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		first := validation.Violations[0]
		return nil, kerrors.Newf(kerrors.ErrorCodeChainNarrowing,
			"narrowing violation between %s and %s: %s",
			first.ParentID, first.ChildID, first.Violation.Message)
	}

	return chain, nil
}

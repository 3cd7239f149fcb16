// Copyright 2025 Covenant Protocol
//
// CCL Evaluation
// Default deny; most specific rule wins; deny beats permit at equal
// specificity. Obligations are reported alongside the decision but never
// change it.

package ccl

import (
	"fmt"
	"sort"
	"time"
)

// EvaluationResult is the outcome of evaluating a document against an
// action/resource pair.
type EvaluationResult struct {
	Permitted   bool        `json:"permitted"`
	MatchedRule *Statement  `json:"matchedRule,omitempty"`
	AllMatches  []Statement `json:"allMatches"`
	Reason      string      `json:"reason"`
	Severity    Severity    `json:"severity,omitempty"`
}

// RateLimitResult is the outcome of a rate limit check
type RateLimitResult struct {
	Exceeded  bool       `json:"exceeded"`
	Limit     *Statement `json:"limit,omitempty"`
	Remaining uint32     `json:"remaining"`
}

// Evaluate evaluates a CCL document against an action/resource pair with
// optional request context. A nil context is treated as empty.
func Evaluate(doc *Document, action, resource string, context map[string]interface{}) *EvaluationResult {
	if context == nil {
		context = map[string]interface{}{}
	}

	type candidate struct {
		stmt  Statement
		spec  int
		order int
	}
	var candidates []candidate
	var allMatches []Statement

	collect := func(stmts []Statement) {
		for _, stmt := range stmts {
			if MatchAction(stmt.Action, action) && MatchResource(stmt.Resource, resource) &&
				EvaluateCondition(stmt.Condition, context) {
				candidates = append(candidates, candidate{
					stmt:  stmt,
					spec:  Specificity(stmt.Action, stmt.Resource),
					order: len(candidates),
				})
				allMatches = append(allMatches, stmt)
			}
		}
	}
	collect(doc.Permits)
	collect(doc.Denies)

	// Obligations contribute to AllMatches only
	for _, stmt := range doc.Obligations {
		if MatchAction(stmt.Action, action) && MatchResource(stmt.Resource, resource) &&
			EvaluateCondition(stmt.Condition, context) {
			allMatches = append(allMatches, stmt)
		}
	}

	if len(candidates) == 0 {
		return &EvaluationResult{
			Permitted:  false,
			AllMatches: allMatches,
			Reason:     "No matching rules found; default deny",
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].spec != candidates[j].spec {
			return candidates[i].spec > candidates[j].spec
		}
		// Deny wins at equal specificity
		iDeny := candidates[i].stmt.Kind == KindDeny
		jDeny := candidates[j].stmt.Kind == KindDeny
		if iDeny != jDeny {
			return iDeny
		}
		return candidates[i].order < candidates[j].order
	})

	winner := candidates[0].stmt
	return &EvaluationResult{
		Permitted:   winner.Kind == KindPermit,
		MatchedRule: &winner,
		AllMatches:  allMatches,
		Reason:      fmt.Sprintf("Matched %s rule for %s on %s", winner.Kind, winner.Action, winner.Resource),
		Severity:    winner.Severity,
	}
}

// CheckRateLimit checks an action against the document's limit statements.
// currentCount is the number of occurrences inside the current window,
// which began at periodStart. The most specific matching limit applies;
// with no matching limit the action is unconstrained.
func CheckRateLimit(doc *Document, action string, currentCount uint32, periodStart, now time.Time) *RateLimitResult {
	var matched *Statement
	bestSpec := -1

	for i := range doc.Limits {
		limit := &doc.Limits[i]
		if MatchAction(limit.Action, action) {
			spec := Specificity(limit.Action, "")
			if spec > bestSpec {
				bestSpec = spec
				matched = limit
			}
		}
	}

	if matched == nil {
		return &RateLimitResult{Exceeded: false, Remaining: ^uint32(0)}
	}

	// Window expired: the count resets
	if now.Sub(periodStart) > time.Duration(matched.PeriodSeconds)*time.Second {
		return &RateLimitResult{Exceeded: false, Limit: matched, Remaining: matched.Count}
	}

	remaining := uint32(0)
	if currentCount < matched.Count {
		remaining = matched.Count - currentCount
	}
	return &RateLimitResult{
		Exceeded:  currentCount >= matched.Count,
		Limit:     matched,
		Remaining: remaining,
	}
}

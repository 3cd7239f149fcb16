// Copyright 2025 Covenant Protocol
//
// CCL document algebra: merge and narrowing
// Merge is deny-wins and limit-min; narrowing enforces that a child policy
// never permits more than its parent

package ccl

import "fmt"

// NarrowingViolation describes one way a child document widens its parent
type NarrowingViolation struct {
	Message string     `json:"message"`
	Child   *Statement `json:"child,omitempty"`
	Parent  *Statement `json:"parent,omitempty"`
}

// NarrowingResult is the outcome of validating constraint narrowing
type NarrowingResult struct {
	Valid      bool                 `json:"valid"`
	Violations []NarrowingViolation `json:"violations"`
}

// Merge combines a parent and child document with deny-wins semantics:
// all denies from both (parent first), permits child-first, obligations
// parent-first, and limits reduced per action to the smallest count (the
// child entry replaces on an equal count).
func Merge(parent, child *Document) *Document {
	var statements []Statement

	statements = append(statements, parent.Denies...)
	statements = append(statements, child.Denies...)

	statements = append(statements, child.Permits...)
	statements = append(statements, parent.Permits...)

	statements = append(statements, parent.Obligations...)
	statements = append(statements, child.Obligations...)

	limitsByAction := make(map[string]Statement)
	var limitOrder []string
	for _, limit := range parent.Limits {
		existing, exists := limitsByAction[limit.Action]
		if !exists {
			limitOrder = append(limitOrder, limit.Action)
			limitsByAction[limit.Action] = limit
		} else if limit.Count < existing.Count {
			limitsByAction[limit.Action] = limit
		}
	}
	for _, limit := range child.Limits {
		existing, exists := limitsByAction[limit.Action]
		if !exists {
			limitOrder = append(limitOrder, limit.Action)
			limitsByAction[limit.Action] = limit
		} else if limit.Count <= existing.Count {
			limitsByAction[limit.Action] = limit
		}
	}
	for _, action := range limitOrder {
		statements = append(statements, limitsByAction[action])
	}

	return buildDocument(statements)
}

// ValidateNarrowing validates that the child document only narrows the
// parent: no child permit may overlap a parent deny, and when the parent
// has permits every child permit must be a pattern subset of one of them.
func ValidateNarrowing(parent, child *Document) *NarrowingResult {
	var violations []NarrowingViolation

	for i := range child.Permits {
		childPermit := &child.Permits[i]

		for j := range parent.Denies {
			parentDeny := &parent.Denies[j]
			if PatternsOverlap(childPermit.Action, parentDeny.Action) &&
				PatternsOverlap(childPermit.Resource, parentDeny.Resource) {
				violations = append(violations, NarrowingViolation{
					Message: fmt.Sprintf("Child permits '%s' on '%s' which parent denies",
						childPermit.Action, childPermit.Resource),
					Child:  childPermit,
					Parent: parentDeny,
				})
			}
		}

		if len(parent.Permits) == 0 {
			continue
		}
		withinParent := false
		for j := range parent.Permits {
			parentPermit := &parent.Permits[j]
			if IsSubsetPattern(childPermit.Action, parentPermit.Action, ".") &&
				IsSubsetPattern(childPermit.Resource, parentPermit.Resource, "/") {
				withinParent = true
				break
			}
		}
		if !withinParent {
			violations = append(violations, NarrowingViolation{
				Message: fmt.Sprintf("Child permit '%s' on '%s' is not a subset of any parent permit",
					childPermit.Action, childPermit.Resource),
				Child:  childPermit,
				Parent: &parent.Permits[0],
			})
		}
	}

	return &NarrowingResult{Valid: len(violations) == 0, Violations: violations}
}

// PatternsOverlap reports whether two patterns can match any common
// string. This is a conservative heuristic used only for deny-overlap
// detection: wildcards are substituted with a concrete segment and each
// pattern is tested against the other's concrete form.
func PatternsOverlap(pattern1, pattern2 string) bool {
	if pattern1 == "**" || pattern2 == "**" {
		return true
	}
	if pattern1 == "*" || pattern2 == "*" {
		return true
	}
	if pattern1 == pattern2 {
		return true
	}

	concrete1 := substituteWildcards(pattern1)
	concrete2 := substituteWildcards(pattern2)

	if isResourcePattern(pattern1) || isResourcePattern(pattern2) {
		return MatchResource(pattern1, concrete2) || MatchResource(pattern2, concrete1)
	}
	return MatchAction(pattern1, concrete2) || MatchAction(pattern2, concrete1)
}

func substituteWildcards(pattern string) string {
	out := make([]rune, 0, len(pattern))
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '*' {
			if i+1 < len(runes) && runes[i+1] == '*' {
				i++
			}
			out = append(out, 'x')
			continue
		}
		out = append(out, runes[i])
	}
	return string(out)
}

func isResourcePattern(pattern string) bool {
	for _, r := range pattern {
		if r == '/' {
			return true
		}
	}
	return false
}

// IsSubsetPattern reports whether every string matched by childPattern is
// also matched by parentPattern, for the given segment separator.
func IsSubsetPattern(childPattern, parentPattern, separator string) bool {
	if parentPattern == "**" {
		return true
	}
	if childPattern == "**" {
		return false
	}
	return isSubsetSegments(
		splitNonEmpty(childPattern, separator), 0,
		splitNonEmpty(parentPattern, separator), 0,
	)
}

func splitNonEmpty(pattern, separator string) []string {
	var result []string
	start := 0
	for i := 0; i <= len(pattern); i++ {
		if i == len(pattern) || string(pattern[i]) == separator {
			if i > start {
				result = append(result, pattern[start:i])
			}
			start = i + 1
		}
	}
	return result
}

func isSubsetSegments(child []string, ci int, parent []string, pi int) bool {
	if ci == len(child) && pi == len(parent) {
		return true
	}
	if pi == len(parent) {
		return false
	}
	if ci == len(child) {
		// Remaining parent segments must all be ** (matching zero segments)
		for i := pi; i < len(parent); i++ {
			if parent[i] != "**" {
				return false
			}
		}
		return true
	}

	pSeg := parent[pi]
	cSeg := child[ci]

	if pSeg == "**" {
		if isSubsetSegments(child, ci, parent, pi+1) {
			return true
		}
		return isSubsetSegments(child, ci+1, parent, pi)
	}

	if cSeg == "**" {
		return false
	}

	if pSeg == "*" {
		return isSubsetSegments(child, ci+1, parent, pi+1)
	}

	if cSeg == "*" {
		// A single-segment wildcard is never a subset of a literal
		return false
	}

	if cSeg != pSeg {
		return false
	}
	return isSubsetSegments(child, ci+1, parent, pi+1)
}

// Copyright 2025 Covenant Protocol
//
// Pattern matching and specificity scoring
// Actions are dot-separated, resources slash-separated. * matches exactly
// one segment, ** matches zero or more.

package ccl

import "strings"

// MatchAction tests whether a concrete action matches a dot-separated
// pattern.
func MatchAction(pattern, action string) bool {
	return matchSegments(strings.Split(pattern, "."), 0, strings.Split(action, "."), 0)
}

// MatchResource tests whether a concrete resource matches a slash-separated
// pattern. Leading and trailing slashes are stripped before matching; an
// empty pattern matches only the empty resource.
func MatchResource(pattern, resource string) bool {
	normPattern := strings.Trim(pattern, "/")
	normResource := strings.Trim(resource, "/")

	if normPattern == "" && normResource == "" {
		return true
	}
	if normPattern == "**" {
		return true
	}
	if normPattern == "*" {
		return normResource != "" && !strings.Contains(normResource, "/")
	}

	return matchSegments(strings.Split(normPattern, "/"), 0, strings.Split(normResource, "/"), 0)
}

// matchSegments matches a pattern segment list against a target segment
// list. ** backtracks: first try consuming zero segments, then consume one
// target segment and retry the same **.
func matchSegments(pattern []string, pi int, target []string, ti int) bool {
	for pi < len(pattern) && ti < len(target) {
		p := pattern[pi]

		if p == "**" {
			if matchSegments(pattern, pi+1, target, ti) {
				return true
			}
			return matchSegments(pattern, pi, target, ti+1)
		}

		if p == "*" {
			pi++
			ti++
			continue
		}

		if p != target[ti] {
			return false
		}
		pi++
		ti++
	}

	// Trailing ** consumes the rest
	for pi < len(pattern) && pattern[pi] == "**" {
		pi++
	}

	return pi == len(pattern) && ti == len(target)
}

// Specificity scores an action/resource pattern pair for conflict
// resolution: literal segments score 2, * scores 1, ** scores 0.
func Specificity(actionPattern, resourcePattern string) int {
	score := 0
	for _, part := range strings.Split(actionPattern, ".") {
		score += segmentScore(part)
	}
	normResource := strings.Trim(resourcePattern, "/")
	if normResource != "" {
		for _, part := range strings.Split(normResource, "/") {
			score += segmentScore(part)
		}
	}
	return score
}

func segmentScore(seg string) int {
	switch seg {
	case "**":
		return 0
	case "*":
		return 1
	default:
		return 2
	}
}

// Copyright 2025 Covenant Protocol
//
// Negotiation Sessions
// Pure functions over immutable session values. Every transition returns
// a new session; agreed and failed are terminal.

package negotiation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
)

// SessionStatus is the negotiation state
type SessionStatus string

const (
	StatusProposing  SessionStatus = "proposing"
	StatusCountering SessionStatus = "countering"
	StatusAgreed     SessionStatus = "agreed"
	StatusFailed     SessionStatus = "failed"
)

// Decision is the outcome of evaluating a proposal against a policy
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionReject  Decision = "reject"
	DecisionCounter Decision = "counter"
)

// Proposal is one side's proposed constraint set
type Proposal struct {
	From        string   `json:"from"`
	Constraints []string `json:"constraints"`
	Note        string   `json:"note,omitempty"`
	ProposedAt  string   `json:"proposedAt"`
}

// Policy drives automatic proposal evaluation
type Policy struct {
	Required     []string `json:"required"`
	Preferred    []string `json:"preferred,omitempty"`
	Dealbreakers []string `json:"dealbreakers,omitempty"`
	MaxRounds    int      `json:"maxRounds"`
	TimeoutMs    int64    `json:"timeoutMs"`
}

// Session is an immutable negotiation session value
type Session struct {
	ID                   uuid.UUID     `json:"id"`
	Initiator            string        `json:"initiator"`
	Responder            string        `json:"responder"`
	Status               SessionStatus `json:"status"`
	Proposals            []Proposal    `json:"proposals"`
	MaxRounds            int           `json:"maxRounds"`
	TimeoutMs            int64         `json:"timeoutMs"`
	CreatedAt            string        `json:"createdAt"`
	ResultingConstraints []string      `json:"resultingConstraints,omitempty"`
	FailureReason        string        `json:"failureReason,omitempty"`
}

const (
	defaultMaxRounds = 10
	defaultTimeoutMs = 5 * 60 * 1000
)

// Initiate creates a new session with one initial proposal assembled from
// the policy's required and preferred constraints.
func Initiate(initiator, responder string, policy *Policy) (*Session, error) {
	if initiator == "" || responder == "" {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "initiator and responder are required")
	}
	if policy == nil {
		return nil, kerrors.New(kerrors.ErrorCodeInvalidInput, "negotiation policy is required")
	}

	maxRounds := policy.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	timeoutMs := policy.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}

	initial := Proposal{
		From:        initiator,
		Constraints: dedupe(append(append([]string{}, policy.Required...), policy.Preferred...)),
		ProposedAt:  crypto.Timestamp(),
	}

	return &Session{
		ID:        uuid.New(),
		Initiator: initiator,
		Responder: responder,
		Status:    StatusProposing,
		Proposals: []Proposal{initial},
		MaxRounds: maxRounds,
		TimeoutMs: timeoutMs,
		CreatedAt: crypto.Timestamp(),
	}, nil
}

// terminalGuard rejects transitions on agreed or failed sessions
func terminalGuard(s *Session) error {
	if s.Status == StatusAgreed || s.Status == StatusFailed {
		return kerrors.Newf(kerrors.ErrorCodeTerminalState,
			"session %s is %s and cannot change", s.ID, s.Status)
	}
	return nil
}

// clone copies the session with a fresh proposal slice
func clone(s *Session) *Session {
	next := *s
	next.Proposals = append([]Proposal{}, s.Proposals...)
	next.ResultingConstraints = append([]string{}, s.ResultingConstraints...)
	return &next
}

// Propose appends a proposal without changing the status
func Propose(s *Session, p Proposal) (*Session, error) {
	if err := terminalGuard(s); err != nil {
		return nil, err
	}
	if p.ProposedAt == "" {
		p.ProposedAt = crypto.Timestamp()
	}
	next := clone(s)
	next.Proposals = append(next.Proposals, p)
	return next, nil
}

// Counter appends a counter-proposal and moves the session to countering.
// It fails once the round budget is spent.
func Counter(s *Session, p Proposal) (*Session, error) {
	if err := terminalGuard(s); err != nil {
		return nil, err
	}
	if len(s.Proposals) >= s.MaxRounds {
		return nil, kerrors.Newf(kerrors.ErrorCodeInvalidInput,
			"negotiation round limit of %d reached", s.MaxRounds)
	}
	if p.ProposedAt == "" {
		p.ProposedAt = crypto.Timestamp()
	}
	next := clone(s)
	next.Status = StatusCountering
	next.Proposals = append(next.Proposals, p)
	return next, nil
}

// Agree finalizes the session. The resulting constraints are the deny-wins
// union of deny-prefixed constraints from the last two proposals plus the
// intersection of the remaining constraints between them.
func Agree(s *Session) (*Session, error) {
	if err := terminalGuard(s); err != nil {
		return nil, err
	}

	next := clone(s)
	next.Status = StatusAgreed

	switch len(s.Proposals) {
	case 0:
		next.ResultingConstraints = []string{}
	case 1:
		next.ResultingConstraints = append([]string{}, s.Proposals[0].Constraints...)
	default:
		a := s.Proposals[len(s.Proposals)-2].Constraints
		b := s.Proposals[len(s.Proposals)-1].Constraints
		next.ResultingConstraints = settle(a, b)
	}
	return next, nil
}

// Fail terminates the session with an optional reason
func Fail(s *Session, reason string) (*Session, error) {
	if err := terminalGuard(s); err != nil {
		return nil, err
	}
	next := clone(s)
	next.Status = StatusFailed
	next.FailureReason = reason
	return next, nil
}

// IsExpired reports whether the session's timeout has elapsed
func IsExpired(s *Session, now time.Time) bool {
	created, err := crypto.ParseTimestamp(s.CreatedAt)
	if err != nil {
		return true
	}
	return now.Sub(created) > time.Duration(s.TimeoutMs)*time.Millisecond
}

// RoundCount returns the number of proposals exchanged so far
func RoundCount(s *Session) int {
	return len(s.Proposals)
}

// EvaluateProposal decides how a policy holder responds to a proposal:
// reject when any dealbreaker matches, accept when every required
// constraint is present, counter otherwise.
func EvaluateProposal(p *Proposal, policy *Policy) Decision {
	for _, dealbreaker := range policy.Dealbreakers {
		for _, c := range p.Constraints {
			if constraintMatches(c, dealbreaker) {
				return DecisionReject
			}
		}
	}
	for _, required := range policy.Required {
		found := false
		for _, c := range p.Constraints {
			if constraintMatches(c, required) {
				found = true
				break
			}
		}
		if !found {
			return DecisionCounter
		}
	}
	return DecisionAccept
}

// constraintMatches supports exact equality plus type-aware matching on
// the "type:resource" form: identical types match when either side's
// resource is a prefix of the other.
func constraintMatches(a, b string) bool {
	if a == b {
		return true
	}
	aType, aRes, aOK := splitConstraint(a)
	bType, bRes, bOK := splitConstraint(b)
	if !aOK || !bOK || aType != bType {
		return false
	}
	return strings.HasPrefix(aRes, bRes) || strings.HasPrefix(bRes, aRes)
}

func splitConstraint(c string) (string, string, bool) {
	idx := strings.Index(c, ":")
	if idx <= 0 {
		return "", "", false
	}
	return c[:idx], c[idx+1:], true
}

// settle computes the agreement constraint set from the last two
// proposals: denies union, everything else intersected.
func settle(a, b []string) []string {
	isDeny := func(c string) bool { return strings.HasPrefix(c, "deny:") }

	var out []string
	seen := make(map[string]bool)
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	for _, c := range a {
		if isDeny(c) {
			add(c)
		}
	}
	for _, c := range b {
		if isDeny(c) {
			add(c)
		}
	}

	inB := make(map[string]bool, len(b))
	for _, c := range b {
		inB[c] = true
	}
	for _, c := range a {
		if !isDeny(c) && inB[c] {
			add(c)
		}
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}

// Copyright 2025 Covenant Protocol
//
// Trust Graph
// Nodes keyed by identity hash with adjacency lists of identity hashes;
// no raw cross-references are stored, so cyclic dependency graphs are
// safe. The graph is the kernel's single mutable owner: all node state
// lives behind one mutex, and breach propagations are serialized.

package trust

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/covenant-protocol/trust-kernel/pkg/ccl"
	"github.com/covenant-protocol/trust-kernel/pkg/crypto"
	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
	"github.com/covenant-protocol/trust-kernel/pkg/metrics"
)

// Status is a node's trust status. StatusUnknown denotes absence from the
// graph and is never applied by propagation.
type Status string

const (
	StatusRevoked    Status = "revoked"
	StatusRestricted Status = "restricted"
	StatusDegraded   Status = "degraded"
	StatusTrusted    Status = "trusted"
	StatusUnknown    Status = "unknown"
)

// statusRank orders statuses worst (0) to best
func statusRank(s Status) int {
	switch s {
	case StatusRevoked:
		return 0
	case StatusRestricted:
		return 1
	case StatusDegraded:
		return 2
	case StatusTrusted:
		return 3
	default:
		return 4
	}
}

// WorseOf returns the worse of two statuses
func WorseOf(a, b Status) Status {
	if statusRank(a) <= statusRank(b) {
		return a
	}
	return b
}

// mapSeverity maps breach severity to the status applied to the violator.
// A low-severity breach is recorded but does not degrade status.
func mapSeverity(sev ccl.Severity) Status {
	switch sev {
	case ccl.SeverityCritical:
		return StatusRevoked
	case ccl.SeverityHigh:
		return StatusRestricted
	case ccl.SeverityMedium:
		return StatusDegraded
	default:
		return StatusTrusted
	}
}

// degradeStatus weakens a status by one hop of propagation. The empty
// return means propagation halts along this branch.
func degradeStatus(s Status) Status {
	switch s {
	case StatusRevoked:
		return StatusRestricted
	case StatusRestricted:
		return StatusDegraded
	default:
		return ""
	}
}

// Node is a trust graph node. Dependents are nodes that rely on this one;
// dependencies are nodes this one relies on.
type Node struct {
	IdentityHash string   `json:"identityHash"`
	Status       Status   `json:"status"`
	BreachCount  uint32   `json:"breachCount"`
	LastBreachAt string   `json:"lastBreachAt,omitempty"`
	Dependents   []string `json:"dependents"`
	Dependencies []string `json:"dependencies"`
}

// BreachEvent describes one node update during a propagation. Events are
// delivered to listeners in BFS order, depth 0 first.
type BreachEvent struct {
	ID             uuid.UUID `json:"id"`
	AttestationID  string    `json:"attestationId"`
	CovenantID     string    `json:"covenantId"`
	IdentityHash   string    `json:"identityHash"`
	PreviousStatus Status    `json:"previousStatus"`
	NewStatus      Status    `json:"newStatus"`
	Depth          int       `json:"depth"`
	Timestamp      string    `json:"timestamp"`
}

// BreachListener receives breach events
type BreachListener func(BreachEvent)

// GraphExport is a defensive snapshot of the graph
type GraphExport struct {
	Nodes []Node      `json:"nodes"`
	Edges [][2]string `json:"edges"` // parent -> dependent
}

// Graph is the mutable trust graph
type Graph struct {
	mu     sync.RWMutex
	nodes  map[string]*Node
	logger *log.Logger

	listenerMu sync.Mutex
	listeners  map[int]BreachListener
	nextSub    int

	// propMu serializes whole propagations, including listener fanout
	propMu sync.Mutex

	metrics *metrics.Metrics
}

// NewGraph creates an empty trust graph. Both logger and metrics may be
// nil.
func NewGraph(logger *log.Logger, m *metrics.Metrics) *Graph {
	if logger == nil {
		logger = log.New(log.Writer(), "[TrustGraph] ", log.LstdFlags)
	}
	return &Graph{
		nodes:     make(map[string]*Node),
		logger:    logger,
		listeners: make(map[int]BreachListener),
		metrics:   m,
	}
}

// RegisterDependency records that child depends on parent. Both nodes are
// created as trusted if absent; duplicate edges are ignored.
func (g *Graph) RegisterDependency(parent, child string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.ensureNode(parent)
	c := g.ensureNode(child)

	if !contains(p.Dependents, child) {
		p.Dependents = append(p.Dependents, child)
	}
	if !contains(c.Dependencies, parent) {
		c.Dependencies = append(c.Dependencies, parent)
	}
}

// GetStatus returns the node's status, or StatusUnknown if absent
func (g *Graph) GetStatus(id string) Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n, ok := g.nodes[id]; ok {
		return n.Status
	}
	return StatusUnknown
}

// IsTrusted reports whether the node exists and is fully trusted
func (g *Graph) IsTrusted(id string) bool {
	return g.GetStatus(id) == StatusTrusted
}

// GetDependents returns all transitive dependents of a node in BFS order
func (g *Graph) GetDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	visited := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		n, ok := g.nodes[current]
		if !ok {
			continue
		}
		for _, dep := range n.Dependents {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	return out
}

// GetDependencies returns a node's direct dependencies
func (g *Graph) GetDependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return append([]string{}, n.Dependencies...)
}

// GetNode returns a defensive copy of a node, or nil if absent
func (g *Graph) GetNode(id string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	cp := *n
	cp.Dependents = append([]string{}, n.Dependents...)
	cp.Dependencies = append([]string{}, n.Dependencies...)
	return &cp
}

// ResetStatus overwrites a node's status, creating the node if needed.
// Operator escape hatch: propagation itself never improves a status.
func (g *Graph) ResetStatus(id string, status Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.ensureNode(id)
	n.Status = status
}

// OnBreach registers a breach listener and returns its subscription id
func (g *Graph) OnBreach(fn BreachListener) int {
	g.listenerMu.Lock()
	defer g.listenerMu.Unlock()
	g.nextSub++
	g.listeners[g.nextSub] = fn
	return g.nextSub
}

// OffBreach removes a breach listener
func (g *Graph) OffBreach(id int) {
	g.listenerMu.Lock()
	defer g.listenerMu.Unlock()
	delete(g.listeners, id)
}

// Export returns a snapshot of all nodes and edges
func (g *Graph) Export() *GraphExport {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := &GraphExport{}
	for _, n := range g.nodes {
		cp := *n
		cp.Dependents = append([]string{}, n.Dependents...)
		cp.Dependencies = append([]string{}, n.Dependencies...)
		out.Nodes = append(out.Nodes, cp)
		for _, dep := range n.Dependents {
			out.Edges = append(out.Edges, [2]string{n.IdentityHash, dep})
		}
	}
	return out
}

// ensureNode returns the node for id, creating a trusted node if absent.
// Caller holds g.mu.
func (g *Graph) ensureNode(id string) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{IdentityHash: id, Status: StatusTrusted}
	g.nodes[id] = n
	return n
}

// kerrorsInvalidAttestation builds the rejection error for ProcessBreach
func kerrorsInvalidAttestation(check, message string) error {
	return kerrors.Newf(kerrors.ErrorCodeInvalidBreachAttestation,
		"breach attestation rejected: check %s failed: %s", check, message)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// queueEntry is one pending propagation visit
type queueEntry struct {
	hash          string
	parentApplied Status
	depth         int
}

// ProcessBreach verifies the attestation, applies the breach to the
// violator, and propagates degradation breadth-first across dependents.
// It returns the events in emission order. The attestation is rejected
// with TRUST_INVALID_BREACH_ATTESTATION before any state is mutated.
func (g *Graph) ProcessBreach(att *Attestation) ([]BreachEvent, error) {
	verification := VerifyAttestation(att)
	if !verification.Valid {
		for _, c := range verification.Checks {
			if !c.Passed {
				return nil, kerrorsInvalidAttestation(c.Name, c.Message)
			}
		}
		return nil, kerrorsInvalidAttestation("unknown", "attestation invalid")
	}

	g.propMu.Lock()
	defer g.propMu.Unlock()

	var events []BreachEvent
	emit := func(hash string, prev, next Status, depth int) {
		events = append(events, BreachEvent{
			ID:             uuid.New(),
			AttestationID:  att.ID,
			CovenantID:     att.CovenantID,
			IdentityHash:   hash,
			PreviousStatus: prev,
			NewStatus:      next,
			Depth:          depth,
			Timestamp:      crypto.Timestamp(),
		})
	}

	g.mu.Lock()

	violator := g.ensureNode(att.ViolatorIdentityHash)
	applied := mapSeverity(att.Severity)
	prev := violator.Status
	violator.Status = WorseOf(violator.Status, applied)
	violator.BreachCount++
	violator.LastBreachAt = att.ReportedAt
	emit(violator.IdentityHash, prev, violator.Status, 0)

	visited := map[string]bool{violator.IdentityHash: true}
	var queue []queueEntry
	for _, dep := range violator.Dependents {
		queue = append(queue, queueEntry{hash: dep, parentApplied: violator.Status, depth: 1})
	}

	maxDepth := 0
	for len(queue) > 0 {
		entry := queue[0]
		queue = queue[1:]

		if visited[entry.hash] {
			continue
		}
		visited[entry.hash] = true

		degraded := degradeStatus(entry.parentApplied)
		if degraded == "" {
			// Degradation bottomed out; this branch stops propagating
			continue
		}

		node, ok := g.nodes[entry.hash]
		if !ok {
			continue
		}

		prev := node.Status
		node.Status = WorseOf(node.Status, degraded)
		emit(node.IdentityHash, prev, node.Status, entry.depth)
		if entry.depth > maxDepth {
			maxDepth = entry.depth
		}

		for _, dep := range node.Dependents {
			if !visited[dep] {
				queue = append(queue, queueEntry{hash: dep, parentApplied: node.Status, depth: entry.depth + 1})
			}
		}
	}

	g.mu.Unlock()

	g.metrics.ObserveBreach(string(att.Severity), maxDepth)
	g.logger.Printf("processed breach %s against %s: %d node(s) affected",
		att.ID[:8], att.ViolatorIdentityHash[:8], len(events))

	// All updates are committed; deliver events in BFS order
	g.listenerMu.Lock()
	listeners := make([]BreachListener, 0, len(g.listeners))
	for _, fn := range g.listeners {
		listeners = append(listeners, fn)
	}
	g.listenerMu.Unlock()

	for _, fn := range listeners {
		for _, ev := range events {
			fn(ev)
		}
	}

	return events, nil
}

// Copyright 2025 Covenant Protocol
//
// Anchor Scheduler - manages on-cadence and on-demand anchoring
// On-cadence requests batch up and flush on an interval; on-demand
// requests go straight to the sink.

package anchor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/covenant-protocol/trust-kernel/pkg/merkle"
)

// Class selects the scheduling behavior for a request
type Class string

const (
	ClassOnCadence Class = "on_cadence"
	ClassOnDemand  Class = "on_demand"
)

// Request is a pending anchoring request
type Request struct {
	RequestID   uuid.UUID `json:"request_id"`
	Record      Record    `json:"record"`
	Class       Class     `json:"class"`
	RequestedAt time.Time `json:"requested_at"`
}

// SchedulerConfig configures the scheduler
type SchedulerConfig struct {
	Sink          Sink
	BatchInterval time.Duration
	Logger        *log.Logger
}

// Scheduler batches anchor requests toward a sink
type Scheduler struct {
	sink     Sink
	interval time.Duration
	logger   *log.Logger

	mu             sync.Mutex
	pending        []Request
	lastCommitment *BatchCommitment
	lastProofs     map[string]*merkle.InclusionProof

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler. Start must be called before requests
// flush.
func NewScheduler(cfg *SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[AnchorScheduler] ", log.LstdFlags)
	}
	interval := cfg.BatchInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		sink:     cfg.Sink,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the flush loop
func (s *Scheduler) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.flush(context.Background())
				return
			case <-ticker.C:
				s.flush(ctx)
			}
		}
	}()
}

// Stop flushes remaining requests and stops the loop
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Submit enqueues or immediately anchors a record depending on class
func (s *Scheduler) Submit(ctx context.Context, rec Record, class Class) (uuid.UUID, error) {
	req := Request{
		RequestID:   uuid.New(),
		Record:      rec,
		Class:       class,
		RequestedAt: time.Now(),
	}

	if class == ClassOnDemand {
		if err := s.sink.Anchor(ctx, rec); err != nil {
			return req.RequestID, err
		}
		return req.RequestID, nil
	}

	s.mu.Lock()
	s.pending = append(s.pending, req)
	s.mu.Unlock()
	return req.RequestID, nil
}

// PendingCount returns the number of queued on-cadence requests
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// flush commits the queued batch as a single Merkle root. Anchoring is
// best effort: a failed commitment is logged and the batch is dropped.
func (s *Scheduler) flush(ctx context.Context) {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	leaves := make([][]byte, len(batch))
	for i, req := range batch {
		leaves[i] = merkle.HashLeaf([]byte(req.Record.CovenantID + ":" + req.Record.ContentHash))
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		s.logger.Printf("failed to build batch tree: %v", err)
		return
	}

	commitment := BatchCommitment{
		Root:        tree.RootHex(),
		Size:        len(batch),
		CommittedAt: time.Now(),
	}
	if err := s.sink.AnchorBatch(ctx, commitment); err != nil {
		s.logger.Printf("batch commitment failed: %v", err)
		return
	}

	proofs := make(map[string]*merkle.InclusionProof, len(batch))
	for i, req := range batch {
		proof, perr := tree.GenerateProof(i)
		if perr != nil {
			s.logger.Printf("proof generation for %s failed: %v", req.Record.CovenantID, perr)
			continue
		}
		proofs[req.Record.CovenantID] = proof
	}

	s.mu.Lock()
	s.lastCommitment = &commitment
	s.lastProofs = proofs
	s.mu.Unlock()

	s.logger.Printf("committed batch of %d anchor request(s) under root %s", len(batch), commitment.Root[:8])
}

// LastCommitment returns the most recent batch commitment, or nil
func (s *Scheduler) LastCommitment() *BatchCommitment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCommitment
}

// InclusionProof returns the inclusion proof for a covenant in the most
// recent batch, or nil if it was not part of that batch.
func (s *Scheduler) InclusionProof(covenantID string) *merkle.InclusionProof {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastProofs[covenantID]
}

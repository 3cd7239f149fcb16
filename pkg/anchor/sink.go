// Copyright 2025 Covenant Protocol
//
// Anchoring Sink
// Anchoring is a write-only side channel: covenant ids and content
// hashes are published to an external ledger for tamper-evident audit.
// Sink failures never affect kernel decisions.

package anchor

import (
	"context"
	"time"
)

// Record is one anchoring payload: the covenant id and the hash of its
// canonical form at anchoring time.
type Record struct {
	CovenantID  string    `json:"covenant_id"`
	ContentHash string    `json:"content_hash"`
	AnchoredAt  time.Time `json:"anchored_at"`
}

// BatchCommitment is the Merkle commitment over one on-cadence batch.
// Anchoring the root commits every record in the batch; inclusion proofs
// are served off-chain.
type BatchCommitment struct {
	Root        string    `json:"root"`
	Size        int       `json:"size"`
	CommittedAt time.Time `json:"committed_at"`
}

// Sink is the write-only anchoring interface the kernel consumes
type Sink interface {
	// Anchor publishes a single record. Implementations must be safe to
	// call concurrently.
	Anchor(ctx context.Context, rec Record) error
	// AnchorBatch publishes a batch commitment root
	AnchorBatch(ctx context.Context, commitment BatchCommitment) error
	// Close releases underlying resources
	Close() error
}

// NoopSink discards all records. Used when anchoring is disabled.
type NoopSink struct{}

// Anchor implements Sink
func (NoopSink) Anchor(context.Context, Record) error { return nil }

// AnchorBatch implements Sink
func (NoopSink) AnchorBatch(context.Context, BatchCommitment) error { return nil }

// Close implements Sink
func (NoopSink) Close() error { return nil }

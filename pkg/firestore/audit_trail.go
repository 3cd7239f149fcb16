// Copyright 2025 Covenant Protocol
//
// Audit Trail Service
// Records covenant lifecycle and breach events for compliance and
// forensics. Writes are best effort: a failed audit write is logged and
// never blocks a kernel decision.

package firestore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/covenant-protocol/trust-kernel/pkg/store"
	"github.com/covenant-protocol/trust-kernel/pkg/trust"
)

const auditCollection = "audit_trail"

// AuditEntry is one audit trail record
type AuditEntry struct {
	EntryID      string                 `firestore:"entryId"`
	NodeID       string                 `firestore:"nodeId"`
	Phase        string                 `firestore:"phase"`
	Action       string                 `firestore:"action"`
	CovenantID   string                 `firestore:"covenantId,omitempty"`
	IdentityHash string                 `firestore:"identityHash,omitempty"`
	Details      map[string]interface{} `firestore:"details,omitempty"`
	RecordedAt   time.Time              `firestore:"recordedAt"`
}

// AuditTrailService writes kernel events to the audit collection
type AuditTrailService struct {
	client *Client
	nodeID string
	logger *log.Logger
}

// AuditTrailConfig holds configuration for the audit trail service
type AuditTrailConfig struct {
	Client *Client
	NodeID string
	Logger *log.Logger
}

// NewAuditTrailService creates a new audit trail service
func NewAuditTrailService(cfg *AuditTrailConfig) (*AuditTrailService, error) {
	if cfg == nil || cfg.Client == nil {
		return nil, fmt.Errorf("Firestore client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[AuditTrail] ", log.LstdFlags)
	}
	return &AuditTrailService{
		client: cfg.Client,
		nodeID: cfg.NodeID,
		logger: logger,
	}, nil
}

// IsEnabled reports whether audit writes are performed
func (a *AuditTrailService) IsEnabled() bool {
	return a.client.IsEnabled()
}

// RecordCovenantStored records a covenant entering the store
func (a *AuditTrailService) RecordCovenantStored(ctx context.Context, covenantID, issuerID, beneficiaryID string) error {
	return a.createEntry(ctx, AuditEntry{
		Phase:      "stored",
		Action:     "Covenant stored",
		CovenantID: covenantID,
		Details: map[string]interface{}{
			"issuerId":      issuerID,
			"beneficiaryId": beneficiaryID,
		},
	})
}

// RecordCovenantDeleted records a covenant leaving the store
func (a *AuditTrailService) RecordCovenantDeleted(ctx context.Context, covenantID string) error {
	return a.createEntry(ctx, AuditEntry{
		Phase:      "deleted",
		Action:     "Covenant deleted",
		CovenantID: covenantID,
	})
}

// RecordBreach records a processed breach event
func (a *AuditTrailService) RecordBreach(ctx context.Context, ev trust.BreachEvent) error {
	return a.createEntry(ctx, AuditEntry{
		Phase:        "breach",
		Action:       fmt.Sprintf("Trust status %s -> %s at depth %d", ev.PreviousStatus, ev.NewStatus, ev.Depth),
		CovenantID:   ev.CovenantID,
		IdentityHash: ev.IdentityHash,
		Details: map[string]interface{}{
			"attestationId":  ev.AttestationID,
			"previousStatus": string(ev.PreviousStatus),
			"newStatus":      string(ev.NewStatus),
			"depth":          ev.Depth,
		},
	})
}

// AttachStore forwards covenant store events into the audit trail and
// returns the subscription id.
func (a *AuditTrailService) AttachStore(ctx context.Context, s store.Store) int {
	return s.OnEvent(func(ev store.Event) {
		var err error
		switch ev.Type {
		case store.EventPut:
			err = a.RecordCovenantStored(ctx, ev.ID, ev.Doc.Issuer.ID, ev.Doc.Beneficiary.ID)
		case store.EventDelete:
			err = a.RecordCovenantDeleted(ctx, ev.ID)
		}
		if err != nil {
			a.logger.Printf("audit write for %s event failed: %v", ev.Type, err)
		}
	})
}

// AttachGraph forwards breach events into the audit trail and returns
// the subscription id.
func (a *AuditTrailService) AttachGraph(ctx context.Context, g *trust.Graph) int {
	return g.OnBreach(func(ev trust.BreachEvent) {
		if err := a.RecordBreach(ctx, ev); err != nil {
			a.logger.Printf("audit write for breach event failed: %v", err)
		}
	})
}

func (a *AuditTrailService) createEntry(ctx context.Context, entry AuditEntry) error {
	if !a.IsEnabled() {
		return nil
	}

	entry.EntryID = uuid.New().String()
	entry.NodeID = a.nodeID
	entry.RecordedAt = time.Now().UTC()

	col := a.client.Collection(auditCollection)
	if col == nil {
		return nil
	}
	if _, err := col.Doc(entry.EntryID).Set(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

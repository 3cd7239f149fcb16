// Copyright 2025 Covenant Protocol
//
// Covenant Store Interface
// The kernel consumes a simple keyed document store. Events fire
// synchronously inside the mutating call, so a listener observes the
// store state after the mutation committed.

package store

import "github.com/covenant-protocol/trust-kernel/pkg/covenant"

// EventType discriminates store events
type EventType string

const (
	EventPut    EventType = "put"
	EventDelete EventType = "delete"
)

// Event describes a completed store mutation
type Event struct {
	Type EventType
	ID   string
	Doc  *covenant.Document // nil for delete events
}

// Listener receives store events
type Listener func(Event)

// Filter narrows List results. Zero-value fields do not filter.
type Filter struct {
	IssuerID      string
	BeneficiaryID string
}

// Matches reports whether the document passes the filter
func (f *Filter) Matches(doc *covenant.Document) bool {
	if f == nil {
		return true
	}
	if f.IssuerID != "" && doc.Issuer.ID != f.IssuerID {
		return false
	}
	if f.BeneficiaryID != "" && doc.Beneficiary.ID != f.BeneficiaryID {
		return false
	}
	return true
}

// Store is the covenant document store interface the kernel consumes.
// Get returns nil with no error for an absent id.
type Store interface {
	Get(id string) (*covenant.Document, error)
	Put(doc *covenant.Document) error
	Delete(id string) (bool, error)
	List(filter *Filter) ([]*covenant.Document, error)
	Has(id string) (bool, error)
	Count() (uint64, error)
	Clear() error

	// OnEvent registers a listener and returns a subscription id for
	// OffEvent.
	OnEvent(fn Listener) int
	OffEvent(id int)
}

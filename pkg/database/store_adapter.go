// Copyright 2025 Covenant Protocol
//
// Postgres store adapter
// Bridges the covenant repository onto the store.Store contract so the
// node can run against Postgres. Events are in-process, fired
// synchronously after each committed mutation.

package database

import (
	"context"
	"errors"
	"sync"

	"github.com/covenant-protocol/trust-kernel/pkg/covenant"
	"github.com/covenant-protocol/trust-kernel/pkg/store"
)

// PostgresStore implements store.Store over a CovenantRepository
type PostgresStore struct {
	repo *CovenantRepository
	ctx  context.Context

	mu        sync.Mutex
	listeners map[int]store.Listener
	nextSub   int
}

// NewPostgresStore creates a store over the repository. The context is
// used for all repository calls.
func NewPostgresStore(ctx context.Context, repo *CovenantRepository) *PostgresStore {
	return &PostgresStore{
		repo:      repo,
		ctx:       ctx,
		listeners: make(map[int]store.Listener),
	}
}

// Get implements store.Store. An absent id returns nil, nil.
func (s *PostgresStore) Get(id string) (*covenant.Document, error) {
	doc, err := s.repo.Get(s.ctx, id)
	if errors.Is(err, ErrCovenantNotFound) {
		return nil, nil
	}
	return doc, err
}

// Put implements store.Store
func (s *PostgresStore) Put(doc *covenant.Document) error {
	if err := s.repo.Save(s.ctx, doc); err != nil {
		return err
	}
	s.emit(store.Event{Type: store.EventPut, ID: doc.ID, Doc: doc})
	return nil
}

// Delete implements store.Store
func (s *PostgresStore) Delete(id string) (bool, error) {
	existed, err := s.repo.Delete(s.ctx, id)
	if err != nil {
		return false, err
	}
	if existed {
		s.emit(store.Event{Type: store.EventDelete, ID: id})
	}
	return existed, nil
}

// List implements store.Store. Repository indexes cover issuer and
// beneficiary filters; a nil or empty filter lists every row in creation
// order.
func (s *PostgresStore) List(filter *store.Filter) ([]*covenant.Document, error) {
	switch {
	case filter != nil && filter.IssuerID != "":
		docs, err := s.repo.ListByIssuer(s.ctx, filter.IssuerID)
		if err != nil {
			return nil, err
		}
		return filterDocs(docs, filter), nil
	case filter != nil && filter.BeneficiaryID != "":
		docs, err := s.repo.ListByBeneficiary(s.ctx, filter.BeneficiaryID)
		if err != nil {
			return nil, err
		}
		return filterDocs(docs, filter), nil
	default:
		return s.repo.list(s.ctx, `SELECT document FROM covenants ORDER BY created_at`)
	}
}

// Has implements store.Store
func (s *PostgresStore) Has(id string) (bool, error) {
	doc, err := s.Get(id)
	return doc != nil, err
}

// Count implements store.Store
func (s *PostgresStore) Count() (uint64, error) {
	return s.repo.Count(s.ctx)
}

// Clear implements store.Store
func (s *PostgresStore) Clear() error {
	_, err := s.repo.client.ExecContext(s.ctx, `DELETE FROM covenants`)
	return err
}

// OnEvent implements store.Store
func (s *PostgresStore) OnEvent(fn store.Listener) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	s.listeners[s.nextSub] = fn
	return s.nextSub
}

// OffEvent implements store.Store
func (s *PostgresStore) OffEvent(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

func (s *PostgresStore) emit(ev store.Event) {
	s.mu.Lock()
	listeners := make([]store.Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

func filterDocs(docs []*covenant.Document, filter *store.Filter) []*covenant.Document {
	out := docs[:0]
	for _, doc := range docs {
		if filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	return out
}

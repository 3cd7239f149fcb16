// Copyright 2025 Covenant Protocol
//
// In-memory covenant store
// Reference implementation of the Store interface. Safe for concurrent
// use; events are delivered synchronously while the mutation lock is not
// held.

package store

import (
	"sync"

	"github.com/covenant-protocol/trust-kernel/pkg/covenant"
	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
)

// MemoryStore is a map-backed Store
type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]*covenant.Document
	order     []string
	listeners map[int]Listener
	nextSub   int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]*covenant.Document),
		listeners: make(map[int]Listener),
	}
}

// Get returns the document with the given id, or nil if absent
func (s *MemoryStore) Get(id string) (*covenant.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[id], nil
}

// Put stores a document keyed by its id and fires a put event
func (s *MemoryStore) Put(doc *covenant.Document) error {
	if doc == nil || doc.ID == "" {
		return kerrors.New(kerrors.ErrorCodeInvalidInput, "document with non-empty id is required")
	}

	s.mu.Lock()
	if _, exists := s.docs[doc.ID]; !exists {
		s.order = append(s.order, doc.ID)
	}
	s.docs[doc.ID] = doc
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	emit(listeners, Event{Type: EventPut, ID: doc.ID, Doc: doc})
	return nil
}

// Delete removes a document. The delete event fires only if the document
// existed.
func (s *MemoryStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	_, existed := s.docs[id]
	if existed {
		delete(s.docs, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if existed {
		emit(listeners, Event{Type: EventDelete, ID: id})
	}
	return existed, nil
}

// List returns documents in insertion order, optionally filtered
func (s *MemoryStore) List(filter *Filter) ([]*covenant.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*covenant.Document, 0, len(s.order))
	for _, id := range s.order {
		if doc := s.docs[id]; doc != nil && filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Has reports whether a document with the id exists
func (s *MemoryStore) Has(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[id]
	return ok, nil
}

// Count returns the number of stored documents
func (s *MemoryStore) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.docs)), nil
}

// Clear removes all documents without firing events
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]*covenant.Document)
	s.order = nil
	return nil
}

// OnEvent registers a listener and returns its subscription id
func (s *MemoryStore) OnEvent(fn Listener) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	s.listeners[s.nextSub] = fn
	return s.nextSub
}

// OffEvent removes a listener by subscription id
func (s *MemoryStore) OffEvent(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

func (s *MemoryStore) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func emit(listeners []Listener, ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}

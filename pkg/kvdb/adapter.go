// Copyright 2025 Covenant Protocol
//
// KV Adapter for CometBFT Database Integration
// Wraps CometBFT's dbm.DB interface to persist covenant documents behind
// the store.Store contract

package kvdb

import (
	"sync"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/covenant-protocol/trust-kernel/pkg/covenant"
	kerrors "github.com/covenant-protocol/trust-kernel/pkg/errors"
	"github.com/covenant-protocol/trust-kernel/pkg/store"
)

var keyCovenantPrefix = []byte("covenant:")

// covenantKey generates the KV key for a covenant id
func covenantKey(id string) []byte {
	return append(append([]byte{}, keyCovenantPrefix...), []byte(id)...)
}

// CovenantDB wraps a CometBFT dbm.DB and exposes the covenant store
// interface. Writes use SetSync for durability at commit time.
type CovenantDB struct {
	db dbm.DB

	mu        sync.Mutex
	listeners map[int]store.Listener
	nextSub   int
}

// NewCovenantDB creates a new adapter over the given underlying DB
func NewCovenantDB(db dbm.DB) *CovenantDB {
	return &CovenantDB{
		db:        db,
		listeners: make(map[int]store.Listener),
	}
}

// Get implements store.Store.Get. An absent key returns nil, nil.
func (a *CovenantDB) Get(id string) (*covenant.Document, error) {
	v, err := a.db.Get(covenantKey(id))
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeStoreQuery, "kv get failed", err)
	}
	if v == nil {
		return nil, nil
	}
	doc, err := covenant.Unmarshal(v)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeStoreCorrupted, "stored covenant does not parse", err)
	}
	return doc, nil
}

// Put implements store.Store.Put
func (a *CovenantDB) Put(doc *covenant.Document) error {
	if doc == nil || doc.ID == "" {
		return kerrors.New(kerrors.ErrorCodeInvalidInput, "document with non-empty id is required")
	}
	b, err := covenant.Marshal(doc)
	if err != nil {
		return err
	}
	if err := a.db.SetSync(covenantKey(doc.ID), b); err != nil {
		return kerrors.Wrap(kerrors.ErrorCodeStoreQuery, "kv set failed", err)
	}
	a.emit(store.Event{Type: store.EventPut, ID: doc.ID, Doc: doc})
	return nil
}

// Delete implements store.Store.Delete
func (a *CovenantDB) Delete(id string) (bool, error) {
	key := covenantKey(id)
	existed, err := a.db.Has(key)
	if err != nil {
		return false, kerrors.Wrap(kerrors.ErrorCodeStoreQuery, "kv has failed", err)
	}
	if !existed {
		return false, nil
	}
	if err := a.db.DeleteSync(key); err != nil {
		return false, kerrors.Wrap(kerrors.ErrorCodeStoreQuery, "kv delete failed", err)
	}
	a.emit(store.Event{Type: store.EventDelete, ID: id})
	return true, nil
}

// List implements store.Store.List by scanning the covenant key range
func (a *CovenantDB) List(filter *store.Filter) ([]*covenant.Document, error) {
	it, err := a.db.Iterator(keyCovenantPrefix, prefixEnd(keyCovenantPrefix))
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeStoreQuery, "kv iterator failed", err)
	}
	defer it.Close()

	var out []*covenant.Document
	for ; it.Valid(); it.Next() {
		doc, derr := covenant.Unmarshal(it.Value())
		if derr != nil {
			return nil, kerrors.Wrap(kerrors.ErrorCodeStoreCorrupted, "stored covenant does not parse", derr)
		}
		if filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	if err := it.Error(); err != nil {
		return nil, kerrors.Wrap(kerrors.ErrorCodeStoreQuery, "kv iteration failed", err)
	}
	return out, nil
}

// Has implements store.Store.Has
func (a *CovenantDB) Has(id string) (bool, error) {
	ok, err := a.db.Has(covenantKey(id))
	if err != nil {
		return false, kerrors.Wrap(kerrors.ErrorCodeStoreQuery, "kv has failed", err)
	}
	return ok, nil
}

// Count implements store.Store.Count
func (a *CovenantDB) Count() (uint64, error) {
	it, err := a.db.Iterator(keyCovenantPrefix, prefixEnd(keyCovenantPrefix))
	if err != nil {
		return 0, kerrors.Wrap(kerrors.ErrorCodeStoreQuery, "kv iterator failed", err)
	}
	defer it.Close()

	var n uint64
	for ; it.Valid(); it.Next() {
		n++
	}
	return n, it.Error()
}

// Clear implements store.Store.Clear. Events do not fire for bulk clears.
func (a *CovenantDB) Clear() error {
	it, err := a.db.Iterator(keyCovenantPrefix, prefixEnd(keyCovenantPrefix))
	if err != nil {
		return kerrors.Wrap(kerrors.ErrorCodeStoreQuery, "kv iterator failed", err)
	}

	var keys [][]byte
	for ; it.Valid(); it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		keys = append(keys, key)
	}
	it.Close()

	for _, key := range keys {
		if err := a.db.DeleteSync(key); err != nil {
			return kerrors.Wrap(kerrors.ErrorCodeStoreQuery, "kv delete failed", err)
		}
	}
	return nil
}

// OnEvent implements store.Store.OnEvent
func (a *CovenantDB) OnEvent(fn store.Listener) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextSub++
	a.listeners[a.nextSub] = fn
	return a.nextSub
}

// OffEvent implements store.Store.OffEvent
func (a *CovenantDB) OffEvent(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.listeners, id)
}

func (a *CovenantDB) emit(ev store.Event) {
	a.mu.Lock()
	listeners := make([]store.Listener, 0, len(a.listeners))
	for _, fn := range a.listeners {
		listeners = append(listeners, fn)
	}
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// prefixEnd returns the smallest key greater than every key with the
// prefix, for use as an exclusive iterator bound.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// Copyright 2025 Covenant Protocol
//
// Memory Store Tests

package store

import (
	"testing"

	"github.com/covenant-protocol/trust-kernel/pkg/covenant"
)

func testDoc(id, issuerID string) *covenant.Document {
	return &covenant.Document{
		ID:          id,
		Version:     "1.0",
		Issuer:      covenant.Party{ID: issuerID, Role: "issuer"},
		Beneficiary: covenant.Party{ID: "agent", Role: "beneficiary"},
		Constraints: "permit read on '/data'",
	}
}

func TestMemoryStore_PutGetHasCount(t *testing.T) {
	s := NewMemoryStore()

	doc := testDoc("aaaa", "issuer-1")
	if err := s.Put(doc); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := s.Get("aaaa")
	if err != nil || got == nil || got.ID != "aaaa" {
		t.Fatalf("get mismatch: %v, %v", got, err)
	}

	if got, _ := s.Get("missing"); got != nil {
		t.Error("absent id should return nil")
	}

	if ok, _ := s.Has("aaaa"); !ok {
		t.Error("has returned false for stored doc")
	}
	if n, _ := s.Count(); n != 1 {
		t.Errorf("count mismatch: %d", n)
	}
}

func TestMemoryStore_PutRequiresID(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Put(&covenant.Document{}); err == nil {
		t.Error("put accepted a document without id")
	}
	if err := s.Put(nil); err == nil {
		t.Error("put accepted nil")
	}
}

func TestMemoryStore_DeleteSemantics(t *testing.T) {
	s := NewMemoryStore()
	s.Put(testDoc("aaaa", "i"))

	existed, err := s.Delete("aaaa")
	if err != nil || !existed {
		t.Errorf("delete of existing doc: existed=%v err=%v", existed, err)
	}
	existed, _ = s.Delete("aaaa")
	if existed {
		t.Error("second delete reported existence")
	}
}

func TestMemoryStore_Events(t *testing.T) {
	s := NewMemoryStore()
	var events []Event
	sub := s.OnEvent(func(ev Event) { events = append(events, ev) })

	s.Put(testDoc("aaaa", "i"))
	s.Delete("aaaa")
	s.Delete("aaaa") // no event: already gone

	if len(events) != 2 {
		t.Fatalf("event count mismatch: %d", len(events))
	}
	if events[0].Type != EventPut || events[0].ID != "aaaa" || events[0].Doc == nil {
		t.Errorf("put event malformed: %+v", events[0])
	}
	if events[1].Type != EventDelete || events[1].Doc != nil {
		t.Errorf("delete event malformed: %+v", events[1])
	}

	s.OffEvent(sub)
	s.Put(testDoc("bbbb", "i"))
	if len(events) != 2 {
		t.Error("listener fired after OffEvent")
	}
}

func TestMemoryStore_ListFilterAndOrder(t *testing.T) {
	s := NewMemoryStore()
	s.Put(testDoc("a1", "issuer-1"))
	s.Put(testDoc("b2", "issuer-2"))
	s.Put(testDoc("c3", "issuer-1"))

	all, _ := s.List(nil)
	if len(all) != 3 || all[0].ID != "a1" || all[2].ID != "c3" {
		t.Errorf("list order broken: %+v", all)
	}

	filtered, _ := s.List(&Filter{IssuerID: "issuer-1"})
	if len(filtered) != 2 {
		t.Errorf("filter mismatch: %d", len(filtered))
	}

	s.Clear()
	if n, _ := s.Count(); n != 0 {
		t.Error("clear did not empty the store")
	}
}

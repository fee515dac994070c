package listenum

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cmlburnett/ydla/internal/catalogdb"
)

func openTestStore(t *testing.T) *catalogdb.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := catalogdb.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReconcileInsertsNewMembersAndItems(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Truncate(time.Second)
	listing := Listing{
		Entries: []Entry{
			{IID: "aaaaaaaaaaa", Title: "First Video"},
			{IID: "bbbbbbbbbbb", Title: "Second Video"},
		},
	}

	if err := Reconcile(tx, catalogdb.VariantChannelNamed, "somechannel", listing, nil, false, now); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	it, err := tx.GetItem("aaaaaaaaaaa")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if it == nil {
		t.Fatalf("expected item to exist")
	}
	if it.Name != "First Video" {
		t.Fatalf("got name %q", it.Name)
	}

	members, err := tx.ListMembership(catalogdb.VariantChannelNamed, "somechannel")
	if err != nil {
		t.Fatalf("ListMembership: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}

func TestReconcileTombstonesRemovedMembers(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Truncate(time.Second)
	first := Listing{Entries: []Entry{
		{IID: "aaaaaaaaaaa", Title: "First"},
		{IID: "bbbbbbbbbbb", Title: "Second"},
	}}
	if err := Reconcile(tx, catalogdb.VariantUser, "someuser", first, nil, false, now); err != nil {
		t.Fatalf("Reconcile 1: %v", err)
	}

	second := Listing{Entries: []Entry{
		{IID: "aaaaaaaaaaa", Title: "First"},
	}}
	if err := Reconcile(tx, catalogdb.VariantUser, "someuser", second, nil, true, now); err != nil {
		t.Fatalf("Reconcile 2: %v", err)
	}

	m, err := tx.GetMembership(catalogdb.VariantUser, "someuser", "bbbbbbbbbbb")
	if err != nil {
		t.Fatalf("GetMembership: %v", err)
	}
	if m == nil || !m.Tombstone() {
		t.Fatalf("expected bbbbbbbbbbb to be tombstoned, got %+v", m)
	}
}

func TestReconcileShortCircuitsWhenAllPresent(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Truncate(time.Second)
	listing := Listing{Entries: []Entry{{IID: "aaaaaaaaaaa", Title: "First"}}}
	if err := Reconcile(tx, catalogdb.VariantPlaylist, "pl1", listing, nil, false, now); err != nil {
		t.Fatalf("Reconcile 1: %v", err)
	}

	if err := Reconcile(tx, catalogdb.VariantPlaylist, "pl1", listing, []string{"ccccccccccc"}, false, now); err != nil {
		t.Fatalf("Reconcile 2: %v", err)
	}

	m, err := tx.GetMembership(catalogdb.VariantPlaylist, "pl1", "ccccccccccc")
	if err != nil {
		t.Fatalf("GetMembership: %v", err)
	}
	if m == nil || !m.Tombstone() {
		t.Fatalf("expected ghost membership for feed-only id, got %+v", m)
	}

	it, err := tx.GetItem("ccccccccccc")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if it == nil {
		t.Fatalf("expected ghost item row to exist")
	}
}

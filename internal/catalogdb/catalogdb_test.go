package catalogdb

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchemaIdempotently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()
}

func TestItemInsertGet(t *testing.T) {
	s := openTestStore(t)

	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	it := Item{
		IID:        "btZ-VFW4wpY",
		Name:       "",
		Dname:      MiscellaneousSource,
		Title:      "",
		Thumbnails: []Thumbnail{},
		Ctime:      &now,
	}
	if err := tx.InsertItem(it); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx2, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin 2: %v", err)
	}
	defer tx2.Rollback()

	got, err := tx2.GetItem("btZ-VFW4wpY")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got == nil {
		t.Fatalf("expected item, got nil")
	}
	if got.Dname != MiscellaneousSource || got.Skip {
		t.Fatalf("got %+v", got)
	}
	if got.Atime != nil || got.Utime != nil {
		t.Fatalf("expected null atime/utime, got %+v", got)
	}
}

func TestItemSkipClearsSleepEntry(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	if err := tx.InsertItem(Item{IID: "abc", Dname: "x"}); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	if err := tx.PutSleep("abc", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("PutSleep: %v", err)
	}
	if err := tx.SetItemSkip("abc", true); err != nil {
		t.Fatalf("SetItemSkip: %v", err)
	}
	entry, err := tx.GetSleep("abc")
	if err != nil {
		t.Fatalf("GetSleep: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected sleep entry to be cleared, got %+v", entry)
	}
}

func TestMembershipTombstonePreservesProvenance(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if err := tx.UpsertMembership(VariantUser, "MIT", "aaaaaaaaaaa", 1, now); err != nil {
		t.Fatalf("UpsertMembership: %v", err)
	}
	if err := tx.TombstoneMembership(VariantUser, "MIT", "aaaaaaaaaaa"); err != nil {
		t.Fatalf("TombstoneMembership: %v", err)
	}

	m, err := tx.GetMembership(VariantUser, "MIT", "aaaaaaaaaaa")
	if err != nil {
		t.Fatalf("GetMembership: %v", err)
	}
	if m == nil {
		t.Fatalf("expected membership row to persist as tombstone")
	}
	if !m.Tombstone() {
		t.Fatalf("expected idx=-1, got %d", m.Idx)
	}
}

func TestFeedCacheRoundTrip(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Truncate(time.Second)
	if err := tx.PutFeedCache(VariantChannelNamed, "MIT", "https://example/feed.xml", now); err != nil {
		t.Fatalf("PutFeedCache: %v", err)
	}
	fc, err := tx.GetFeedCache(VariantChannelNamed, "MIT")
	if err != nil {
		t.Fatalf("GetFeedCache: %v", err)
	}
	if fc == nil || fc.FeedURL != "https://example/feed.xml" {
		t.Fatalf("got %+v", fc)
	}
}

func TestSleepPrune(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	if err := tx.PutSleep("expired", past); err != nil {
		t.Fatalf("PutSleep: %v", err)
	}
	if err := tx.PutSleep("still-sleeping", future); err != nil {
		t.Fatalf("PutSleep: %v", err)
	}

	n, err := tx.PruneSleep(time.Now())
	if err != nil {
		t.Fatalf("PruneSleep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}

	remaining, err := tx.ListSleep()
	if err != nil {
		t.Fatalf("ListSleep: %v", err)
	}
	if len(remaining) != 1 || remaining[0].IID != "still-sleeping" {
		t.Fatalf("got %+v", remaining)
	}
}

func TestHookRegistryOrdering(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	for _, mod := range []string{"pushover", "webhook", "logger"} {
		if err := tx.RegisterHook(mod); err != nil {
			t.Fatalf("RegisterHook(%s): %v", mod, err)
		}
	}
	hooks, err := tx.ListHooks()
	if err != nil {
		t.Fatalf("ListHooks: %v", err)
	}
	if len(hooks) != 3 || hooks[0].ModuleID != "pushover" || hooks[2].ModuleID != "logger" {
		t.Fatalf("got %+v", hooks)
	}
}

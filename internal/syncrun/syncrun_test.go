package syncrun

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cmlburnett/ydla/internal/catalogdb"
)

const sampleStaleFeed = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:yt="http://www.youtube.com/xml/schemas/2015">
  <title>Some Channel</title>
  <author><name>Some Uploader</name></author>
  <entry><yt:videoId>aaaaaaaaaaa</yt:videoId></entry>
  <entry><yt:videoId>bbbbbbbbbbb</yt:videoId></entry>
</feed>`

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

func TestSelectSourcesFiltersByKeyAndIgnoreOld(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := tx.AddUser("alice", now); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if err := tx.AddUser("bob", now); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if err := tx.TouchUser("alice", "Alice Channel", "alice", now); err != nil {
		t.Fatalf("TouchUser: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx2, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin 2: %v", err)
	}
	defer tx2.Rollback()

	all, err := selectSources(tx2, catalogdb.VariantUser, nil, false)
	if err != nil {
		t.Fatalf("selectSources: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(all))
	}

	onlyBob, err := selectSources(tx2, catalogdb.VariantUser, nil, true)
	if err != nil {
		t.Fatalf("selectSources ignoreOld: %v", err)
	}
	if len(onlyBob) != 1 || onlyBob[0].key != "bob" {
		t.Fatalf("expected only bob, got %+v", onlyBob)
	}

	filtered, err := selectSources(tx2, catalogdb.VariantUser, map[string]bool{"alice": true}, false)
	if err != nil {
		t.Fatalf("selectSources key filter: %v", err)
	}
	if len(filtered) != 1 || filtered[0].key != "alice" {
		t.Fatalf("expected only alice, got %+v", filtered)
	}
}

func TestSelectSourcesSkipsSkippedPlaylists(t *testing.T) {
	s := openTestStore(t)
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := tx.AddPlaylist("PL1111111", now); err != nil {
		t.Fatalf("AddPlaylist: %v", err)
	}
	if err := tx.AddPlaylist("PL2222222", now); err != nil {
		t.Fatalf("AddPlaylist: %v", err)
	}
	if err := tx.SetPlaylistSkip("PL2222222", true); err != nil {
		t.Fatalf("SetPlaylistSkip: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx2, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin 2: %v", err)
	}
	defer tx2.Rollback()

	sources, err := selectSources(tx2, catalogdb.VariantPlaylist, nil, false)
	if err != nil {
		t.Fatalf("selectSources: %v", err)
	}
	if len(sources) != 1 || sources[0].key != "PL1111111" {
		t.Fatalf("expected only non-skipped playlist, got %+v", sources)
	}
}

func TestProbeFreshReturnsFeedIDsWhenStale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleStaleFeed))
	}))
	defer srv.Close()

	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.AddUser("alice", now); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	// Only one of the feed's two entries is already known, so the feed
	// must indicate staleness rather than freshness.
	if err := tx.UpsertMembership(catalogdb.VariantUser, "alice", "aaaaaaaaaaa", 0, now); err != nil {
		t.Fatalf("UpsertMembership: %v", err)
	}
	if err := tx.PutFeedCache(catalogdb.VariantUser, "alice", srv.URL, now); err != nil {
		t.Fatalf("PutFeedCache: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	src := sourceKey{variant: catalogdb.VariantUser, key: "alice", seen: true}
	fresh, feedIDs, err := probeFresh(context.Background(), s, srv.Client(), src, now)
	if err != nil {
		t.Fatalf("probeFresh: %v", err)
	}
	if fresh {
		t.Fatalf("expected stale verdict, got fresh")
	}
	if len(feedIDs) != 2 {
		t.Fatalf("expected probeFresh to surface both feed IIDs even when stale, got %v", feedIDs)
	}
}

func TestCanonicalURLShapesPerVariant(t *testing.T) {
	cases := []struct {
		variant, key, want string
	}{
		{catalogdb.VariantUser, "alice", "https://www.example-video-site.com/user/alice/videos"},
		{catalogdb.VariantChannelNamed, "somechannel", "https://www.example-video-site.com/c/somechannel/videos"},
		{catalogdb.VariantChannelUnnamed, "UCxxxx", "https://www.example-video-site.com/channel/UCxxxx/videos"},
		{catalogdb.VariantPlaylist, "PL1111111", "https://www.example-video-site.com/playlist?list=PL1111111"},
	}
	for _, c := range cases {
		if got := canonicalURL(c.variant, c.key); got != c.want {
			t.Fatalf("canonicalURL(%q,%q) = %q, want %q", c.variant, c.key, got, c.want)
		}
	}
}

// Package listenum implements the List Enumerator: a full-listing
// reconciliation against the external metadata extractor's flat-listing
// output, used as the fallback when the Feed Probe can't establish
// freshness on its own.
package listenum

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlburnett/ydla/internal/catalogdb"
	"github.com/cmlburnett/ydla/internal/extproc"
	"github.com/cmlburnett/ydla/internal/naming"
	"github.com/cmlburnett/ydla/internal/ydlerrors"
)

// MaxEmptyListRetries is the number of retries the enumerator allows when
// the extractor reports zero items, an observed empty-success failure
// mode distinct from a genuine error.
const MaxEmptyListRetries = 3

// Entry is one (iid, title) pair from a full listing. Title may be empty
// when the extractor's flat mode doesn't surface it for a given item.
type Entry struct {
	IID   string
	Title string
}

// Listing is the full result of one enumeration: the ordered entries plus
// whatever source-level title/uploader the extractor reported.
type Listing struct {
	Entries  []Entry
	Title    string
	Uploader string
}

// Enumerate invokes the extractor in flat-listing mode for url, retrying
// up to MaxEmptyListRetries times if the first attempts report zero
// items. Returns ydlerrors.ErrEmptyList if every attempt comes back
// empty.
func Enumerate(ctx context.Context, url string) (Listing, error) {
	var records []map[string]any
	var err error

	for attempt := 0; attempt <= MaxEmptyListRetries; attempt++ {
		records, err = extproc.FlatListing(ctx, url)
		if err != nil {
			return Listing{}, err
		}
		if len(records) > 0 {
			break
		}
	}
	if len(records) == 0 {
		return Listing{}, ydlerrors.ErrEmptyList
	}

	listing := Listing{}
	for _, rec := range records {
		iid, _ := rec["id"].(string)
		if iid == "" {
			continue
		}
		title, _ := rec["title"].(string)
		listing.Entries = append(listing.Entries, Entry{IID: iid, Title: title})

		if listing.Title == "" {
			if t, ok := rec["channel"].(string); ok {
				listing.Title = t
			}
		}
		if listing.Uploader == "" {
			if u, ok := rec["uploader"].(string); ok {
				listing.Uploader = u
			}
		}
	}
	return listing, nil
}

// Reconcile runs the reconciliation algorithm of spec §4.D against one
// source's enumerated listing, inside tx. feedIDs is the (possibly
// larger) set of ids the lightweight feed reported, used to insert ghost
// tombstones for unreleased items the feed exposes but the full listing
// doesn't yet.
func Reconcile(tx *catalogdb.Tx, variant, sourceKey string, listing Listing, feedIDs []string, force bool, now time.Time) error {
	existing, err := tx.ListMembership(variant, sourceKey)
	if err != nil {
		return err
	}
	working := make(map[string]bool, len(existing))
	for _, m := range existing {
		if !m.Tombstone() {
			working[m.IID] = true
		}
	}

	enumeratedSet := make(map[string]bool, len(listing.Entries))
	for _, e := range listing.Entries {
		enumeratedSet[e.IID] = true
	}

	allPresent := true
	for id := range enumeratedSet {
		if !working[id] {
			allPresent = false
			break
		}
	}

	if allPresent && !force {
		for _, fid := range feedIDs {
			if !enumeratedSet[fid] {
				if err := tx.EnsureGhostMembership(variant, sourceKey, fid); err != nil {
					return err
				}
				if _, err := getOrInsertGhostItem(tx, fid, sourceKey); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for idx, e := range listing.Entries {
		if err := tx.UpsertMembership(variant, sourceKey, e.IID, idx+1, now); err != nil {
			return err
		}
		delete(working, e.IID)
	}

	for id := range working {
		if err := tx.TombstoneMembership(variant, sourceKey, id); err != nil {
			return err
		}
	}

	for _, e := range listing.Entries {
		if err := upsertEnumeratedItem(tx, e, sourceKey, now); err != nil {
			return err
		}
	}

	return nil
}

func upsertEnumeratedItem(tx *catalogdb.Tx, e Entry, sourceKey string, now time.Time) error {
	existing, err := tx.GetItem(e.IID)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Atime = nil
		if e.Title != "" {
			existing.Title = e.Title
			existing.Name = naming.TitleToName(e.Title)
		}
		return tx.UpdateItem(*existing)
	}

	it := catalogdb.Item{
		IID:        e.IID,
		Dname:      sourceKey,
		Title:      e.Title,
		Ctime:      &now,
		Skip:       false,
		Thumbnails: []catalogdb.Thumbnail{},
	}
	if e.Title != "" {
		it.Name = naming.TitleToName(e.Title)
	}
	return tx.InsertItem(it)
}

func getOrInsertGhostItem(tx *catalogdb.Tx, iid, sourceKey string) (*catalogdb.Item, error) {
	existing, err := tx.GetItem(iid)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	it := catalogdb.Item{
		IID:        iid,
		Dname:      sourceKey,
		Skip:       false,
		Thumbnails: []catalogdb.Thumbnail{},
	}
	if err := tx.InsertItem(it); err != nil {
		return nil, fmt.Errorf("listenum: insert ghost item %s: %w", iid, err)
	}
	return &it, nil
}

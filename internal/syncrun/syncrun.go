// Package syncrun implements the Sync Orchestrator: the fixed-order
// driver that walks every registered source, consults the Feed Probe
// before falling back to the full-listing enumerator, and bumps source
// timestamps on success.
package syncrun

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cmlburnett/ydla/internal/catalogdb"
	"github.com/cmlburnett/ydla/internal/feedprobe"
	"github.com/cmlburnett/ydla/internal/listenum"
)

// Options configures one orchestration pass.
type Options struct {
	// Keys, when non-empty, restricts the run to sources whose key is in
	// this set (any variant).
	Keys []string
	// IgnoreOld restricts each variant's source selection to those with a
	// null atime (never synced before).
	IgnoreOld bool
	// Force bypasses the feed probe's Fresh short-circuit and always runs
	// the full enumerator.
	Force bool
	// InterSourceDelay throttles site access between sources.
	InterSourceDelay time.Duration
	// UseFeed disables the feed-probe tier entirely when false, useful for
	// sources that have proven feed-unreliable.
	UseFeed bool
}

// Summary reports per-run counts across every source variant.
type Summary struct {
	Done    int
	Skipped int
	Errors  int
}

// sourceKey is one selected source's identity, generalized across variants.
type sourceKey struct {
	variant string
	key     string
	seen    bool // had a non-null atime before this run started
}

// canonicalURL returns the public page/listing URL the enumerator should
// use for one source, matching the same URL shapes the feed probe's page
// templates are built from.
func canonicalURL(variant, key string) string {
	const base = "https://www.example-video-site.com"
	switch variant {
	case catalogdb.VariantUser:
		return base + "/user/" + key + "/videos"
	case catalogdb.VariantChannelNamed:
		return base + "/c/" + key + "/videos"
	case catalogdb.VariantChannelUnnamed:
		return base + "/channel/" + key + "/videos"
	case catalogdb.VariantPlaylist:
		return base + "/playlist?list=" + key
	default:
		return ""
	}
}

// selectSources loads the eligible sources for one variant, in the fixed
// per-variant listing order catalogdb already enforces.
func selectSources(tx *catalogdb.Tx, variant string, keys map[string]bool, ignoreOld bool) ([]sourceKey, error) {
	var out []sourceKey
	switch variant {
	case catalogdb.VariantUser:
		rows, err := tx.ListUsers(ignoreOld)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if len(keys) > 0 && !keys[r.Name] {
				continue
			}
			out = append(out, sourceKey{variant: variant, key: r.Name, seen: r.Atime != nil})
		}
	case catalogdb.VariantChannelUnnamed:
		rows, err := tx.ListChannelsUnnamed(ignoreOld)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if len(keys) > 0 && !keys[r.Name] && !keys[r.Alias] {
				continue
			}
			out = append(out, sourceKey{variant: variant, key: r.Name, seen: r.Atime != nil})
		}
	case catalogdb.VariantChannelNamed:
		rows, err := tx.ListChannelsNamed(ignoreOld)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if len(keys) > 0 && !keys[r.Name] {
				continue
			}
			out = append(out, sourceKey{variant: variant, key: r.Name, seen: r.Atime != nil})
		}
	case catalogdb.VariantPlaylist:
		rows, err := tx.ListPlaylists(ignoreOld)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if len(keys) > 0 && !keys[r.IID] {
				continue
			}
			if r.Skip {
				continue
			}
			out = append(out, sourceKey{variant: variant, key: r.IID, seen: r.Atime != nil})
		}
	}
	return out, nil
}

func touchSource(tx *catalogdb.Tx, variant, key, title, uploader string, at time.Time) error {
	switch variant {
	case catalogdb.VariantUser:
		return tx.TouchUser(key, title, uploader, at)
	case catalogdb.VariantChannelNamed:
		return tx.TouchChannelNamed(key, title, uploader, at)
	case catalogdb.VariantChannelUnnamed:
		return tx.TouchChannelUnnamed(key, title, uploader, at)
	case catalogdb.VariantPlaylist:
		return tx.TouchPlaylist(key, title, uploader, at)
	default:
		return fmt.Errorf("syncrun: unknown source variant %q", variant)
	}
}

// Run executes one orchestration pass across every source variant in the
// fixed order (users, unnamed-channels, named-channels, playlists),
// composing the Feed Probe and List Enumerator for each selected source.
func Run(ctx context.Context, store *catalogdb.Store, client *http.Client, opts Options, now func() time.Time) (Summary, error) {
	var summary Summary
	keys := make(map[string]bool, len(opts.Keys))
	for _, k := range opts.Keys {
		keys[k] = true
	}

	variants := []string{
		catalogdb.VariantUser,
		catalogdb.VariantChannelUnnamed,
		catalogdb.VariantChannelNamed,
		catalogdb.VariantPlaylist,
	}

	for _, variant := range variants {
		tx, err := store.Begin()
		if err != nil {
			return summary, err
		}
		sources, err := selectSources(tx, variant, keys, opts.IgnoreOld)
		tx.Rollback()
		if err != nil {
			return summary, err
		}

		for i, src := range sources {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			default:
			}

			skipped, err := syncOneSource(ctx, store, client, src, opts, now)
			switch {
			case err != nil:
				summary.Errors++
			case skipped:
				summary.Skipped++
			default:
				summary.Done++
			}

			if opts.InterSourceDelay > 0 && i < len(sources)-1 {
				select {
				case <-ctx.Done():
					return summary, ctx.Err()
				case <-time.After(opts.InterSourceDelay):
				}
			}
		}
	}
	return summary, nil
}

// syncOneSource syncs one source and reports whether it was skipped because
// the feed probe found it fresh.
func syncOneSource(ctx context.Context, store *catalogdb.Store, client *http.Client, src sourceKey, opts Options, now func() time.Time) (bool, error) {
	useFeed := opts.UseFeed && src.variant != catalogdb.VariantPlaylist && src.seen
	var feedIDs []string
	if useFeed && !opts.Force {
		fresh, ids, err := probeFresh(ctx, store, client, src, now())
		if err != nil {
			return false, err
		}
		if fresh {
			return true, nil
		}
		feedIDs = ids
	}

	url := canonicalURL(src.variant, src.key)
	listing, err := listenum.Enumerate(ctx, url)
	if err != nil {
		return false, err
	}

	tx, err := store.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if err := listenum.Reconcile(tx, src.variant, src.key, listing, feedIDs, opts.Force, now()); err != nil {
		return false, err
	}
	if err := touchSource(tx, src.variant, src.key, listing.Title, listing.Uploader, now()); err != nil {
		return false, err
	}
	return false, tx.Commit()
}

// probeFresh consults the Feed Probe and reports whether the source is
// fresh (no full enumeration needed) along with the feed's own IIDs, which
// the caller threads into listenum.Reconcile's ghost-membership detection
// even when the probe found the source stale.
func probeFresh(ctx context.Context, store *catalogdb.Store, client *http.Client, src sourceKey, now time.Time) (fresh bool, feedIDs []string, err error) {
	tx, err := store.Begin()
	if err != nil {
		return false, nil, err
	}
	defer tx.Rollback()

	cache, err := tx.GetFeedCache(src.variant, src.key)
	if err != nil {
		return false, nil, err
	}

	feedURL := ""
	if cache != nil {
		feedURL = cache.FeedURL
	} else {
		href, ok, discErr := feedprobe.DiscoverFeedURL(ctx, client, src.variant, src.key)
		if discErr != nil {
			return false, nil, discErr
		}
		if !ok {
			return false, nil, nil
		}
		feedURL = href
		if err := tx.PutFeedCache(src.variant, src.key, feedURL, now); err != nil {
			return false, nil, err
		}
	}

	known := func(iid string) (bool, error) {
		m, err := tx.GetMembership(src.variant, src.key, iid)
		if err != nil {
			return false, err
		}
		return m != nil && !m.Tombstone(), nil
	}

	result, err := feedprobe.Probe(ctx, client, feedURL, known)
	if err != nil {
		return false, nil, err
	}
	if err := tx.Commit(); err != nil {
		return false, nil, err
	}
	return result.Verdict == feedprobe.Fresh, result.IIDs, nil
}

// Package itemsync implements Item Sync: per-item metadata enrichment
// against the external extractor, with the failure-bucket taxonomy the
// rest of a batch must survive.
package itemsync

import (
	"context"
	"errors"
	"time"

	"github.com/cmlburnett/ydla/internal/catalogdb"
	"github.com/cmlburnett/ydla/internal/extproc"
	"github.com/cmlburnett/ydla/internal/naming"
	"github.com/cmlburnett/ydla/internal/ydlerrors"
)

// Summary reports per-batch counts, mirroring the Sync Orchestrator's
// bucket shape.
type Summary struct {
	Done          int
	Skipped       int
	PaymentIssues []string
	Errors        []error
}

// Options configures one batch.
type Options struct {
	Keys      []string
	IgnoreOld bool
}

// Run enriches every item selected by opts, fetching per-item metadata
// through the extractor and updating the catalog on success. A
// PaymentRequired failure isolates the item into its own bucket and
// continues; a UserInterrupt aborts the whole batch; every other failure
// lands in the errors bucket and the batch continues.
func Run(ctx context.Context, store *catalogdb.Store, opts Options, now func() time.Time) (Summary, error) {
	var summary Summary

	tx, err := store.Begin()
	if err != nil {
		return summary, err
	}
	items, err := tx.ListItemsByFilter(opts.Keys, opts.IgnoreOld)
	tx.Rollback()
	if err != nil {
		return summary, err
	}

	for _, it := range items {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		if err := syncOneItem(ctx, store, it, now); err != nil {
			if errors.Is(err, ydlerrors.ErrUserInterrupt) {
				return summary, err
			}
			var payErr ydlerrors.PaymentRequired
			if errors.As(err, &payErr) {
				summary.PaymentIssues = append(summary.PaymentIssues, payErr.ItemID)
				continue
			}
			summary.Errors = append(summary.Errors, err)
			continue
		}
		summary.Done++
	}
	return summary, nil
}

func syncOneItem(ctx context.Context, store *catalogdb.Store, it catalogdb.Item, now func() time.Time) error {
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if it.Skip {
		if err := tx.TouchItemAtime(it.IID, now()); err != nil {
			return err
		}
		return tx.Commit()
	}

	meta, err := extproc.ItemMetadata(ctx, it.IID)
	if err != nil {
		return err
	}

	title, _ := meta["title"].(string)
	uploader, _ := meta["uploader"].(string)
	durationS, _ := meta["duration"].(float64)
	thumbs := extractThumbnails(meta)

	it.Title = title
	it.Name = naming.TitleToName(title)
	it.Uploader = uploader
	it.DurationS = int64(durationS)
	it.Thumbnails = thumbs
	if pt := parseUploadDate(meta); pt != nil {
		it.Ptime = pt
	}
	at := now()
	it.Atime = &at
	if it.Ctime == nil {
		it.Ctime = &at
	}

	if err := tx.UpdateItem(it); err != nil {
		return err
	}
	return tx.Commit()
}

// parseUploadDate reads the extractor's "upload_date" field (a yt-dlp
// "YYYYMMDD" string) and returns the publish time it names, or nil if the
// field is absent or malformed.
func parseUploadDate(meta map[string]any) *time.Time {
	s, _ := meta["upload_date"].(string)
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation("20060102", s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

func extractThumbnails(meta map[string]any) []catalogdb.Thumbnail {
	raw, ok := meta["thumbnails"].([]any)
	if !ok {
		return []catalogdb.Thumbnail{}
	}
	out := make([]catalogdb.Thumbnail, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		url, _ := m["url"].(string)
		if url == "" {
			continue
		}
		w, _ := m["width"].(float64)
		h, _ := m["height"].(float64)
		out = append(out, catalogdb.Thumbnail{URL: url, Width: int(w), Height: int(h)})
	}
	return out
}

package catalogdb

import (
	"database/sql"
	"errors"
	"time"
)

// GetFeedCache fetches the cached feed URL for a (variant, key) source.
// Returns (nil, nil) on a cache miss.
func (t *Tx) GetFeedCache(variant, key string) (*FeedCache, error) {
	var fc FeedCache
	var lastPoll sql.NullInt64
	err := t.tx.QueryRow(`SELECT source_variant, source_key, feed_url, last_poll FROM feed_cache WHERE source_variant=? AND source_key=?`, variant, key).
		Scan(&fc.SourceVariant, &fc.SourceKey, &fc.FeedURL, &lastPoll)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr("get feed cache", err)
	}
	fc.LastPoll = ptrFromUnix(lastPoll)
	return &fc, nil
}

// PutFeedCache persists a discovered feed URL, replacing any prior entry
// for the same source.
func (t *Tx) PutFeedCache(variant, key, feedURL string, at time.Time) error {
	_, err := t.tx.Exec(`INSERT INTO feed_cache (source_variant, source_key, feed_url, last_poll) VALUES (?,?,?,?)
		ON CONFLICT(source_variant, source_key) DO UPDATE SET feed_url=excluded.feed_url, last_poll=excluded.last_poll`,
		variant, key, feedURL, at.Unix())
	return wrapStorageErr("put feed cache", err)
}

// TouchFeedCache bumps only the last-poll time for an existing cache entry.
func (t *Tx) TouchFeedCache(variant, key string, at time.Time) error {
	_, err := t.tx.Exec(`UPDATE feed_cache SET last_poll=? WHERE source_variant=? AND source_key=?`, at.Unix(), variant, key)
	return wrapStorageErr("touch feed cache", err)
}

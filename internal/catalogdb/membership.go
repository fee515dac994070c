package catalogdb

import (
	"database/sql"
	"errors"
	"time"
)

// GetMembership fetches one (source, item) membership row. Returns
// (nil, nil) if absent.
func (t *Tx) GetMembership(variant, key, iid string) (*Membership, error) {
	var m Membership
	var atime sql.NullInt64
	err := t.tx.QueryRow(`SELECT source_variant, source_key, iid, idx, atime FROM membership WHERE source_variant=? AND source_key=? AND iid=?`,
		variant, key, iid).Scan(&m.SourceVariant, &m.SourceKey, &m.IID, &m.Idx, &atime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr("get membership", err)
	}
	m.Atime = ptrFromUnix(atime)
	return &m, nil
}

// ListMembership returns every membership row for one source, including
// tombstones, ordered by idx.
func (t *Tx) ListMembership(variant, key string) ([]Membership, error) {
	rows, err := t.tx.Query(`SELECT source_variant, source_key, iid, idx, atime FROM membership WHERE source_variant=? AND source_key=? ORDER BY idx`, variant, key)
	if err != nil {
		return nil, wrapStorageErr("list membership", err)
	}
	defer rows.Close()
	var out []Membership
	for rows.Next() {
		var m Membership
		var atime sql.NullInt64
		if err := rows.Scan(&m.SourceVariant, &m.SourceKey, &m.IID, &m.Idx, &atime); err != nil {
			return nil, wrapStorageErr("scan membership", err)
		}
		m.Atime = ptrFromUnix(atime)
		out = append(out, m)
	}
	return out, wrapStorageErr("list membership rows", rows.Err())
}

// UpsertMembership inserts a membership row, or updates idx/atime if one
// already exists for (variant, key, iid).
func (t *Tx) UpsertMembership(variant, key, iid string, idx int, at time.Time) error {
	_, err := t.tx.Exec(`INSERT INTO membership (source_variant, source_key, iid, idx, atime) VALUES (?,?,?,?,?)
		ON CONFLICT(source_variant, source_key, iid) DO UPDATE SET idx=excluded.idx, atime=excluded.atime`,
		variant, key, iid, idx, at.Unix())
	return wrapStorageErr("upsert membership", err)
}

// TombstoneMembership sets idx=-1 on an existing membership row without
// touching atime, preserving provenance once an item leaves a source's
// live listing.
func (t *Tx) TombstoneMembership(variant, key, iid string) error {
	_, err := t.tx.Exec(`UPDATE membership SET idx=-1 WHERE source_variant=? AND source_key=? AND iid=?`, variant, key, iid)
	return wrapStorageErr("tombstone membership", err)
}

// EnsureGhostMembership ensures a tombstoned membership row exists for an
// id the feed exposes but the catalog has never enumerated (a "ghost" id,
// typically an unreleased item). It is a no-op if the row already exists.
func (t *Tx) EnsureGhostMembership(variant, key, iid string) error {
	existing, err := t.GetMembership(variant, key, iid)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	_, err = t.tx.Exec(`INSERT INTO membership (source_variant, source_key, iid, idx, atime) VALUES (?,?,?,-1,NULL)`, variant, key, iid)
	return wrapStorageErr("ensure ghost membership", err)
}

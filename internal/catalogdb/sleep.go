package catalogdb

import (
	"database/sql"
	"errors"
	"time"
)

// GetSleep fetches the sleep entry for iid, if any.
func (t *Tx) GetSleep(iid string) (*SleepEntry, error) {
	var wake int64
	err := t.tx.QueryRow(`SELECT wake_instant FROM sleep_entries WHERE iid=?`, iid).Scan(&wake)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr("get sleep entry", err)
	}
	return &SleepEntry{IID: iid, WakeInstant: time.Unix(wake, 0).UTC()}, nil
}

// PutSleep inserts or updates the wake instant for iid.
func (t *Tx) PutSleep(iid string, wake time.Time) error {
	_, err := t.tx.Exec(`INSERT INTO sleep_entries (iid, wake_instant) VALUES (?,?)
		ON CONFLICT(iid) DO UPDATE SET wake_instant=excluded.wake_instant`, iid, wake.Unix())
	return wrapStorageErr("put sleep entry", err)
}

// DeleteSleep removes any sleep entry for iid. It is a no-op if none exists.
func (t *Tx) DeleteSleep(iid string) error {
	_, err := t.tx.Exec(`DELETE FROM sleep_entries WHERE iid=?`, iid)
	return wrapStorageErr("delete sleep entry", err)
}

// ListSleep returns every sleep entry ordered by wake instant ascending.
func (t *Tx) ListSleep() ([]SleepEntry, error) {
	rows, err := t.tx.Query(`SELECT iid, wake_instant FROM sleep_entries ORDER BY wake_instant ASC`)
	if err != nil {
		return nil, wrapStorageErr("list sleep entries", err)
	}
	defer rows.Close()
	var out []SleepEntry
	for rows.Next() {
		var iid string
		var wake int64
		if err := rows.Scan(&iid, &wake); err != nil {
			return nil, wrapStorageErr("scan sleep entry", err)
		}
		out = append(out, SleepEntry{IID: iid, WakeInstant: time.Unix(wake, 0).UTC()})
	}
	return out, wrapStorageErr("list sleep entries rows", rows.Err())
}

// PruneSleep deletes every sleep entry whose wake instant is at or before
// now and returns how many were removed.
func (t *Tx) PruneSleep(now time.Time) (int64, error) {
	res, err := t.tx.Exec(`DELETE FROM sleep_entries WHERE wake_instant <= ?`, now.Unix())
	if err != nil {
		return 0, wrapStorageErr("prune sleep entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStorageErr("prune sleep entries rows affected", err)
	}
	return n, nil
}

package catalogdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

func unixPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func ptrFromUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

// GetItem fetches one item by iid. It returns (nil, nil) if no row exists.
func (t *Tx) GetItem(iid string) (*Item, error) {
	row := t.tx.QueryRow(`SELECT iid, name, dname, duration_s, title, uploader, ptime, ctime, atime, utime, skip, thumbnails, chapters, video_format FROM items WHERE iid = ?`, iid)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr("get item", err)
	}
	return it, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*Item, error) {
	var it Item
	var duration sql.NullInt64
	var ptime, ctime, atime, utime sql.NullInt64
	var skip int
	var thumbJSON string
	var chapJSON sql.NullString

	err := row.Scan(&it.IID, &it.Name, &it.Dname, &duration, &it.Title, &it.Uploader,
		&ptime, &ctime, &atime, &utime, &skip, &thumbJSON, &chapJSON, &it.VideoFormat)
	if err != nil {
		return nil, err
	}

	it.DurationS = duration.Int64
	it.Ptime = ptrFromUnix(ptime)
	it.Ctime = ptrFromUnix(ctime)
	it.Atime = ptrFromUnix(atime)
	it.Utime = ptrFromUnix(utime)
	it.Skip = skip != 0

	if thumbJSON != "" {
		if err := json.Unmarshal([]byte(thumbJSON), &it.Thumbnails); err != nil {
			return nil, err
		}
	}
	if chapJSON.Valid && chapJSON.String != "" {
		if err := json.Unmarshal([]byte(chapJSON.String), &it.Chapters); err != nil {
			return nil, err
		}
	}
	return &it, nil
}

// InsertItem creates a new item row. Callers must ensure the iid does not
// already exist.
func (t *Tx) InsertItem(it Item) error {
	thumbJSON, err := json.Marshal(it.Thumbnails)
	if err != nil {
		return err
	}
	var chapJSON interface{}
	if it.Chapters != nil {
		b, err := json.Marshal(it.Chapters)
		if err != nil {
			return err
		}
		chapJSON = string(b)
	}

	_, err = t.tx.Exec(`INSERT INTO items (iid, name, dname, duration_s, title, uploader, ptime, ctime, atime, utime, skip, thumbnails, chapters, video_format)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		it.IID, it.Name, it.Dname, it.DurationS, it.Title, it.Uploader,
		unixPtr(it.Ptime), unixPtr(it.Ctime), unixPtr(it.Atime), unixPtr(it.Utime),
		boolToInt(it.Skip), string(thumbJSON), chapJSON, it.VideoFormat)
	if err != nil {
		return wrapStorageErr("insert item", err)
	}
	return nil
}

// UpdateItem overwrites every column of an existing item row.
func (t *Tx) UpdateItem(it Item) error {
	thumbJSON, err := json.Marshal(it.Thumbnails)
	if err != nil {
		return err
	}
	var chapJSON interface{}
	if it.Chapters != nil {
		b, err := json.Marshal(it.Chapters)
		if err != nil {
			return err
		}
		chapJSON = string(b)
	}

	_, err = t.tx.Exec(`UPDATE items SET name=?, dname=?, duration_s=?, title=?, uploader=?, ptime=?, ctime=?, atime=?, utime=?, skip=?, thumbnails=?, chapters=?, video_format=? WHERE iid=?`,
		it.Name, it.Dname, it.DurationS, it.Title, it.Uploader,
		unixPtr(it.Ptime), unixPtr(it.Ctime), unixPtr(it.Atime), unixPtr(it.Utime),
		boolToInt(it.Skip), string(thumbJSON), chapJSON, it.VideoFormat, it.IID)
	if err != nil {
		return wrapStorageErr("update item", err)
	}
	return nil
}

// SetItemSkip sets the skip flag on an item. Per the Sleep/Skip Registry
// contract, marking skip=true also deletes any sleep entry atomically.
func (t *Tx) SetItemSkip(iid string, skip bool) error {
	if _, err := t.tx.Exec(`UPDATE items SET skip=? WHERE iid=?`, boolToInt(skip), iid); err != nil {
		return wrapStorageErr("set item skip", err)
	}
	if skip {
		if _, err := t.tx.Exec(`DELETE FROM sleep_entries WHERE iid=?`, iid); err != nil {
			return wrapStorageErr("clear sleep entry on skip", err)
		}
	}
	return nil
}

// TouchItemAtime bumps only the item's atime, used when a skipped item is
// visited but not fetched.
func (t *Tx) TouchItemAtime(iid string, at time.Time) error {
	if _, err := t.tx.Exec(`UPDATE items SET atime=? WHERE iid=?`, at.Unix(), iid); err != nil {
		return wrapStorageErr("touch item atime", err)
	}
	return nil
}

// GetPreferredName returns the preferred-name override for iid, or "" if
// none is set.
func (t *Tx) GetPreferredName(iid string) (string, error) {
	var name string
	err := t.tx.QueryRow(`SELECT name FROM preferred_names WHERE iid=?`, iid).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", wrapStorageErr("get preferred name", err)
	}
	return name, nil
}

// SetPreferredName upserts the preferred-name override for iid.
func (t *Tx) SetPreferredName(iid, name string) error {
	_, err := t.tx.Exec(`INSERT INTO preferred_names (iid, name) VALUES (?,?)
		ON CONFLICT(iid) DO UPDATE SET name=excluded.name`, iid, name)
	if err != nil {
		return wrapStorageErr("set preferred name", err)
	}
	return nil
}

// ListItemsByFilter returns items matching either an iid or owning dname
// in keys (nil/empty means no filter), optionally restricted to items
// never downloaded (ignoreOld ⇒ utime IS NULL). Results are ordered by
// iid to guarantee reproducible batch processing order.
func (t *Tx) ListItemsByFilter(keys []string, ignoreOld bool) ([]Item, error) {
	query := `SELECT iid, name, dname, duration_s, title, uploader, ptime, ctime, atime, utime, skip, thumbnails, chapters, video_format FROM items`
	var conds []string
	var args []interface{}

	if len(keys) > 0 {
		placeholders := ""
		for i, k := range keys {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, k)
		}
		// Same key list matches either the iid column or the owning dname,
		// since callers may filter by item id or by source key.
		extra := make([]interface{}, len(args))
		copy(extra, args)
		args = append(args, extra...)
		conds = append(conds, "(iid IN ("+placeholders+") OR dname IN ("+placeholders+"))")
	}
	if ignoreOld {
		conds = append(conds, "utime IS NULL")
	}
	if len(conds) > 0 {
		query += " WHERE "
		for i, c := range conds {
			if i > 0 {
				query += " AND "
			}
			query += c
		}
	}
	query += " ORDER BY iid"

	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return nil, wrapStorageErr("list items", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, wrapStorageErr("scan item", err)
		}
		out = append(out, *it)
	}
	return out, wrapStorageErr("list items rows", rows.Err())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

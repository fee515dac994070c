package catalogdb

import (
	"database/sql"
	"errors"
	"time"
)

// GetUser fetches a user source by name. Returns (nil, nil) if absent.
func (t *Tx) GetUser(name string) (*User, error) {
	var u User
	var ctime, atime sql.NullInt64
	err := t.tx.QueryRow(`SELECT name, title, uploader, ctime, atime FROM users WHERE name=?`, name).
		Scan(&u.Name, &u.Title, &u.Uploader, &ctime, &atime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr("get user", err)
	}
	u.Ctime, u.Atime = ptrFromUnix(ctime), ptrFromUnix(atime)
	return &u, nil
}

// AddUser registers a new user source.
func (t *Tx) AddUser(name string, at time.Time) error {
	_, err := t.tx.Exec(`INSERT INTO users (name, ctime) VALUES (?,?)`, name, at.Unix())
	return wrapStorageErr("add user", err)
}

// TouchUser bumps a user source's atime/title/uploader after a successful sync.
func (t *Tx) TouchUser(name, title, uploader string, at time.Time) error {
	_, err := t.tx.Exec(`UPDATE users SET title=?, uploader=?, atime=? WHERE name=?`, title, uploader, at.Unix(), name)
	return wrapStorageErr("touch user", err)
}

// ListUsers returns all user sources, optionally restricted to those never
// synced (ignoreOld ⇒ atime IS NULL), ordered by name for reproducibility.
func (t *Tx) ListUsers(ignoreOld bool) ([]User, error) {
	q := `SELECT name, title, uploader, ctime, atime FROM users`
	if ignoreOld {
		q += ` WHERE atime IS NULL`
	}
	q += ` ORDER BY name`
	rows, err := t.tx.Query(q)
	if err != nil {
		return nil, wrapStorageErr("list users", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		var ctime, atime sql.NullInt64
		if err := rows.Scan(&u.Name, &u.Title, &u.Uploader, &ctime, &atime); err != nil {
			return nil, wrapStorageErr("scan user", err)
		}
		u.Ctime, u.Atime = ptrFromUnix(ctime), ptrFromUnix(atime)
		out = append(out, u)
	}
	return out, wrapStorageErr("list users rows", rows.Err())
}

// GetChannelNamed fetches a named-channel source. Returns (nil, nil) if absent.
func (t *Tx) GetChannelNamed(name string) (*ChannelNamed, error) {
	var c ChannelNamed
	var ctime, atime sql.NullInt64
	err := t.tx.QueryRow(`SELECT name, title, uploader, ctime, atime FROM channels_named WHERE name=?`, name).
		Scan(&c.Name, &c.Title, &c.Uploader, &ctime, &atime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr("get channel_named", err)
	}
	c.Ctime, c.Atime = ptrFromUnix(ctime), ptrFromUnix(atime)
	return &c, nil
}

// AddChannelNamed registers a new named-channel source.
func (t *Tx) AddChannelNamed(name string, at time.Time) error {
	_, err := t.tx.Exec(`INSERT INTO channels_named (name, ctime) VALUES (?,?)`, name, at.Unix())
	return wrapStorageErr("add channel_named", err)
}

// TouchChannelNamed bumps a named-channel's atime/title/uploader.
func (t *Tx) TouchChannelNamed(name, title, uploader string, at time.Time) error {
	_, err := t.tx.Exec(`UPDATE channels_named SET title=?, uploader=?, atime=? WHERE name=?`, title, uploader, at.Unix(), name)
	return wrapStorageErr("touch channel_named", err)
}

// ListChannelsNamed returns all named-channel sources.
func (t *Tx) ListChannelsNamed(ignoreOld bool) ([]ChannelNamed, error) {
	q := `SELECT name, title, uploader, ctime, atime FROM channels_named`
	if ignoreOld {
		q += ` WHERE atime IS NULL`
	}
	q += ` ORDER BY name`
	rows, err := t.tx.Query(q)
	if err != nil {
		return nil, wrapStorageErr("list channels_named", err)
	}
	defer rows.Close()
	var out []ChannelNamed
	for rows.Next() {
		var c ChannelNamed
		var ctime, atime sql.NullInt64
		if err := rows.Scan(&c.Name, &c.Title, &c.Uploader, &ctime, &atime); err != nil {
			return nil, wrapStorageErr("scan channel_named", err)
		}
		c.Ctime, c.Atime = ptrFromUnix(ctime), ptrFromUnix(atime)
		out = append(out, c)
	}
	return out, wrapStorageErr("list channels_named rows", rows.Err())
}

// GetChannelUnnamed fetches an unnamed-channel source. Returns (nil, nil) if absent.
func (t *Tx) GetChannelUnnamed(name string) (*ChannelUnnamed, error) {
	var c ChannelUnnamed
	var ctime, atime sql.NullInt64
	err := t.tx.QueryRow(`SELECT name, alias, title, uploader, ctime, atime FROM channels_unnamed WHERE name=?`, name).
		Scan(&c.Name, &c.Alias, &c.Title, &c.Uploader, &ctime, &atime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr("get channel_unnamed", err)
	}
	c.Ctime, c.Atime = ptrFromUnix(ctime), ptrFromUnix(atime)
	return &c, nil
}

// AddChannelUnnamed registers a new unnamed-channel source.
func (t *Tx) AddChannelUnnamed(name string, at time.Time) error {
	_, err := t.tx.Exec(`INSERT INTO channels_unnamed (name, ctime) VALUES (?,?)`, name, at.Unix())
	return wrapStorageErr("add channel_unnamed", err)
}

// SetChannelUnnamedAlias sets the directory-naming alias override.
func (t *Tx) SetChannelUnnamedAlias(name, alias string) error {
	_, err := t.tx.Exec(`UPDATE channels_unnamed SET alias=? WHERE name=?`, alias, name)
	return wrapStorageErr("set channel_unnamed alias", err)
}

// TouchChannelUnnamed bumps an unnamed-channel's atime/title/uploader.
func (t *Tx) TouchChannelUnnamed(name, title, uploader string, at time.Time) error {
	_, err := t.tx.Exec(`UPDATE channels_unnamed SET title=?, uploader=?, atime=? WHERE name=?`, title, uploader, at.Unix(), name)
	return wrapStorageErr("touch channel_unnamed", err)
}

// ListChannelsUnnamed returns all unnamed-channel sources.
func (t *Tx) ListChannelsUnnamed(ignoreOld bool) ([]ChannelUnnamed, error) {
	q := `SELECT name, alias, title, uploader, ctime, atime FROM channels_unnamed`
	if ignoreOld {
		q += ` WHERE atime IS NULL`
	}
	q += ` ORDER BY name`
	rows, err := t.tx.Query(q)
	if err != nil {
		return nil, wrapStorageErr("list channels_unnamed", err)
	}
	defer rows.Close()
	var out []ChannelUnnamed
	for rows.Next() {
		var c ChannelUnnamed
		var ctime, atime sql.NullInt64
		if err := rows.Scan(&c.Name, &c.Alias, &c.Title, &c.Uploader, &ctime, &atime); err != nil {
			return nil, wrapStorageErr("scan channel_unnamed", err)
		}
		c.Ctime, c.Atime = ptrFromUnix(ctime), ptrFromUnix(atime)
		out = append(out, c)
	}
	return out, wrapStorageErr("list channels_unnamed rows", rows.Err())
}

// GetPlaylist fetches a playlist source by iid. Returns (nil, nil) if absent.
func (t *Tx) GetPlaylist(iid string) (*Playlist, error) {
	var p Playlist
	var ctime, atime sql.NullInt64
	var skip int
	err := t.tx.QueryRow(`SELECT iid, title, uploader, ctime, atime, skip FROM playlists WHERE iid=?`, iid).
		Scan(&p.IID, &p.Title, &p.Uploader, &ctime, &atime, &skip)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr("get playlist", err)
	}
	p.Ctime, p.Atime = ptrFromUnix(ctime), ptrFromUnix(atime)
	p.Skip = skip != 0
	return &p, nil
}

// AddPlaylist registers a new playlist source.
func (t *Tx) AddPlaylist(iid string, at time.Time) error {
	_, err := t.tx.Exec(`INSERT INTO playlists (iid, ctime) VALUES (?,?)`, iid, at.Unix())
	return wrapStorageErr("add playlist", err)
}

// TouchPlaylist bumps a playlist's atime/title/uploader.
func (t *Tx) TouchPlaylist(iid, title, uploader string, at time.Time) error {
	_, err := t.tx.Exec(`UPDATE playlists SET title=?, uploader=?, atime=? WHERE iid=?`, title, uploader, at.Unix(), iid)
	return wrapStorageErr("touch playlist", err)
}

// SetPlaylistSkip sets the skip flag on a playlist.
func (t *Tx) SetPlaylistSkip(iid string, skip bool) error {
	_, err := t.tx.Exec(`UPDATE playlists SET skip=? WHERE iid=?`, boolToInt(skip), iid)
	return wrapStorageErr("set playlist skip", err)
}

// ListPlaylists returns all playlist sources. Playlists have no feed path
// so ignoreOld still applies (no atime means never enumerated).
func (t *Tx) ListPlaylists(ignoreOld bool) ([]Playlist, error) {
	q := `SELECT iid, title, uploader, ctime, atime, skip FROM playlists`
	if ignoreOld {
		q += ` WHERE atime IS NULL`
	}
	q += ` ORDER BY iid`
	rows, err := t.tx.Query(q)
	if err != nil {
		return nil, wrapStorageErr("list playlists", err)
	}
	defer rows.Close()
	var out []Playlist
	for rows.Next() {
		var p Playlist
		var ctime, atime sql.NullInt64
		var skip int
		if err := rows.Scan(&p.IID, &p.Title, &p.Uploader, &ctime, &atime, &skip); err != nil {
			return nil, wrapStorageErr("scan playlist", err)
		}
		p.Ctime, p.Atime = ptrFromUnix(ctime), ptrFromUnix(atime)
		p.Skip = skip != 0
		out = append(out, p)
	}
	return out, wrapStorageErr("list playlists rows", rows.Err())
}

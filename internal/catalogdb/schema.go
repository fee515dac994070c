package catalogdb

// schemaStatements mirrors the data model of spec §3, one table per
// entity. Columns that hold semantic JSON (thumbnails, chapters) are
// stored as TEXT and round-tripped through explicit Go structs by the
// entity-specific files in this package rather than passed around as raw
// strings anywhere else in the tree.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS items (
		iid          TEXT PRIMARY KEY,
		name         TEXT NOT NULL DEFAULT '',
		dname        TEXT NOT NULL DEFAULT '',
		duration_s   INTEGER,
		title        TEXT NOT NULL DEFAULT '',
		uploader     TEXT NOT NULL DEFAULT '',
		ptime        INTEGER,
		ctime        INTEGER,
		atime        INTEGER,
		utime        INTEGER,
		skip         INTEGER NOT NULL DEFAULT 0,
		thumbnails   TEXT NOT NULL DEFAULT '[]',
		chapters     TEXT,
		video_format TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS preferred_names (
		iid  TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS channels_named (
		name     TEXT PRIMARY KEY,
		title    TEXT NOT NULL DEFAULT '',
		uploader TEXT NOT NULL DEFAULT '',
		ctime    INTEGER,
		atime    INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS channels_unnamed (
		name     TEXT PRIMARY KEY,
		alias    TEXT NOT NULL DEFAULT '',
		title    TEXT NOT NULL DEFAULT '',
		uploader TEXT NOT NULL DEFAULT '',
		ctime    INTEGER,
		atime    INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		name     TEXT PRIMARY KEY,
		title    TEXT NOT NULL DEFAULT '',
		uploader TEXT NOT NULL DEFAULT '',
		ctime    INTEGER,
		atime    INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS playlists (
		iid      TEXT PRIMARY KEY,
		title    TEXT NOT NULL DEFAULT '',
		uploader TEXT NOT NULL DEFAULT '',
		ctime    INTEGER,
		atime    INTEGER,
		skip     INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS membership (
		source_variant TEXT NOT NULL,
		source_key     TEXT NOT NULL,
		iid            TEXT NOT NULL,
		idx            INTEGER NOT NULL,
		atime          INTEGER,
		PRIMARY KEY (source_variant, source_key, iid)
	)`,
	`CREATE TABLE IF NOT EXISTS feed_cache (
		source_variant TEXT NOT NULL,
		source_key     TEXT NOT NULL,
		feed_url       TEXT NOT NULL,
		last_poll      INTEGER,
		PRIMARY KEY (source_variant, source_key)
	)`,
	`CREATE TABLE IF NOT EXISTS sleep_entries (
		iid          TEXT PRIMARY KEY,
		wake_instant INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS hook_registry (
		id        TEXT PRIMARY KEY,
		module_id TEXT NOT NULL UNIQUE,
		ord       INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS copy_path_history (
		id    TEXT PRIMARY KEY,
		path  TEXT NOT NULL,
		atime INTEGER
	)`,
}

// Source variant discriminators shared by membership and feed_cache rows.
const (
	VariantUser            = "user"
	VariantChannelNamed    = "channel_named"
	VariantChannelUnnamed  = "channel_unnamed"
	VariantPlaylist        = "playlist"
)

// MiscellaneousSource is the sentinel dname for an item registered
// directly from a stand-alone watch URL, before any source has claimed it.
const MiscellaneousSource = "MISCELLANEOUS"

func (s *Store) createSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

package catalogdb

import "time"

// Thumbnail is one entry of an item's thumbnails JSON array.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Chapter is one (offset, label) pair of an item's chapters JSON array.
type Chapter struct {
	Start time.Duration `json:"start"`
	Label string        `json:"label"`
}

// Item is the catalog's record of one piece of media, keyed by iid.
type Item struct {
	IID         string
	Name        string
	Dname       string
	DurationS   int64
	Title       string
	Uploader    string
	Ptime       *time.Time
	Ctime       *time.Time
	Atime       *time.Time
	Utime       *time.Time
	Skip        bool
	Thumbnails  []Thumbnail
	Chapters    []Chapter
	VideoFormat string
}

// ChannelNamed is a named-channel source (addressed by /c/<name>).
type ChannelNamed struct {
	Name     string
	Title    string
	Uploader string
	Ctime    *time.Time
	Atime    *time.Time
}

// ChannelUnnamed is an unnamed-channel source (addressed by /channel/<id>),
// with an optional alias that wins over Name for directory naming.
type ChannelUnnamed struct {
	Name     string
	Alias    string
	Title    string
	Uploader string
	Ctime    *time.Time
	Atime    *time.Time
}

// EffectiveKey returns the alias when set, else Name.
func (c ChannelUnnamed) EffectiveKey() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

// User is a user source (addressed by /user/<name>).
type User struct {
	Name     string
	Title    string
	Uploader string
	Ctime    *time.Time
	Atime    *time.Time
}

// Playlist is a playlist source (addressed by /playlist?list=<iid>),
// the only variant with no feed path and its own skip flag.
type Playlist struct {
	IID      string
	Title    string
	Uploader string
	Ctime    *time.Time
	Atime    *time.Time
	Skip     bool
}

// Membership is one (source, item) relation row. Idx == -1 marks a
// tombstone: the item is no longer enumerated by the source but the
// membership row is kept to preserve provenance.
type Membership struct {
	SourceVariant string
	SourceKey     string
	IID           string
	Idx           int
	Atime         *time.Time
}

// Tombstone reports whether this membership row has been soft-deleted.
func (m Membership) Tombstone() bool { return m.Idx == -1 }

// FeedCache is a cached feed URL for one (variant, key) source.
type FeedCache struct {
	SourceVariant string
	SourceKey     string
	FeedURL       string
	LastPoll      *time.Time
}

// SleepEntry is a time-bounded suppression of one item.
type SleepEntry struct {
	IID         string
	WakeInstant time.Time
}

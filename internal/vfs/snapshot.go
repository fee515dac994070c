package vfs

import (
	"path/filepath"
	"time"

	"github.com/cmlburnett/ydla/internal/catalogdb"
	"github.com/cmlburnett/ydla/internal/downloader"
	"github.com/cmlburnett/ydla/internal/naming"
)

// linkEntry is one resolved symlink: its file name within a projected
// directory, the target it points to, and the mtime to report (copied
// from the backing item's utime).
type linkEntry struct {
	Name    string
	Target  string
	ModTime time.Time
}

// dateTree buckets link entries by YYYY/MM/DD.
type dateTree map[string]map[string]map[string][]linkEntry

func (d dateTree) add(at time.Time, e linkEntry) {
	y := at.Format("2006")
	m := at.Format("01")
	day := at.Format("02")
	if d[y] == nil {
		d[y] = make(map[string]map[string][]linkEntry)
	}
	if d[y][m] == nil {
		d[y][m] = make(map[string][]linkEntry)
	}
	d[y][m][day] = append(d[y][m][day], e)
}

// Snapshot is the immutable, in-memory projection built once at mount
// time from a catalog read. The VFS never re-queries the catalog while
// mounted; remount to pick up catalog changes.
type Snapshot struct {
	ArchiveRoot  string
	Relative     bool
	Channels     map[string][]linkEntry // named-channel key -> links
	ChannelsUnn  map[string][]linkEntry // unnamed-channel effective key -> links
	Users        map[string][]linkEntry
	Playlists    map[string][]linkEntry
	DatePublish  dateTree
	DateDownload dateTree
}

// BuildSnapshot reads every source and item row and resolves each
// downloaded item's on-disk target path, producing the tree the VFS
// exposes. Items without utime set (never downloaded) are omitted
// entirely, since there is no backing file to link to.
func BuildSnapshot(store *catalogdb.Store, archiveRoot string, relative bool) (*Snapshot, error) {
	tx, err := store.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	snap := &Snapshot{
		ArchiveRoot:  archiveRoot,
		Relative:     relative,
		Channels:     make(map[string][]linkEntry),
		ChannelsUnn:  make(map[string][]linkEntry),
		Users:        make(map[string][]linkEntry),
		Playlists:    make(map[string][]linkEntry),
		DatePublish:  make(dateTree),
		DateDownload: make(dateTree),
	}

	itemCache := make(map[string]*catalogdb.Item)
	preferredCache := make(map[string]string)
	getItem := func(iid string) (*catalogdb.Item, string, error) {
		if it, ok := itemCache[iid]; ok {
			return it, preferredCache[iid], nil
		}
		it, err := tx.GetItem(iid)
		if err != nil || it == nil {
			return nil, "", err
		}
		pref, err := tx.GetPreferredName(iid)
		if err != nil {
			return nil, "", err
		}
		itemCache[iid] = it
		preferredCache[iid] = pref
		return it, pref, nil
	}

	// addSourceMembers walks one source's membership rows (looked up by
	// membershipKey) and appends resolved links under dest[dirKey]. The
	// two keys differ for unnamed channels, where membership is recorded
	// against the channel's raw name but the directory is named after its
	// effective (alias-or-name) key.
	addSourceMembers := func(variant, membershipKey, dirKey string, dest map[string][]linkEntry) error {
		members, err := tx.ListMembership(variant, membershipKey)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.Tombstone() {
				continue
			}
			it, pref, err := getItem(m.IID)
			if err != nil {
				return err
			}
			if it == nil || it.Utime == nil {
				continue
			}
			effective := naming.EffectiveName(it.Name, pref)
			target := resolveTarget(archiveRoot, relative, it, pref)

			dest[dirKey] = append(dest[dirKey], linkEntry{
				Name:    effective + "-" + it.IID + "." + downloader.TargetContainer,
				Target:  target,
				ModTime: *it.Utime,
			})

			dateName := it.Dname + "-" + effective + "-" + it.IID + "." + downloader.TargetContainer
			if it.Ptime != nil {
				snap.DatePublish.add(*it.Ptime, linkEntry{Name: dateName, Target: target, ModTime: *it.Utime})
			}
			snap.DateDownload.add(*it.Utime, linkEntry{Name: dateName, Target: target, ModTime: *it.Utime})
		}
		return nil
	}

	users, err := tx.ListUsers(false)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if err := addSourceMembers(catalogdb.VariantUser, u.Name, u.Name, snap.Users); err != nil {
			return nil, err
		}
	}

	named, err := tx.ListChannelsNamed(false)
	if err != nil {
		return nil, err
	}
	for _, c := range named {
		if err := addSourceMembers(catalogdb.VariantChannelNamed, c.Name, c.Name, snap.Channels); err != nil {
			return nil, err
		}
	}

	unnamed, err := tx.ListChannelsUnnamed(false)
	if err != nil {
		return nil, err
	}
	for _, c := range unnamed {
		if err := addSourceMembers(catalogdb.VariantChannelUnnamed, c.Name, c.EffectiveKey(), snap.ChannelsUnn); err != nil {
			return nil, err
		}
	}

	playlists, err := tx.ListPlaylists(false)
	if err != nil {
		return nil, err
	}
	for _, p := range playlists {
		if err := addSourceMembers(catalogdb.VariantPlaylist, p.IID, p.IID, snap.Playlists); err != nil {
			return nil, err
		}
	}

	return snap, nil
}

func resolveTarget(archiveRoot string, relative bool, it *catalogdb.Item, preferredName string) string {
	full := naming.FormatVPath(archiveRoot, it.Dname, it.Name, preferredName, it.IID, downloader.TargetContainer)
	if !relative {
		return full
	}
	if rel, err := filepath.Rel(archiveRoot, full); err == nil {
		return rel
	}
	return full
}

//go:build linux
// +build linux

package vfs

import (
	"context"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// statfsGeometry is the fixed, nominal block geometry statfs reports. The
// numbers are arbitrary but internally consistent, and free/available
// blocks are always zero, so the VFS tracks no real free-space accounting.
// The statfs reply carries no read-only (ST_RDONLY) flag, and the mount
// options do not request a read-only mount.
const (
	statfsBlockSize  = 4096
	statfsTotalBlocks = 1 << 30
	statfsNameLen    = 255
)

// Root is the mount's top-level inode. It holds nothing but a read-only
// reference to a Snapshot built once at mount time; every Lookup and
// Readdir below serves out of that snapshot, never the catalog directly.
type Root struct {
	fs.Inode
	roNode
	Snap *Snapshot
}

var _ fs.NodeLookuper = (*Root)(nil)
var _ fs.NodeReaddirer = (*Root)(nil)
var _ fs.NodeStatfser = (*Root)(nil)
var _ fs.NodeGetattrer = (*Root)(nil)

func (r *Root) ino(key string) uint64 { return inoFromString("ydlavfs:" + key) }

func (r *Root) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := []fuse.DirEntry{
		{Name: "c", Ino: r.ino("dir:c"), Mode: fuse.S_IFDIR},
		{Name: "ch", Ino: r.ino("dir:ch"), Mode: fuse.S_IFDIR},
		{Name: "u", Ino: r.ino("dir:u"), Mode: fuse.S_IFDIR},
		{Name: "pl", Ino: r.ino("dir:pl"), Mode: fuse.S_IFDIR},
		{Name: "v", Ino: r.ino("dir:v"), Mode: fuse.S_IFDIR},
	}
	return fs.NewListDirStream(entries), 0
}

func (r *Root) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	var child fs.InodeEmbedder
	switch name {
	case "c":
		child = &variantDirNode{root: r, links: r.Snap.Channels, depth: 2}
	case "ch":
		child = &variantDirNode{root: r, links: r.Snap.ChannelsUnn, depth: 2}
	case "u":
		child = &variantDirNode{root: r, links: r.Snap.Users, depth: 2}
	case "pl":
		child = &variantDirNode{root: r, links: r.Snap.Playlists, depth: 2}
	case "v":
		child = &vDirNode{root: r}
	default:
		return nil, syscall.ENOENT
	}
	ch := r.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR, Ino: r.ino("dir:" + name)})
	setDirEntry(out)
	return ch, 0
}

func (r *Root) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	out.Blocks = statfsTotalBlocks
	out.Bfree = 0
	out.Bavail = 0
	out.Bsize = statfsBlockSize
	out.NameLen = statfsNameLen
	out.Frsize = statfsBlockSize
	return 0
}

func setDirEntry(out *fuse.EntryOut) {
	out.Mode = fuse.S_IFDIR | 0555
	out.SetEntryTimeout(1 * time.Second)
	out.SetAttrTimeout(1 * time.Second)
}

func setSymlinkEntry(out *fuse.EntryOut, size uint64, mtime time.Time) {
	out.Mode = fuse.S_IFLNK | 0777
	out.Size = size
	out.SetTimes(nil, &mtime, nil)
	out.SetEntryTimeout(1 * time.Second)
	out.SetAttrTimeout(1 * time.Second)
}

// baseDir is embedded by every non-root directory node: it carries the
// write-denial stubs plus the shared r-xr-xr-x Getattr response.
type baseDir struct {
	roNode
}

var _ fs.NodeGetattrer = baseDir{}

func (baseDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0555
	return 0
}

func (r *Root) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0555
	return 0
}

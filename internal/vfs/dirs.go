//go:build linux
// +build linux

package vfs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// variantDirNode is one of c/, ch/, u/, pl/: one child directory per
// source key of that variant.
type variantDirNode struct {
	fs.Inode
	baseDir
	root  *Root
	links map[string][]linkEntry
	depth int // depth of the per-source directories this node lists
}

var _ fs.NodeReaddirer = (*variantDirNode)(nil)
var _ fs.NodeLookuper = (*variantDirNode)(nil)

func (n *variantDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := make([]fuse.DirEntry, 0, len(n.links))
	for key := range n.links {
		entries = append(entries, fuse.DirEntry{
			Name: key,
			Ino:  n.root.ino("src:" + key),
			Mode: fuse.S_IFDIR,
		})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *variantDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	links, ok := n.links[name]
	if !ok {
		return nil, syscall.ENOENT
	}
	child := &sourceDirNode{root: n.root, key: name, links: links, depth: n.depth}
	ch := n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR, Ino: n.root.ino("src:" + name)})
	setDirEntry(out)
	return ch, 0
}

// sourceDirNode lists one source's downloaded items as symlinks.
type sourceDirNode struct {
	fs.Inode
	baseDir
	root  *Root
	key   string
	links []linkEntry
	depth int
}

var _ fs.NodeReaddirer = (*sourceDirNode)(nil)
var _ fs.NodeLookuper = (*sourceDirNode)(nil)

func (n *sourceDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	return newLinkDirStream(n.root, n.key, n.links), 0
}

func (n *sourceDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	for _, e := range n.links {
		if e.Name == name {
			return lookupSymlink(ctx, &n.Inode, n.root, n.key, e, n.depth, out)
		}
	}
	return nil, syscall.ENOENT
}

// vDirNode is v/: the two date-bucketed views.
type vDirNode struct {
	fs.Inode
	baseDir
	root *Root
}

var _ fs.NodeReaddirer = (*vDirNode)(nil)
var _ fs.NodeLookuper = (*vDirNode)(nil)

func (n *vDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := []fuse.DirEntry{
		{Name: "date_publish", Ino: n.root.ino("v:date_publish"), Mode: fuse.S_IFDIR},
		{Name: "date_download", Ino: n.root.ino("v:date_download"), Mode: fuse.S_IFDIR},
	}
	return fs.NewListDirStream(entries), 0
}

func (n *vDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	var tree dateTree
	switch name {
	case "date_publish":
		tree = n.root.Snap.DatePublish
	case "date_download":
		tree = n.root.Snap.DateDownload
	default:
		return nil, syscall.ENOENT
	}
	child := &dateRootDirNode{root: n.root, key: name, tree: tree}
	ch := n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR, Ino: n.root.ino("v:" + name)})
	setDirEntry(out)
	return ch, 0
}

// dateRootDirNode lists the years present in one date-bucketed view.
type dateRootDirNode struct {
	fs.Inode
	baseDir
	root *Root
	key  string
	tree dateTree
}

var _ fs.NodeReaddirer = (*dateRootDirNode)(nil)
var _ fs.NodeLookuper = (*dateRootDirNode)(nil)

func (n *dateRootDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := make([]fuse.DirEntry, 0, len(n.tree))
	for y := range n.tree {
		entries = append(entries, fuse.DirEntry{Name: y, Ino: n.root.ino(n.key + ":" + y), Mode: fuse.S_IFDIR})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *dateRootDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	months, ok := n.tree[name]
	if !ok {
		return nil, syscall.ENOENT
	}
	child := &dateMonthDirNode{root: n.root, key: n.key + "/" + name, months: months}
	ch := n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR, Ino: n.root.ino(n.key + ":" + name)})
	setDirEntry(out)
	return ch, 0
}

// dateMonthDirNode lists the months present within one year.
type dateMonthDirNode struct {
	fs.Inode
	baseDir
	root   *Root
	key    string
	months map[string]map[string][]linkEntry
}

var _ fs.NodeReaddirer = (*dateMonthDirNode)(nil)
var _ fs.NodeLookuper = (*dateMonthDirNode)(nil)

func (n *dateMonthDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := make([]fuse.DirEntry, 0, len(n.months))
	for m := range n.months {
		entries = append(entries, fuse.DirEntry{Name: m, Ino: n.root.ino(n.key + ":" + m), Mode: fuse.S_IFDIR})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *dateMonthDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	days, ok := n.months[name]
	if !ok {
		return nil, syscall.ENOENT
	}
	child := &dateDayDirNode{root: n.root, key: n.key + "/" + name, days: days}
	ch := n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR, Ino: n.root.ino(n.key + ":" + name)})
	setDirEntry(out)
	return ch, 0
}

// dateDayDirNode lists the days present within one month.
type dateDayDirNode struct {
	fs.Inode
	baseDir
	root *Root
	key  string
	days map[string][]linkEntry
}

var _ fs.NodeReaddirer = (*dateDayDirNode)(nil)
var _ fs.NodeLookuper = (*dateDayDirNode)(nil)

func (n *dateDayDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := make([]fuse.DirEntry, 0, len(n.days))
	for d := range n.days {
		entries = append(entries, fuse.DirEntry{Name: d, Ino: n.root.ino(n.key + ":" + d), Mode: fuse.S_IFDIR})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *dateDayDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	links, ok := n.days[name]
	if !ok {
		return nil, syscall.ENOENT
	}
	child := &dayLinksDirNode{root: n.root, key: n.key + "/" + name, links: links}
	ch := n.NewInode(ctx, child, fs.StableAttr{Mode: fuse.S_IFDIR, Ino: n.root.ino(n.key + ":" + name)})
	setDirEntry(out)
	return ch, 0
}

// dayLinksDirNode is a YYYY/MM/DD leaf directory: its children are the
// symlinks for items downloaded (or published) on that day.
type dayLinksDirNode struct {
	fs.Inode
	baseDir
	root  *Root
	key   string
	links []linkEntry
}

const dateLinkDepth = 5 // v/date_*/YYYY/MM/DD/<file>

var _ fs.NodeReaddirer = (*dayLinksDirNode)(nil)
var _ fs.NodeLookuper = (*dayLinksDirNode)(nil)

func (n *dayLinksDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	return newLinkDirStream(n.root, n.key, n.links), 0
}

func (n *dayLinksDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	for _, e := range n.links {
		if e.Name == name {
			return lookupSymlink(ctx, &n.Inode, n.root, n.key, e, dateLinkDepth, out)
		}
	}
	return nil, syscall.ENOENT
}

func newLinkDirStream(root *Root, dirKey string, links []linkEntry) fs.DirStream {
	entries := make([]fuse.DirEntry, 0, len(links))
	for _, e := range links {
		entries = append(entries, fuse.DirEntry{
			Name: e.Name,
			Ino:  root.ino("link:" + dirKey + "/" + e.Name),
			Mode: fuse.S_IFLNK,
		})
	}
	return fs.NewListDirStream(entries)
}

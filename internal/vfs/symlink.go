//go:build linux
// +build linux

package vfs

import (
	"context"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// symlinkNode is a single projected symlink. Its target was resolved once
// at snapshot time; when the mount was asked to produce relative links,
// Readlink prefixes the path under the archive root with one ".." climb
// per directory level, since that number depends on how deep the symlink
// sits in the virtual tree.
type symlinkNode struct {
	fs.Inode
	roNode
	root   *Root
	target string // path of the media file: absolute, or relative to the archive root for a Relative snapshot
	depth  int    // directory components between mount root and this symlink
}

var _ fs.NodeReadlinker = (*symlinkNode)(nil)
var _ fs.NodeGetattrer = (*symlinkNode)(nil)

func (n *symlinkNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	return []byte(n.renderTarget()), 0
}

func (n *symlinkNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFLNK | 0777
	out.Size = uint64(len(n.renderTarget()))
	return 0
}

func (n *symlinkNode) renderTarget() string {
	if !n.root.Snap.Relative {
		return n.target
	}
	rel := n.target
	if filepath.IsAbs(rel) {
		r, err := filepath.Rel(n.root.Snap.ArchiveRoot, rel)
		if err != nil {
			return n.target
		}
		rel = r
	}
	return path.Join(strings.Repeat("../", n.depth), rel)
}

// lookupSymlink builds (or reuses) the inode for one linkEntry under
// parent, using dirKey+entry name as the stable-inode seed.
func lookupSymlink(ctx context.Context, parent *fs.Inode, root *Root, dirKey string, e linkEntry, depth int, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := &symlinkNode{root: root, target: e.Target, depth: depth}
	ch := parent.NewInode(ctx, child, fs.StableAttr{
		Mode: fuse.S_IFLNK,
		Ino:  root.ino("link:" + dirKey + "/" + e.Name),
	})
	setSymlinkEntry(out, uint64(len(child.renderTarget())), e.ModTime)
	return ch, 0
}

//go:build linux
// +build linux

package vfs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// roNode is embedded by every node in the tree. It answers every
// write-ish FUSE operation with EACCES so the projection is read-only end
// to end, regardless of which directory or entry a caller targets.
type roNode struct{}

func (roNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EACCES
}

func (roNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	return syscall.EACCES
}

func (roNode) Unlink(ctx context.Context, name string) syscall.Errno {
	return syscall.EACCES
}

func (roNode) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	return syscall.EACCES
}

func (roNode) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EACCES
}

func (roNode) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EACCES
}

func (roNode) Mknod(ctx context.Context, name string, mode, rdev uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return nil, syscall.EACCES
}

func (roNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, syscall.EACCES
}

func (roNode) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return syscall.EACCES
}

var _ fs.NodeMkdirer = roNode{}
var _ fs.NodeRmdirer = roNode{}
var _ fs.NodeUnlinker = roNode{}
var _ fs.NodeRenamer = roNode{}
var _ fs.NodeLinker = roNode{}
var _ fs.NodeSymlinker = roNode{}
var _ fs.NodeMknoder = roNode{}
var _ fs.NodeCreater = roNode{}
var _ fs.NodeSetattrer = roNode{}

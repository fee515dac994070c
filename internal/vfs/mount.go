//go:build linux
// +build linux

// Package vfs implements the VFS Projection: a read-only, single-threaded,
// in-memory FUSE tree over a catalog snapshot. Every item that has been
// downloaded (utime set) appears as a symlink under its source directory
// and under both date-bucketed views; every write-ish FUSE operation
// fails with EACCES.
package vfs

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/cmlburnett/ydla/internal/catalogdb"
)

// Options configures one mount.
type Options struct {
	ArchiveRoot string
	Relative    bool // symlink targets as one "../" per directory level plus the path under the archive root, vs. absolute
	AllowOther  bool
	Debug       bool
}

// Mount builds a snapshot from store and mounts it at mountPoint, blocking
// until the process receives SIGINT/SIGTERM or the FUSE server exits.
func Mount(mountPoint string, store *catalogdb.Store, opts Options) error {
	snap, err := BuildSnapshot(store, opts.ArchiveRoot, opts.Relative)
	if err != nil {
		return err
	}
	root := &Root{Snap: snap}

	server, err := fs.Mount(mountPoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			Debug:      opts.Debug,
			AllowOther: opts.AllowOther,
			Name:       "ydlavfs",
			FsName:     "ydlavfs",
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		log.Println("vfs: unmounting")
		_ = server.Unmount()
	}()

	server.Wait()
	stop()
	return nil
}

// MountBackground mounts the projection without blocking, returning an
// unmount function. ctx cancellation also triggers unmount.
func MountBackground(ctx context.Context, mountPoint string, store *catalogdb.Store, opts Options) (unmount func(), err error) {
	snap, err := BuildSnapshot(store, opts.ArchiveRoot, opts.Relative)
	if err != nil {
		return nil, err
	}
	root := &Root{Snap: snap}

	server, err := fs.Mount(mountPoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			Debug:      opts.Debug,
			AllowOther: opts.AllowOther,
			Name:       "ydlavfs",
			FsName:     "ydlavfs",
		},
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = server.Unmount()
	}()

	return func() { _ = server.Unmount() }, nil
}

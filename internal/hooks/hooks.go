// Package hooks implements the plugin-hook dispatcher: a typed registry
// of best-effort external collaborators invoked at fixed points in a
// batch's lifecycle (sync complete, item-sync complete, download
// complete). A hook's failure is logged and never propagates into the
// caller's transaction outcome or return value.
package hooks

import (
	"context"
	"fmt"
	"log"

	"github.com/cmlburnett/ydla/internal/catalogdb"
)

// HookPoint names a dispatch point in the batch lifecycle.
type HookPoint string

const (
	PointSyncComplete     HookPoint = "sync_complete"
	PointItemSyncComplete HookPoint = "item_sync_complete"
	PointDownloadComplete HookPoint = "download_complete"
)

// Handler is one hook module's callback. It receives the dispatch point
// and a point-specific payload (typically a *BatchResult).
type Handler func(ctx context.Context, point HookPoint, payload any) error

// BatchResult is the payload passed to every dispatch point in this
// package: a short label (the command invoked) and the outcome counts.
type BatchResult struct {
	Label   string
	Done    int
	Skipped int
	Errors  int
	Err     error
}

// Message renders a short, human-readable summary, the same shape as the
// original CLI's completion notification.
func (b BatchResult) Message() string {
	label := b.Label
	if len(label) > 32 {
		label = label[:32] + "..."
	}
	switch {
	case b.Err != nil:
		errmsg := b.Err.Error()
		if len(errmsg) > 32 {
			errmsg = errmsg[:32] + "..."
		}
		return fmt.Sprintf("aborted with error (%s) for %s", errmsg, label)
	case b.Errors > 0:
		return fmt.Sprintf("completed with %d error(s): %s (done=%d skipped=%d)", b.Errors, label, b.Done, b.Skipped)
	default:
		return fmt.Sprintf("completed: %s (done=%d skipped=%d)", label, b.Done, b.Skipped)
	}
}

// Registry maps a registered hook module's id to its in-process handler.
// RegisterHook (catalogdb) only records that a module id participates in
// dispatch order; a Registry is what actually resolves that id to code,
// per spec.md's separation of hook registration from hook loading.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds an empty registry; callers wire in handlers with Add.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Add wires moduleID to handler. Re-adding the same id replaces it.
func (r *Registry) Add(moduleID string, handler Handler) {
	r.handlers[moduleID] = handler
}

// Dispatch looks up every hook module registered in the catalog, in
// dispatch order, and invokes the ones this process has a handler for.
// A module id with no wired handler is skipped without logging; a handler
// that errors is logged and skipped. Dispatch itself never returns an error.
func (r *Registry) Dispatch(ctx context.Context, store *catalogdb.Store, point HookPoint, payload any) {
	tx, err := store.Begin()
	if err != nil {
		log.Printf("hooks: dispatch %s: begin: %v", point, err)
		return
	}
	mods, err := tx.ListHooks()
	tx.Rollback()
	if err != nil {
		log.Printf("hooks: dispatch %s: list hooks: %v", point, err)
		return
	}

	for _, m := range mods {
		h, ok := r.handlers[m.ModuleID]
		if !ok {
			continue
		}
		if err := h(ctx, point, payload); err != nil {
			log.Printf("hooks: %s failed at %s: %v", m.ModuleID, point, err)
		}
	}
}

package catalogdb

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// HookModule is one registered plugin-hook module identifier, in
// dispatch order.
type HookModule struct {
	ModuleID string
	Order    int
}

// ListHooks returns every registered hook module in dispatch order.
func (t *Tx) ListHooks() ([]HookModule, error) {
	rows, err := t.tx.Query(`SELECT module_id, ord FROM hook_registry ORDER BY ord`)
	if err != nil {
		return nil, wrapStorageErr("list hooks", err)
	}
	defer rows.Close()
	var out []HookModule
	for rows.Next() {
		var h HookModule
		if err := rows.Scan(&h.ModuleID, &h.Order); err != nil {
			return nil, wrapStorageErr("scan hook", err)
		}
		out = append(out, h)
	}
	return out, wrapStorageErr("list hooks rows", rows.Err())
}

// RegisterHook appends moduleID to the end of the dispatch order. It is a
// no-op if already registered.
func (t *Tx) RegisterHook(moduleID string) error {
	var count int
	if err := t.tx.QueryRow(`SELECT COUNT(*) FROM hook_registry WHERE module_id=?`, moduleID).Scan(&count); err != nil {
		return wrapStorageErr("check hook registered", err)
	}
	if count > 0 {
		return nil
	}
	var maxOrd sql.NullInt64
	if err := t.tx.QueryRow(`SELECT MAX(ord) FROM hook_registry`).Scan(&maxOrd); err != nil {
		return wrapStorageErr("get max hook order", err)
	}
	next := 0
	if maxOrd.Valid {
		next = int(maxOrd.Int64) + 1
	}
	_, err := t.tx.Exec(`INSERT INTO hook_registry (id, module_id, ord) VALUES (?,?,?)`, uuid.NewString(), moduleID, next)
	return wrapStorageErr("register hook", err)
}

// UnregisterHook removes moduleID from the registry.
func (t *Tx) UnregisterHook(moduleID string) error {
	_, err := t.tx.Exec(`DELETE FROM hook_registry WHERE module_id=?`, moduleID)
	return wrapStorageErr("unregister hook", err)
}

// AddCopyPath records a destination directory offered by the copy helper.
func (t *Tx) AddCopyPath(path string, at time.Time) error {
	_, err := t.tx.Exec(`INSERT INTO copy_path_history (id, path, atime) VALUES (?,?,?)`, uuid.NewString(), path, at.Unix())
	return wrapStorageErr("add copy path", err)
}

// ListCopyPaths returns recorded copy-destination paths, most recent first.
func (t *Tx) ListCopyPaths() ([]string, error) {
	rows, err := t.tx.Query(`SELECT path FROM copy_path_history ORDER BY atime DESC`)
	if err != nil {
		return nil, wrapStorageErr("list copy paths", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, wrapStorageErr("scan copy path", err)
		}
		out = append(out, p)
	}
	return out, wrapStorageErr("list copy paths rows", rows.Err())
}

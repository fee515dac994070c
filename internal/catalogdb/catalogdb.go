// Package catalogdb is the durable relational catalog store: schema
// creation, typed per-entity row access, and an explicit transaction scope
// with guaranteed rollback on abnormal exit. It is the only package that
// issues SQL; every other package talks to the catalog through Store/Tx.
package catalogdb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/cmlburnett/ydla/internal/ydlerrors"
)

// Store wraps the catalog database file. A Store is not safe for
// concurrent transactions by design: the sync-and-archive state machine is
// single-threaded from the catalog's perspective (one open transaction at
// a time), so Store does not attempt internal locking beyond what
// database/sql already serializes.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the catalog file at path and ensures
// the schema exists. Schema creation is idempotent and never destructive:
// reopening an existing catalog never drops or rewrites a table.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ydlerrors.ErrStorageUnavailable, path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ydlerrors.ErrStorageUnavailable, path, err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pragma: %v", ydlerrors.ErrStorageUnavailable, err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: schema: %v", ydlerrors.ErrStorageUnavailable, err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is a single catalog transaction. Callers obtain one with Store.Begin,
// must call either Commit or Rollback, and should defer Rollback
// immediately after a successful Begin: Rollback on an already-committed
// transaction is a safe no-op, so the defer guarantees cleanup on every
// exit path including panics and early returns.
type Tx struct {
	tx *sql.Tx
}

// Begin starts a new transaction. The caller must not hold a Tx open
// across an external subprocess invocation that can hang; suspension
// points belong outside the transaction boundary.
func (s *Store) Begin() (*Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ydlerrors.ErrStorageUnavailable, err)
	}
	return &Tx{tx: tx}, nil
}

// Commit finalizes the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ydlerrors.ErrStorageUnavailable, err)
	}
	return nil
}

// Rollback aborts the transaction. Calling Rollback after a successful
// Commit is a no-op (database/sql reports sql.ErrTxDone, which we swallow)
// so that `defer tx.Rollback()` is always safe to write.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("%w: rollback: %v", ydlerrors.ErrStorageUnavailable, err)
	}
	return nil
}

func wrapStorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ydlerrors.ErrStorageUnavailable, op, err)
}

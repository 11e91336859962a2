// Package storage implements the single embedded transactional store
// (spec §4.1) backing every tabular entity in the data model: memories, the
// code graph, the GraphRAG entity/community graph, and relation-detector
// suggestions. It mirrors the teacher's storage.go interface shape and its
// migrations/ ordered-log package, but targets modernc.org/sqlite instead of
// the teacher's embedded SurrealDB (see DESIGN.md for the substitution
// rationale) and the vector payload replica table doubles as the embedded
// vector backend's storage (internal/vectorstore).
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/rcae/rcae/internal/storage/migrations"
)

// Store wraps the embedded database handle. All typed CRUD in this package
// is a method on Store; Store itself holds no business logic beyond
// transaction plumbing and the write-counters used for cache invalidation.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and applies
// every pending migration. Per spec §4.1, open/migration failure is fatal.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Cause: err}
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer, avoids SQLITE_BUSY under WAL

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Cause: err}
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Cause: err}
	}

	if err := migrations.ApplyAll(db); err != nil {
		db.Close()
		return nil, &StorageError{Op: "migrate", Cause: err}
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-process, non-persistent store — the "memory"
// storage backend named in spec §6's configuration document, useful for
// tests and ephemeral sessions.
func OpenMemory(ctx context.Context) (*Store, error) {
	return Open(ctx, ":memory:")
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle to packages (vectorstore) that need to share the
// same database file without duplicating the open/migrate dance.
func (s *Store) DB() *sql.DB {
	return s.db
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic — the "bulk operations under a single
// transaction" contract from spec §4.1.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "begin-tx", Cause: err}
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "commit-tx", Cause: err}
	}
	return nil
}

// WriteKind identifies which cache-relevant table family a write touched.
type WriteKind string

const (
	WriteKindMemory   WriteKind = "memory"
	WriteKindEntity   WriteKind = "entity"
	WriteKindReport   WriteKind = "report"
	WriteKindCodeNode WriteKind = "code_node"
)

// bumpWriteCounter records that a write affecting kind occurred, so the
// Context Assembler's cache (spec §4.7 step 6) can detect staleness without
// a pub/sub bus.
func bumpWriteCounter(ctx context.Context, q querier, kind WriteKind) error {
	_, err := q.ExecContext(ctx, `UPDATE write_counters SET counter = counter + 1 WHERE kind = ?`, string(kind))
	return err
}

// WriteCounters returns the current value of every write counter, used as
// part of the context cache key.
func (s *Store) WriteCounters(ctx context.Context) (map[WriteKind]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, counter FROM write_counters`)
	if err != nil {
		return nil, &StorageError{Op: "write-counters", Cause: err}
	}
	defer rows.Close()

	out := map[WriteKind]int64{}
	for rows.Next() {
		var kind string
		var counter int64
		if err := rows.Scan(&kind, &counter); err != nil {
			return nil, &StorageError{Op: "write-counters-scan", Cause: err}
		}
		out[WriteKind(kind)] = counter
	}
	return out, rows.Err()
}

// querier abstracts over *sql.DB and *sql.Tx so CRUD helpers can run either
// standalone or inside withTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ querier = (*sql.DB)(nil)
var _ querier = (*sql.Tx)(nil)

func wrapStorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Cause: err}
}

func noRowsToNotFound(kind, id string, err error) error {
	if err == sql.ErrNoRows {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return wrapStorageErr(fmt.Sprintf("get-%s", kind), err)
}

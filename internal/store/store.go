// Package store is the persistence boundary between the ingest context and
// the reader context (spec.md §5): a thin write-through gateway (C7) over a
// relational row store, plus a read-only query surface (C8) for external
// renderers. Both sides share one *sql.DB handle; the database/sql pool
// itself supplies the concurrency-safety spec.md §5 asks for, so Store adds
// no extra locking of its own beyond what a single prepared statement needs.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Mode selects where the row store lives, per spec.md §6's
// database_file_or_mem configuration key.
type Mode int

const (
	// ModeFile persists to a durable SQLite file on disk.
	ModeFile Mode = iota
	// ModeMemory keeps a process-local, non-durable SQLite database.
	ModeMemory
)

// DefaultFilePath is the database file created when Mode is ModeFile and the
// caller does not override it, matching the original implementation's
// hardcoded on-disk filename.
const DefaultFilePath = "./netflow9.sqlite"

// Store wraps the shared *sql.DB handle. database/sql already serialises
// access from multiple goroutines, so both the ingest and reader contexts
// may hold the same *Store without an external mutex (spec.md §5 "Global
// state" note: the row-store handle is the only shared mutable resource,
// confined behind this single guarded accessor).
type Store struct {
	db *sql.DB
}

// Open creates or attaches to the row store for mode and runs schema setup.
// path is only consulted for ModeFile; pass "" to use DefaultFilePath.
func Open(mode Mode, path string) (*Store, error) {
	dsn := ":memory:"
	if mode == ModeFile {
		if path == "" {
			path = DefaultFilePath
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	if mode == ModeMemory {
		// A single shared in-process connection is required: each new
		// connection to ":memory:" would otherwise see its own database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign_keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS senders (
			ip TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS flows (
			id INTEGER PRIMARY KEY,
			sender_ip TEXT NOT NULL REFERENCES senders(ip),
			src_addr TEXT, dst_addr TEXT,
			protocol INTEGER,
			src_port INTEGER, dst_port INTEGER,
			tcp_flags INTEGER, input_snmp INTEGER, output_snmp INTEGER,
			in_octets INTEGER, in_pkts INTEGER,
			src_tos INTEGER, src_mask INTEGER, dst_mask INTEGER,
			next_hop TEXT, icmp TEXT, traffic_type TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: create schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Package kvstore is the random-access, dense-integer-id on-disk store
// spec.md §5 requires for every artifact that isn't a lazy sorted stream:
// revision records, the delta store, the node store, the symbol offsets
// table, and so on. One table per artifact, opened read-write by the pass
// that produces it and read-only by every pass that consumes it, which is
// how the single-writer/many-reader contract in spec.md §5 is enforced at
// the storage layer rather than by convention alone.
package kvstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a single table of (id INTEGER PRIMARY KEY, value BLOB) backed
// by a sqlite3 file.
type Store struct {
	db       *sql.DB
	table    string
	readOnly bool
}

// Open opens (or creates) path and ensures table exists. If readOnly is
// true, Put returns an error instead of writing — the artifact manager
// uses this to enforce that only the producing pass may mutate a store.
func Open(path, table string, readOnly bool) (*Store, error) {
	dsn := path
	if readOnly {
		dsn = path + "?mode=ro"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, err)
	}
	s := &Store{db: db, table: table, readOnly: readOnly}
	if !readOnly {
		if _, err := db.Exec(fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, value BLOB NOT NULL)`, table)); err != nil {
			db.Close()
			return nil, fmt.Errorf("kvstore: create table %s: %w", table, err)
		}
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores value under id, replacing any existing entry. It is an error
// to call Put on a store opened read-only.
func (s *Store) Put(id int64, value []byte) error {
	if s.readOnly {
		return fmt.Errorf("kvstore: table %s is read-only", s.table)
	}
	_, err := s.db.Exec(fmt.Sprintf(`INSERT OR REPLACE INTO %s (id, value) VALUES (?, ?)`, s.table), id, value)
	return err
}

// Get retrieves the value stored under id. ok is false if no such id
// exists.
func (s *Store) Get(id int64) (value []byte, ok bool, err error) {
	row := s.db.QueryRow(fmt.Sprintf(`SELECT value FROM %s WHERE id = ?`, s.table), id)
	var v []byte
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Delete removes id from the store, used by the delta checkout engine's
// reference-counted cache eviction (spec.md §4.6).
func (s *Store) Delete(id int64) error {
	if s.readOnly {
		return fmt.Errorf("kvstore: table %s is read-only", s.table)
	}
	_, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), id)
	return err
}

// Each calls fn for every (id, value) pair in ascending id order.
func (s *Store) Each(fn func(id int64, value []byte) error) error {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT id, value FROM %s ORDER BY id ASC`, s.table))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var v []byte
		if err := rows.Scan(&id, &v); err != nil {
			return err
		}
		if err := fn(id, v); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of entries in the store.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	return n, err
}

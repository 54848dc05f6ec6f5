// Package db is the sqlite-backed preference database: the persisted
// per-well preference keys plus a log of exclusion set changes.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/welldash/internal/monitoring"
)

var logf = monitoring.Component("db")

// DB wraps the sqlite handle.
type DB struct {
	*sql.DB
	path string
	now  func() time.Time
}

// OpenDB opens the database at path and applies connection pragmas without
// touching the schema. Use ":memory:" for a throwaway database.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer keeps read-after-write ordering and lets ":memory:" share
	// a single database.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, path: path, now: time.Now}
	if err := db.applyPragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// NewDB opens the database at path and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) applyPragmas() error {
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Path returns the path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// TableStats is the row count of one table.
type TableStats struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// DatabaseStats summarises the database for the admin page.
type DatabaseStats struct {
	Path          string       `json:"path"`
	SchemaVersion uint         `json:"schema_version"`
	Dirty         bool         `json:"dirty"`
	Tables        []TableStats `json:"tables"`
}

// Stats counts the rows of every user table.
func (db *DB) Stats() (DatabaseStats, error) {
	version, dirty, err := db.MigrateVersion()
	if err != nil {
		return DatabaseStats{}, err
	}
	stats := DatabaseStats{Path: db.path, SchemaVersion: version, Dirty: dirty, Tables: []TableStats{}}

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return DatabaseStats{}, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return DatabaseStats{}, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return DatabaseStats{}, err
	}

	for _, name := range names {
		var n int64
		// Table names come from sqlite_master, not from callers.
		if err := db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, name)).Scan(&n); err != nil {
			return DatabaseStats{}, fmt.Errorf("count %s: %w", name, err)
		}
		stats.Tables = append(stats.Tables, TableStats{Name: name, Rows: n})
	}
	return stats, nil
}

package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const memoryDatabase = ":memory:"

// OpenDatabase opens a SQLite database. A writable database is created if missing and
// runs in WAL mode; a read-only one must already exist.
func OpenDatabase(path string, readOnly bool) (*sql.DB, error) {
	var dsn string
	switch {
	case path == memoryDatabase:
		dsn = path
	case readOnly:
		// the driver would create a missing file despite mode=ro
		if _, err := os.Stat(path); err != nil {
			return nil, &StorageError{Path: path, Op: "open", Err: err}
		}
		dsn = path + "?mode=ro"
	default:
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, &StorageError{Path: path, Op: "mkdir", Err: err}
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == memoryDatabase {
		// every connection to :memory: is a distinct database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return db, nil
}

// TableExists reports whether the named table exists
func TableExists(db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query failed: %w", err)
	}
	return n > 0, nil
}

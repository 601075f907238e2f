package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init opens (creating if needed) the SQLite snapshot file at path and migrates it.
func Init(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	// Pragmas in the connection string apply to every pooled connection
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(path, 0600)

	return db, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS contributors (
		  id               INTEGER PRIMARY KEY,
		  name             TEXT NOT NULL,
		  email            TEXT NOT NULL,
		  capsule_ids_json TEXT NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS capsules (
		  id                 INTEGER PRIMARY KEY,
		  contributor_id     INTEGER NOT NULL REFERENCES contributors(id) ON DELETE CASCADE,
		  name               TEXT NOT NULL,
		  description        TEXT NOT NULL,
		  time_created       INTEGER NOT NULL,
		  time_changed       INTEGER,
		  time_open          INTEGER NOT NULL,
		  time_until_changed INTEGER NOT NULL,
		  item_ids_json      TEXT NOT NULL DEFAULT '[]',
		  version            INTEGER NOT NULL DEFAULT 1
		);

		CREATE INDEX IF NOT EXISTS idx_capsules_contributor
		ON capsules(contributor_id);

		CREATE TABLE IF NOT EXISTS items (
		  id            INTEGER PRIMARY KEY,
		  capsule_id    INTEGER NOT NULL REFERENCES capsules(id) ON DELETE CASCADE,
		  type          TEXT NOT NULL,
		  description   TEXT NOT NULL,
		  size          TEXT NOT NULL,
		  path          TEXT NOT NULL,
		  metadata_json TEXT NOT NULL DEFAULT 'null',
		  time_added    INTEGER NOT NULL,
		  version       INTEGER NOT NULL DEFAULT 1
		);

		CREATE INDEX IF NOT EXISTS idx_items_capsule
		ON items(capsule_id);

		CREATE TABLE IF NOT EXISTS merges (
		  seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		  id          TEXT NOT NULL UNIQUE,
		  merged_at   INTEGER NOT NULL,
		  record_json TEXT NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

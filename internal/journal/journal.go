// Package journal records reconciliation runs in a local SQLite database.
package journal

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME NOT NULL,
	target_dir     TEXT NOT NULL,
	index_path     TEXT NOT NULL,
	find_string    TEXT NOT NULL,
	replace_string TEXT NOT NULL,
	dry_run        INTEGER NOT NULL DEFAULT 0,
	pages          INTEGER NOT NULL DEFAULT 0,
	replaced       INTEGER NOT NULL DEFAULT 0,
	skipped        INTEGER NOT NULL DEFAULT 0,
	failed         INTEGER NOT NULL DEFAULT 0,
	removed        INTEGER NOT NULL DEFAULT 0,
	added          INTEGER NOT NULL DEFAULT 0,
	index_checksum TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS link_changes (
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	kind   TEXT NOT NULL,
	target TEXT NOT NULL,
	line   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_link_changes_run ON link_changes(run_id);
CREATE INDEX IF NOT EXISTS idx_link_changes_target ON link_changes(target);
`

// DB wraps a sql.DB with journal operations.
type DB struct {
	conn *sql.DB
}

const dsnParams = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// Open opens (or creates) the journal database and applies the schema.
// dsn is a file path or a file: URI that may carry its own query parameters.
func Open(dsn string) (*DB, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite3", dsn+sep+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

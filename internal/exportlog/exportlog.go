// Package exportlog records export outcomes in SQLite, enabling
// skip-unchanged exports and the history surfaces.
package exportlog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS exports (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	path        TEXT NOT NULL,
	route       TEXT NOT NULL,
	checksum    TEXT NOT NULL DEFAULT '',
	entry_id    INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	exported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_exports_path_route ON exports(path, route);
CREATE INDEX IF NOT EXISTS idx_exports_exported_at ON exports(exported_at);
`

// Row statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Row is one recorded export attempt.
type Row struct {
	ID         int64     `json:"id"`
	Path       string    `json:"path"`
	Route      string    `json:"route"`
	Checksum   string    `json:"checksum"`
	EntryID    int       `json:"entry_id,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ExportedAt time.Time `json:"exported_at"`
}

// Log defines the ledger operations. Consumers should depend on this
// interface rather than the concrete *DB type to facilitate testing.
type Log interface {
	Record(r Row) error
	LastSuccess(path, route string) (*Row, error)
	History(limit int) ([]Row, error)
	Close() error
}

// DB wraps a sql.DB with ledger operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("exportlog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("exportlog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("exportlog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Record appends one export attempt.
func (db *DB) Record(r Row) error {
	if r.ExportedAt.IsZero() {
		r.ExportedAt = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO exports (path, route, checksum, entry_id, status, error, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.Path, r.Route, r.Checksum, r.EntryID, r.Status, r.Error, r.ExportedAt)
	if err != nil {
		return fmt.Errorf("exportlog: record: %w", err)
	}
	return nil
}

// LastSuccess returns the most recent successful export of (path, route),
// or nil when there is none.
func (db *DB) LastSuccess(path, route string) (*Row, error) {
	row := db.conn.QueryRow(`
		SELECT id, path, route, checksum, entry_id, status, error, exported_at
		FROM exports
		WHERE path = ? AND route = ? AND status = ?
		ORDER BY exported_at DESC, id DESC
		LIMIT 1
	`, path, route, StatusOK)

	var r Row
	err := row.Scan(&r.ID, &r.Path, &r.Route, &r.Checksum, &r.EntryID, &r.Status, &r.Error, &r.ExportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("exportlog: last success: %w", err)
	}
	return &r, nil
}

// History returns the most recent export attempts, newest first.
// limit <= 0 defaults to 50.
func (db *DB) History(limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, path, route, checksum, entry_id, status, error, exported_at
		FROM exports
		ORDER BY exported_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("exportlog: history: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Path, &r.Route, &r.Checksum, &r.EntryID, &r.Status, &r.Error, &r.ExportedAt); err != nil {
			return nil, fmt.Errorf("exportlog: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Verify *DB satisfies Log at compile time.
var _ Log = (*DB)(nil)

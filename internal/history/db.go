// Package history provides SQLite-backed persistence of conductor tick
// results (~/.local/share/hearth/hearth.db). The tick loop itself stays
// stateless; the CLI records results after the fact.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps an SQLite database connection holding tick history.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultPath returns the path to the hearth history database.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "hearth", "hearth.db")
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Ticks},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Ticks = `
CREATE TABLE IF NOT EXISTS ticks (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	state TEXT NOT NULL,
	turns INTEGER NOT NULL DEFAULT 0,
	tool_calls INTEGER NOT NULL DEFAULT 0,
	tokens_in INTEGER NOT NULL DEFAULT 0,
	tokens_out INTEGER NOT NULL DEFAULT 0,
	output TEXT,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_ticks_started_at ON ticks(started_at);
CREATE INDEX IF NOT EXISTS idx_ticks_state ON ticks(state);
`

// TickRecord is one persisted tick result.
type TickRecord struct {
	ID        string
	Started   time.Time
	State     string
	Turns     int
	ToolCalls int
	TokensIn  int64
	TokensOut int64
	Output    string
	Error     string
}

// RecordTick stores one tick result.
func (db *DB) RecordTick(rec TickRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO ticks (id, started_at, state, turns, tool_calls, tokens_in, tokens_out, output, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, formatTime(rec.Started), rec.State, rec.Turns, rec.ToolCalls,
		rec.TokensIn, rec.TokensOut, rec.Output, rec.Error)
	if err != nil {
		return fmt.Errorf("record tick: %w", err)
	}
	return nil
}

// RecentTicks returns the most recent tick records, newest first.
func (db *DB) RecentTicks(limit int) ([]TickRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(`
		SELECT id, started_at, state, turns, tool_calls, tokens_in, tokens_out, output, error
		FROM ticks ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var records []TickRecord
	for rows.Next() {
		var rec TickRecord
		var started string
		if err := rows.Scan(&rec.ID, &started, &rec.State, &rec.Turns, &rec.ToolCalls,
			&rec.TokensIn, &rec.TokensOut, &rec.Output, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		rec.Started, err = parseTime(started)
		if err != nil {
			return nil, fmt.Errorf("parse tick time: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PurgeOldTicks deletes ticks older than the specified duration.
// Returns the number of ticks deleted.
func (db *DB) PurgeOldTicks(olderThan time.Duration) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := db.conn.Exec(`DELETE FROM ticks WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old ticks: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Package store is the SQLite persistence layer shared with the external
// MCP server process. All SQL lives here; domain semantics live in the
// cue, convo, and queue packages.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// TimeFormat is the timestamp layout accepted for timeline cursors and
// produced by datetime('now'). Lexicographic order equals chronological
// order for this layout.
const TimeFormat = "2006-01-02 15:04:05"

type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the console database and applies the
// schema plus best-effort migrations for databases created by older builds.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open cuedeck db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	// Best-effort migrations for existing dbs (no-op if column exists).
	_, _ = db.Exec(`ALTER TABLE cue_requests ADD COLUMN payload TEXT`)
	_, _ = db.Exec(`ALTER TABLE message_queue ADD COLUMN position INTEGER`)
	_, _ = db.Exec(`ALTER TABLE agent_profiles ADD COLUMN updated_at TEXT`)
	// Backfill for rows written before updated_at existed.
	_, _ = db.Exec(`UPDATE agent_profiles SET updated_at = datetime('now') WHERE updated_at IS NULL`)

	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB for shared access.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// ParseCursor validates a timeline cursor: either a bare timestamp in the
// pinned layout or the "time|resp|rowid" keyset form issued by Timeline.
func ParseCursor(cursor string) (string, error) {
	if _, _, _, _, err := decodeCursor(cursor); err != nil {
		return "", err
	}
	return cursor, nil
}

// GetSetting returns a setting value by key.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetSetting persists a setting value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}

package logstore

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS log_lines (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	log_name TEXT NOT NULL,
	line     TEXT NOT NULL,
	created  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_log_lines_name ON log_lines(log_name, id);
`

type sqliteHandle string

func (h sqliteHandle) Name() string { return string(h) }

// SQLite stores log lines in a single table, one row per line.
type SQLite struct {
	db   *sql.DB
	mu   sync.Mutex
	stmt *sql.Stmt
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=2000")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", ErrUnavailable, err)
	}
	stmt, err := db.Prepare(`INSERT INTO log_lines (log_name, line) VALUES (?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: prepare insert: %v", ErrUnavailable, err)
	}
	return &SQLite{db: db, stmt: stmt}, nil
}

// Open returns a handle for name. Lines of earlier runs with the same name
// are kept.
func (s *SQLite) Open(name string) (Handle, error) {
	return sqliteHandle(name), nil
}

// Append inserts one line.
func (s *SQLite) Append(h Handle, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.stmt.Exec(h.Name(), line); err != nil {
		return fmt.Errorf("insert log line: %w", err)
	}
	return nil
}

// Lines returns all lines of the named log in append order.
func (s *SQLite) Lines(name string) ([]string, error) {
	rows, err := s.db.Query(`SELECT line FROM log_lines WHERE log_name = ? ORDER BY id`, name)
	if err != nil {
		return nil, fmt.Errorf("query log lines: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan log line: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// Close releases the database.
func (s *SQLite) Close() error {
	s.stmt.Close()
	return s.db.Close()
}

// Package history keeps a SQLite log of every upload hitupload performs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS uploads (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at  INTEGER NOT NULL,
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	files       TEXT NOT NULL,
	bytes       INTEGER NOT NULL,
	status      INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	error       TEXT NOT NULL
)`

// Entry is one recorded upload. Status is 0 when no response arrived.
type Entry struct {
	ID       int64
	Time     time.Time
	Method   string
	URL      string
	Files    []string
	Bytes    int64
	Status   int
	Duration time.Duration
	Passed   bool
	Error    string
}

// Store represents the history database
type Store struct {
	db           *sql.DB
	path         string
	queryTimeout time.Duration
}

// DefaultPath returns the history database location under the user's
// cache directory.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "hitupload", "history.db")
}

// Open opens (creating if needed) the history database at path. Both a
// plain path and the sqlite:// or sqlite: forms are accepted.
func Open(path string) (*Store, error) {
	path = parseDSN(path)
	if path == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}

	return &Store{db: db, path: path, queryTimeout: 10 * time.Second}, nil
}

func parseDSN(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "sqlite://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(s, "sqlite:"); ok {
		return rest
	}
	return s
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts e and sets its ID. A zero Time is stamped with now.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	files, err := json.Marshal(e.Files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (created_at, method, url, files, bytes, status, duration_ns, passed, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UnixMilli(), e.Method, e.URL, string(files), e.Bytes, e.Status,
		int64(e.Duration), boolToInt(e.Passed), e.Error)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	e.ID = id
	return nil
}

// List returns up to limit entries, newest first. A limit <= 0 returns
// everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `SELECT id, created_at, method, url, files, bytes, status, duration_ns, passed, error
		FROM uploads ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt int64
			files     string
			duration  int64
			passed    int
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.Method, &e.URL, &files, &e.Bytes,
			&e.Status, &duration, &passed, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(files), &e.Files); err != nil {
			return nil, fmt.Errorf("decode files of entry %d: %w", e.ID, err)
		}
		e.Time = time.UnixMilli(createdAt)
		e.Duration = time.Duration(duration)
		e.Passed = passed != 0
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Clear deletes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM uploads`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

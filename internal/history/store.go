package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// defaultMaxEntries caps the retained submission count. Quick-input history
// is a convenience, not an archive.
const defaultMaxEntries = 500

// timeNow is a test seam.
var timeNow = time.Now

// Entry is one recorded quick-input submission.
type Entry struct {
	ID          int64     `json:"id"`
	SurfaceID   string    `json:"surfaceId"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Store persists quick-input submissions in SQLite. database/sql handles
// connection-level locking; the store itself holds no mutable state.
type Store struct {
	db         *sql.DB
	maxEntries int
}

const schema = `
CREATE TABLE IF NOT EXISTS quick_input_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	surface_id   TEXT    NOT NULL,
	text         TEXT    NOT NULL,
	submitted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quick_input_history_submitted_at
	ON quick_input_history(submitted_at);
`

// Open creates or opens the history database at path. maxEntries <= 0 uses
// the default retention cap.
func Open(path string, maxEntries int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history: database path required")
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: mkdir: %w", err)
	}

	// WAL keeps submit-path writes from blocking overlay reads; the busy
	// timeout rides out the brief lock a checkpoint holds.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		url.PathEscape(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}

	slog.Info("[HISTORY] store opened", "path", path, "maxEntries", maxEntries)
	return &Store{db: db, maxEntries: maxEntries}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records one submission and trims the store to its retention cap.
func (s *Store) Append(ctx context.Context, surfaceID string, text string) error {
	surfaceID = strings.TrimSpace(surfaceID)
	if surfaceID == "" || strings.TrimSpace(text) == "" {
		return fmt.Errorf("history: surface id and text required")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO quick_input_history (surface_id, text, submitted_at) VALUES (?, ?, ?)`,
		surfaceID, text, timeNow().UnixMilli())
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	id, _ := res.LastInsertId()
	slog.Debug("[HISTORY] submission recorded", "id", id, "surfaceId", surfaceID)

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM quick_input_history WHERE id NOT IN (
			SELECT id FROM quick_input_history ORDER BY id DESC LIMIT ?
		)`, s.maxEntries); err != nil {
		// Trim failure is hygiene, not correctness; the next append retries.
		slog.Warn("[HISTORY] retention trim failed", "error", err)
	}
	return nil
}

// Recent returns up to limit submissions, newest first. limit <= 0 returns
// the full retained set.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.maxEntries {
		limit = s.maxEntries
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, surface_id, text, submitted_at
		 FROM quick_input_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var submittedAt int64
		if err := rows.Scan(&e.ID, &e.SurfaceID, &e.Text, &submittedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.SubmittedAt = time.UnixMilli(submittedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return entries, nil
}

// Count returns the number of retained submissions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quick_input_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}

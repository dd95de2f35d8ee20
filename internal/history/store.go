// Package history persists finished conversion runs in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/signflow/internal/logging"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT    NOT NULL UNIQUE,
	generation      INTEGER NOT NULL,
	language        TEXT    NOT NULL,
	phase           TEXT    NOT NULL,
	raw_text        TEXT    NOT NULL DEFAULT '',
	translated_text TEXT    NOT NULL DEFAULT '',
	grammar_text    TEXT    NOT NULL DEFAULT '',
	emotion         TEXT    NOT NULL DEFAULT '',
	confidence      REAL    NOT NULL DEFAULT 0,
	video_ref       TEXT    NOT NULL DEFAULT '',
	error_kind      TEXT    NOT NULL DEFAULT '',
	error_detail    TEXT    NOT NULL DEFAULT '',
	finished_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_finished_at ON runs (finished_at);
`

// Entry is one finished run.
type Entry struct {
	RunID          string
	Generation     uint64
	Language       string
	Phase          string
	RawText        string
	TranslatedText string
	GrammarText    string
	Emotion        string
	Confidence     float64
	VideoRef       string
	ErrorKind      string
	ErrorDetail    string
	FinishedAt     time.Time
}

// Store is the runs table.
type Store struct {
	db *sql.DB
}

// ResolvePath returns configured, or history.db under the signflow state dir.
func ResolvePath(configured string) (string, error) {
	if p := strings.TrimSpace(configured); p != "" {
		return p, nil
	}
	dir, err := logging.StateDir()
	if err != nil {
		return "", fmt.Errorf("resolve history path: %w", err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open creates the database file and schema when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %q: %w", path, err)
	}
	// SQLite allows one writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 2000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure history %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ErrNoRunID rejects entries that cannot be deduplicated.
var ErrNoRunID = errors.New("history entry has no run id")

// Append inserts e. A run id already stored is ignored, so replays are harmless.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.RunID == "" {
		return ErrNoRunID
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO runs (
	run_id, generation, language, phase, raw_text, translated_text,
	grammar_text, emotion, confidence, video_ref, error_kind, error_detail, finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, int64(e.Generation), e.Language, e.Phase, e.RawText, e.TranslatedText,
		e.GrammarText, e.Emotion, e.Confidence, e.VideoRef, e.ErrorKind, e.ErrorDetail,
		e.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append history run %s: %w", e.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, generation, language, phase, raw_text, translated_text,
	grammar_text, emotion, confidence, video_ref, error_kind, error_detail, finished_at
FROM runs ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			generation int64
			finishedMS int64
		)
		if err := rows.Scan(
			&e.RunID, &generation, &e.Language, &e.Phase, &e.RawText, &e.TranslatedText,
			&e.GrammarText, &e.Emotion, &e.Confidence, &e.VideoRef, &e.ErrorKind, &e.ErrorDetail,
			&finishedMS,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Generation = uint64(generation)
		e.FinishedAt = time.UnixMilli(finishedMS)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of stored runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"studai/internal/jobs"
	"studai/internal/services"
)

// Store is the sqlite-backed job archive.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Entry is one archived job.
type Entry struct {
	Job        *jobs.Job
	ArchivedAt time.Time
}

// Open opens (or creates) the archive database at path and applies migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Archive records jobs, replacing any earlier row with the same id.
func (s *Store) Archive(ctx context.Context, list []*jobs.Job) error {
	if len(list) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	archivedAt := s.now().UTC().Format(time.RFC3339Nano)
	for _, job := range list {
		if job == nil {
			continue
		}
		payload, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encode job %s: %w", job.ID, err)
		}
		var videoURL sql.NullString
		if job.Result != nil && job.Result.VideoURL != nil {
			videoURL = sql.NullString{String: *job.Result.VideoURL, Valid: true}
		}
		var completedAt sql.NullString
		if job.CompletedAt != nil {
			completedAt = sql.NullString{String: job.CompletedAt.UTC().Format(time.RFC3339Nano), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO jobs
            (id, status, stage, label, error, error_kind, video_url, payload, created_at, completed_at, archived_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.ID,
			string(job.Status),
			job.Stage,
			job.Label(),
			job.Error,
			job.ErrorKind,
			videoURL,
			string(payload),
			job.CreatedAt.UTC().Format(time.RFC3339Nano),
			completedAt,
			archivedAt,
		)
		if err != nil {
			return fmt.Errorf("archive job %s: %w", job.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

// List returns the most recently created archived jobs. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := "SELECT payload, archived_at FROM jobs ORDER BY created_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get returns one archived job.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT payload, archived_at FROM jobs WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, services.Wrap(services.ErrNotFound, "history", "get", fmt.Sprintf("job %s not archived", id), nil)
	}
	return entry, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var payload, archivedAt string
	if err := row.Scan(&payload, &archivedAt); err != nil {
		return Entry{}, err
	}
	var job jobs.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return Entry{}, fmt.Errorf("decode archived job: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, archivedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse archived_at: %w", err)
	}
	return Entry{Job: &job, ArchivedAt: ts}, nil
}

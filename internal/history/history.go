// Package history persists terminal jobs to a SQLite archive so completed
// work remains inspectable after the queue moves on.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"capstan/internal/config"
	"capstan/internal/queue"
)

// Entry is one archived terminal job.
type Entry struct {
	JobID      string
	Name       string
	Command    string
	State      queue.Status
	ExitCode   *int
	SubmitTime time.Time
	StartTime  *time.Time
	EndTime    *time.Time
	RecordedAt time.Time
}

// Store manages the job archive backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record archives a job that reached a terminal state. Calling Record on a
// nil store is a no-op so callers need not branch on whether the archive is
// enabled.
func (s *Store) Record(ctx context.Context, job *queue.Job) error {
	if s == nil || s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO job_history (
            job_id, name, command, state, exit_code,
            submit_time, start_time, end_time, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Name,
		job.Command,
		string(job.Status),
		nullableInt(job.ExitCode),
		job.SubmitTime.UTC().Format(time.RFC3339Nano),
		nullableTime(job.StartTime),
		nullableTime(job.EndTime),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert history row: %w", err)
	}
	return nil
}

// List returns archived jobs, newest first. A non-positive limit returns
// every entry.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	query := `SELECT job_id, name, command, state, exit_code,
            submit_time, start_time, end_time, recorded_at
        FROM job_history ORDER BY id DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		jobID       string
		name        string
		command     string
		stateStr    string
		exitCode    sql.NullInt64
		submitRaw   string
		startRaw    sql.NullString
		endRaw      sql.NullString
		recordedRaw string
	)

	if err := scanner.Scan(
		&jobID,
		&name,
		&command,
		&stateStr,
		&exitCode,
		&submitRaw,
		&startRaw,
		&endRaw,
		&recordedRaw,
	); err != nil {
		return nil, fmt.Errorf("scan history row: %w", err)
	}

	entry := &Entry{
		JobID:   jobID,
		Name:    name,
		Command: command,
		State:   queue.Status(stateStr),
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		entry.ExitCode = &code
	}
	if submit, err := parseTimeString(submitRaw); err == nil {
		entry.SubmitTime = submit
	}
	if startRaw.Valid {
		if start, err := parseTimeString(startRaw.String); err == nil {
			entry.StartTime = &start
		}
	}
	if endRaw.Valid {
		if end, err := parseTimeString(endRaw.String); err == nil {
			entry.EndTime = &end
		}
	}
	if recorded, err := parseTimeString(recordedRaw); err == nil {
		entry.RecordedAt = recorded
	}
	return entry, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return parsed, nil
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

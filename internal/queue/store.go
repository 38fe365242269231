package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"capstan/internal/config"
)

// lockRetryDelay is how often Mutate re-attempts the queue lock while waiting.
const lockRetryDelay = 25 * time.Millisecond

// Store persists the job table as a single JSON document replaced atomically
// on every write. It is shared between the CLI and the runner daemon, which
// may be separate OS processes; Mutate serializes their read-modify-write
// cycles through an advisory file lock.
type Store struct {
	path        string
	lockPath    string
	runningDir  string
	finishedDir string
}

// Open prepares a store rooted at the configured data directory, creating
// the directory layout if needed.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return &Store{
		path:        cfg.QueuePath(),
		lockPath:    cfg.QueueLockPath(),
		runningDir:  cfg.RunningLogDir(),
		finishedDir: cfg.FinishedLogDir(),
	}, nil
}

// Path returns the queue file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the whole job table. A missing file is an empty table; a file
// that exists but cannot be read or parsed reports ErrStoreUnavailable so
// callers never mistake a corrupt table for an empty one.
func (s *Store) Load() ([]*Job, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, s.path, err)
	}
	var jobs []*Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrStoreUnavailable, s.path, err)
	}
	return jobs, nil
}

// Save replaces the job table by writing a temporary file in the same
// directory and renaming it over the canonical path, so concurrent readers
// observe either the old or the new table, never a partial write. The
// temporary file is removed when any step fails.
func (s *Store) Save(jobs []*Job) error {
	if jobs == nil {
		jobs = []*Job{}
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode table: %w", ErrStoreUnavailable, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".queue-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrStoreUnavailable, err)
	}
	tmpPath := tmp.Name()
	cleanup := func(step string, cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, step, cause)
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %w", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: replace %s: %w", ErrStoreUnavailable, s.path, err)
	}
	return nil
}

// Mutate runs fn over the loaded table while holding the queue lock and
// persists the result when fn reports a change. Atomic rename alone keeps
// readers consistent but lets overlapping writers silently discard each
// other's updates; the advisory lock closes that window. The context bounds
// how long Mutate waits for the lock.
func (s *Store) Mutate(ctx context.Context, fn func(jobs *[]*Job) (bool, error)) error {
	lock := flock.New(s.lockPath)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("%w: acquire queue lock: %w", ErrStoreUnavailable, err)
	}
	if !locked {
		return fmt.Errorf("%w: queue lock unavailable", ErrStoreUnavailable)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	jobs, err := s.Load()
	if err != nil {
		return err
	}
	changed, err := fn(&jobs)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.Save(jobs)
}

// GetByID returns a copy of the record with the given id.
func (s *Store) GetByID(id string) (*Job, error) {
	jobs, err := s.Load()
	if err != nil {
		return nil, err
	}
	job := Find(jobs, id)
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job.Clone(), nil
}

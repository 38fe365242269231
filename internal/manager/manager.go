// Package manager exposes the queue operations shared by the CLI and the
// daemon: submitting, listing, inspecting, and cancelling jobs.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"capstan/internal/config"
	"capstan/internal/history"
	"capstan/internal/logging"
	"capstan/internal/proc"
	"capstan/internal/queue"
)

// Manager coordinates queue mutations initiated by users. Every write goes
// through the store's locked mutate cycle so concurrent CLI calls and the
// daemon never clobber each other's transitions.
type Manager struct {
	store          *queue.Store
	archive        *history.Store
	logger         *slog.Logger
	signal         func(pid int) error
	defaultTimeout int64
}

// Option adjusts Manager construction.
type Option func(*Manager)

// WithSignaller overrides how cancellation signals a running job's process.
func WithSignaller(fn func(pid int) error) Option {
	return func(m *Manager) {
		m.signal = fn
	}
}

// WithHistory attaches the terminal job archive. A nil archive disables
// recording.
func WithHistory(archive *history.Store) Option {
	return func(m *Manager) {
		m.archive = archive
	}
}

// WithLogger sets the logger used for queue transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New constructs a Manager around the job store.
func New(cfg *config.Config, store *queue.Store, opts ...Option) *Manager {
	m := &Manager{
		store:          store,
		logger:         logging.NewNop(),
		defaultTimeout: cfg.Runner.DefaultTimeout,
		signal: func(pid int) error {
			return proc.NewHandle(pid).Terminate()
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit validates and persists a new queued job, returning it with its
// assigned id. A non-positive timeout falls back to the configured default.
func (m *Manager) Submit(ctx context.Context, command, name string, timeoutSeconds int64) (*queue.Job, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("command must not be empty")
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = m.defaultTimeout
	}

	job := queue.NewJob(command, name, timeoutSeconds)
	err := m.store.Mutate(ctx, func(jobs *[]*queue.Job) (bool, error) {
		*jobs = append(*jobs, job)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobName, job.Name),
		logging.Int64("timeout_seconds", job.Timeout))
	return job.Clone(), nil
}

// List returns jobs in submission order, optionally restricted to a single
// state. An empty filter returns everything.
func (m *Manager) List(ctx context.Context, filter queue.Status) ([]*queue.Job, error) {
	jobs, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return jobs, nil
	}

	var filtered []*queue.Job
	for _, job := range jobs {
		if job.Status == filter {
			filtered = append(filtered, job)
		}
	}
	return filtered, nil
}

// Info returns a single job by id.
func (m *Manager) Info(ctx context.Context, id string) (*queue.Job, error) {
	return m.store.GetByID(id)
}

// Cancel stops a job. Queued jobs move straight to cancelled; running jobs
// are sent SIGTERM and marked cancelled once the signal is delivered. The
// state check and the transition share one locked mutate cycle, so a race
// with the daemon resolves to a single terminal outcome.
func (m *Manager) Cancel(ctx context.Context, id string) (*queue.Job, error) {
	var cancelled *queue.Job
	err := m.store.Mutate(ctx, func(jobs *[]*queue.Job) (bool, error) {
		job := queue.Find(*jobs, id)
		if job == nil {
			return false, fmt.Errorf("%w: job %s", queue.ErrNotFound, id)
		}
		if job.IsTerminal() {
			return false, fmt.Errorf("%w: job %s is %s", queue.ErrAlreadyTerminal, job.ID, job.Status)
		}
		if job.Status == queue.StatusRunning {
			if err := m.signal(job.PID); err != nil {
				return false, fmt.Errorf("%w: job %s pid %d: %w", queue.ErrCancelFailed, job.ID, job.PID, err)
			}
		}

		now := time.Now().UTC()
		job.Status = queue.StatusCancelled
		job.EndTime = &now
		cancelled = job.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if cancelled.StartTime != nil {
		if err := m.store.RelocateLogs(cancelled.ID); err != nil {
			m.logger.Warn("relocate logs",
				logging.String(logging.FieldJobID, cancelled.ID),
				logging.Error(err))
		}
	}
	m.recordHistory(ctx, cancelled)
	m.logger.Info("job cancelled",
		logging.String(logging.FieldJobID, cancelled.ID),
		logging.String(logging.FieldJobName, cancelled.Name))
	return cancelled, nil
}

func (m *Manager) recordHistory(ctx context.Context, job *queue.Job) {
	if err := m.archive.Record(ctx, job); err != nil {
		m.logger.Warn("record history",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	}
}

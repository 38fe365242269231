// Package runner implements the daemon loop that launches queued jobs and
// supervises running ones until they reach a terminal state.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"capstan/internal/config"
	"capstan/internal/history"
	"capstan/internal/logging"
	"capstan/internal/proc"
	"capstan/internal/queue"
)

// Runner drives the daemon scan loop. A single goroutine owns every queue
// transition; exit polls are non-blocking so one slow job never stalls
// supervision of the others. The instance lock guarantees at most one
// runner supervises a given store.
type Runner struct {
	cfg      *config.Config
	store    *queue.Store
	archive  *history.Store
	logger   *slog.Logger
	launcher proc.Launcher
	now      func() time.Time

	lockPath string
	lock     *flock.Flock
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// Option adjusts Runner construction.
type Option func(*Runner)

// WithLauncher replaces how job commands are started.
func WithLauncher(launcher proc.Launcher) Option {
	return func(r *Runner) {
		if launcher != nil {
			r.launcher = launcher
		}
	}
}

// WithClock replaces the time source used for start, end, and deadline
// decisions.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithInterval overrides the configured poll interval, which only has whole
// second granularity.
func WithInterval(interval time.Duration) Option {
	return func(r *Runner) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logging.NewComponentLogger(logger, "runner")
		}
	}
}

// WithHistory attaches the terminal job archive. A nil archive disables
// recording.
func WithHistory(archive *history.Store) Option {
	return func(r *Runner) {
		r.archive = archive
	}
}

// New constructs a Runner supervising the given store.
func New(cfg *config.Config, store *queue.Store, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewNop(),
		launcher: proc.ShellLauncher{Shell: cfg.Runner.Shell},
		now:      time.Now,
		lockPath: cfg.DaemonLockPath(),
		interval: time.Duration(cfg.Runner.PollInterval) * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.interval <= 0 {
		r.interval = 2 * time.Second
	}
	r.lock = flock.New(r.lockPath)
	return r
}

// Start acquires the instance lock and launches the scan loop. It fails when
// another daemon already supervises the store.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("runner already running")
	}

	locked, err := r.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another capstand instance holds %s", r.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.err = nil
	r.running = true
	go r.run(runCtx, done)
	return nil
}

// Stop cancels the loop, waits for it to exit, and releases the instance
// lock. Running jobs are left alone; the next daemon adopts them.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.running = false
	r.mu.Unlock()

	cancel()
	<-done
	if err := r.lock.Unlock(); err != nil {
		r.logger.Warn("release daemon lock", logging.Error(err))
	}
}

// Done reports loop termination. The returned channel is closed once the
// loop exits for any reason; it is only valid after Start.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Err explains why the loop stopped on its own. It is nil after a clean
// shutdown and meaningful only once Done is closed.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Runner) exit(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// InstanceRunning reports whether a daemon currently holds the instance lock
// for the configured data directory.
func InstanceRunning(cfg *config.Config) (bool, error) {
	lock := flock.New(cfg.DaemonLockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if !locked {
		return true, nil
	}
	if err := lock.Unlock(); err != nil {
		return false, fmt.Errorf("release probe lock: %w", err)
	}
	return false, nil
}

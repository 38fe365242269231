package runner

import (
	"context"
	"errors"
	"time"

	"capstan/internal/logging"
	"capstan/internal/proc"
	"capstan/internal/queue"
)

func (r *Runner) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	r.logger.Info("runner started",
		logging.String("queue", r.store.Path()),
		logging.Duration("poll_interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped")
			return
		default:
		}

		if err := r.pass(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				r.logger.Info("runner stopped")
				return
			}
			r.exit(err)
			r.logger.Error("runner halted, queue store unusable", logging.Error(err))
			return
		}

		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped")
			return
		case <-time.After(r.interval):
		}
	}
}

// pass scans a snapshot of the table once. Every transition re-checks the
// job's state under the queue lock, so decisions taken on the snapshot
// cannot clobber a concurrent cancellation.
func (r *Runner) pass(ctx context.Context) error {
	jobs, err := r.store.Load()
	if err != nil {
		return err
	}

	for _, job := range jobs {
		switch {
		case job.Status == queue.StatusRunning:
			if err := r.supervise(ctx, job.ID); err != nil {
				return err
			}
		case job.Status == queue.StatusQueued:
			if err := r.start(ctx, job.ID); err != nil {
				return err
			}
		case job.IsTerminal() && job.PID > 0:
			// Collect children whose record went terminal out-of-band,
			// such as a CLI cancel, so they do not linger as zombies.
			_, _ = proc.NewHandle(job.PID).TryWait()
		}
	}
	return nil
}

// supervise polls one running job: collect its exit status if it ended,
// detect orphans whose process vanished, and enforce the timeout. The exit
// poll runs first so completion beats an expiring deadline.
func (r *Runner) supervise(ctx context.Context, id string) error {
	ctx = logging.WithJobID(ctx, id)

	var ended *queue.Job
	err := r.store.Mutate(ctx, func(jobs *[]*queue.Job) (bool, error) {
		job := queue.Find(*jobs, id)
		if job == nil || job.Status != queue.StatusRunning {
			return false, nil
		}
		if job.PID <= 0 {
			// A running record without a pid only appears when the queue
			// file was edited by hand; finalize it like a vanished orphan.
			r.fail(job)
			ended = job.Clone()
			return true, nil
		}

		handle := proc.NewHandle(job.PID)
		result, waitErr := handle.TryWait()
		switch {
		case waitErr == nil && result.Exited:
			r.complete(job, result.Code)
			ended = job.Clone()
			return true, nil
		case waitErr == nil:
			// Still running; fall through to the deadline check.
		case errors.Is(waitErr, proc.ErrNotChild):
			if !handle.Alive() {
				// Launched by an earlier daemon and already gone; the
				// exit status is unobservable.
				r.fail(job)
				ended = job.Clone()
				return true, nil
			}
			// Adopted and alive: supervised for liveness and timeout only.
		default:
			logging.WithContext(ctx, r.logger).Warn("exit poll failed", logging.Error(waitErr))
			return false, nil
		}

		if job.DeadlineExceeded(r.now()) {
			r.expire(job, handle)
			ended = job.Clone()
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	r.finalize(ctx, ended)
	return nil
}

// start launches one queued job. The queued check, the launch, and the
// persisted running record share a single locked mutate cycle so a daemon
// crash can never leave an untracked child for longer than the launch call
// itself.
func (r *Runner) start(ctx context.Context, id string) error {
	ctx = logging.WithJobID(ctx, id)

	var started, ended *queue.Job
	err := r.store.Mutate(ctx, func(jobs *[]*queue.Job) (bool, error) {
		job := queue.Find(*jobs, id)
		if job == nil || job.Status != queue.StatusQueued {
			return false, nil
		}

		handle, launchErr := r.launcher.Launch(job.Command,
			r.store.RunningStdoutPath(job.ID),
			r.store.RunningStderrPath(job.ID))
		now := r.now().UTC()
		if launchErr != nil {
			logging.WithContext(ctx, r.logger).Error("launch failed",
				logging.String(logging.FieldCommand, job.Command),
				logging.Error(launchErr))
			// The attempt counts as the start; failed records carry both
			// stamps even when no process ever existed.
			job.Status = queue.StatusFailed
			job.StartTime = &now
			job.EndTime = &now
			ended = job.Clone()
			return true, nil
		}

		job.PID = handle.PID()
		job.StartTime = &now
		job.Status = queue.StatusRunning
		started = job.Clone()
		return true, nil
	})
	if err != nil {
		return err
	}

	if started != nil {
		logging.WithContext(ctx, r.logger).Info("job started",
			logging.String(logging.FieldJobName, started.Name),
			logging.Int(logging.FieldPID, started.PID))
	}
	r.finalize(ctx, ended)
	return nil
}

func (r *Runner) complete(job *queue.Job, code int) {
	now := r.now().UTC()
	job.ExitCode = &code
	job.EndTime = &now
	if code == 0 {
		job.Status = queue.StatusFinished
	} else {
		job.Status = queue.StatusFailed
	}
}

func (r *Runner) fail(job *queue.Job) {
	now := r.now().UTC()
	job.Status = queue.StatusFailed
	job.EndTime = &now
}

// expire force-kills a job whose deadline passed. The reap directly after
// the kill collects the corpse; adopted orphans report ErrNotChild there
// and are left to init.
func (r *Runner) expire(job *queue.Job, handle proc.Handle) {
	if err := handle.Kill(); err != nil {
		r.logger.Warn("kill expired job",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	}
	if result, err := handle.Reap(); err == nil && result.Exited {
		code := result.Code
		job.ExitCode = &code
	}
	now := r.now().UTC()
	job.Status = queue.StatusTimeout
	job.EndTime = &now
}

// finalize handles the bookkeeping shared by every terminal transition:
// log relocation, the history archive, and the transition log line. All of
// it is best-effort; the persisted state change already happened.
func (r *Runner) finalize(ctx context.Context, job *queue.Job) {
	if job == nil {
		return
	}
	logger := logging.WithContext(logging.WithJobID(ctx, job.ID), r.logger)

	if err := r.store.RelocateLogs(job.ID); err != nil {
		logger.Warn("relocate logs", logging.Error(err))
	}
	if err := r.archive.Record(ctx, job); err != nil {
		logger.Warn("record history", logging.Error(err))
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldJobName, job.Name),
		logging.String(logging.FieldJobState, string(job.Status)),
	}
	if job.ExitCode != nil {
		attrs = append(attrs, logging.Int(logging.FieldExitCode, *job.ExitCode))
	}
	logger.Info("job ended", logging.Args(attrs...)...)
}

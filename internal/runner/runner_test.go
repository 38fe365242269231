package runner_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"capstan/internal/config"
	"capstan/internal/history"
	"capstan/internal/manager"
	"capstan/internal/proc"
	"capstan/internal/queue"
	"capstan/internal/runner"
	"capstan/internal/testsupport"
)

const testInterval = 25 * time.Millisecond

// testClock is a manual time source so deadline checks do not depend on
// real sleeps.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func startRunner(t *testing.T, cfg *config.Config, store *queue.Store, opts ...runner.Option) *runner.Runner {
	t.Helper()

	opts = append([]runner.Option{runner.WithInterval(testInterval)}, opts...)
	r := runner.New(cfg, store, opts...)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("runner.Start() error = %v", err)
	}
	t.Cleanup(r.Stop)
	return r
}

func waitForStatus(t *testing.T, store *queue.Store, id string, want queue.Status) *queue.Job {
	t.Helper()

	var got *queue.Job
	testsupport.WaitFor(t, 10*time.Second, func() bool {
		job, err := store.GetByID(id)
		if err != nil {
			t.Fatalf("GetByID(%s) error = %v", id, err)
		}
		got = job
		return job.Status == want
	}, "job never reached state "+string(want))
	return got
}

func TestRunnerFinishesSuccessfulJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.SubmitJob(t, store, "echo done", 600)

	startRunner(t, cfg, store)

	final := waitForStatus(t, store, job.ID, queue.StatusFinished)
	if final.PID <= 0 {
		t.Fatalf("pid = %d, want positive", final.PID)
	}
	if final.StartTime == nil || final.EndTime == nil {
		t.Fatal("start or end time missing on finished job")
	}
	if !final.EndTime.After(*final.StartTime) {
		t.Fatalf("end time %v not after start time %v", final.EndTime, final.StartTime)
	}
	if final.ExitCode == nil || *final.ExitCode != 0 {
		t.Fatalf("exit code = %v, want 0", final.ExitCode)
	}

	// Relocation runs just after the state save, so poll for it.
	testsupport.WaitFor(t, 10*time.Second, func() bool {
		if _, err := os.Stat(store.FinishedStdoutPath(job.ID)); err != nil {
			return false
		}
		_, err := os.Stat(store.RunningStdoutPath(job.ID))
		return errors.Is(err, os.ErrNotExist)
	}, "logs were not relocated to the finished area")
}

func TestRunnerRecordsNonZeroExit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.SubmitJob(t, store, "exit 7", 600)

	startRunner(t, cfg, store)

	final := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if final.ExitCode == nil || *final.ExitCode != 7 {
		t.Fatalf("exit code = %v, want 7", final.ExitCode)
	}
	if final.EndTime == nil {
		t.Fatal("end time missing on failed job")
	}
}

func TestRunnerStartsJobsInSubmissionOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := testsupport.SubmitJob(t, store, "echo first", 600)
	second := testsupport.SubmitJob(t, store, "echo second", 600)

	startRunner(t, cfg, store)

	waitForStatus(t, store, first.ID, queue.StatusFinished)
	waitForStatus(t, store, second.ID, queue.StatusFinished)

	firstJob, err := store.GetByID(first.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	secondJob, err := store.GetByID(second.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if firstJob.StartTime == nil || secondJob.StartTime == nil {
		t.Fatal("start times missing")
	}
	if secondJob.StartTime.Before(*firstJob.StartTime) {
		t.Fatal("second job started before the first")
	}
}

func TestRunnerEnforcesTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.SubmitJob(t, store, "sleep 30", 1)

	clock := newTestClock()
	startRunner(t, cfg, store, runner.WithClock(clock.Now))

	running := waitForStatus(t, store, job.ID, queue.StatusRunning)
	clock.Advance(2 * time.Second)

	final := waitForStatus(t, store, job.ID, queue.StatusTimeout)
	if final.EndTime == nil {
		t.Fatal("end time missing on timed out job")
	}
	if final.ExitCode == nil || *final.ExitCode != 128+9 {
		t.Fatalf("exit code = %v, want %d", final.ExitCode, 128+9)
	}
	if proc.NewHandle(running.PID).Alive() {
		t.Fatalf("pid %d still alive after timeout kill", running.PID)
	}
}

func TestRunnerMarksDeadOrphanFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// A reaped child's pid is no longer waitable or alive, exactly like a
	// job left behind by a crashed daemon.
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start throwaway process: %v", err)
	}
	orphanPID := cmd.Process.Pid
	if err := cmd.Wait(); err != nil {
		t.Fatalf("wait throwaway process: %v", err)
	}

	job := queue.NewJob("sleep 600", "", 600)
	job.Status = queue.StatusRunning
	job.PID = orphanPID
	started := time.Now().UTC()
	job.StartTime = &started
	testsupport.SeedJob(t, store, job)

	startRunner(t, cfg, store)

	final := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if final.ExitCode != nil {
		t.Fatalf("exit code = %v, want none for an unobservable exit", final.ExitCode)
	}
	if final.EndTime == nil {
		t.Fatal("end time missing on recovered orphan")
	}
}

func TestRunnerAdoptsAliveOrphan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// pid 1 is alive but not this process's child, matching a job that
	// survived its original daemon.
	job := queue.NewJob("sleep 600", "", 3600)
	job.Status = queue.StatusRunning
	job.PID = 1
	started := time.Now().UTC()
	job.StartTime = &started
	testsupport.SeedJob(t, store, job)

	startRunner(t, cfg, store)

	time.Sleep(4 * testInterval)
	adopted, err := store.GetByID(job.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if adopted.Status != queue.StatusRunning {
		t.Fatalf("status = %q, want still running", adopted.Status)
	}
	if adopted.PID != 1 {
		t.Fatalf("pid = %d, want unchanged", adopted.PID)
	}
}

func TestRunnerFailsRunningRecordWithoutPID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// A running record with no pid only appears in a hand-edited queue
	// file; it must be finalized, never handed to the process table.
	job := queue.NewJob("sleep 600", "", 600)
	job.Status = queue.StatusRunning
	started := time.Now().UTC()
	job.StartTime = &started
	testsupport.SeedJob(t, store, job)

	startRunner(t, cfg, store)

	final := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if final.ExitCode != nil {
		t.Fatalf("exit code = %v, want none for an unobservable exit", final.ExitCode)
	}
	if final.EndTime == nil {
		t.Fatal("end time missing on recovered record")
	}
}

func TestRunnerAbsorbsLaunchFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithShell(filepath.Join(t.TempDir(), "missing-shell")))
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.SubmitJob(t, store, "echo never", 600)

	r := startRunner(t, cfg, store)

	final := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if final.StartTime == nil {
		t.Fatal("start time missing on failed launch")
	}
	if final.PID != 0 {
		t.Fatalf("pid = %d, want 0", final.PID)
	}
	if final.EndTime == nil {
		t.Fatal("end time missing on failed launch")
	}
	if final.EndTime.Before(*final.StartTime) {
		t.Fatalf("end time %v precedes start time %v", final.EndTime, final.StartTime)
	}

	select {
	case <-r.Done():
		t.Fatal("runner stopped on a per-job launch failure")
	default:
	}
}

func TestRunnerSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := runner.New(cfg, store, runner.WithInterval(testInterval))
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	t.Cleanup(first.Stop)

	second := runner.New(cfg, store, runner.WithInterval(testInterval))
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second Start() succeeded, want lock conflict")
	}

	active, err := runner.InstanceRunning(cfg)
	if err != nil {
		t.Fatalf("InstanceRunning() error = %v", err)
	}
	if !active {
		t.Fatal("InstanceRunning() = false while a runner holds the lock")
	}

	first.Stop()

	active, err = runner.InstanceRunning(cfg)
	if err != nil {
		t.Fatalf("InstanceRunning() error = %v", err)
	}
	if active {
		t.Fatal("InstanceRunning() = true after the runner stopped")
	}
}

func TestRunnerHaltsOnCorruptStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SubmitJob(t, store, "echo fine", 600)

	if err := os.WriteFile(cfg.QueuePath(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt queue file: %v", err)
	}

	r := startRunner(t, cfg, store)

	select {
	case <-r.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("runner kept going with a corrupt store")
	}
	if err := r.Err(); !errors.Is(err, queue.ErrStoreUnavailable) {
		t.Fatalf("Err() = %v, want ErrStoreUnavailable", err)
	}
}

func TestRunnerReapsCancelledChild(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := manager.New(cfg, store)

	job, err := mgr.Submit(context.Background(), "sleep 30", "", 600)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	startRunner(t, cfg, store)

	running := waitForStatus(t, store, job.ID, queue.StatusRunning)
	if _, err := mgr.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	// SIGTERM ends the sleep; the runner's stray-reap pass must collect the
	// corpse even though the record is already terminal.
	testsupport.WaitFor(t, 10*time.Second, func() bool {
		return !proc.NewHandle(running.PID).Alive()
	}, "cancelled child was never reaped")

	final, err := store.GetByID(job.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if final.Status != queue.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", final.Status)
	}
}

func TestRunnerRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	store := testsupport.MustOpenStore(t, cfg)
	archive, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	defer archive.Close()

	job := testsupport.SubmitJob(t, store, "echo archived", 600)
	startRunner(t, cfg, store, runner.WithHistory(archive))

	waitForStatus(t, store, job.ID, queue.StatusFinished)

	testsupport.WaitFor(t, 10*time.Second, func() bool {
		entries, listErr := archive.List(context.Background(), 0)
		if listErr != nil {
			t.Fatalf("archive.List() error = %v", listErr)
		}
		return len(entries) == 1 && entries[0].JobID == job.ID
	}, "terminal job never reached the archive")
}

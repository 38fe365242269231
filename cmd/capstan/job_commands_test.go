package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"capstan/internal/queue"
	"capstan/internal/testsupport"
)

func TestSubmitListInfoFlow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "submit", "--name", "greet", "echo", "hello")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Submitted job")
	requireContains(t, out, "(greet)")
	id := submittedJobID(t, out)

	out, _, err = runCLI(t, env.configPath, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, id)
	requireContains(t, out, "greet")
	requireContains(t, out, string(queue.StatusQueued))

	out, _, err = runCLI(t, env.configPath, "info", id)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	requireContains(t, out, "echo hello")
	requireContains(t, out, string(queue.StatusQueued))
	requireContains(t, out, "Stdout log:")
}

func TestSubmitHonorsTimeoutFlag(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "submit", "-t", "5", "sleep", "60")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	id := submittedJobID(t, out)

	job, err := env.store.GetByID(id)
	if err != nil {
		t.Fatalf("lookup job: %v", err)
	}
	if job.Timeout != 5 {
		t.Fatalf("expected timeout 5, got %d", job.Timeout)
	}

	out, _, err = runCLI(t, env.configPath, "info", id)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	requireContains(t, out, "5s")
}

func TestListEmptyQueue(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestListFiltersByState(t *testing.T) {
	env := setupCLITestEnv(t)

	queued := testsupport.SubmitJob(t, env.store, "echo pending", 60)
	ended := queue.NewJob("echo done", "done", 60)
	ended.Status = queue.StatusFinished
	now := time.Now().UTC()
	ended.StartTime = &now
	ended.EndTime = &now
	testsupport.SeedJob(t, env.store, ended)

	out, _, err := runCLI(t, env.configPath, "list", "finished")
	if err != nil {
		t.Fatalf("list finished: %v", err)
	}
	requireContains(t, out, ended.ID)
	if strings.Contains(out, queued.ID) {
		t.Fatalf("queued job leaked into finished listing: %q", out)
	}
}

func TestListRejectsUnknownState(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "list", "bogus")
	if err == nil {
		t.Fatal("expected error for unknown state")
	}
	requireContains(t, err.Error(), "unknown state")
}

func TestInfoUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "info", "no-such-id")
	if !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "submit", "sleep", "600")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	id := submittedJobID(t, out)

	out, _, err = runCLI(t, env.configPath, "cancel", id)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Cancelled job")

	job, err := env.store.GetByID(id)
	if err != nil {
		t.Fatalf("lookup job: %v", err)
	}
	if job.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", job.Status)
	}
	if job.EndTime == nil {
		t.Fatal("expected end time on cancelled job")
	}

	_, _, err = runCLI(t, env.configPath, "cancel", id)
	if !errors.Is(err, queue.ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}
}

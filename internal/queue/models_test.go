package queue_test

import (
	"strings"
	"testing"
	"time"

	"capstan/internal/queue"
)

func TestNewJobDefaults(t *testing.T) {
	before := time.Now().UTC()
	job := queue.NewJob("sleep 30", "", 120)

	if len(job.ID) != 8 {
		t.Fatalf("expected 8-char id, got %q", job.ID)
	}
	if job.Name != "sleep 30" {
		t.Fatalf("expected name from command, got %q", job.Name)
	}
	if job.Status != queue.StatusQueued {
		t.Fatalf("expected queued status, got %s", job.Status)
	}
	if job.PID != 0 || job.ExitCode != nil || job.StartTime != nil || job.EndTime != nil {
		t.Fatalf("expected no launch fields on fresh job: %#v", job)
	}
	if job.Timeout != 120 {
		t.Fatalf("expected timeout 120, got %d", job.Timeout)
	}
	if job.SubmitTime.Before(before) {
		t.Fatalf("submit time %v before test start %v", job.SubmitTime, before)
	}
}

func TestNewJobTruncatesLongCommandName(t *testing.T) {
	command := strings.Repeat("a", 80)
	job := queue.NewJob(command, "", 60)
	if len(job.Name) != 50 {
		t.Fatalf("expected 50-char default name, got %d chars", len(job.Name))
	}
	if job.Command != command {
		t.Fatal("command must not be truncated")
	}

	named := queue.NewJob(command, "simulation", 60)
	if named.Name != "simulation" {
		t.Fatalf("explicit name must win, got %q", named.Name)
	}
}

func TestNewJobIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		job := queue.NewJob("true", "", 60)
		if _, dup := seen[job.ID]; dup {
			t.Fatalf("duplicate id %s after %d jobs", job.ID, i)
		}
		seen[job.ID] = struct{}{}
	}
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input string
		want  queue.Status
		ok    bool
	}{
		{"queued", queue.StatusQueued, true},
		{"RUNNING", queue.StatusRunning, true},
		{" finished ", queue.StatusFinished, true},
		{"timeout", queue.StatusTimeout, true},
		{"cancelled", queue.StatusCancelled, true},
		{"", "", false},
		{"pending", "", false},
	}
	for _, tc := range cases {
		got, ok := queue.ParseStatus(tc.input)
		if ok != tc.ok {
			t.Fatalf("ParseStatus(%q) ok = %v, want %v", tc.input, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("ParseStatus(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []queue.Status{queue.StatusFinished, queue.StatusFailed, queue.StatusTimeout, queue.StatusCancelled}
	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Fatalf("expected %s terminal", status)
		}
	}
	for _, status := range []queue.Status{queue.StatusQueued, queue.StatusRunning} {
		if status.IsTerminal() {
			t.Fatalf("expected %s not terminal", status)
		}
	}
}

func TestDeadlineExceeded(t *testing.T) {
	now := time.Now().UTC()
	job := queue.NewJob("sleep 100", "", 10)

	if job.DeadlineExceeded(now) {
		t.Fatal("unstarted job must not expire")
	}

	start := now.Add(-11 * time.Second)
	job.StartTime = &start
	if !job.DeadlineExceeded(now) {
		t.Fatal("expected deadline exceeded 11s into a 10s timeout")
	}

	start = now.Add(-5 * time.Second)
	job.StartTime = &start
	if job.DeadlineExceeded(now) {
		t.Fatal("expected deadline not exceeded 5s into a 10s timeout")
	}

	job.Timeout = 0
	start = now.Add(-time.Hour)
	job.StartTime = &start
	if job.DeadlineExceeded(now) {
		t.Fatal("non-positive timeout must never expire")
	}
}

func TestRunDuration(t *testing.T) {
	now := time.Now().UTC()
	job := queue.NewJob("true", "", 60)

	if _, ok := job.RunDuration(now); ok {
		t.Fatal("unstarted job has no duration")
	}

	start := now.Add(-10 * time.Second)
	job.StartTime = &start
	d, ok := job.RunDuration(now)
	if !ok || d != 10*time.Second {
		t.Fatalf("running duration = %v ok=%v", d, ok)
	}

	end := start.Add(4 * time.Second)
	job.EndTime = &end
	d, ok = job.RunDuration(now)
	if !ok || d != 4*time.Second {
		t.Fatalf("terminal duration = %v ok=%v", d, ok)
	}
}

func TestCloneIsDeep(t *testing.T) {
	job := queue.NewJob("true", "", 60)
	start := time.Now().UTC()
	code := 3
	job.StartTime = &start
	job.ExitCode = &code

	cp := job.Clone()
	*cp.ExitCode = 7
	cp.StartTime = nil

	if *job.ExitCode != 3 {
		t.Fatalf("clone shares exit code: %d", *job.ExitCode)
	}
	if job.StartTime == nil {
		t.Fatal("clone shares start time pointer")
	}
}

func TestFind(t *testing.T) {
	a := queue.NewJob("echo a", "", 60)
	b := queue.NewJob("echo b", "", 60)
	jobs := []*queue.Job{a, b}

	if got := queue.Find(jobs, b.ID); got != b {
		t.Fatalf("Find returned %#v, want %#v", got, b)
	}
	if got := queue.Find(jobs, "absent"); got != nil {
		t.Fatalf("expected nil for unknown id, got %#v", got)
	}
}

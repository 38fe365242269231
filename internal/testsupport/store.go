package testsupport

import (
	"context"
	"testing"

	"capstan/internal/config"
	"capstan/internal/queue"
)

// MustOpenStore opens a queue.Store for tests.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	return store
}

// SeedJob appends a prebuilt job record to the store.
func SeedJob(t testing.TB, store *queue.Store, job *queue.Job) {
	t.Helper()

	err := store.Mutate(context.Background(), func(jobs *[]*queue.Job) (bool, error) {
		*jobs = append(*jobs, job)
		return true, nil
	})
	if err != nil {
		t.Fatalf("seed job %s: %v", job.ID, err)
	}
}

// SubmitJob creates and persists a queued job for the given command.
func SubmitJob(t testing.TB, store *queue.Store, command string, timeout int64) *queue.Job {
	t.Helper()

	job := queue.NewJob(command, "", timeout)
	SeedJob(t, store, job)
	return job
}

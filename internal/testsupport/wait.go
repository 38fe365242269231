package testsupport

import (
	"testing"
	"time"
)

// WaitFor polls cond until it reports true or the deadline passes. Runner
// tests use it to observe asynchronous state transitions without flaky
// fixed sleeps.
func WaitFor(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

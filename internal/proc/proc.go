// Package proc launches job processes and inspects them by pid.
package proc

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrNotChild reports that a pid cannot be waited on because the process is
// not a child of the current process. Jobs left behind by an earlier daemon
// fall into this case; only liveness can be probed for them.
var ErrNotChild = errors.New("process is not a child of this process")

// WaitResult describes a collected exit status.
type WaitResult struct {
	// Exited is true once the process has terminated and its status was
	// collected.
	Exited bool
	// Code is the exit code. A signal death maps to 128 plus the signal
	// number, following shell convention.
	Code int
}

// Handle identifies a single job process. A nonpositive pid is never passed
// to the kernel, where it would address a process group rather than one
// process; every operation treats it as an absent process instead.
type Handle struct {
	pid int
}

// NewHandle wraps an existing pid, typically one restored from the job store
// after a daemon restart.
func NewHandle(pid int) Handle {
	return Handle{pid: pid}
}

// PID returns the wrapped process id.
func (h Handle) PID() int {
	return h.pid
}

// Alive reports whether the process still exists. It sends signal 0, so a
// permission error still counts as alive.
func (h Handle) Alive() bool {
	if h.pid <= 0 {
		return false
	}
	err := unix.Kill(h.pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}

// Terminate asks the process to shut down with SIGTERM.
func (h Handle) Terminate() error {
	if h.pid <= 0 {
		return fmt.Errorf("terminate pid %d: %w", h.pid, unix.ESRCH)
	}
	if err := unix.Kill(h.pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("terminate pid %d: %w", h.pid, err)
	}
	return nil
}

// Kill forcibly ends the process with SIGKILL.
func (h Handle) Kill() error {
	if h.pid <= 0 {
		return fmt.Errorf("kill pid %d: %w", h.pid, unix.ESRCH)
	}
	if err := unix.Kill(h.pid, unix.SIGKILL); err != nil {
		return fmt.Errorf("kill pid %d: %w", h.pid, err)
	}
	return nil
}

// TryWait collects the exit status without blocking. A zero-valued result
// with a nil error means the process is still running. ErrNotChild is
// returned for processes this daemon did not start.
func (h Handle) TryWait() (WaitResult, error) {
	if h.pid <= 0 {
		return WaitResult{}, ErrNotChild
	}
	var status unix.WaitStatus
	for {
		wpid, err := unix.Wait4(h.pid, &status, unix.WNOHANG, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			if errors.Is(err, unix.ECHILD) {
				return WaitResult{}, ErrNotChild
			}
			return WaitResult{}, fmt.Errorf("wait on pid %d: %w", h.pid, err)
		}
		if wpid == 0 {
			return WaitResult{}, nil
		}
		return resultFromStatus(status), nil
	}
}

// Reap blocks until the exit status is collected so the dead process does
// not linger as a zombie. It is meant to follow Kill on a direct child.
func (h Handle) Reap() (WaitResult, error) {
	if h.pid <= 0 {
		return WaitResult{}, ErrNotChild
	}
	var status unix.WaitStatus
	for {
		wpid, err := unix.Wait4(h.pid, &status, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			if errors.Is(err, unix.ECHILD) {
				return WaitResult{}, ErrNotChild
			}
			return WaitResult{}, fmt.Errorf("wait on pid %d: %w", h.pid, err)
		}
		if wpid != h.pid {
			continue
		}
		return resultFromStatus(status), nil
	}
}

func resultFromStatus(status unix.WaitStatus) WaitResult {
	switch {
	case status.Exited():
		return WaitResult{Exited: true, Code: status.ExitStatus()}
	case status.Signaled():
		return WaitResult{Exited: true, Code: 128 + int(status.Signal())}
	default:
		return WaitResult{}
	}
}

package queue

import "errors"

// Sentinel errors returned by store and manager operations. Callers branch
// with errors.Is; CLI code maps each to a distinct message and exit code.
var (
	// ErrStoreUnavailable marks I/O or parse failures on the queue file.
	// A missing file is not an error; it reads as an empty table.
	ErrStoreUnavailable = errors.New("queue store unavailable")

	// ErrNotFound marks operations referencing an unknown job id.
	ErrNotFound = errors.New("job not found")

	// ErrAlreadyTerminal marks a cancel against a job that already reached
	// a terminal state. The record is left unchanged.
	ErrAlreadyTerminal = errors.New("job already terminal")

	// ErrCancelFailed marks a cancel whose termination signal could not be
	// delivered. The record is left unchanged for orphan recovery.
	ErrCancelFailed = errors.New("cancel failed")
)

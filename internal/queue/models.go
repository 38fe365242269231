package queue

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusFinished,
	StatusFailed,
	StatusTimeout,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusFinished:  {},
	StatusFailed:    {},
	StatusTimeout:   {},
	StatusCancelled: {},
}

// defaultNameLimit caps the auto-generated name derived from the command.
const defaultNameLimit = 50

// Job represents a single unit of work persisted in the queue file.
//
// PID is zero until the runner launches the command. StartTime and EndTime
// are nil until the corresponding transition occurs; a failed launch stamps
// both together. ExitCode is recorded only when the runner observes the
// process exit; jobs finalized through orphan recovery carry no exit code.
type Job struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Command    string     `json:"command"`
	Status     Status     `json:"state"`
	PID        int        `json:"pid,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	SubmitTime time.Time  `json:"submit_time"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Timeout    int64      `json:"timeout"`
}

// NewJob constructs a queued job with a fresh id and submit timestamp.
// An empty name defaults to a truncated prefix of the command.
func NewJob(command, name string, timeout int64) *Job {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		trimmed = defaultName(command)
	}
	return &Job{
		ID:         uuid.NewString()[:8],
		Name:       trimmed,
		Command:    command,
		Status:     StatusQueued,
		SubmitTime: time.Now().UTC(),
		Timeout:    timeout,
	}
}

func defaultName(command string) string {
	runes := []rune(strings.TrimSpace(command))
	if len(runes) > defaultNameLimit {
		return string(runes[:defaultNameLimit])
	}
	return string(runes)
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsTerminal reports whether the job has reached a terminal state.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// TimeoutDuration returns the configured timeout as a duration.
func (j *Job) TimeoutDuration() time.Duration {
	return time.Duration(j.Timeout) * time.Second
}

// DeadlineExceeded reports whether a started job has run past its timeout
// as of now. Jobs without a start time or with a non-positive timeout never
// expire.
func (j *Job) DeadlineExceeded(now time.Time) bool {
	if j.StartTime == nil || j.Timeout <= 0 {
		return false
	}
	return now.Sub(*j.StartTime) > j.TimeoutDuration()
}

// RunDuration returns the elapsed run time: end minus start for terminal
// jobs, now minus start for running ones. The second return is false when
// the job never started.
func (j *Job) RunDuration(now time.Time) (time.Duration, bool) {
	if j.StartTime == nil {
		return 0, false
	}
	if j.EndTime != nil {
		return j.EndTime.Sub(*j.StartTime), true
	}
	return now.Sub(*j.StartTime), true
}

// Clone returns a deep copy so callers can hand records across goroutines
// without sharing pointer fields.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.ExitCode != nil {
		v := *j.ExitCode
		cp.ExitCode = &v
	}
	if j.StartTime != nil {
		v := *j.StartTime
		cp.StartTime = &v
	}
	if j.EndTime != nil {
		v := *j.EndTime
		cp.EndTime = &v
	}
	return &cp
}

// Find returns the job with the given id from jobs, or nil when absent.
func Find(jobs []*Job, id string) *Job {
	for _, job := range jobs {
		if job != nil && job.ID == id {
			return job
		}
	}
	return nil
}

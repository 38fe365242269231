package queue

import (
	"errors"
	"io/fs"
	"path/filepath"

	"capstan/internal/fileutil"
)

// RunningStdoutPath returns the stdout capture file for an in-flight job.
func (s *Store) RunningStdoutPath(id string) string {
	return filepath.Join(s.runningDir, id+".out")
}

// RunningStderrPath returns the stderr capture file for an in-flight job.
func (s *Store) RunningStderrPath(id string) string {
	return filepath.Join(s.runningDir, id+".err")
}

// FinishedStdoutPath returns the stdout capture file for a terminal job.
func (s *Store) FinishedStdoutPath(id string) string {
	return filepath.Join(s.finishedDir, id+".out")
}

// FinishedStderrPath returns the stderr capture file for a terminal job.
func (s *Store) FinishedStderrPath(id string) string {
	return filepath.Join(s.finishedDir, id+".err")
}

// LogPaths returns the stdout and stderr capture files for a job, selecting
// the finished area once the job is terminal.
func (s *Store) LogPaths(job *Job) (stdout, stderr string) {
	if job.IsTerminal() {
		return s.FinishedStdoutPath(job.ID), s.FinishedStderrPath(job.ID)
	}
	return s.RunningStdoutPath(job.ID), s.RunningStderrPath(job.ID)
}

// RelocateLogs moves a job's capture files from the running area to the
// finished area. Files that were never created are skipped; the move is
// best-effort housekeeping and must not block a state transition.
func (s *Store) RelocateLogs(id string) error {
	var firstErr error
	moves := [][2]string{
		{s.RunningStdoutPath(id), s.FinishedStdoutPath(id)},
		{s.RunningStderrPath(id), s.FinishedStderrPath(id)},
	}
	for _, move := range moves {
		if err := fileutil.MoveFile(move[0], move[1]); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

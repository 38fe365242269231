package proc

import (
	"fmt"
	"os"
	"os/exec"
)

// DefaultShell runs commands when no interpreter is configured.
const DefaultShell = "/bin/sh"

// Launcher starts a job command with its output wired to per-job log files.
type Launcher interface {
	Launch(command, stdoutPath, stderrPath string) (Handle, error)
}

// ShellLauncher starts jobs through a POSIX shell so commands may use pipes,
// redirection, and variable expansion.
type ShellLauncher struct {
	// Shell is the interpreter binary. Empty selects DefaultShell.
	Shell string
}

// Launch runs command as `shell -c command`, truncating and writing the two
// log files. The child is not bound to any context; jobs survive a daemon
// shutdown and are re-adopted on the next start.
func (l ShellLauncher) Launch(command, stdoutPath, stderrPath string) (Handle, error) {
	shell := l.Shell
	if shell == "" {
		shell = DefaultShell
	}

	stdout, err := os.Create(stdoutPath)
	if err != nil {
		return Handle{}, fmt.Errorf("open stdout log: %w", err)
	}
	stderr, err := os.Create(stderrPath)
	if err != nil {
		stdout.Close()
		return Handle{}, fmt.Errorf("open stderr log: %w", err)
	}

	cmd := exec.Command(shell, "-c", command) //nolint:gosec
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	startErr := cmd.Start()
	stdout.Close()
	stderr.Close()
	if startErr != nil {
		return Handle{}, fmt.Errorf("start %s: %w", shell, startErr)
	}

	pid := cmd.Process.Pid
	// The exit status is collected through Handle.TryWait rather than
	// cmd.Wait, so the exec handle must be released here.
	_ = cmd.Process.Release()
	return Handle{pid: pid}, nil
}

package main

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"capstan/internal/queue"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func formatRuntime(job *queue.Job, now time.Time) string {
	duration, ok := job.RunDuration(now)
	if !ok {
		return "-"
	}
	return duration.Truncate(time.Second).String()
}

func formatExitCode(code *int) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(*code)
}

func formatPID(pid int) string {
	if pid <= 0 {
		return "-"
	}
	return strconv.Itoa(pid)
}

func formatWhen(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return humanize.Time(value)
}

func formatOptionalWhen(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return formatWhen(*value)
}

func stateColor(status queue.Status) string {
	switch status {
	case queue.StatusFinished:
		return ansiGreen
	case queue.StatusFailed, queue.StatusTimeout:
		return ansiRed
	case queue.StatusRunning:
		return ansiYellow
	default:
		return ""
	}
}

func colorizeState(status queue.Status, colorize bool) string {
	if !colorize {
		return string(status)
	}
	color := stateColor(status)
	if color == "" {
		return string(status)
	}
	return color + string(status) + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

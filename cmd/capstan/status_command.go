package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"capstan/internal/queue"
	"capstan/internal/runner"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			running, err := runner.InstanceRunning(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warn: daemon probe failed: %v\n", err)
			}
			switch {
			case running:
				if pid, ok := readPIDFile(cfg.PIDFilePath()); ok {
					fmt.Fprintf(out, "Daemon: running (pid %d)\n", pid)
				} else {
					fmt.Fprintln(out, "Daemon: running")
				}
			default:
				fmt.Fprintln(out, "Daemon: stopped")
			}
			fmt.Fprintf(out, "Queue:  %s\n\n", store.Path())

			jobs, err := store.Load()
			if err != nil {
				return err
			}
			counts := make(map[queue.Status]int, len(queue.AllStatuses()))
			for _, job := range jobs {
				counts[job.Status]++
			}

			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(queue.AllStatuses())+1)
			for _, status := range queue.AllStatuses() {
				rows = append(rows, []string{
					colorizeState(status, colorize),
					strconv.Itoa(counts[status]),
				})
			}
			rows = append(rows, []string{"total", strconv.Itoa(len(jobs))})
			fmt.Fprintln(out, renderTable([]string{"State", "Count"}, rows, "Count"))
			return nil
		},
	}
}

func readPIDFile(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"capstan/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var name string
	var timeout int64

	cmd := &cobra.Command{
		Use:   "submit <command> [args...]",
		Short: "Queue a shell command for execution",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cleanup, err := ctx.openManager()
			if err != nil {
				return err
			}
			defer cleanup()

			job, err := mgr.Submit(cmd.Context(), strings.Join(args, " "), name, timeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s (%s)\n", job.ID, job.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name for the job")
	cmd.Flags().Int64VarP(&timeout, "timeout", "t", 0, "Timeout in seconds (0 uses the configured default)")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [state]",
		Short: "List jobs in submission order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter queue.Status
			if len(args) == 1 {
				parsed, ok := queue.ParseStatus(args[0])
				if !ok {
					return fmt.Errorf("unknown state %q (valid states: %s)", args[0], statusNames())
				}
				filter = parsed
			}

			mgr, cleanup, err := ctx.openManager()
			if err != nil {
				return err
			}
			defer cleanup()

			jobs, err := mgr.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}

			colorize := shouldColorize(out)
			now := time.Now()
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.ID,
					job.Name,
					colorizeState(job.Status, colorize),
					formatPID(job.PID),
					formatRuntime(job, now),
					formatWhen(job.SubmitTime),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Name", "State", "PID", "Runtime", "Submitted"}, rows, "PID", "Runtime"))
			return nil
		},
	}
}

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info <id>",
		Short: "Show a single job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := ctx.openStore()
			if err != nil {
				return err
			}

			job, err := store.GetByID(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			stdoutPath, stderrPath := store.LogPaths(job)

			fmt.Fprintf(out, "%-11s %s\n", "ID:", job.ID)
			fmt.Fprintf(out, "%-11s %s\n", "Name:", job.Name)
			fmt.Fprintf(out, "%-11s %s\n", "Command:", job.Command)
			fmt.Fprintf(out, "%-11s %s\n", "State:", colorizeState(job.Status, colorize))
			if job.PID > 0 {
				fmt.Fprintf(out, "%-11s %d\n", "PID:", job.PID)
			}
			if job.ExitCode != nil {
				fmt.Fprintf(out, "%-11s %d\n", "Exit code:", *job.ExitCode)
			}
			fmt.Fprintf(out, "%-11s %s (%s)\n", "Submitted:", job.SubmitTime.Format(time.RFC3339), formatWhen(job.SubmitTime))
			if job.StartTime != nil {
				fmt.Fprintf(out, "%-11s %s (%s)\n", "Started:", job.StartTime.Format(time.RFC3339), formatWhen(*job.StartTime))
			}
			if job.EndTime != nil {
				fmt.Fprintf(out, "%-11s %s (%s)\n", "Ended:", job.EndTime.Format(time.RFC3339), formatWhen(*job.EndTime))
			}
			fmt.Fprintf(out, "%-11s %s\n", "Runtime:", formatRuntime(job, time.Now()))
			fmt.Fprintf(out, "%-11s %ds\n", "Timeout:", job.Timeout)
			fmt.Fprintf(out, "%-11s %s\n", "Stdout log:", stdoutPath)
			fmt.Fprintf(out, "%-11s %s\n", "Stderr log:", stderrPath)
			return nil
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cleanup, err := ctx.openManager()
			if err != nil {
				return err
			}
			defer cleanup()

			job, err := mgr.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s (%s)\n", job.ID, job.Name)
			return nil
		},
	}
}

func statusNames() string {
	statuses := queue.AllStatuses()
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}

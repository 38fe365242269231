package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var stderr bool

	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Print a job's captured output",
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

			stdoutPath, stderrPath := store.LogPaths(job)
			path := stdoutPath
			if stderr {
				path = stderrPath
			}

			data, err := os.ReadFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(cmd.OutOrStdout(), "No output captured yet for job %s\n", job.ID)
				return nil
			}
			if err != nil {
				return fmt.Errorf("read job log: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&stderr, "stderr", false, "Print the stderr stream instead of stdout")
	return cmd
}

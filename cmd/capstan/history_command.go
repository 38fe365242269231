package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"capstan/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently completed jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("job history is disabled in the configuration")
			}

			archive, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history archive: %w", err)
			}
			defer archive.Close()

			entries, err := archive.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "History is empty")
				return nil
			}

			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.JobID,
					entry.Name,
					colorizeState(entry.State, colorize),
					formatExitCode(entry.ExitCode),
					formatOptionalWhen(entry.EndTime),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Name", "State", "Exit", "Ended"}, rows, "Exit"))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of entries to show (0 shows all)")
	return cmd
}

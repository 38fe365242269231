package main

import (
	"github.com/spf13/cobra"

	"capstan/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the job daemon in the foreground",
		Long: `Run starts the capstand runner loop in the foreground and blocks until
interrupted. It is equivalent to launching the capstand binary and is
handy under process supervisors or for debugging.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg)
		},
	}
}

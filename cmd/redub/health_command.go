package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redub/internal/store"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database connectivity and queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				out := cmd.OutOrStdout()
				if err := st.Ping(cmd.Context()); err != nil {
					return fmt.Errorf("database unreachable: %w", err)
				}
				fmt.Fprintln(out, "Database: ok")

				summary, err := st.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Jobs:     %d total (%d pending, %d running, %d done, %d failed)\n",
					summary.Total, summary.Pending, summary.Running, summary.Done, summary.Failed)
				return nil
			})
		},
	}
}

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danmuck/metasync/internal/reconcile"
)

func newRequestsCommand(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "requests",
		Short: "Poll outstanding async registration requests and persist outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.resolve(cmd)
			if err != nil {
				return err
			}

			runner, defs, err := buildRunner(cfg, reconcile.Intent{}, nil, 0)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := runner.Poll(ctx, defs); err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), defs)
			return nil
		},
	}
}

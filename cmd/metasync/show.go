package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danmuck/metasync/internal/definition"
	"github.com/danmuck/metasync/internal/reconcile"
)

func printReport(out io.Writer, defs []*definition.Definition) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEFINITION\tVENDOR\tPERSON\tMODULE\tSOFTWARE\tPROCESSOR\tOE")
	for _, def := range defs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			def.Name,
			def.Vendor.ID,
			def.Contact.ID,
			def.Module.ID,
			def.OE.SoftwareID,
			def.OE.ProcessorID,
			def.OE.ID,
		)
	}
	w.Flush()
}

func newShowCommand(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Report how local definitions relate to the registry, without mutating it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.resolve(cmd)
			if err != nil {
				return err
			}

			runner, defs, err := buildRunner(cfg, reconcile.Intent{ShowOnly: true}, nil, 0)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := runner.Sync(ctx, defs); err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), defs)
			return nil
		},
	}
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danmuck/metasync/internal/config"
	"github.com/danmuck/metasync/internal/definition"
	"github.com/danmuck/metasync/internal/observability"
	"github.com/danmuck/metasync/internal/reconcile"
	"github.com/danmuck/metasync/internal/registry"
)

// buildRunner assembles the reconciliation pipeline shared by the sync,
// show and requests commands.
func buildRunner(cfg config.Client, intent reconcile.Intent, confirm reconcile.ConfirmFunc, jobs int) (*reconcile.Runner, []*definition.Definition, error) {
	client, err := registry.New(cfg.RegistryConfig())
	if err != nil {
		return nil, nil, err
	}
	defs, err := definition.LoadDir(cfg.Definitions)
	if err != nil {
		return nil, nil, err
	}
	if len(defs) == 0 {
		return nil, nil, fmt.Errorf("no definition files under %s", cfg.Definitions)
	}
	if jobs < 1 {
		jobs = cfg.Jobs
	}

	rec := reconcile.New(client, intent, confirm)
	return reconcile.NewRunner(definition.NewLockManager(), rec, jobs), defs, nil
}

// confirmFor wires the terminal prompt for any run that may mutate the
// registry. Even with --register or --delete one of the verb branches can
// still end up asking, only a dry run never does.
func confirmFor(intent reconcile.Intent, in io.Reader, out io.Writer) reconcile.ConfirmFunc {
	if intent.ShowOnly {
		return nil
	}
	return terminalConfirm(in, out)
}

// terminalConfirm prompts on the command's streams. Reconciliation asks at
// most a handful of questions per entity, so a plain line reader suffices.
func terminalConfirm(in io.Reader, out io.Writer) reconcile.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N] ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func newSyncCommand(g *globalOpts) *cobra.Command {
	var (
		register   bool
		autoDelete bool
		dryRun     bool
		revalidate bool
		jobs       int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile every definition against the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.resolve(cmd)
			if err != nil {
				return err
			}

			intent := reconcile.Intent{
				AutoRegister: register,
				AutoDelete:   autoDelete,
				ShowOnly:     dryRun,
				Revalidate:   revalidate,
			}
			confirm := confirmFor(intent, cmd.InOrStdin(), cmd.OutOrStdout())

			runner, defs, err := buildRunner(cfg, intent, confirm, jobs)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			observability.ServeMetrics(ctx, cfg.MetricsAddr)

			log.Info().Int("definitions", len(defs)).Str("server", cfg.Server).
				Msg("starting sync")
			if err := runner.Sync(ctx, defs); err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), defs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&register, "register", false, "create missing entities without asking")
	cmd.Flags().BoolVar(&autoDelete, "delete", false, "delete diverging registry entries without asking")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change, mutate nothing")
	cmd.Flags().BoolVar(&revalidate, "revalidate", false, "re-check entities that already carry an id")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "parallel definition workers (default from settings)")
	return cmd
}

package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danmuck/metasync/internal/config"
	"github.com/danmuck/metasync/internal/logging"
)

type globalOpts struct {
	settings    string
	definitions string
	server      string
	tokenFile   string
	caFile      string
	insecure    bool
	metricsAddr string
	logLevel    string
}

func main() {
	logging.ConfigureRuntime()
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("metasync failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOpts{}
	cmd := &cobra.Command{
		Use:           "metasync",
		Short:         "Reconcile module validation metadata with the registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.settings, "settings", "", "client settings file")
	flags.StringVar(&opts.definitions, "config", "definitions", "directory holding definition files")
	flags.StringVar(&opts.server, "server", "", "registry base url")
	flags.StringVar(&opts.tokenFile, "token-file", "", "bearer token file, re-read on every request")
	flags.StringVar(&opts.caFile, "ca-file", "", "tls ca bundle for the registry")
	flags.BoolVar(&opts.insecure, "insecure", false, "skip tls certificate verification")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "prometheus listen address")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newRequestsCommand(opts))
	cmd.AddCommand(newTemplateCommand())
	return cmd
}

// resolve merges the optional settings file with flag overrides. Flags the
// user set on the command line always win.
func (g *globalOpts) resolve(cmd *cobra.Command) (config.Client, error) {
	cfg := config.Default()
	if g.settings != "" {
		var err error
		if cfg, err = config.Load(g.settings); err != nil {
			return config.Client{}, err
		}
	}

	f := cmd.Flags()
	if f.Changed("config") {
		cfg.Definitions = g.definitions
	}
	if f.Changed("server") {
		cfg.Server = g.server
	}
	if f.Changed("token-file") {
		cfg.TokenFile = g.tokenFile
	}
	if f.Changed("ca-file") {
		cfg.CAFile = g.caFile
	}
	if f.Changed("insecure") {
		cfg.InsecureSkipVerify = g.insecure
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = g.metricsAddr
	}
	if f.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}

	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
		zerolog.SetGlobalLevel(lvl)
	}
	return cfg.Normalize(), nil
}

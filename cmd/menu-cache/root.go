package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/campus-menu-client/internal/config"
	"github.com/Sternrassler/campus-menu-client/pkg/logging"
)

// version is set by the linker at build time.
var version = "dev"

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	logLevel   string
	pretty     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "menu-cache",
		Short: "Inspect, warm and serve the campus menu cache.",
		Long: `menu-cache drives the caching and resilient request layer of the campus
menu client from the command line.

Configuration is read from a YAML file (--config or MENU_CONFIG). API
settings may also come from MENU_API_URL, MENU_API_KEY and MENU_ACCESS_TOKEN,
which are loaded from a .env file in the working directory when present.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", os.Getenv("MENU_CONFIG"), "path to the YAML config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the log level (debug, info, warn, error)")
	flags.BoolVar(&opts.pretty, "pretty", false, "human-readable log output")

	cmd.AddCommand(
		newFetchCmd(opts),
		newWeekCmd(opts),
		newPrefetchCmd(opts),
		newStatsCmd(opts),
		newSweepCmd(opts),
		newInvalidateCmd(opts),
		newClearCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = logging.LogLevel(o.logLevel)
	}
	if o.pretty {
		cfg.Logging.Pretty = true
	}
	return cfg, nil
}

// run builds the app for one command invocation and tears it down afterwards.
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(cmd.Context(), a)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"schedcard/internal/config"
	appLog "schedcard/internal/log"
)

var version = "0.1.0-dev"

const defaultConfigPath = "/etc/schedcard/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootOpts holds the persistent flags shared by every subcommand.
type rootOpts struct {
	configPath string
	verbose    bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	root := &cobra.Command{
		Use:          "schedcard",
		Short:        "Render stream schedules into shareable cards",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			appLog.SetOutput(cmd.ErrOrStderr())
			level := appLog.ParseLevel(opts.logLevel)
			if opts.verbose {
				level = appLog.LevelDebug
			}
			appLog.SetLevel(level)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging (same as --log-level debug)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, error")

	root.AddCommand(newRenderCmd(opts))
	root.AddCommand(newServeCmd(opts))
	return root
}

// loadConfig loads the config file, writing defaults on first run.
func (o *rootOpts) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config %s: %w", o.configPath, err)
		}
		// Defaults could not be persisted; keep going with them.
		appLog.Error("failed to write default config", err, "config_path", o.configPath)
	}
	appLog.Debug("effective config",
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
		"max_entries", cfg.MaxEntries,
		"ics_count", len(cfg.ICS),
		"theme", cfg.Render.Theme,
		"output_path", cfg.OutputPath,
	)
	return cfg, nil
}

// Package cmd holds the barsim command line.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/barsim/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCmd builds the barsim command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "barsim",
		Short: "Event-driven backtester for daily bar strategies",
		Long: `barsim replays historical OHLCV bars through a strategy and a simulated
broker, one bar at a time.

It provides tools for:
  - Backtesting the built-in strategies (two-down, sma-cross, ema-cross, turtle)
  - Parameter sweeps run in parallel
  - Trade, order and equity journals in CSV or SQLite
  - Converting bar data between CSV and Parquet`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "f", "", "path to config file (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")

	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if opts.logLevel != "" {
			var err error
			if level, err = (config.LogConfig{Level: opts.logLevel}).SlogLevel(); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
		}
		setLogger(c, level)
		return nil
	}

	cmd.AddCommand(
		newBacktestCmd(opts),
		newSweepCmd(opts),
		newConvertCmd(),
		newConfigCmd(opts),
		newJournalCmd(),
		newVersionCmd(),
	)
	return cmd
}

func setLogger(c *cobra.Command, level slog.Level) {
	h := slog.NewTextHandler(c.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/barsim/backtest"
	"github.com/rustyeddy/barsim/internal/id"
)

func newBacktestCmd(opts *rootOptions) *cobra.Command {
	var (
		flags    runFlags
		orgFile  string
		textfile string
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run one strategy over historical bars",
		Long: `Backtest replays bars from a CSV or Parquet file through a strategy and
prints the run summary. Settings come from the config file (-f) with any
flag given on the command line taking precedence.

Examples:
  barsim backtest --data datas/orcl-1995-2014.txt --strategy two-down
  barsim backtest -f run.yaml --strategy sma-cross -p period=20 --db runs.sqlite`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := flags.apply(c, opts)
			if err != nil {
				return err
			}
			if c.Flags().Changed("org") {
				cfg.Journal.OrgFile = orgFile
			}
			if c.Flags().Changed("metrics-textfile") {
				cfg.Metrics.Textfile = textfile
			}

			series, err := loadSeries(cfg)
			if err != nil {
				return err
			}
			runID := flags.runID
			if runID == "" {
				runID = id.Run(cfg.Strategy.Name)
			}
			simCfg, err := cfg.SimConfig(runID)
			if err != nil {
				return err
			}
			j, err := openJournal(cfg.Journal)
			if err != nil {
				return fmt.Errorf("create journal: %w", err)
			}
			closed := false
			defer func() {
				if !closed {
					_ = j.Close()
				}
			}()

			log := slog.Default().With("run_id", runID)
			log.Info("backtest start", "strategy", cfg.Strategy.Name, "data", cfg.Data.Path, "bars", series.Total())

			res, err := backtest.Execute(c.Context(), backtest.Job{
				RunID:    runID,
				Dataset:  cfg.Data.Path,
				Series:   series,
				Strategy: cfg.Strategy.Name,
				Params:   cfg.Strategy.Params,
				Broker:   simCfg,
				Stake:    cfg.Broker.Stake,
				Journal:  j,
				Logger:   log,
			})
			if err != nil {
				return err
			}
			closed = true
			if err := j.Close(); err != nil {
				return fmt.Errorf("close journal: %w", err)
			}

			res.Print(c.OutOrStdout())

			if cfg.Metrics.Textfile != "" {
				if err := res.Metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}
			if cfg.Journal.OrgFile != "" {
				run := res.Run(cfg.Data.Path)
				run.OrgPath = cfg.Journal.OrgFile
				if err := run.WriteBacktestOrg(res.TradeRecords()); err != nil {
					return fmt.Errorf("write org: %w", err)
				}
			}
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVar(&orgFile, "org", "", "write the run summary and trades as Org-mode to this path")
	cmd.Flags().StringVar(&textfile, "metrics-textfile", "", "write run metrics in Prometheus text format to this path")
	return cmd
}

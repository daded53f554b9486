package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/barsim/backtest"
	"github.com/rustyeddy/barsim/internal/id"
	"github.com/rustyeddy/barsim/journal"
)

func newSweepCmd(opts *rootOptions) *cobra.Command {
	var (
		flags    runFlags
		grid     []string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a strategy once per parameter combination",
		Long: `Sweep runs the strategy over every combination of the --param-grid values.
Runs are independent and execute in parallel; each gets the run ID
<run-id>-NNN in grid order. Fixed parameters given with -p apply to all runs.

Example:
  barsim sweep --data datas/orcl-1995-2014.txt --strategy sma-cross \
    --param-grid period=10,15,20,25 --db sweep.sqlite`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := flags.apply(c, opts)
			if err != nil {
				return err
			}
			g, err := backtest.ParseGrid(grid)
			if err != nil {
				return err
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
			shared := journal.NewShared(j)
			defer shared.Close()

			slog.Info("sweep start", "run_id", runID, "strategy", cfg.Strategy.Name, "runs", len(g), "parallel", parallel)
			results, err := backtest.Sweep(c.Context(), backtest.Job{
				RunID:    runID,
				Dataset:  cfg.Data.Path,
				Series:   series,
				Strategy: cfg.Strategy.Name,
				Params:   cfg.Strategy.Params,
				Broker:   simCfg,
				Stake:    cfg.Broker.Stake,
				Journal:  shared,
				Logger:   slog.Default(),
			}, g, parallel)
			if err != nil {
				return err
			}
			return printSweep(c.OutOrStdout(), results)
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringArrayVarP(&grid, "param-grid", "g", nil, "parameter values key=v1,v2,... (repeatable)")
	cmd.Flags().IntVar(&parallel, "parallel", runtime.NumCPU(), "maximum concurrent runs (0 = unlimited)")
	_ = cmd.MarkFlagRequired("param-grid")
	return cmd
}

func printSweep(out io.Writer, results []backtest.Result) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "RUN ID\tPARAMS\tTRADES\tWIN %\tNET P/L\tRETURN %\tMAX DD %\t")
	for _, r := range results {
		run := r.Run("")
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			r.RunID, run.ParamString(), r.Trades, r.WinRate*100, r.NetPnL, r.ReturnPct, r.MaxDrawdownPct)
	}
	return tw.Flush()
}

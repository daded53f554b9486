package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/barsim/journal"
)

func newJournalCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query a SQLite backtest journal",
		Long: `Query runs and trades recorded by backtest or sweep with --db.

Subcommands:
  run    - Show a run summary and its trades as Org-mode
  trades - List the trades of a run
  day    - List trades closed on a specific day

Examples:
  barsim journal run two-down-01J... --db runs.sqlite
  barsim journal day 2000-03-15`,
	}
	cmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "./barsim.sqlite", "path to SQLite journal DB")

	open := func() (*journal.SQLite, error) {
		j, err := journal.NewSQLite(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}

	runCmd := &cobra.Command{
		Use:   "run <run-id>",
		Short: "Show a run summary and its trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			s, err := j.ExportBacktestOrg(c.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			fmt.Fprintln(c.OutOrStdout(), s)
			return nil
		},
	}

	tradesCmd := &cobra.Command{
		Use:   "trades <run-id>",
		Short: "List the trades of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			recs, err := j.ListTradesByRunID(c.Context(), args[0])
			if err != nil {
				return fmt.Errorf("query trades: %w", err)
			}
			fmt.Fprintln(c.OutOrStdout(), journal.FormatTradesOrg(recs))
			return nil
		},
	}

	dayCmd := &cobra.Command{
		Use:   "day <YYYY-MM-DD>",
		Short: "List trades closed on a specific day",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			start, err := time.Parse(time.DateOnly, args[0])
			if err != nil {
				return fmt.Errorf("date: %w", err)
			}
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			recs, err := j.ListTradesClosedBetween(c.Context(), start, start.Add(24*time.Hour))
			if err != nil {
				return fmt.Errorf("query trades: %w", err)
			}
			fmt.Fprintln(c.OutOrStdout(), journal.FormatTradesOrg(recs))
			return nil
		},
	}

	cmd.AddCommand(runCmd, tradesCmd, dayCmd)
	return cmd
}

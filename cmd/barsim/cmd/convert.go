package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/barsim/config"
	"github.com/rustyeddy/barsim/feed"
	"github.com/rustyeddy/barsim/market"
)

func newConvertCmd() *cobra.Command {
	var (
		symbol   string
		format   string
		from, to string
	)

	cmd := &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert bar data between CSV and Parquet",
		Long: `Convert reads bars from a CSV or Parquet file, checks them, and writes them
out in the format given by the output extension (.parquet, .pq or .csv).

Example:
  barsim convert datas/orcl-1995-2014.txt orcl.parquet --symbol ORCL`,
		Args: cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			in, out := args[0], args[1]
			w, err := config.DataConfig{From: from, To: to}.Window()
			if err != nil {
				return err
			}
			if format == "" {
				format = formatOf(in)
			}
			f, err := feed.Open(in, format)
			if err != nil {
				return fmt.Errorf("open %s: %w", in, err)
			}
			bars, err := feed.ReadAll(f, w)
			if err != nil {
				return err
			}
			if len(bars) == 0 {
				return fmt.Errorf("%s: no bars in window %s", in, w)
			}
			if err := market.Validate(in, bars); err != nil {
				return err
			}

			switch formatOf(out) {
			case "parquet":
				err = feed.WriteParquet(out, symbol, bars)
			default:
				err = writeCSVFile(out, bars)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "✓ Wrote %d bars to %s\n", len(bars), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "ORCL", "symbol stored with each Parquet row")
	cmd.Flags().StringVar(&format, "format", "", "input format: csv|parquet (default from extension)")
	cmd.Flags().StringVar(&from, "from", "", "first date to keep (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date to keep (YYYY-MM-DD)")
	return cmd
}

func writeCSVFile(path string, bars []market.Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := feed.WriteCSV(f, bars); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

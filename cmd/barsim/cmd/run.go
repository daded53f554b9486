package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/barsim/backtest"
	"github.com/rustyeddy/barsim/config"
	"github.com/rustyeddy/barsim/feed"
	"github.com/rustyeddy/barsim/journal"
	"github.com/rustyeddy/barsim/market"
)

// runFlags are the settings shared by backtest and sweep. Each one
// overrides the config file only when given on the command line.
type runFlags struct {
	data       string
	format     string
	instrument string
	from, to   string

	strategy string
	params   []string

	cash       float64
	commission float64
	stake      float64
	fill       string
	allowShort bool

	journalType string
	dbPath      string
	tradesFile  string
	ordersFile  string
	equityFile  string

	runID string
}

func (f *runFlags) bind(c *cobra.Command) {
	fs := c.Flags()
	fs.StringVar(&f.data, "data", "", "path to bar data (CSV or Parquet)")
	fs.StringVar(&f.format, "format", "", "data format: csv|parquet (default from extension)")
	fs.StringVarP(&f.instrument, "instrument", "i", "", "instrument name")
	fs.StringVar(&f.from, "from", "", "first date to replay (YYYY-MM-DD)")
	fs.StringVar(&f.to, "to", "", "last date to replay (YYYY-MM-DD)")

	fs.StringVarP(&f.strategy, "strategy", "s", "", "strategy name (noop, two-down, sma-cross, ema-cross, turtle)")
	fs.StringArrayVarP(&f.params, "param", "p", nil, "strategy parameter key=value (repeatable)")

	fs.Float64VarP(&f.cash, "cash", "c", 0, "starting cash")
	fs.Float64Var(&f.commission, "commission", 0, "commission as a fraction of fill value (0.001 = 0.1%)")
	fs.Float64Var(&f.stake, "stake", 0, "default order size")
	fs.StringVar(&f.fill, "fill", "", "fill price: next-open|next-close")
	fs.BoolVar(&f.allowShort, "allow-short", false, "let sells open short positions")

	fs.StringVar(&f.journalType, "journal", "", "journal type: none|csv|sqlite")
	fs.StringVarP(&f.dbPath, "db", "d", "", "SQLite journal path (implies --journal sqlite)")
	fs.StringVar(&f.tradesFile, "trades", "", "CSV trades path (implies --journal csv)")
	fs.StringVar(&f.ordersFile, "orders", "", "CSV orders path")
	fs.StringVar(&f.equityFile, "equity", "", "CSV equity path")

	fs.StringVar(&f.runID, "run-id", "", "run ID (default: strategy name and a ULID)")
}

// apply loads the config file, if any, and lays the given flags over it.
func (f *runFlags) apply(c *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	changed := c.Flags().Changed
	if changed("data") {
		cfg.Data.Path = f.data
		if !changed("format") {
			cfg.Data.Format = formatOf(f.data)
		}
	}
	if changed("format") {
		cfg.Data.Format = f.format
	}
	if changed("instrument") {
		cfg.Broker.Instrument = f.instrument
	}
	if changed("from") {
		cfg.Data.From = f.from
	}
	if changed("to") {
		cfg.Data.To = f.to
	}
	if changed("strategy") && !strings.EqualFold(f.strategy, cfg.Strategy.Name) {
		// Params in the file belong to the file's strategy.
		cfg.Strategy = config.StrategyConfig{Name: f.strategy}
	}
	if len(f.params) > 0 {
		p, err := backtest.ParseParams(f.params)
		if err != nil {
			return nil, err
		}
		if cfg.Strategy.Params == nil {
			cfg.Strategy.Params = map[string]float64{}
		}
		for k, v := range p {
			cfg.Strategy.Params[k] = v
		}
	}
	if changed("cash") {
		cfg.Broker.Cash = f.cash
	}
	if changed("commission") {
		cfg.Broker.Commission = f.commission
	}
	if changed("stake") {
		cfg.Broker.Stake = f.stake
	}
	if changed("fill") {
		cfg.Broker.Fill = f.fill
	}
	if changed("allow-short") {
		cfg.Broker.AllowShort = f.allowShort
	}
	if changed("db") {
		cfg.Journal.Type, cfg.Journal.DBPath = "sqlite", f.dbPath
	}
	if changed("trades") {
		cfg.Journal.Type, cfg.Journal.TradesFile = "csv", f.tradesFile
	}
	if changed("orders") {
		cfg.Journal.OrdersFile = f.ordersFile
	}
	if changed("equity") {
		cfg.Journal.EquityFile = f.equityFile
	}
	if changed("journal") {
		cfg.Journal.Type = f.journalType
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	level, _ := cfg.Log.SlogLevel()
	setLogger(c, level)
	return cfg, nil
}

func formatOf(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".parquet") || strings.HasSuffix(lower, ".pq") {
		return "parquet"
	}
	return "csv"
}

func loadSeries(cfg *config.Config) (*market.Series, error) {
	w, err := cfg.Data.Window()
	if err != nil {
		return nil, err
	}
	f, err := feed.Open(cfg.Data.Path, cfg.Data.Format)
	if err != nil {
		return nil, fmt.Errorf("open data: %w", err)
	}
	if pf, ok := f.(*feed.ParquetFeed); ok {
		pf.Symbol = cfg.Broker.Instrument
	}
	s, err := feed.Load(cfg.Broker.Instrument, f, w)
	if err != nil {
		return nil, fmt.Errorf("load data: %w", err)
	}
	slog.Debug("bars loaded", "source", cfg.Data.Path, "bars", s.Total(), "window", w.String())
	return s, nil
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "", "none":
		return journal.Nop{}, nil
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.OrdersFile, jc.EquityFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	}
	return nil, fmt.Errorf("unknown journal type %q", jc.Type)
}

// Package config loads and validates the settings of a backtest run.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/barsim/feed"
	"github.com/rustyeddy/barsim/sim"
	"github.com/rustyeddy/barsim/strategies"
)

// Config represents the complete backtest configuration
type Config struct {
	Broker   BrokerConfig   `json:"broker" yaml:"broker"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// BrokerConfig contains the simulated account settings
type BrokerConfig struct {
	Cash       float64 `json:"cash" yaml:"cash"`
	Commission float64 `json:"commission" yaml:"commission"` // fraction of fill value
	Stake      float64 `json:"stake" yaml:"stake"`           // default order size
	Fill       string  `json:"fill" yaml:"fill"`             // next-open or next-close
	AllowShort bool    `json:"allow_short" yaml:"allow_short"`
	Instrument string  `json:"instrument" yaml:"instrument"`
}

// DataConfig points at the bars to replay
type DataConfig struct {
	Path   string `json:"path" yaml:"path"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // csv, parquet or empty to guess
	From   string `json:"from,omitempty" yaml:"from,omitempty"`     // 2006-01-02
	To     string `json:"to,omitempty" yaml:"to,omitempty"`
}

// StrategyConfig selects a registered strategy
type StrategyConfig struct {
	Name   string             `json:"name" yaml:"name"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	OrdersFile string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrgFile    string `json:"org_file,omitempty" yaml:"org_file,omitempty"`
}

// MetricsConfig names the Prometheus textfile written after a run
type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
}

// Load reads a file (YAML, falling back to JSON) over the defaults. It
// does not validate, so callers can apply overrides first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return cfg, nil
}

// LoadFromFile loads and validates configuration from a file
func LoadFromFile(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration as YAML for .yaml/.yml paths and JSON
// otherwise
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !(c.Broker.Cash > 0) {
		return fmt.Errorf("broker.cash must be positive")
	}
	if !(c.Broker.Commission >= 0 && c.Broker.Commission < 1) {
		return fmt.Errorf("broker.commission must be in [0, 1)")
	}
	if !(c.Broker.Stake > 0) {
		return fmt.Errorf("broker.stake must be positive")
	}
	if _, err := sim.ParseFillPolicy(c.Broker.Fill); err != nil {
		return fmt.Errorf("broker.fill: %w", err)
	}
	if c.Broker.Instrument == "" {
		return fmt.Errorf("broker.instrument is required")
	}

	if c.Data.Path == "" {
		return fmt.Errorf("data.path is required")
	}
	switch c.Data.Format {
	case "", "csv", "parquet":
	default:
		return fmt.Errorf("data.format must be 'csv' or 'parquet'")
	}
	if _, err := c.Data.Window(); err != nil {
		return err
	}

	if _, err := strategies.ByName(c.Strategy.Name, c.Strategy.Params); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" {
			return fmt.Errorf("journal trades_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Window parses From and To. Either may be a date or an RFC3339 time.
func (d DataConfig) Window() (feed.Window, error) {
	var w feed.Window
	var err error
	if w.From, err = parseDate("data.from", d.From); err != nil {
		return w, err
	}
	if w.To, err = parseDate("data.to", d.To); err != nil {
		return w, err
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From) {
		return w, fmt.Errorf("data.to %s is before data.from %s", d.To, d.From)
	}
	return w, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: bad date %q", field, s)
	}
	return t.UTC(), nil
}

// SlogLevel maps Level to a slog level; empty means info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: unknown level %q", l.Level)
	}
	return lvl, nil
}

// SimConfig returns the engine settings for a run.
func (c *Config) SimConfig(runID string) (sim.Config, error) {
	fill, err := sim.ParseFillPolicy(c.Broker.Fill)
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		Cash:       c.Broker.Cash,
		Commission: c.Broker.Commission,
		Fill:       fill,
		AllowShort: c.Broker.AllowShort,
		RunID:      runID,
	}, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Cash:       100000,
			Commission: 0.001,
			Stake:      1,
			Fill:       sim.NextOpen.String(),
			Instrument: "ORCL",
		},
		Data: DataConfig{
			Path:   "./datas/orcl-1995-2014.txt",
			Format: "csv",
			From:   "2000-01-01",
			To:     "2000-12-31",
		},
		Strategy: StrategyConfig{
			Name: "two-down",
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

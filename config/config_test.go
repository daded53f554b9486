package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/barsim/sim"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, 100000.0, cfg.Broker.Cash)
	assert.Equal(t, 1.0, cfg.Broker.Stake)
	assert.Equal(t, "two-down", cfg.Strategy.Name)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"zero cash", func(c *Config) { c.Broker.Cash = 0 }, "broker.cash must be positive"},
		{"commission of one", func(c *Config) { c.Broker.Commission = 1 }, "broker.commission must be in [0, 1)"},
		{"negative commission", func(c *Config) { c.Broker.Commission = -0.1 }, "broker.commission must be in [0, 1)"},
		{"zero stake", func(c *Config) { c.Broker.Stake = 0 }, "broker.stake must be positive"},
		{"bad fill", func(c *Config) { c.Broker.Fill = "same-close" }, "broker.fill"},
		{"no instrument", func(c *Config) { c.Broker.Instrument = "" }, "broker.instrument is required"},
		{"no data", func(c *Config) { c.Data.Path = "" }, "data.path is required"},
		{"bad format", func(c *Config) { c.Data.Format = "json" }, "data.format must be"},
		{"bad from", func(c *Config) { c.Data.From = "01/02/2000" }, "data.from: bad date"},
		{"reversed window", func(c *Config) { c.Data.From, c.Data.To = "2001-01-01", "2000-01-01" }, "is before data.from"},
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "nope" }, "unknown strategy"},
		{"unknown param", func(c *Config) { c.Strategy.Params = map[string]float64{"period": 3} }, `unknown param "period"`},
		{"csv without trades file", func(c *Config) { c.Journal.Type = "csv" }, "journal trades_file required"},
		{"sqlite without path", func(c *Config) { c.Journal.Type = "sqlite" }, "journal db_path required"},
		{"bad journal", func(c *Config) { c.Journal.Type = "postgres" }, "journal.type must be"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, `log.level: unknown level "loud"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Strategy = StrategyConfig{Name: "sma-cross", Params: map[string]float64{"period": 20}}
			cfg.Journal = JournalConfig{Type: "sqlite", DBPath: "runs.sqlite"}
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broker:\n  cash: 5000\nstrategy:\n  name: turtle\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, cfg.Broker.Cash)
	assert.Equal(t, "ORCL", cfg.Broker.Instrument)
	assert.Equal(t, "turtle", cfg.Strategy.Name)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broker: [1, 2"), 0o644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestWindow(t *testing.T) {
	w, err := DataConfig{From: "2000-01-01", To: "2000-12-31T16:00:00Z"}.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2000, 12, 31, 16, 0, 0, 0, time.UTC), w.To)

	w, err = DataConfig{}.Window()
	require.NoError(t, err)
	assert.True(t, w.From.IsZero())
}

func TestSimConfig(t *testing.T) {
	cfg := Default()
	cfg.Broker.Fill = "next-close"
	cfg.Broker.AllowShort = true

	sc, err := cfg.SimConfig("run-1")
	require.NoError(t, err)
	assert.Equal(t, sim.Config{Cash: 100000, Commission: 0.001, Fill: sim.NextClose, AllowShort: true, RunID: "run-1"}, sc)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := LogConfig{Level: tt.in}.SlogLevel()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

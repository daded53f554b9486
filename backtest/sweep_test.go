package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/barsim/journal"
	"github.com/rustyeddy/barsim/market"
	"github.com/rustyeddy/barsim/sim"
)

func wave(n int) []market.Bar {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		c := 100 + float64((i*7)%23) - float64((i*3)%11)
		bars[i] = market.Bar{Time: start.AddDate(0, 0, i), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return bars
}

func TestSweepMatchesSequentialRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := Job{
		RunID:    "sweep",
		Series:   series(t, wave(120)),
		Strategy: "sma-cross",
		Broker:   sim.Config{Cash: 100000, Commission: 0.001},
		Stake:    10,
		Logger:   quiet,
	}
	grid, err := ParseGrid([]string{"period=5,10,15,20"})
	require.NoError(t, err)

	mem := &journal.Memory{}
	base.Journal = mem
	results, err := Sweep(ctx, base, grid, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, res := range results {
		assert.Equal(t, grid[i]["period"], res.Params["period"])
		assert.Equal(t, []string{"sweep-001", "sweep-002", "sweep-003", "sweep-004"}[i], res.RunID)

		job := base
		job.Journal = nil
		job.Series = base.Series.Clone()
		job.Params = grid[i]
		want, err := Execute(ctx, job)
		require.NoError(t, err)
		assert.Equal(t, want.FinalValue, res.FinalValue, "period %v", grid[i]["period"])
		assert.Equal(t, want.Trades, res.Trades)
	}
	assert.Len(t, mem.Equity, 4*120)
	assert.Equal(t, -1, base.Series.Index(), "the base series is never advanced")
}

func TestSweepStopsOnError(t *testing.T) {
	t.Parallel()

	base := Job{
		RunID:    "bad",
		Series:   series(t, wave(10)),
		Strategy: "sma-cross",
		Broker:   sim.Config{Cash: 1000},
		Logger:   quiet,
	}
	_, err := Sweep(context.Background(), base, []map[string]float64{{"period": 3}, {"period": 0}}, 0)
	assert.ErrorContains(t, err, "sweep run bad-002")
}

func TestParseGrid(t *testing.T) {
	t.Parallel()

	grid, err := ParseGrid([]string{"fast=5,10", "slow= 20, 30 ,40"})
	require.NoError(t, err)
	require.Len(t, grid, 6)
	assert.Equal(t, map[string]float64{"fast": 5, "slow": 20}, grid[0])
	assert.Equal(t, map[string]float64{"fast": 5, "slow": 40}, grid[2])
	assert.Equal(t, map[string]float64{"fast": 10, "slow": 20}, grid[3])

	grid, err = ParseGrid(nil)
	require.NoError(t, err)
	assert.Equal(t, []map[string]float64{{}}, grid)

	for _, bad := range [][]string{{"period"}, {"=1"}, {"period="}, {"period=a"}, {"p=1", "p=2"}} {
		_, err := ParseGrid(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestParseParams(t *testing.T) {
	t.Parallel()

	p, err := ParseParams([]string{"period=15", "risk_per_trade=0.01"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"period": 15, "risk_per_trade": 0.01}, p)

	_, err = ParseParams([]string{"period"})
	assert.Error(t, err)
	_, err = ParseParams([]string{"period=x"})
	assert.Error(t, err)
}

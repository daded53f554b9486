package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    Inputs
		units float64
		dist  float64
	}{
		{"two percent", Inputs{Equity: 100000, RiskPct: 0.02, EntryPrice: 50, StopPrice: 46}, 500, 4},
		{"floors", Inputs{Equity: 10000, RiskPct: 0.01, EntryPrice: 30, StopPrice: 27}, 33, 3},
		{"minimum one", Inputs{Equity: 100, RiskPct: 0.01, EntryPrice: 500, StopPrice: 400}, 1, 100},
		{"stop above entry", Inputs{Equity: 100000, RiskPct: 0.02, EntryPrice: 50, StopPrice: 51}, 0, -1},
		{"stop at entry", Inputs{Equity: 100000, RiskPct: 0.02, EntryPrice: 50, StopPrice: 50}, 0, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Calculate(tt.in)
			assert.Equal(t, tt.units, got.Units)
			assert.InDelta(t, tt.dist, got.StopDistance, 1e-9)
			assert.InDelta(t, tt.in.Equity*tt.in.RiskPct, got.RiskAmount, 1e-9)
		})
	}
}

func TestSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 500.0, Size(100000, 0.02, 50, 46))
	assert.Equal(t, 0.0, Size(100000, 0.02, 50, math.NaN()))
}

func TestInitialStop(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 46.0, InitialStop(50, 2, 2), 1e-9)
	assert.InDelta(t, 47.5, InitialStop(50, 0, 2), 1e-9)
	assert.InDelta(t, 47.5, InitialStop(50, -1, 2), 1e-9)
}

func TestTrailingStop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		highest float64
		atr     float64
		floor   float64
		want    float64
	}{
		{"trails high", 60, 2, 46, 57},
		{"floored", 48, 2, 46, 46},
		{"no atr", 60, 0, 46, 46},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, TrailingStop(tt.highest, tt.atr, 1.5, tt.floor), 1e-9)
		})
	}
}

func TestPlannedRiskAndRR(t *testing.T) {
	t.Parallel()

	r := PlannedRisk(500, 50, 46)
	assert.InDelta(t, 2000.0, r, 1e-9)
	assert.InDelta(t, 0.02, RiskPct(r, 100000), 1e-12)
	assert.True(t, math.IsInf(RiskPct(r, 0), 1))
	assert.InDelta(t, 2.0, RR(50, 46, 58), 1e-9)
	assert.Equal(t, 0.0, RR(50, 50, 58))
}

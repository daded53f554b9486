package risk

import "math"

// Inputs describes a long entry to be sized off a fixed fraction of equity.
type Inputs struct {
	Equity     float64
	RiskPct    float64 // 0.02
	EntryPrice float64
	StopPrice  float64
}

type Result struct {
	Units        float64
	StopDistance float64
	RiskAmount   float64
}

// Calculate sizes a position so that hitting the stop loses RiskPct of
// equity. Units are whole shares, at least one. A stop at or above the
// entry yields zero units.
func Calculate(in Inputs) Result {
	dist := in.EntryPrice - in.StopPrice
	riskAmt := in.Equity * in.RiskPct
	if dist <= 0 || math.IsNaN(dist) {
		return Result{StopDistance: dist, RiskAmount: riskAmt}
	}

	units := math.Floor(riskAmt / dist)
	if units < 1 {
		units = 1
	}
	return Result{
		Units:        units,
		StopDistance: dist,
		RiskAmount:   riskAmt,
	}
}

// Size is Calculate reduced to the unit count.
func Size(equity, riskPct, entry, stop float64) float64 {
	return Calculate(Inputs{Equity: equity, RiskPct: riskPct, EntryPrice: entry, StopPrice: stop}).Units
}

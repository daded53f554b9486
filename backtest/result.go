package backtest

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/journal"
	"github.com/rustyeddy/barsim/metrics"
	"github.com/rustyeddy/barsim/sim"
)

// EquityPoint is the account state after a bar's fills.
type EquityPoint struct {
	Bar   int
	Time  time.Time
	Cash  float64
	Value float64
}

// Result summarizes a backtest run.
type Result struct {
	RunID      string
	Strategy   string
	Instrument string
	Params     map[string]float64

	Start time.Time
	End   time.Time
	Bars  int

	StartValue float64
	FinalValue float64
	Cash       float64
	ReturnPct  float64

	// Closed trades only; a position still open at the end is valued in
	// FinalValue but not counted here.
	Trades  int
	Wins    int
	Losses  int
	WinRate float64 // fraction of trades with positive net P&L

	GrossPnL   float64
	NetPnL     float64
	Commission float64 // every fill, including fills of open positions

	// ProfitFactor is gross wins over gross losses of net P&L; 0 when
	// there are no losing trades.
	ProfitFactor   float64
	MaxDrawdownPct float64

	Notifications []broker.Notification
	TradeLog      []broker.Trade
	Equity        []EquityPoint

	Metrics *metrics.Run
}

func (r *Result) finish() {
	r.Trades = len(r.TradeLog)
	r.Wins, r.Losses = 0, 0
	r.GrossPnL, r.NetPnL = 0, 0
	var won, lost float64
	for _, t := range r.TradeLog {
		r.GrossPnL += t.GrossPnL
		r.NetPnL += t.NetPnL
		switch {
		case t.NetPnL > 0:
			r.Wins++
			won += t.NetPnL
		case t.NetPnL < 0:
			r.Losses++
			lost -= t.NetPnL
		}
	}
	if r.Trades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.Trades)
	}
	if lost > 0 {
		r.ProfitFactor = won / lost
	}

	r.Commission = 0
	for _, n := range r.Notifications {
		if n.Status == broker.Completed {
			r.Commission += n.Commission
		}
	}
	if r.StartValue > 0 {
		r.ReturnPct = (r.FinalValue - r.StartValue) / r.StartValue * 100
	}
	r.MaxDrawdownPct = MaxDrawdownPct(r.StartValue, r.Equity)
}

// MaxDrawdownPct is the largest peak to trough drop of value in percent,
// starting from start.
func MaxDrawdownPct(start float64, points []EquityPoint) float64 {
	peak, dd := start, 0.0
	for _, p := range points {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			dd = math.Max(dd, (peak-p.Value)/peak*100)
		}
	}
	return dd
}

// Run converts the result into a journal row for dataset.
func (r Result) Run(dataset string) journal.BacktestRun {
	return journal.BacktestRun{
		RunID:        r.RunID,
		Created:      time.Now().UTC(),
		Dataset:      dataset,
		Instrument:   r.Instrument,
		Strategy:     r.Strategy,
		Params:       r.Params,
		Start:        r.Start,
		End:          r.End,
		Bars:         r.Bars,
		Trades:       r.Trades,
		Wins:         r.Wins,
		Losses:       r.Losses,
		StartValue:   r.StartValue,
		EndValue:     r.FinalValue,
		NetPL:        r.NetPnL,
		Commission:   r.Commission,
		ReturnPct:    r.ReturnPct,
		WinRate:      r.WinRate,
		ProfitFactor: r.ProfitFactor,
		MaxDDPct:     r.MaxDrawdownPct,
	}
}

// TradeRecords returns the closed trades as journal rows.
func (r Result) TradeRecords() []journal.TradeRecord {
	out := make([]journal.TradeRecord, len(r.TradeLog))
	for i, t := range r.TradeLog {
		out[i] = sim.TradeRecord(r.RunID, t)
	}
	return out
}

// Print writes a human readable summary.
func (r Result) Print(w io.Writer) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	if r.RunID != "" {
		fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	}
	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	fmt.Fprintf(w, "Instrument:    %s\n", r.Instrument)
	if len(r.Params) > 0 {
		run := journal.BacktestRun{Params: r.Params}
		fmt.Fprintf(w, "Params:        %s\n", run.ParamString())
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.DateOnly))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.DateOnly))
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.WinRate*100)
	fmt.Fprintf(w, "Gross P/L:     %.2f\n", r.GrossPnL)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", r.NetPnL)
	fmt.Fprintf(w, "Commission:    %.2f\n", r.Commission)
	if r.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", r.ProfitFactor)
	}
	if r.MaxDrawdownPct > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.MaxDrawdownPct)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Starting Portfolio Value: %.2f\n", r.StartValue)
	fmt.Fprintf(w, "Final Portfolio Value: %.2f\n", r.FinalValue)
	fmt.Fprintf(w, "Total Return: %.2f%%\n", r.ReturnPct)
}

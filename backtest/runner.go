// Package backtest replays a bar series through a strategy and the
// simulated broker, and summarizes the outcome.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/indicators"
	"github.com/rustyeddy/barsim/market"
	"github.com/rustyeddy/barsim/metrics"
	"github.com/rustyeddy/barsim/sim"
	"github.com/rustyeddy/barsim/strategies"
)

// Runner drives an engine forward over a series with one strategy.
type Runner struct {
	Engine   *sim.Engine
	Series   *market.Series
	Strategy strategies.Strategy

	// Stake is the order size used when a strategy asks for size 0.
	// Defaults to 1.
	Stake float64

	Logger  *slog.Logger
	Metrics *metrics.Run
}

// Run executes the event loop. For every bar:
//  1. advance the series cursor
//  2. update the indicator graph
//  3. engine.ProcessBar fills the orders of earlier bars
//  4. deliver order notifications, then closed trades
//  5. strategy.OnBar
//
// After the last bar the engine is halted, every order still pending is
// canceled and its notification delivered. Orders a strategy submits from
// then on are rejected.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Engine == nil {
		return Result{}, fmt.Errorf("backtest: Engine is required")
	}
	if r.Series == nil {
		return Result{}, fmt.Errorf("backtest: Series is required")
	}
	if r.Strategy == nil {
		return Result{}, fmt.Errorf("backtest: Strategy is required")
	}
	if r.Series.Index() != -1 {
		return Result{}, fmt.Errorf("backtest: Series already advanced to bar %d", r.Series.Index())
	}
	if r.Stake == 0 {
		r.Stake = 1
	}
	if r.Stake < 0 {
		return Result{}, fmt.Errorf("backtest: stake must be positive, got %v", r.Stake)
	}
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}

	inst := r.Series.Instrument
	r.Engine.AddInstrument(inst)

	g := indicators.NewGraph()
	if err := r.Strategy.Init(g, r.Series); err != nil {
		return Result{}, fmt.Errorf("backtest: init %s: %w", r.Strategy.Name(), err)
	}

	res := Result{
		Strategy:   r.Strategy.Name(),
		Instrument: inst,
		RunID:      r.Engine.Config().RunID,
		StartValue: r.Engine.Value(),
	}
	bc := &barContext{r: r, log: log}
	peak := res.StartValue
	var dd float64

	for r.Series.Advance() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		i := r.Series.Index()
		b, err := r.Series.Bar(0)
		if err != nil {
			return Result{}, err
		}
		if i == 0 {
			res.Start = b.Time
		}
		res.End = b.Time
		res.Bars++
		bc.log = log.With("bar", i, "date", b.Time.Format(time.DateOnly))

		if err := g.Update(); err != nil {
			return Result{}, fmt.Errorf("backtest: bar %d: %w", i, err)
		}
		if err := r.Engine.ProcessBar(inst, i, b); err != nil {
			return Result{}, fmt.Errorf("backtest: bar %d: %w", i, err)
		}
		r.deliver(bc, &res)

		value := r.Engine.Value()
		cash := r.Engine.Cash()
		if value > peak {
			peak = value
		}
		if peak > 0 {
			if d := (peak - value) / peak * 100; d > dd {
				dd = d
			}
		}
		res.Equity = append(res.Equity, EquityPoint{Bar: i, Time: b.Time, Cash: cash, Value: value})
		if r.Metrics != nil {
			r.Metrics.ObserveBar(value, cash, r.Engine.Position(inst).Size, dd)
		}
		bc.log.Debug("bar", "close", b.Close, "value", value, "cash", cash)

		if err := r.Strategy.OnBar(bc); err != nil {
			return Result{}, fmt.Errorf("backtest: %s at bar %d (%s): %w",
				r.Strategy.Name(), i, b.Time.Format(time.DateOnly), err)
		}
	}

	r.Engine.Halt()
	for pass := 0; ; pass++ {
		if pass == maxEndPasses {
			return Result{}, fmt.Errorf("backtest: end of replay: %s still submitting after %d rounds",
				r.Strategy.Name(), maxEndPasses)
		}
		if err := r.Engine.CancelAll(); err != nil {
			return Result{}, fmt.Errorf("backtest: end of replay: %w", err)
		}
		if !r.deliver(bc, &res) {
			break
		}
	}

	res.FinalValue = r.Engine.Value()
	res.Cash = r.Engine.Cash()
	res.finish()
	log.Info("backtest finished",
		"strategy", res.Strategy,
		"bars", res.Bars,
		"trades", res.Trades,
		"final_value", broker.Round(res.FinalValue))
	return res, nil
}

// maxEndPasses bounds the delivery rounds after the last bar, for
// strategies that answer every rejection with a new order.
const maxEndPasses = 100

// deliver hands queued engine events to the strategy: order
// notifications first, then closed trades, each in emission order. It
// reports whether there was anything to deliver.
func (r *Runner) deliver(bc *barContext, res *Result) bool {
	notes, trades := r.Engine.Drain()
	for _, n := range notes {
		res.Notifications = append(res.Notifications, n)
		if r.Metrics != nil {
			r.Metrics.ObserveOrder(n.Status.String(), n.Commission)
		}
		switch n.Status {
		case broker.Completed:
			bc.log.Info("order filled",
				"order", n.OrderID, "side", n.Side, "size", n.Size,
				"price", n.Price, "commission", n.Commission)
		case broker.Margin, broker.Rejected, broker.Canceled:
			bc.log.Info("order "+n.Status.String(), "order", n.OrderID, "reason", n.Reason)
		default:
			bc.log.Debug("order "+n.Status.String(), "order", n.OrderID)
		}
		r.Strategy.OnOrder(bc, n)
	}
	for _, t := range trades {
		res.TradeLog = append(res.TradeLog, t)
		if r.Metrics != nil {
			r.Metrics.ObserveTrade(t.NetPnL)
		}
		bc.log.Info("trade closed", "trade", t.ID, "gross", t.GrossPnL, "net", t.NetPnL)
		r.Strategy.OnTrade(bc, t)
	}
	return len(notes) > 0 || len(trades) > 0
}

// barContext is the strategies.Context handed to the strategy.
type barContext struct {
	r   *Runner
	log *slog.Logger
}

func (c *barContext) submit(side broker.Side, size float64) *broker.Order {
	if size == 0 {
		size = c.r.Stake
	}
	o := broker.NewMarketOrder(c.r.Series.Instrument, side, size)
	return c.r.Engine.Submit(o, c.r.Series.Index())
}

func (c *barContext) Buy(size float64) *broker.Order  { return c.submit(broker.Buy, size) }
func (c *barContext) Sell(size float64) *broker.Order { return c.submit(broker.Sell, size) }

func (c *barContext) Close() *broker.Order {
	pos := c.Position()
	switch {
	case pos.Long():
		return c.submit(broker.Sell, pos.Size)
	case pos.Short():
		return c.submit(broker.Buy, -pos.Size)
	}
	return nil
}

func (c *barContext) Cancel(o *broker.Order) error { return c.r.Engine.Cancel(o) }

func (c *barContext) Position() broker.Position {
	return c.r.Engine.Position(c.r.Series.Instrument)
}

func (c *barContext) Value() float64 { return c.r.Engine.Value() }
func (c *barContext) Cash() float64  { return c.r.Engine.Cash() }

func (c *barContext) Bar(offset int) (market.Bar, error) { return c.r.Series.Bar(offset) }
func (c *barContext) Index() int                         { return c.r.Series.Index() }
func (c *barContext) Logger() *slog.Logger               { return c.log }

// Package strategies holds the trading rules replayed by the backtest
// runner. A strategy declares its indicators in Init and reacts to bars,
// order notifications and closed trades through a Context.
package strategies

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/indicators"
	"github.com/rustyeddy/barsim/market"
)

// Strategy is driven by the runner once per bar. Notifications for a bar
// are delivered before OnBar; orders placed in OnBar fill on a later bar.
type Strategy interface {
	Name() string
	Init(g *indicators.Graph, s *market.Series) error
	OnBar(ctx Context) error
	OnOrder(ctx Context, n broker.Notification)
	OnTrade(ctx Context, t broker.Trade)
}

// Context is the strategy's view of the broker and the current bar.
type Context interface {
	// Buy and Sell submit a market order; size 0 uses the configured stake.
	Buy(size float64) *broker.Order
	Sell(size float64) *broker.Order
	// Close flattens the position. It returns nil when already flat.
	Close() *broker.Order
	Cancel(o *broker.Order) error

	Position() broker.Position
	Value() float64
	Cash() float64

	// Bar returns the bar offset bars back (offset <= 0).
	Bar(offset int) (market.Bar, error)
	Index() int
	Logger() *slog.Logger
}

// Params are numeric strategy settings by name.
type Params map[string]float64

// Int returns p[key] rounded to an int.
func (p Params) Int(key string) int { return int(math.Round(p[key])) }

func (p Params) clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Factory builds a strategy from a complete parameter set.
type Factory func(p Params) (Strategy, error)

type registration struct {
	defaults Params
	factory  Factory
}

var registry = make(map[string]registration)

// Register makes a strategy available to ByName. defaults lists every
// parameter the strategy accepts.
func Register(name string, defaults Params, f Factory) {
	registry[name] = registration{defaults: defaults, factory: f}
}

// Defaults returns a copy of the default parameters of name.
func Defaults(name string) (Params, bool) {
	r, ok := registry[normalize(name)]
	if !ok {
		return nil, false
	}
	return r.defaults.clone(), true
}

// Names lists the registered strategies in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ByName builds a registered strategy. params override the defaults;
// keys the strategy does not know are rejected.
func ByName(name string, params map[string]float64) (Strategy, error) {
	r, ok := registry[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	p := r.defaults.clone()
	for k, v := range params {
		if _, known := r.defaults[k]; !known {
			return nil, fmt.Errorf("strategy %s: unknown param %q", normalize(name), k)
		}
		p[k] = v
	}
	return r.factory(p)
}

func normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "none" {
		return "noop"
	}
	return n
}

// positive checks that every named parameter is an integer period >= 1.
func positive(p Params, keys ...string) error {
	for _, k := range keys {
		if p.Int(k) < 1 {
			return fmt.Errorf("param %s must be >= 1, got %v", k, p[k])
		}
	}
	return nil
}

// at reads in at offset. ok is false while in is warming up or does not
// reach that far back yet.
func at(in indicators.Input, offset int) (v float64, ok bool, err error) {
	v, err = in.At(offset)
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, indicators.ErrNotReady), errors.Is(err, market.ErrInsufficientHistory):
		return 0, false, nil
	}
	return 0, false, err
}

// pending tracks the single in-flight order of a strategy.
type pending struct {
	order *broker.Order
}

func (p *pending) busy() bool { return p.order != nil }

func (p *pending) set(o *broker.Order) {
	if o != nil && o.Alive() {
		p.order = o
	}
}

// done clears the slot when n finishes the tracked order.
func (p *pending) done(n broker.Notification) {
	if p.order != nil && n.OrderID == p.order.ID && n.Status.Terminal() {
		p.order = nil
	}
}

func logOrder(ctx Context, n broker.Notification) {
	switch n.Status {
	case broker.Completed:
		msg := "BUY EXECUTED"
		if n.Side == broker.Sell {
			msg = "SELL EXECUTED"
		}
		ctx.Logger().Info(msg,
			"price", n.Price, "value", n.Value, "comm", n.Commission, "size", n.Size)
	case broker.Canceled, broker.Margin, broker.Rejected:
		ctx.Logger().Info("order "+n.Status.String(), "order", n.OrderID, "reason", n.Reason)
	}
}

func logTrade(ctx Context, t broker.Trade) {
	ctx.Logger().Info("OPERATION PROFIT", "gross", t.GrossPnL, "net", t.NetPnL)
}

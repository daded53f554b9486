package strategies

import (
	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/indicators"
	"github.com/rustyeddy/barsim/market"
)

func init() {
	Register("noop", Params{}, func(Params) (Strategy, error) { return NoopStrategy{}, nil })
}

// NoopStrategy never trades.
type NoopStrategy struct{}

func (NoopStrategy) Name() string { return "noop" }

func (NoopStrategy) Init(*indicators.Graph, *market.Series) error { return nil }

func (NoopStrategy) OnBar(Context) error { return nil }

func (NoopStrategy) OnOrder(Context, broker.Notification) {}

func (NoopStrategy) OnTrade(Context, broker.Trade) {}

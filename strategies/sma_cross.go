package strategies

import (
	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/indicators"
	"github.com/rustyeddy/barsim/market"
)

func init() {
	Register("sma-cross", Params{"period": 15}, func(p Params) (Strategy, error) {
		if err := positive(p, "period"); err != nil {
			return nil, err
		}
		return &SMACross{Period: p.Int("period")}, nil
	})
}

// SMACross is long while the close is above its simple moving average.
type SMACross struct {
	Period int

	sma     *indicators.SMA
	pending pending
}

func (s *SMACross) Name() string { return "sma-cross" }

func (s *SMACross) Init(g *indicators.Graph, series *market.Series) error {
	s.sma = indicators.NewSMA(series.Field(market.Close), s.Period)
	return g.Add(s.sma)
}

func (s *SMACross) OnBar(ctx Context) error {
	b, err := ctx.Bar(0)
	if err != nil {
		return err
	}
	avg, ok, err := at(s.sma, 0)
	if err != nil || !ok || s.pending.busy() {
		return err
	}

	pos := ctx.Position()
	switch {
	case pos.Flat() && b.Close > avg:
		ctx.Logger().Info("BUY CREATE", "close", b.Close, "sma", avg)
		s.pending.set(ctx.Buy(0))
	case pos.Long() && b.Close < avg:
		ctx.Logger().Info("SELL CREATE", "close", b.Close, "sma", avg)
		s.pending.set(ctx.Sell(0))
	}
	return nil
}

func (s *SMACross) OnOrder(ctx Context, n broker.Notification) {
	logOrder(ctx, n)
	s.pending.done(n)
}

func (s *SMACross) OnTrade(ctx Context, t broker.Trade) { logTrade(ctx, t) }

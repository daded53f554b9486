package strategies

import (
	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/indicators"
	"github.com/rustyeddy/barsim/market"
)

func init() {
	Register("two-down", Params{"hold": 5}, func(p Params) (Strategy, error) {
		if err := positive(p, "hold"); err != nil {
			return nil, err
		}
		return &TwoDown{Hold: p.Int("hold")}, nil
	})
}

// TwoDown buys the stake after two consecutive lower closes and sells it
// Hold bars after the entry filled.
type TwoDown struct {
	Hold int

	pending  pending
	entryBar int
}

func (s *TwoDown) Name() string { return "two-down" }

func (s *TwoDown) Init(*indicators.Graph, *market.Series) error { return nil }

func (s *TwoDown) OnBar(ctx Context) error {
	b, err := ctx.Bar(0)
	if err != nil {
		return err
	}
	ctx.Logger().Debug("close", "close", b.Close)

	if s.pending.busy() {
		return nil
	}

	if ctx.Position().Flat() {
		if ctx.Index() < 2 {
			return nil
		}
		prev, err := ctx.Bar(-1)
		if err != nil {
			return err
		}
		prev2, err := ctx.Bar(-2)
		if err != nil {
			return err
		}
		if b.Close < prev.Close && prev.Close < prev2.Close {
			ctx.Logger().Info("BUY CREATE", "close", b.Close)
			s.pending.set(ctx.Buy(0))
		}
		return nil
	}

	if ctx.Index() >= s.entryBar+s.Hold {
		ctx.Logger().Info("SELL CREATE", "close", b.Close)
		s.pending.set(ctx.Sell(0))
	}
	return nil
}

func (s *TwoDown) OnOrder(ctx Context, n broker.Notification) {
	logOrder(ctx, n)
	if n.Status == broker.Completed && n.Side == broker.Buy {
		s.entryBar = n.Bar
	}
	s.pending.done(n)
}

func (s *TwoDown) OnTrade(ctx Context, t broker.Trade) { logTrade(ctx, t) }

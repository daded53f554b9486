package strategies

import (
	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/indicators"
	"github.com/rustyeddy/barsim/market"
)

func init() {
	Register("ema-cross", Params{"fast": 10, "slow": 30, "adx": 0, "adx_threshold": 25},
		func(p Params) (Strategy, error) {
			if err := positive(p, "fast", "slow"); err != nil {
				return nil, err
			}
			return &EMACross{
				FastPeriod:   p.Int("fast"),
				SlowPeriod:   p.Int("slow"),
				ADXPeriod:    p.Int("adx"),
				ADXThreshold: p["adx_threshold"],
			}, nil
		})
}

// EMACross goes long on a bullish fast/slow EMA cross and exits on the
// bearish one. With ADXPeriod > 0, entries also need ADX >= ADXThreshold.
type EMACross struct {
	FastPeriod   int
	SlowPeriod   int
	ADXPeriod    int
	ADXThreshold float64

	fast *indicators.EMA
	slow *indicators.EMA
	adx  *indicators.ADX

	lastDiff     float64
	haveLastDiff bool

	pending pending
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) Init(g *indicators.Graph, series *market.Series) error {
	closes := series.Field(market.Close)
	s.fast = indicators.NewEMA(closes, s.FastPeriod)
	s.slow = indicators.NewEMA(closes, s.SlowPeriod)
	if err := g.Add(s.fast); err != nil {
		return err
	}
	if err := g.Add(s.slow); err != nil {
		return err
	}
	if s.ADXPeriod > 0 {
		s.adx = indicators.NewADX(series, s.ADXPeriod)
		return g.Add(s.adx)
	}
	return nil
}

func (s *EMACross) OnBar(ctx Context) error {
	fast, ok, err := at(s.fast, 0)
	if err != nil || !ok {
		return err
	}
	slow, ok, err := at(s.slow, 0)
	if err != nil || !ok {
		return err
	}
	diff := fast - slow

	// Need a previous diff to detect a cross.
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return nil
	}
	bullCross := diff > 0 && s.lastDiff <= 0
	bearCross := diff < 0 && s.lastDiff >= 0
	s.lastDiff = diff

	if s.pending.busy() {
		return nil
	}
	pos := ctx.Position()
	switch {
	case bullCross && pos.Flat():
		if s.adx != nil {
			adx, ok, err := at(s.adx, 0)
			if err != nil || !ok || adx < s.ADXThreshold {
				return err
			}
		}
		ctx.Logger().Info("BUY CREATE", "signal", "BullCross", "fast", fast, "slow", slow)
		s.pending.set(ctx.Buy(0))
	case bearCross && pos.Long():
		ctx.Logger().Info("SELL CREATE", "signal", "BearCross", "fast", fast, "slow", slow)
		s.pending.set(ctx.Close())
	}
	return nil
}

func (s *EMACross) OnOrder(ctx Context, n broker.Notification) {
	logOrder(ctx, n)
	s.pending.done(n)
}

func (s *EMACross) OnTrade(ctx Context, t broker.Trade) { logTrade(ctx, t) }

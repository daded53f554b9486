package strategies

import (
	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/indicators"
	"github.com/rustyeddy/barsim/market"
	"github.com/rustyeddy/barsim/risk"
)

// TurtleDefaults are the parameters of the turtle strategy.
var TurtleDefaults = Params{
	"donchian_high_period":   20,
	"donchian_low_period":    10,
	"adx_period":             14,
	"adx_threshold":          25,
	"ema_period":             50,
	"atr_period":             20,
	"atr_multiplier_stop":    2.0,
	"atr_multiplier_trail":   1.5,
	"atr_multiplier_pyramid": 1.0,
	"risk_per_trade":         0.02,
	"max_units":              4,
	"adx_decline_days":       3,
	"obv_sma_period":         21,
}

func init() {
	Register("turtle", TurtleDefaults, func(p Params) (Strategy, error) {
		if err := positive(p, "donchian_high_period", "donchian_low_period",
			"adx_period", "ema_period", "atr_period", "max_units", "obv_sma_period"); err != nil {
			return nil, err
		}
		return &Turtle{p: p}, nil
	})
}

// Turtle is a long-only Donchian breakout system.
//
// Entry: close above the prior DonchianHigh upper band with ADX at or
// above the threshold, sized so the initial ATR stop risks a fixed share
// of portfolio value. Exits: close below the prior DonchianLow lower band,
// ADX falling for adx_decline_days bars while under the threshold, the
// ATR trailing stop, or the initial stop. Adds a unit each time the close
// gains one pyramid ATR over the last add, up to max_units.
//
// EMA, OBV against its SMA, and MACD against its signal are logged with
// each entry as confirmations; they do not gate it.
type Turtle struct {
	p Params

	high, low *indicators.Donchian
	adx       *indicators.ADX
	ema       *indicators.EMA
	atr       *indicators.ATR
	obv       *indicators.OBV
	obvSMA    *indicators.SMA
	macd      *indicators.MACD

	pending pending

	entryPrice  float64
	initialStop float64
	highest     float64
	lastPyramid float64
	units       int
	adxDecline  int
	lastADX     float64
	haveLastADX bool
}

func (s *Turtle) Name() string { return "turtle" }

func (s *Turtle) Init(g *indicators.Graph, series *market.Series) error {
	highs, lows := series.Field(market.High), series.Field(market.Low)
	closes := series.Field(market.Close)

	s.high = indicators.NewDonchian(highs, lows, s.p.Int("donchian_high_period"))
	s.low = indicators.NewDonchian(highs, lows, s.p.Int("donchian_low_period"))
	s.adx = indicators.NewADX(series, s.p.Int("adx_period"))
	s.ema = indicators.NewEMA(closes, s.p.Int("ema_period"))
	s.atr = indicators.NewATR(series, s.p.Int("atr_period"))
	s.obv = indicators.NewOBV(series)
	s.obvSMA = indicators.NewSMA(s.obv, s.p.Int("obv_sma_period"))
	s.macd = indicators.NewMACD(closes, 12, 26, 9)

	for _, ind := range []indicators.Indicator{s.high, s.low, s.adx, s.ema, s.atr, s.obv, s.obvSMA, s.macd} {
		if err := g.Add(ind); err != nil {
			return err
		}
	}
	return nil
}

func (s *Turtle) OnBar(ctx Context) error {
	if s.pending.busy() {
		return nil
	}
	b, err := ctx.Bar(0)
	if err != nil {
		return err
	}
	atr, _, err := at(s.atr, 0)
	if err != nil {
		return err
	}

	if !ctx.Position().Flat() {
		return s.manage(ctx, b, atr)
	}

	enter, err := s.entrySignal(ctx, b)
	if err != nil || !enter {
		return err
	}
	stop := risk.InitialStop(b.Close, atr, s.p["atr_multiplier_stop"])
	size := risk.Size(ctx.Value(), s.p["risk_per_trade"], b.Close, stop)
	if size <= 0 {
		return nil
	}
	s.logConfirmations(ctx, b)
	ctx.Logger().Info("BUY CREATE", "close", b.Close, "size", size, "stop", stop)
	s.pending.set(ctx.Buy(size))
	return nil
}

func (s *Turtle) manage(ctx Context, b market.Bar, atr float64) error {
	exit, err := s.exitSignal(b)
	if err != nil {
		return err
	}
	if exit {
		ctx.Logger().Info("SELL CREATE", "close", b.Close)
		s.pending.set(ctx.Close())
		return nil
	}

	if b.High > s.highest {
		s.highest = b.High
	}
	trail := risk.TrailingStop(s.highest, atr, s.p["atr_multiplier_trail"], s.initialStop)
	if b.Close < trail {
		ctx.Logger().Info("TRAILING STOP SELL", "close", b.Close, "stop", trail)
		s.pending.set(ctx.Close())
		return nil
	}
	if b.Close < s.initialStop {
		ctx.Logger().Info("STOP LOSS SELL", "close", b.Close, "stop", s.initialStop)
		s.pending.set(ctx.Close())
		return nil
	}

	if s.units >= s.p.Int("max_units") || atr <= 0 {
		return nil
	}
	if b.Close < s.lastPyramid+atr*s.p["atr_multiplier_pyramid"] {
		return nil
	}
	size := risk.Size(ctx.Value(), s.p["risk_per_trade"], b.Close, s.initialStop)
	if size <= 0 {
		return nil
	}
	ctx.Logger().Info("PYRAMID BUY CREATE", "close", b.Close, "size", size, "units", s.units)
	s.pending.set(ctx.Buy(size))
	s.lastPyramid = b.Close
	return nil
}

// entrySignal compares the close to the previous bar's upper band; the
// current band already includes today's high.
func (s *Turtle) entrySignal(ctx Context, b market.Bar) (bool, error) {
	need := s.p.Int("donchian_high_period")
	for _, k := range []string{"ema_period", "adx_period"} {
		if n := s.p.Int(k); n > need {
			need = n
		}
	}
	if ctx.Index()+1 < need {
		return false, nil
	}

	upper, ok, err := at(s.high.Upper, -1)
	if err != nil || !ok {
		return false, err
	}
	adx, ok, err := at(s.adx, 0)
	if err != nil || !ok {
		return false, err
	}
	return b.Close > upper && adx >= s.p["adx_threshold"], nil
}

func (s *Turtle) exitSignal(b market.Bar) (bool, error) {
	lower, ok, err := at(s.low.Lower, -1)
	if err != nil {
		return false, err
	}
	if ok && b.Close < lower {
		return true, nil
	}

	adx, ok, err := at(s.adx, 0)
	if err != nil || !ok {
		return false, err
	}
	if s.haveLastADX {
		if adx < s.lastADX {
			s.adxDecline++
		} else {
			s.adxDecline = 0
		}
	}
	if s.adxDecline >= s.p.Int("adx_decline_days") && adx < s.p["adx_threshold"] {
		return true, nil
	}
	s.lastADX, s.haveLastADX = adx, true
	return false, nil
}

func (s *Turtle) logConfirmations(ctx Context, b market.Bar) {
	attrs := []any{"close", b.Close}
	if ema, ok, _ := at(s.ema, 0); ok {
		attrs = append(attrs, "above_ema", b.Close > ema)
	}
	obv, ok1, _ := at(s.obv, 0)
	avg, ok2, _ := at(s.obvSMA, 0)
	if ok1 && ok2 {
		attrs = append(attrs, "obv_above_sma", obv > avg)
	}
	macd, ok1, _ := at(s.macd.MACD, 0)
	sig, ok2, _ := at(s.macd.Signal, 0)
	if ok1 && ok2 {
		attrs = append(attrs, "macd_above_signal", macd > sig)
	}
	ctx.Logger().Debug("entry confirmations", attrs...)
}

func (s *Turtle) OnOrder(ctx Context, n broker.Notification) {
	logOrder(ctx, n)
	defer s.pending.done(n)
	if n.Status != broker.Completed {
		return
	}

	if n.Side == broker.Buy {
		if s.units == 0 {
			atr, _, _ := at(s.atr, 0)
			s.entryPrice = n.Price
			s.highest = n.Price
			s.lastPyramid = n.Price
			s.initialStop = risk.InitialStop(n.Price, atr, s.p["atr_multiplier_stop"])
		}
		s.units++
		return
	}
	if ctx.Position().Flat() {
		s.reset()
	}
}

func (s *Turtle) reset() {
	s.entryPrice = 0
	s.initialStop = 0
	s.highest = 0
	s.lastPyramid = 0
	s.units = 0
	s.adxDecline = 0
	s.lastADX, s.haveLastADX = 0, false
}

// Units is the number of entries making up the open position.
func (s *Turtle) Units() int { return s.units }

// InitialStop is the stop set by the first entry, 0 when flat.
func (s *Turtle) InitialStop() float64 { return s.initialStop }

func (s *Turtle) OnTrade(ctx Context, t broker.Trade) { logTrade(ctx, t) }

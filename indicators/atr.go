package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/barsim/market"
)

// ATR is a streaming Average True Range using Wilder's smoothing.
type ATR struct {
	*Line

	series    *market.Series
	period    int
	atr       float64
	count     int
	warmupSum float64
	prevClose float64
	havePrev  bool
}

// NewATR creates an Average True Range over the bars of s.
func NewATR(s *market.Series, period int) *ATR {
	checkPeriod("ATR", period)
	a := &ATR{series: s, period: period}
	// Need period+1 bars because TR requires the previous close
	a.Line = newLine(a, fmt.Sprintf("ATR(%d)", period), period+1)
	return a
}

func (a *ATR) Inputs() []Input { return nil }
func (a *ATR) Lines() []*Line  { return []*Line{a.Line} }

func (a *ATR) Update() error {
	b, err := a.series.Bar(0)
	if err != nil {
		return err
	}
	if !a.havePrev {
		// First bar, just store it
		a.prevClose = b.Close
		a.havePrev = true
		a.skip()
		return nil
	}

	tr := trueRange(b, a.prevClose)
	a.prevClose = b.Close

	if a.count < a.period {
		// During warmup, accumulate sum for initial ATR
		a.warmupSum += tr
		a.count++
		if a.count < a.period {
			a.skip()
			return nil
		}
		a.atr = a.warmupSum / float64(a.period)
	} else {
		a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
	}
	a.push(a.atr)
	return nil
}

// trueRange is the widest of the bar range and the gaps from the previous close.
func trueRange(b market.Bar, prevClose float64) float64 {
	highLow := b.High - b.Low
	highClose := math.Abs(b.High - prevClose)
	lowClose := math.Abs(b.Low - prevClose)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

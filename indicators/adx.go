package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/barsim/market"
)

// ADX implements Wilder's Average Directional Index (trend strength).
// PlusDI and MinusDI carry the directional indicators it is built from.
// Usage:
//
//	adx := indicators.NewADX(series, 14)
//	g.Add(adx)
//	if v, err := adx.Value(); err == nil && v >= 25 { ... }
type ADX struct {
	*Line
	PlusDI  *Line
	MinusDI *Line

	series *market.Series
	period int

	prev     market.Bar
	havePrev bool

	// Wilder-smoothed values after warmup
	trS  float64
	pdmS float64
	mdmS float64

	adx   float64
	dxSum float64

	// count of bars processed, including the first prev seed
	count int
	ready bool
}

// NewADX creates an ADX over the bars of s. The first value needs period
// bars to seed the smoothed ranges and period DX values to seed the average.
func NewADX(s *market.Series, period int) *ADX {
	checkPeriod("ADX", period)
	a := &ADX{series: s, period: period}
	a.Line = newLine(a, fmt.Sprintf("ADX(%d)", period), 2*period+1)
	a.PlusDI = newLine(a, fmt.Sprintf("+DI(%d)", period), period+2)
	a.MinusDI = newLine(a, fmt.Sprintf("-DI(%d)", period), period+2)
	return a
}

func (a *ADX) Inputs() []Input { return nil }
func (a *ADX) Lines() []*Line  { return []*Line{a.Line, a.PlusDI, a.MinusDI} }

func (a *ADX) Update() error {
	c, err := a.series.Bar(0)
	if err != nil {
		return err
	}
	pdi, mdi, dx, ok := a.directional(c)
	if !ok {
		a.skipAll()
		return nil
	}
	a.PlusDI.push(pdi)
	a.MinusDI.push(mdi)

	// First DX occurs at count == period+2. After collecting period DX
	// values (count == 2*period+1) the ADX is seeded with their mean.
	p := float64(a.period)
	if !a.ready {
		a.dxSum += dx
		if a.count < 2*a.period+1 {
			a.skip()
			return nil
		}
		a.adx = a.dxSum / p
		a.ready = true
	} else {
		a.adx = (a.adx*(p-1) + dx) / p
	}
	a.push(a.adx)
	return nil
}

// directional folds bar c into the smoothed ranges and returns the DI pair
// and DX once the smoothing has been seeded.
func (a *ADX) directional(c market.Bar) (pdi, mdi, dx float64, ok bool) {
	if !a.havePrev {
		a.prev = c
		a.havePrev = true
		a.count = 1
		return 0, 0, 0, false
	}

	upMove := c.High - a.prev.High
	downMove := a.prev.Low - c.Low

	var pdm, mdm float64
	if upMove > downMove && upMove > 0 {
		pdm = upMove
	}
	if downMove > upMove && downMove > 0 {
		mdm = downMove
	}
	tr := trueRange(c, a.prev.Close)

	a.prev = c
	a.count++

	// Accumulate simple averages of the first period samples to seed
	// Wilder smoothing. Samples begin on the second bar.
	p := float64(a.period)
	if a.count <= a.period+1 {
		a.trS += tr
		a.pdmS += pdm
		a.mdmS += mdm
		if a.count == a.period+1 {
			a.trS /= p
			a.pdmS /= p
			a.mdmS /= p
		}
		return 0, 0, 0, false
	}

	a.trS = (a.trS*(p-1) + tr) / p
	a.pdmS = (a.pdmS*(p-1) + pdm) / p
	a.mdmS = (a.mdmS*(p-1) + mdm) / p

	// Flat markets have no range; report zero strength instead of NaN.
	if a.trS == 0 {
		return 0, 0, 0, true
	}
	pdi = 100 * a.pdmS / a.trS
	mdi = 100 * a.mdmS / a.trS
	if den := pdi + mdi; den != 0 {
		dx = 100 * math.Abs(pdi-mdi) / den
	}
	return pdi, mdi, dx, true
}

func (a *ADX) skipAll() {
	a.skip()
	a.PlusDI.skip()
	a.MinusDI.skip()
}

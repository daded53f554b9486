package indicators

import (
	"fmt"
	"math"
)

// window is a rolling extreme over the last period ready values.
type window struct {
	period int
	vals   []float64
	pick   func(a, b float64) float64
}

func (w *window) next(x float64) (float64, bool) {
	w.vals = append(w.vals, x)
	if len(w.vals) > w.period {
		w.vals = w.vals[1:]
	}
	if len(w.vals) < w.period {
		return 0, false
	}
	v := w.vals[0]
	for _, x := range w.vals[1:] {
		v = w.pick(v, x)
	}
	return v, true
}

// Highest tracks the maximum of its input over the last period bars.
type Highest struct {
	*Line

	in Input
	w  window
}

func NewHighest(in Input, period int) *Highest {
	checkPeriod("Highest", period)
	h := &Highest{in: in, w: window{period: period, pick: math.Max}}
	h.Line = newLine(h, fmt.Sprintf("Highest(%s,%d)", in.Name(), period), in.Warmup()+period-1)
	return h
}

func (h *Highest) Inputs() []Input { return []Input{h.in} }
func (h *Highest) Lines() []*Line  { return []*Line{h.Line} }

func (h *Highest) Update() error { return step(h.in, h.Line, h.w.next) }

// Lowest tracks the minimum of its input over the last period bars.
type Lowest struct {
	*Line

	in Input
	w  window
}

func NewLowest(in Input, period int) *Lowest {
	checkPeriod("Lowest", period)
	l := &Lowest{in: in, w: window{period: period, pick: math.Min}}
	l.Line = newLine(l, fmt.Sprintf("Lowest(%s,%d)", in.Name(), period), in.Warmup()+period-1)
	return l
}

func (l *Lowest) Inputs() []Input { return []Input{l.in} }
func (l *Lowest) Lines() []*Line  { return []*Line{l.Line} }

func (l *Lowest) Update() error { return step(l.in, l.Line, l.w.next) }

// Donchian is a price channel: the highest high and lowest low over period
// bars, inclusive of the current bar.
type Donchian struct {
	Upper *Line
	Lower *Line

	high, low Input
	period    int
	hw, lw    window
}

// NewDonchian builds a channel over separate high and low inputs, normally
// series.Field(market.High) and series.Field(market.Low).
func NewDonchian(high, low Input, period int) *Donchian {
	checkPeriod("Donchian", period)
	d := &Donchian{
		high:   high,
		low:    low,
		period: period,
		hw:     window{period: period, pick: math.Max},
		lw:     window{period: period, pick: math.Min},
	}
	warm := max(high.Warmup(), low.Warmup()) + period - 1
	d.Upper = newLine(d, fmt.Sprintf("DonchianUpper(%d)", period), warm)
	d.Lower = newLine(d, fmt.Sprintf("DonchianLower(%d)", period), warm)
	return d
}

func (d *Donchian) Name() string    { return fmt.Sprintf("Donchian(%d)", d.period) }
func (d *Donchian) Warmup() int     { return d.Upper.Warmup() }
func (d *Donchian) Inputs() []Input { return []Input{d.high, d.low} }
func (d *Donchian) Lines() []*Line  { return []*Line{d.Upper, d.Lower} }

func (d *Donchian) Update() error {
	if err := step(d.high, d.Upper, d.hw.next); err != nil {
		return err
	}
	return step(d.low, d.Lower, d.lw.next)
}

// step feeds the newest slot of in through fn and appends the result to out.
func step(in Input, out *Line, fn func(float64) (float64, bool)) error {
	v, ready, err := current(in)
	if err != nil {
		return err
	}
	if !ready {
		out.skip()
		return nil
	}
	if r, ok := fn(v); ok {
		out.push(r)
	} else {
		out.skip()
	}
	return nil
}

package indicators

import "fmt"

// SMA is a streaming Simple Moving Average over the last period ready
// values of its input.
type SMA struct {
	*Line

	in     Input
	period int
	window []float64
}

// NewSMA creates a Simple Moving Average of in. Its warm-up is the input's
// warm-up plus period-1, since it averages the input's ready tail.
func NewSMA(in Input, period int) *SMA {
	checkPeriod("SMA", period)
	m := &SMA{
		in:     in,
		period: period,
		window: make([]float64, 0, period),
	}
	m.Line = newLine(m, fmt.Sprintf("SMA(%s,%d)", in.Name(), period), in.Warmup()+period-1)
	return m
}

func (m *SMA) Inputs() []Input { return []Input{m.in} }
func (m *SMA) Lines() []*Line  { return []*Line{m.Line} }

func (m *SMA) Update() error {
	v, ready, err := current(m.in)
	if err != nil {
		return err
	}
	if !ready {
		m.skip()
		return nil
	}

	m.window = append(m.window, v)
	// Keep only the last 'period' values
	if len(m.window) > m.period {
		m.window = m.window[1:]
	}
	if len(m.window) < m.period {
		m.skip()
		return nil
	}

	sum := 0.0
	for _, x := range m.window {
		sum += x
	}
	m.push(sum / float64(m.period))
	return nil
}

// emaState is the SMA-seeded exponential average shared by EMA and MACD.
type emaState struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

func newEMAState(period int) emaState {
	return emaState{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

// next folds x in and reports the average once period values have been seen.
func (e *emaState) next(x float64) (float64, bool) {
	if e.count < e.period {
		// During warmup, accumulate sum for initial SMA
		e.warmupSum += x
		e.count++
		if e.count < e.period {
			return 0, false
		}
		e.ema = e.warmupSum / float64(e.period)
		return e.ema, true
	}
	e.ema = (x-e.ema)*e.multiplier + e.ema
	return e.ema, true
}

// EMA is a streaming Exponential Moving Average seeded with the SMA of its
// first period values.
type EMA struct {
	*Line

	in    Input
	state emaState
}

// NewEMA creates an Exponential Moving Average of in.
func NewEMA(in Input, period int) *EMA {
	checkPeriod("EMA", period)
	e := &EMA{in: in, state: newEMAState(period)}
	e.Line = newLine(e, fmt.Sprintf("EMA(%s,%d)", in.Name(), period), in.Warmup()+period-1)
	return e
}

func (e *EMA) Inputs() []Input { return []Input{e.in} }
func (e *EMA) Lines() []*Line  { return []*Line{e.Line} }

func (e *EMA) Update() error {
	v, ready, err := current(e.in)
	if err != nil {
		return err
	}
	if !ready {
		e.skip()
		return nil
	}
	if ema, ok := e.state.next(v); ok {
		e.push(ema)
	} else {
		e.skip()
	}
	return nil
}

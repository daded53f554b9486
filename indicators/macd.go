package indicators

import "fmt"

// MACD is the difference of a fast and a slow EMA, with a signal EMA of
// that difference and the histogram between them.
type MACD struct {
	MACD      *Line
	Signal    *Line
	Histogram *Line

	fast, slow *EMA
	signal     emaState
	periods    [3]int
}

// NewMACD builds the fast and slow EMAs over in and the signal average on
// top. The conventional parameters are 12, 26 and 9.
func NewMACD(in Input, fast, slow, signal int) *MACD {
	checkPeriod("MACD fast", fast)
	checkPeriod("MACD slow", slow)
	checkPeriod("MACD signal", signal)
	m := &MACD{
		fast:    NewEMA(in, fast),
		slow:    NewEMA(in, slow),
		signal:  newEMAState(signal),
		periods: [3]int{fast, slow, signal},
	}
	base := max(m.fast.Warmup(), m.slow.Warmup())
	m.MACD = newLine(m, fmt.Sprintf("MACD(%d,%d)", fast, slow), base)
	m.Signal = newLine(m, fmt.Sprintf("MACDSignal(%d)", signal), base+signal-1)
	m.Histogram = newLine(m, "MACDHist", base+signal-1)
	return m
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD(%d,%d,%d)", m.periods[0], m.periods[1], m.periods[2])
}

func (m *MACD) Warmup() int     { return m.Signal.Warmup() }
func (m *MACD) Inputs() []Input { return []Input{m.fast, m.slow} }
func (m *MACD) Lines() []*Line  { return []*Line{m.MACD, m.Signal, m.Histogram} }

func (m *MACD) Update() error {
	f, fok, err := current(m.fast)
	if err != nil {
		return err
	}
	s, sok, err := current(m.slow)
	if err != nil {
		return err
	}
	if !fok || !sok {
		m.MACD.skip()
		m.Signal.skip()
		m.Histogram.skip()
		return nil
	}

	diff := f - s
	m.MACD.push(diff)
	if sig, ok := m.signal.next(diff); ok {
		m.Signal.push(sig)
		m.Histogram.push(diff - sig)
	} else {
		m.Signal.skip()
		m.Histogram.skip()
	}
	return nil
}

package indicators

import "github.com/rustyeddy/barsim/market"

// OBV is On-Balance Volume. The first value is the first bar's volume;
// afterwards volume is added on up closes and subtracted on down closes.
type OBV struct {
	*Line

	series    *market.Series
	obv       float64
	prevClose float64
	havePrev  bool
}

func NewOBV(s *market.Series) *OBV {
	o := &OBV{series: s}
	o.Line = newLine(o, "OBV", 1)
	return o
}

func (o *OBV) Inputs() []Input { return nil }
func (o *OBV) Lines() []*Line  { return []*Line{o.Line} }

func (o *OBV) Update() error {
	b, err := o.series.Bar(0)
	if err != nil {
		return err
	}
	switch {
	case !o.havePrev:
		o.obv = b.Volume
		o.havePrev = true
	case b.Close > o.prevClose:
		o.obv += b.Volume
	case b.Close < o.prevClose:
		o.obv -= b.Volume
	}
	o.prevClose = b.Close
	o.push(o.obv)
	return nil
}

package broker

import (
	"math"
	"time"
)

// Broker is what a strategy sees of the execution engine.
type Broker interface {
	// Submit hands o to the broker. It never blocks; the order fills no
	// earlier than the next bar.
	Submit(o *Order, bar int) *Order
	Cancel(o *Order) error
	Position(instrument string) Position
	Cash() float64
	Value() float64
}

// Position is the holding in one instrument. Size is signed: positive is
// long, negative short, zero flat.
type Position struct {
	Instrument string
	Size       float64
	AvgPrice   float64
}

func (p Position) Flat() bool  { return p.Size == 0 }
func (p Position) Long() bool  { return p.Size > 0 }
func (p Position) Short() bool { return p.Size < 0 }

// Trade is one round trip from flat back to flat.
type Trade struct {
	ID         int64
	Instrument string
	Side       Side // Buy for long trades, Sell for short ones

	Entries []Fill
	Exits   []Fill

	// Size is the largest absolute position held during the trade.
	Size     float64
	AvgEntry float64

	GrossPnL   float64
	Commission float64
	NetPnL     float64

	OpenedAt  int
	ClosedAt  int
	OpenTime  time.Time
	CloseTime time.Time
	Closed    bool
}

// AvgExit is the size-weighted mean exit price.
func (t *Trade) AvgExit() float64 {
	var v, q float64
	for _, f := range t.Exits {
		v += f.Price * f.Size
		q += f.Size
	}
	if q == 0 {
		return 0
	}
	return v / q
}

// Bars is how many bars the trade was open.
func (t *Trade) Bars() int { return t.ClosedAt - t.OpenedAt }

// Won reports a strictly positive net result.
func (t *Trade) Won() bool { return t.NetPnL > 0 }

// Round rounds v to cents for display.
func Round(v float64) float64 { return math.Round(v*100) / 100 }

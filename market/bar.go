// Package market holds the price data the simulator replays: OHLCV bars and
// the cursor-driven series the event loop walks through.
package market

import (
	"fmt"
	"math"
	"time"
)

// Bar represents one OHLCV sample for a fixed interval.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Field selects one numeric column of a Bar.
type Field int

const (
	Open Field = iota
	High
	Low
	Close
	Volume
)

func (f Field) String() string {
	switch f {
	case Open:
		return "open"
	case High:
		return "high"
	case Low:
		return "low"
	case Close:
		return "close"
	case Volume:
		return "volume"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Get returns the value of field f.
func (b Bar) Get(f Field) float64 {
	switch f {
	case Open:
		return b.Open
	case High:
		return b.High
	case Low:
		return b.Low
	case Close:
		return b.Close
	case Volume:
		return b.Volume
	}
	return math.NaN()
}

// Check reports why a bar is malformed, or nil when it is usable.
func (b Bar) Check() error {
	if b.Time.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	for _, f := range []Field{Open, High, Low, Close, Volume} {
		v := b.Get(f)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not a finite number", f)
		}
	}
	if b.Open <= 0 || b.Close <= 0 || b.Low <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	if b.High < math.Max(b.Open, b.Close) || b.Low > math.Min(b.Open, b.Close) {
		return fmt.Errorf("high/low do not bracket open/close")
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume")
	}
	return nil
}

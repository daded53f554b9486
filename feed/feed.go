// Package feed supplies bars to a backtest. Every feed is drained and
// validated before replay starts; nothing is read while the strategy runs.
package feed

import (
	"fmt"
	"time"

	"github.com/rustyeddy/barsim/market"
)

// Feed yields bars in ascending time order.
type Feed interface {
	// Next returns the next bar. ok is false once the feed is exhausted.
	Next() (b market.Bar, ok bool, err error)
	Close() error
}

// Named is implemented by feeds that know where their data comes from.
type Named interface {
	Source() string
}

// Window bounds the bars kept by Load. Both ends are inclusive; a zero
// time leaves that end open.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t lies inside the window. A To with no clock
// part covers the whole day.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if w.To.IsZero() {
		return true
	}
	to := w.To
	if to.Equal(to.Truncate(24 * time.Hour)) {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return !t.After(to)
}

func (w Window) String() string {
	f := func(t time.Time) string {
		if t.IsZero() {
			return "*"
		}
		return t.Format("2006-01-02")
	}
	return fmt.Sprintf("[%s, %s]", f(w.From), f(w.To))
}

// ReadAll drains f and returns the bars inside w in feed order. The feed
// is closed in all cases.
func ReadAll(f Feed, w Window) (bars []market.Bar, err error) {
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for {
		b, ok, err := f.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return bars, nil
		}
		if w.Contains(b.Time) {
			bars = append(bars, b)
		}
	}
}

// Load reads f through ReadAll and returns the bars as a validated series.
func Load(instrument string, f Feed, w Window) (*market.Series, error) {
	bars, err := ReadAll(f, w)
	if err != nil {
		return nil, err
	}

	source := instrument
	if n, ok := f.(Named); ok {
		source = n.Source()
	}
	if len(bars) == 0 {
		return nil, &market.DataError{Source: source, Msg: fmt.Sprintf("no bars in window %s", w)}
	}
	if err := market.Validate(source, bars); err != nil {
		return nil, err
	}
	return market.NewSeries(instrument, bars)
}

// SliceFeed serves bars from memory.
type SliceFeed struct {
	bars []market.Bar
	i    int
}

func NewSliceFeed(bars []market.Bar) *SliceFeed {
	return &SliceFeed{bars: bars}
}

func (f *SliceFeed) Next() (market.Bar, bool, error) {
	if f.i >= len(f.bars) {
		return market.Bar{}, false, nil
	}
	b := f.bars[f.i]
	f.i++
	return b, true, nil
}

func (f *SliceFeed) Close() error { return nil }

func (f *SliceFeed) Source() string { return "memory" }

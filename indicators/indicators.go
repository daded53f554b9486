// Package indicators provides streaming technical indicators for the bar
// replay. Every indicator produces one slot per consumed bar; slots before
// the warm-up period are not ready and refuse to be read.
package indicators

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/barsim/market"
)

// ErrNotReady is returned when reading an indicator slot that is still
// inside its warm-up window.
var ErrNotReady = errors.New("indicator not ready")

// Input is a numeric stream with bounded lookback. Price fields
// (market.FieldLine), indicator lines and indicators themselves are inputs.
type Input interface {
	// Name returns a stable identifier like "close" or "SMA(close,15)".
	Name() string

	// Warmup returns how many bars are needed before the first ready slot.
	Warmup() int

	// Len returns how many slots exist, ready or not.
	Len() int

	// At returns the slot offset steps before the newest one (offset <= 0).
	At(offset int) (float64, error)
}

// Indicator computes one or more output lines from its inputs. It is
// deterministic and only ever reads the newest slot of each input.
type Indicator interface {
	Name() string
	Warmup() int

	// Inputs lists what must be updated before this indicator.
	Inputs() []Input

	// Lines lists every output line owned by the indicator.
	Lines() []*Line

	// Update consumes the newest slot of each input and appends exactly one
	// slot to every output line.
	Update() error
}

// Line is an append-only output series of an indicator.
type Line struct {
	name   string
	warmup int
	owner  Indicator

	values []float64
	ok     []bool
}

func newLine(owner Indicator, name string, warmup int) *Line {
	return &Line{name: name, warmup: warmup, owner: owner}
}

func (l *Line) Name() string { return l.name }

func (l *Line) Warmup() int { return l.warmup }

func (l *Line) Len() int { return len(l.values) }

// At returns the value offset slots before the newest.
func (l *Line) At(offset int) (float64, error) {
	if offset > 0 {
		return 0, market.ErrLookahead
	}
	i := len(l.values) - 1 + offset
	if i < 0 {
		return 0, fmt.Errorf("%s: %w: offset %d with %d slots",
			l.name, market.ErrInsufficientHistory, offset, len(l.values))
	}
	if !l.ok[i] {
		return 0, fmt.Errorf("%s: %w at offset %d", l.name, ErrNotReady, offset)
	}
	return l.values[i], nil
}

// Value returns the newest slot.
func (l *Line) Value() (float64, error) { return l.At(0) }

// Ready reports whether the newest slot holds a value.
func (l *Line) Ready() bool {
	n := len(l.ok)
	return n > 0 && l.ok[n-1]
}

func (l *Line) push(v float64) {
	l.values = append(l.values, v)
	l.ok = append(l.ok, true)
}

func (l *Line) skip() {
	l.values = append(l.values, 0)
	l.ok = append(l.ok, false)
}

// current reads the newest slot of in. ready is false while in is warming up.
func current(in Input) (v float64, ready bool, err error) {
	v, err = in.At(0)
	if errors.Is(err, ErrNotReady) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func checkPeriod(name string, period int) {
	if period <= 0 {
		panic(fmt.Sprintf("%s: period must be positive, got %d", name, period))
	}
}

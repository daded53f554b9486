package market

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientHistory is returned when a lookback reaches before the
	// first consumed bar.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrLookahead is returned for positive offsets; bars after the cursor
	// are never visible.
	ErrLookahead = errors.New("lookahead: offset must be <= 0")
)

// DataError reports a bar that cannot be replayed. It is fatal and is
// raised before any simulated trading happens.
type DataError struct {
	Source string
	Row    int
	Msg    string
}

func (e *DataError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("data error at row %d: %s", e.Row, e.Msg)
	}
	return fmt.Sprintf("data error in %s at row %d: %s", e.Source, e.Row, e.Msg)
}

// Validate checks every bar and the strict time ordering of the sequence.
func Validate(source string, bars []Bar) error {
	for i, b := range bars {
		if err := b.Check(); err != nil {
			return &DataError{Source: source, Row: i, Msg: err.Error()}
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return &DataError{
				Source: source,
				Row:    i,
				Msg: fmt.Sprintf("timestamp %s not after previous %s",
					b.Time.Format("2006-01-02T15:04:05Z07:00"),
					bars[i-1].Time.Format("2006-01-02T15:04:05Z07:00")),
			}
		}
	}
	return nil
}

// Series is an append-free, validated sequence of bars with a replay cursor.
// The cursor starts before the first bar; Advance moves it forward one bar
// at a time and it never rewinds during a run.
type Series struct {
	Instrument string

	bars   []Bar
	cursor int
}

// NewSeries validates bars and returns a series positioned before the first
// bar. The slice is copied so later changes by the caller are not observed.
func NewSeries(instrument string, bars []Bar) (*Series, error) {
	if err := Validate(instrument, bars); err != nil {
		return nil, err
	}
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	return &Series{Instrument: instrument, bars: cp, cursor: -1}, nil
}

// Clone returns a series over the same bars with a fresh cursor. Bars are
// immutable, so clones are safe to replay from different goroutines.
func (s *Series) Clone() *Series {
	return &Series{Instrument: s.Instrument, bars: s.bars, cursor: -1}
}

// Advance moves the cursor to the next bar. It returns false once every bar
// has been consumed.
func (s *Series) Advance() bool {
	if s.cursor+1 >= len(s.bars) {
		return false
	}
	s.cursor++
	return true
}

// Len returns the number of bars consumed so far.
func (s *Series) Len() int { return s.cursor + 1 }

// Total returns the number of bars in the series.
func (s *Series) Total() int { return len(s.bars) }

// Index returns the cursor position, -1 before the first Advance.
func (s *Series) Index() int { return s.cursor }

// Bar returns the bar offset bars before the cursor (offset <= 0).
func (s *Series) Bar(offset int) (Bar, error) {
	if offset > 0 {
		return Bar{}, ErrLookahead
	}
	i := s.cursor + offset
	if s.cursor < 0 || i < 0 {
		return Bar{}, fmt.Errorf("%w: offset %d with %d bars consumed",
			ErrInsufficientHistory, offset, s.Len())
	}
	return s.bars[i], nil
}

// Value returns field f of the bar offset bars before the cursor.
func (s *Series) Value(f Field, offset int) (float64, error) {
	b, err := s.Bar(offset)
	if err != nil {
		return 0, err
	}
	return b.Get(f), nil
}

// First and Last return the bounds of the whole series; ok is false when empty.
func (s *Series) First() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[0], true
}

func (s *Series) Last() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Field exposes one column of the series as a lookback line.
func (s *Series) Field(f Field) *FieldLine {
	return &FieldLine{s: s, f: f}
}

// FieldLine is a read-only view of one bar field that follows the series
// cursor. It satisfies indicators.Input.
type FieldLine struct {
	s *Series
	f Field
}

func (l *FieldLine) Name() string { return l.f.String() }

// Warmup is one: a price field is ready on the first bar.
func (l *FieldLine) Warmup() int { return 1 }

func (l *FieldLine) Len() int { return l.s.Len() }

func (l *FieldLine) At(offset int) (float64, error) {
	return l.s.Value(l.f, offset)
}

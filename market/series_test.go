package market

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBars(closes ...float64) []Bar {
	base := time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{
			Time:   base.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 0.5,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func TestSeriesReplayVisitsEachBarOnce(t *testing.T) {
	s, err := NewSeries("ORCL", testBars(10, 11, 12, 13))
	require.NoError(t, err)

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, -1, s.Index())

	var seen []time.Time
	for s.Advance() {
		b, err := s.Bar(0)
		require.NoError(t, err)
		seen = append(seen, b.Time)
	}

	require.Len(t, seen, 4)
	for i := 1; i < len(seen); i++ {
		assert.True(t, seen[i].After(seen[i-1]))
	}
	assert.False(t, s.Advance())
	assert.Equal(t, 4, s.Len())
}

func TestSeriesLookback(t *testing.T) {
	s, err := NewSeries("ORCL", testBars(10, 9, 8))
	require.NoError(t, err)

	_, err = s.Value(Close, 0)
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	require.True(t, s.Advance())
	require.True(t, s.Advance())

	v, err := s.Value(Close, 0)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)

	v, err = s.Value(Close, -1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	_, err = s.Value(Close, -2)
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = s.Value(Close, 1)
	assert.ErrorIs(t, err, ErrLookahead)
}

func TestSeriesCloneHasFreshCursor(t *testing.T) {
	s, err := NewSeries("ORCL", testBars(1, 2, 3))
	require.NoError(t, err)
	s.Advance()
	s.Advance()

	c := s.Clone()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 3, c.Total())
	assert.Equal(t, 2, s.Len())
}

func TestFieldLine(t *testing.T) {
	s, err := NewSeries("ORCL", testBars(5, 6))
	require.NoError(t, err)
	hi := s.Field(High)
	assert.Equal(t, "high", hi.Name())
	assert.Equal(t, 1, hi.Warmup())

	s.Advance()
	v, err := hi.At(0)
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)
	assert.Equal(t, 1, hi.Len())
}

func TestValidate(t *testing.T) {
	good := testBars(1, 2, 3)

	tests := []struct {
		name    string
		mutate  func([]Bar)
		wantRow int
		wantMsg string
	}{
		{
			name:    "duplicate timestamp",
			mutate:  func(b []Bar) { b[2].Time = b[1].Time },
			wantRow: 2,
			wantMsg: "not after previous",
		},
		{
			name:    "decreasing timestamp",
			mutate:  func(b []Bar) { b[1].Time = b[0].Time.Add(-time.Hour) },
			wantRow: 1,
			wantMsg: "not after previous",
		},
		{
			name:    "missing close",
			mutate:  func(b []Bar) { b[0].Close = 0 },
			wantRow: 0,
			wantMsg: "positive",
		},
		{
			name:    "negative low",
			mutate:  func(b []Bar) { b[1].Low = -1 },
			wantRow: 1,
			wantMsg: "positive",
		},
		{
			name:    "high below close",
			mutate:  func(b []Bar) { b[1].High = 0.5 },
			wantRow: 1,
			wantMsg: "bracket",
		},
		{
			name:    "missing time",
			mutate:  func(b []Bar) { b[0].Time = time.Time{} },
			wantRow: 0,
			wantMsg: "timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := make([]Bar, len(good))
			copy(bars, good)
			tt.mutate(bars)

			_, err := NewSeries("ORCL", bars)
			require.Error(t, err)

			var de *DataError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.wantRow, de.Row)
			assert.Contains(t, de.Error(), tt.wantMsg)
			assert.Contains(t, de.Error(), "ORCL")
		})
	}

	assert.NoError(t, Validate("ok", good))
}

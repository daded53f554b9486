package feed

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rustyeddy/barsim/market"
)

// BarRecord is the Parquet schema for bar data.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// ParquetFeed serves bars from a Parquet file of BarRecord rows. When
// Symbol is set, rows of other symbols are skipped.
type ParquetFeed struct {
	Symbol string

	path string
	rows []BarRecord
	i    int
}

// NewParquetFeed reads every row of path up front.
func NewParquetFeed(path string) (*ParquetFeed, error) {
	rows, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &ParquetFeed{path: path, rows: rows}, nil
}

func (f *ParquetFeed) Source() string { return f.path }

func (f *ParquetFeed) Next() (market.Bar, bool, error) {
	for f.i < len(f.rows) {
		r := f.rows[f.i]
		f.i++
		if f.Symbol != "" && r.Symbol != f.Symbol {
			continue
		}
		return market.Bar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}, true, nil
	}
	return market.Bar{}, false, nil
}

func (f *ParquetFeed) Close() error { return nil }

// WriteParquet stores bars of symbol at path, creating parent directories.
func WriteParquet(path, symbol string, bars []market.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	records := make([]BarRecord, len(bars))
	for i, b := range bars {
		records[i] = BarRecord{
			Symbol:    symbol,
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("writing bars for %s: %w", symbol, err)
	}
	return nil
}

// Open picks a feed by format: "csv", "parquet", or "" to guess from the
// file extension.
func Open(path, format string) (Feed, error) {
	if format == "" {
		switch filepath.Ext(path) {
		case ".parquet", ".pq":
			format = "parquet"
		default:
			format = "csv"
		}
	}
	switch format {
	case "csv":
		return NewCSVFeed(path)
	case "parquet":
		return NewParquetFeed(path)
	}
	return nil, fmt.Errorf("feed: unknown format %q", format)
}

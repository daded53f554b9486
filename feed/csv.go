package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/barsim/market"
)

var timeLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// CSVFeed reads Yahoo-style daily bars with a header row:
//
//	Date,Open,High,Low,Close,Adj Close,Volume
//
// Columns are located by header name (case-insensitive), so extra or
// reordered columns are fine. The time column may be named date, time,
// datetime or timestamp and hold a date or an RFC3339 time. Empty rows are
// skipped.
type CSVFeed struct {
	// AdjustClose scales open, high, low and close by adj_close/close.
	AdjustClose bool

	source string
	c      io.Closer
	r      *csv.Reader
	cols   map[string]int
	row    int
}

// NewCSVFeed opens path.
func NewCSVFeed(path string) (*CSVFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	feed, err := NewCSVReader(path, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	feed.c = f
	return feed, nil
}

// NewCSVReader reads CSV from r; source names it in errors.
func NewCSVReader(source string, r io.Reader) (*CSVFeed, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &market.DataError{Source: source, Msg: "empty file"}
	}
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		switch key {
		case "date", "time", "datetime", "timestamp":
			key = "time"
		case "adjclose", "adj_close":
			key = "adj_close"
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	for _, want := range []string{"time", "open", "high", "low", "close", "volume"} {
		if _, ok := cols[want]; !ok {
			return nil, &market.DataError{Source: source, Msg: fmt.Sprintf("missing %s column", want)}
		}
	}

	return &CSVFeed{source: source, r: cr, cols: cols}, nil
}

func (f *CSVFeed) Source() string { return f.source }

func (f *CSVFeed) Next() (market.Bar, bool, error) {
	for {
		rec, err := f.r.Read()
		if err == io.EOF {
			return market.Bar{}, false, nil
		}
		if err != nil {
			return market.Bar{}, false, err
		}
		f.row++
		if blank(rec) {
			continue
		}
		b, err := f.parse(rec)
		if err != nil {
			return market.Bar{}, false, &market.DataError{Source: f.source, Row: f.row, Msg: err.Error()}
		}
		return b, true, nil
	}
}

func (f *CSVFeed) parse(rec []string) (market.Bar, error) {
	field := func(name string) (string, error) {
		i := f.cols[name]
		if i >= len(rec) {
			return "", fmt.Errorf("missing %s", name)
		}
		v := strings.TrimSpace(rec[i])
		if v == "" || strings.EqualFold(v, "null") {
			return "", fmt.Errorf("missing %s", name)
		}
		return v, nil
	}
	num := func(name string) (float64, error) {
		s, err := field(name)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("bad %s %q", name, s)
		}
		return v, nil
	}

	var (
		b   market.Bar
		err error
	)
	ts, err := field("time")
	if err != nil {
		return b, err
	}
	if b.Time, err = parseTime(ts); err != nil {
		return b, err
	}
	if b.Open, err = num("open"); err != nil {
		return b, err
	}
	if b.High, err = num("high"); err != nil {
		return b, err
	}
	if b.Low, err = num("low"); err != nil {
		return b, err
	}
	if b.Close, err = num("close"); err != nil {
		return b, err
	}
	if b.Volume, err = num("volume"); err != nil {
		return b, err
	}

	if _, ok := f.cols["adj_close"]; ok && f.AdjustClose {
		adj, err := num("adj_close")
		if err != nil {
			return b, err
		}
		if b.Close != 0 {
			r := adj / b.Close
			b.Open *= r
			b.High *= r
			b.Low *= r
			b.Close = adj
		}
	}
	return b, nil
}

func (f *CSVFeed) Close() error {
	if f.c != nil {
		return f.c.Close()
	}
	return nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes bars in the format CSVFeed reads.
func WriteCSV(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Open", "High", "Low", "Close", "Volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		ts := b.Time.UTC().Format(time.RFC3339)
		if b.Time.Equal(b.Time.Truncate(24 * time.Hour)) {
			ts = b.Time.UTC().Format("2006-01-02")
		}
		if err := cw.Write([]string{
			ts,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

var (
	tradeHeader  = []string{"run_id", "trade_id", "instrument", "side", "size", "entry_price", "exit_price", "open_bar", "close_bar", "open_time", "close_time", "gross_pl", "commission", "net_pl"}
	orderHeader  = []string{"run_id", "order_id", "instrument", "side", "status", "size", "created_bar", "bar", "time", "price", "value", "commission", "reason"}
	equityHeader = []string{"run_id", "bar", "time", "cash", "value", "position"}
)

// csvFile is one journal table written as CSV. A nil csvFile discards rows.
type csvFile struct {
	f *os.File
	w *csv.Writer
}

func createCSV(path string, header []string) (*csvFile, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &csvFile{f: f, w: w}, nil
}

func (c *csvFile) write(row []string) error {
	if c == nil {
		return nil
	}
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvFile) close() error {
	if c == nil {
		return nil
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		_ = c.f.Close()
		return err
	}
	return c.f.Close()
}

// CSVJournal writes trades, orders and equity to separate CSV files. Any
// path may be empty to skip that table.
type CSVJournal struct {
	trades, orders, equity *csvFile
}

func NewCSV(tradesPath, ordersPath, equityPath string) (*CSVJournal, error) {
	tf, err := createCSV(tradesPath, tradeHeader)
	if err != nil {
		return nil, err
	}
	of, err := createCSV(ordersPath, orderHeader)
	if err != nil {
		_ = tf.close()
		return nil, err
	}
	ef, err := createCSV(equityPath, equityHeader)
	if err != nil {
		_ = tf.close()
		_ = of.close()
		return nil, err
	}
	return &CSVJournal{trades: tf, orders: of, equity: ef}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return j.trades.write([]string{
		t.RunID,
		i64(t.TradeID),
		t.Instrument,
		t.Side,
		f(t.Size),
		f(t.EntryPrice),
		f(t.ExitPrice),
		strconv.Itoa(t.OpenBar),
		strconv.Itoa(t.CloseBar),
		t.OpenTime.Format(time.RFC3339),
		t.CloseTime.Format(time.RFC3339),
		f(t.GrossPL),
		f(t.Commission),
		f(t.NetPL),
	})
}

func (j *CSVJournal) RecordOrder(o OrderRecord) error {
	return j.orders.write([]string{
		o.RunID,
		i64(o.OrderID),
		o.Instrument,
		o.Side,
		o.Status,
		f(o.Size),
		strconv.Itoa(o.CreatedBar),
		strconv.Itoa(o.Bar),
		o.Time.Format(time.RFC3339),
		f(o.Price),
		f(o.Value),
		f(o.Commission),
		o.Reason,
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return j.equity.write([]string{
		e.RunID,
		strconv.Itoa(e.Bar),
		e.Time.Format(time.RFC3339),
		f(e.Cash),
		f(e.Value),
		f(e.Position),
	})
}

func (j *CSVJournal) Close() error {
	var first error
	for _, c := range []*csvFile{j.trades, j.orders, j.equity} {
		if err := c.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func i64(x int64) string {
	return strconv.FormatInt(x, 10)
}

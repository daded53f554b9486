package sim

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/journal"
	"github.com/rustyeddy/barsim/market"
)

const instr = "ORCL"

var t0 = time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, cash, commission float64) (*Engine, *journal.Memory) {
	t.Helper()
	j := &journal.Memory{}
	e, err := NewEngine(Config{Cash: cash, Commission: commission, RunID: "test"}, j)
	require.NoError(t, err)
	e.AddInstrument(instr)
	return e, j
}

func bar(i int, open, close float64) market.Bar {
	return market.Bar{
		Time:   t0.AddDate(0, 0, i),
		Open:   open,
		High:   math.Max(open, close) + 1,
		Low:    math.Min(open, close) - 1,
		Close:  close,
		Volume: 1000,
	}
}

func process(t *testing.T, e *Engine, i int, open, close float64) {
	t.Helper()
	require.NoError(t, e.ProcessBar(instr, i, bar(i, open, close)))
}

func submit(e *Engine, side broker.Side, size float64, at int) *broker.Order {
	return e.Submit(broker.NewMarketOrder(instr, side, size), at)
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func statuses(notes []broker.Notification) []broker.Status {
	out := make([]broker.Status, len(notes))
	for i, n := range notes {
		out[i] = n.Status
	}
	return out
}

func TestBuyFillsAtNextOpen(t *testing.T) {
	e, _ := newEngine(t, 100000, 0)

	process(t, e, 0, 48, 49)
	o := submit(e, broker.Buy, 10, 0)
	assert.Equal(t, broker.Accepted, o.Status)
	assert.Equal(t, int64(1), o.ID)

	process(t, e, 1, 50, 52)

	assert.Equal(t, broker.Completed, o.Status)
	assert.Equal(t, 1, o.Executed.Bar)
	assert.Greater(t, o.Executed.Bar, o.CreatedAt)
	assert.Equal(t, 50.0, o.Executed.Price)
	assert.Equal(t, 500.0, o.Executed.Value)

	assert.Equal(t, 99500.0, e.Cash())
	pos := e.Position(instr)
	assert.Equal(t, 10.0, pos.Size)
	assert.Equal(t, 50.0, pos.AvgPrice)

	// marked to the close, not the cost
	assert.Equal(t, 100020.0, e.Value())

	notes, trades := e.Drain()
	assert.Equal(t, []broker.Status{broker.Accepted, broker.Completed}, statuses(notes))
	assert.Empty(t, trades)

	notes, _ = e.Drain()
	assert.Empty(t, notes)
}

func TestNextClosePolicy(t *testing.T) {
	j := &journal.Memory{}
	e, err := NewEngine(Config{Cash: 1000, Fill: NextClose}, j)
	require.NoError(t, err)
	e.AddInstrument(instr)

	process(t, e, 0, 10, 10)
	o := submit(e, broker.Buy, 1, 0)
	process(t, e, 1, 11, 12)
	assert.Equal(t, 12.0, o.Executed.Price)
	assert.Equal(t, 1, o.Executed.Bar)
}

func TestOrdersNeverFillOnSubmissionBar(t *testing.T) {
	e, _ := newEngine(t, 100000, 0)

	process(t, e, 0, 10, 10)
	process(t, e, 1, 10, 10)
	o := submit(e, broker.Buy, 1, 1)

	// replaying the same bar is refused
	assert.Error(t, e.ProcessBar(instr, 1, bar(1, 10, 10)))
	assert.Equal(t, broker.Accepted, o.Status)

	process(t, e, 2, 11, 11)
	assert.Equal(t, broker.Completed, o.Status)
	assert.Equal(t, 2, o.Executed.Bar)
}

func TestMarginRejection(t *testing.T) {
	e, j := newEngine(t, 100, 0)

	process(t, e, 0, 50, 50)
	o := submit(e, broker.Buy, 10, 0)
	process(t, e, 1, 50, 50)

	assert.Equal(t, broker.Margin, o.Status)
	assert.Contains(t, o.Reason, "insufficient cash")
	assert.Equal(t, 100.0, e.Cash())
	assert.True(t, e.Position(instr).Flat())
	_, open := e.OpenTrade(instr)
	assert.False(t, open)

	require.Len(t, j.Orders, 1)
	assert.Equal(t, "Margin", j.Orders[0].Status)

	notes, _ := e.Drain()
	assert.Equal(t, []broker.Status{broker.Accepted, broker.Margin}, statuses(notes))
}

func TestMarginIncludesCommission(t *testing.T) {
	e, _ := newEngine(t, 500, 0.01)

	process(t, e, 0, 50, 50)
	o := submit(e, broker.Buy, 10, 0)
	process(t, e, 1, 50, 50)
	assert.Equal(t, broker.Margin, o.Status)
}

func TestShortSellingDisabled(t *testing.T) {
	e, _ := newEngine(t, 1000, 0)

	process(t, e, 0, 10, 10)
	o := submit(e, broker.Sell, 1, 0)
	process(t, e, 1, 10, 10)
	assert.Equal(t, broker.Margin, o.Status)
	assert.Contains(t, o.Reason, "short")
	assert.Equal(t, 1000.0, e.Cash())
}

func TestRoundTripNetEqualsGrossMinusCommission(t *testing.T) {
	e, j := newEngine(t, 100000, 0.001)

	process(t, e, 0, 50, 50)
	submit(e, broker.Buy, 10, 0)
	process(t, e, 1, 50, 51)
	submit(e, broker.Sell, 10, 1)
	process(t, e, 2, 55, 54)

	assert.True(t, e.Position(instr).Flat())
	trades := e.Trades()
	require.Len(t, trades, 1)
	tr := trades[0]

	assert.True(t, tr.Closed)
	assert.InDelta(t, 50.0, tr.GrossPnL, 1e-9)
	assert.InDelta(t, 0.5+0.55, tr.Commission, 1e-9)
	assert.Equal(t, tr.GrossPnL-tr.Commission, tr.NetPnL)
	assert.Equal(t, broker.Buy, tr.Side)
	assert.Equal(t, 1, tr.OpenedAt)
	assert.Equal(t, 2, tr.ClosedAt)
	assert.Equal(t, 55.0, tr.AvgExit())

	assert.True(t, e.CashDecimal().Equal(decimal.RequireFromString("100048.95")))

	_, closed := e.Drain()
	require.Len(t, closed, 1)
	assert.Equal(t, tr.ID, closed[0].ID)

	require.Len(t, j.Trades, 1)
	assert.Equal(t, "long", j.Trades[0].Side)
	assert.InDelta(t, tr.NetPnL, j.Trades[0].NetPL, 1e-9)
	assert.Len(t, j.Equity, 3)
	assert.Equal(t, "test", j.Equity[2].RunID)
}

func TestCashConservation(t *testing.T) {
	e, _ := newEngine(t, 10000, 0.0025)

	steps := []struct {
		side broker.Side
		size float64
	}{
		{broker.Buy, 7},
		{broker.Buy, 3},
		{broker.Sell, 4},
		{broker.Sell, 6},
		{broker.Buy, 2},
	}

	prices := []float64{101.37, 99.91, 103.03, 104.77, 98.13, 97.5}
	process(t, e, 0, prices[0], prices[0])
	for i, s := range steps {
		submit(e, s.side, s.size, i)
		before := e.CashDecimal()
		process(t, e, i+1, prices[i+1], prices[i+1])

		notes, _ := e.Drain()
		var fill *broker.Notification
		for k := range notes {
			if notes[k].Status == broker.Completed {
				fill = &notes[k]
			}
		}
		require.NotNil(t, fill, "step %d", i)

		value := decimal.NewFromFloat(prices[i+1]).Mul(decimal.NewFromFloat(s.size))
		comm := value.Mul(decimal.NewFromFloat(0.0025))
		signed := value
		if s.side == broker.Sell {
			signed = value.Neg()
		}
		want := before.Sub(signed).Sub(comm)
		assert.True(t, e.CashDecimal().Equal(want), "step %d: cash %s want %s", i, e.CashDecimal(), want)
	}
}

func TestWeightedAverageAndPartialExit(t *testing.T) {
	e, _ := newEngine(t, 100000, 0)

	process(t, e, 0, 50, 50)
	submit(e, broker.Buy, 10, 0)
	process(t, e, 1, 50, 50)
	submit(e, broker.Buy, 10, 1)
	process(t, e, 2, 60, 60)

	pos := e.Position(instr)
	assert.Equal(t, 20.0, pos.Size)
	assert.Equal(t, 55.0, pos.AvgPrice)

	submit(e, broker.Sell, 5, 2)
	process(t, e, 3, 70, 70)
	assert.Equal(t, 15.0, e.Position(instr).Size)
	assert.Equal(t, 55.0, e.Position(instr).AvgPrice)
	assert.Empty(t, e.Trades())

	open, ok := e.OpenTrade(instr)
	require.True(t, ok)
	assert.Equal(t, 75.0, open.GrossPnL)
	assert.Equal(t, 20.0, open.Size)

	submit(e, broker.Sell, 15, 3)
	process(t, e, 4, 40, 40)

	trades := e.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, -150.0, trades[0].GrossPnL)
	assert.Len(t, trades[0].Entries, 2)
	assert.Len(t, trades[0].Exits, 2)
	assert.True(t, e.Position(instr).Flat())
	assert.Equal(t, 100000-150.0, e.Cash())
}

func TestFlipSplitsCloseAndOpen(t *testing.T) {
	j := &journal.Memory{}
	e, err := NewEngine(Config{Cash: 100000, Commission: 0.01, AllowShort: true}, j)
	require.NoError(t, err)
	e.AddInstrument(instr)

	process(t, e, 0, 50, 50)
	submit(e, broker.Buy, 10, 0)
	process(t, e, 1, 50, 50)
	submit(e, broker.Sell, 15, 1)
	process(t, e, 2, 60, 60)

	trades := e.Trades()
	require.Len(t, trades, 1)
	closed := trades[0]
	assert.InDelta(t, 100.0, closed.GrossPnL, 1e-9)
	// entry 5, plus 10/15 of the 9 paid on the flipping fill
	assert.InDelta(t, 11.0, closed.Commission, 1e-9)
	assert.InDelta(t, 89.0, closed.NetPnL, 1e-9)

	pos := e.Position(instr)
	assert.Equal(t, -5.0, pos.Size)
	assert.Equal(t, 60.0, pos.AvgPrice)

	open, ok := e.OpenTrade(instr)
	require.True(t, ok)
	assert.Equal(t, broker.Sell, open.Side)
	assert.InDelta(t, 3.0, open.Commission, 1e-9)
	assert.Equal(t, 2, open.OpenedAt)

	// short marked to market
	assert.InDelta(t, e.Cash()-300, e.Value(), 1e-9)

	submit(e, broker.Buy, 5, 2)
	process(t, e, 3, 58, 58)
	trades = e.Trades()
	require.Len(t, trades, 2)
	assert.InDelta(t, 10.0, trades[1].GrossPnL, 1e-9)
	assert.Equal(t, "short", j.Trades[1].Side)
}

func TestRejectedOnSubmit(t *testing.T) {
	e, j := newEngine(t, 1000, 0)
	process(t, e, 0, 10, 10)

	zero := submit(e, broker.Buy, 0, 0)
	assert.Equal(t, broker.Rejected, zero.Status)
	assert.Contains(t, zero.Reason, "size")

	nan := submit(e, broker.Buy, math.NaN(), 0)
	assert.Equal(t, broker.Rejected, nan.Status)

	unknown := e.Submit(broker.NewMarketOrder("MSFT", broker.Buy, 1), 0)
	assert.Equal(t, broker.Rejected, unknown.Status)
	assert.Contains(t, unknown.Reason, "unknown instrument")

	assert.Empty(t, e.Pending())
	assert.Len(t, e.Orders(), 3)
	assert.Len(t, j.Orders, 3)

	notes, _ := e.Drain()
	assert.Equal(t, []broker.Status{broker.Rejected, broker.Rejected, broker.Rejected}, statuses(notes))

	// a terminal order is not resubmitted
	again := e.Submit(zero, 0)
	assert.Equal(t, broker.Rejected, again.Status)
	assert.Len(t, e.Orders(), 3)
}

func TestCancel(t *testing.T) {
	e, _ := newEngine(t, 1000, 0)
	process(t, e, 0, 10, 10)

	o := submit(e, broker.Buy, 1, 0)
	require.NoError(t, e.Cancel(o))
	assert.Equal(t, broker.Canceled, o.Status)

	process(t, e, 1, 10, 10)
	assert.True(t, e.Position(instr).Flat())
	assert.ErrorIs(t, e.Cancel(o), ErrOrderNotFound)

	a := submit(e, broker.Buy, 1, 1)
	b := submit(e, broker.Buy, 1, 1)
	require.NoError(t, e.CancelAll())
	assert.Equal(t, broker.Canceled, a.Status)
	assert.Equal(t, broker.Canceled, b.Status)
	assert.Empty(t, e.Pending())

	notes, _ := e.Drain()
	assert.Equal(t, []broker.Status{
		broker.Accepted, broker.Canceled,
		broker.Accepted, broker.Accepted, broker.Canceled, broker.Canceled,
	}, statuses(notes))
}

func TestHaltRejectsNewOrders(t *testing.T) {
	e, j := newEngine(t, 1000, 0)
	process(t, e, 0, 10, 10)

	before := submit(e, broker.Buy, 1, 0)
	e.Halt()
	after := submit(e, broker.Buy, 1, 0)

	assert.Equal(t, broker.Accepted, before.Status)
	assert.Equal(t, broker.Rejected, after.Status)
	assert.Equal(t, "replay ended", after.Reason)
	require.Len(t, e.Pending(), 1)

	require.NoError(t, e.CancelAll())
	assert.Empty(t, e.Pending())
	notes, _ := e.Drain()
	assert.Equal(t, []broker.Status{broker.Accepted, broker.Rejected, broker.Canceled}, statuses(notes))
	assert.Len(t, j.Orders, 2)
}

func TestFractionalLotsCloseFlat(t *testing.T) {
	e, _ := newEngine(t, 1000, 0)
	process(t, e, 0, 10, 10)

	submit(e, broker.Buy, 0.1, 0)
	submit(e, broker.Buy, 0.2, 0)
	process(t, e, 1, 10, 10)
	assert.Equal(t, 0.3, e.Position(instr).Size)

	sell := submit(e, broker.Sell, 0.3, 1)
	process(t, e, 2, 12, 12)

	assert.Equal(t, broker.Completed, sell.Status)
	pos := e.Position(instr)
	assert.True(t, pos.Flat())
	assert.Zero(t, pos.Size)
	_, open := e.OpenTrade(instr)
	assert.False(t, open)
	require.Len(t, e.Trades(), 1)
	assert.True(t, e.Trades()[0].Closed)
	assert.InDelta(t, 0.6, e.Trades()[0].GrossPnL, 1e-9)
	assert.InDelta(t, 1000.6, e.Value(), 1e-9)
}

// failingOrders fails every record of a filled order.
type failingOrders struct{ journal.Nop }

var errJournal = errors.New("journal down")

func (failingOrders) RecordOrder(r journal.OrderRecord) error {
	if r.Status == broker.Completed.String() {
		return errJournal
	}
	return nil
}

func TestJournalErrorAfterFillKeepsBookConsistent(t *testing.T) {
	e, err := NewEngine(Config{Cash: 1000}, failingOrders{})
	require.NoError(t, err)
	e.AddInstrument(instr)
	require.NoError(t, e.ProcessBar(instr, 0, bar(0, 10, 10)))

	buy := submit(e, broker.Buy, 10, 0)
	require.ErrorIs(t, e.ProcessBar(instr, 1, bar(1, 50, 50)), errJournal)

	assert.Equal(t, broker.Completed, buy.Status)
	assert.Equal(t, 500.0, e.Cash())
	assert.Equal(t, 10.0, e.Position(instr).Size)
	tr, open := e.OpenTrade(instr)
	require.True(t, open)
	assert.Equal(t, 50.0, tr.AvgEntry)
	assert.Equal(t, 1000.0, e.Value())

	sell := submit(e, broker.Sell, 10, 1)
	require.ErrorIs(t, e.ProcessBar(instr, 2, bar(2, 55, 55)), errJournal)

	assert.Equal(t, broker.Completed, sell.Status)
	assert.Equal(t, 1050.0, e.Cash())
	assert.True(t, e.Position(instr).Flat())
	require.Len(t, e.Trades(), 1)
	assert.InDelta(t, 50.0, e.Trades()[0].NetPnL, 1e-9)
	_, closed := e.Drain()
	assert.Len(t, closed, 1)
}

func TestOrdersFillInSubmissionOrder(t *testing.T) {
	e, _ := newEngine(t, 1000, 0)
	process(t, e, 0, 10, 10)

	first := submit(e, broker.Buy, 60, 0)
	second := submit(e, broker.Buy, 60, 0)
	process(t, e, 1, 10, 10)

	// only the first fits in the cash
	assert.Equal(t, broker.Completed, first.Status)
	assert.Equal(t, broker.Margin, second.Status)
	assert.Equal(t, 400.0, e.Cash())
}

func TestUnknownInstrumentBar(t *testing.T) {
	e, _ := newEngine(t, 1000, 0)
	err := e.ProcessBar("MSFT", 0, bar(0, 1, 1))
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", Config{Cash: 100000}, true},
		{"commission", Config{Cash: 1, Commission: 0.5}, true},
		{"zero cash", Config{}, false},
		{"negative cash", Config{Cash: -1}, false},
		{"commission one", Config{Cash: 1, Commission: 1}, false},
		{"negative commission", Config{Cash: 1, Commission: -0.1}, false},
		{"nan commission", Config{Cash: 1, Commission: math.NaN()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.cfg, nil)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseFillPolicy(t *testing.T) {
	for in, want := range map[string]FillPolicy{
		"":           NextOpen,
		"next-open":  NextOpen,
		"Open":       NextOpen,
		"next-close": NextClose,
		"close":      NextClose,
	} {
		got, err := ParseFillPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFillPolicy("same-bar")
	assert.Error(t, err)
	assert.Equal(t, "next-close", NextClose.String())
	assert.True(t, approxEqual(NextOpen.price(bar(0, 3, 4)), 3, 0))
}

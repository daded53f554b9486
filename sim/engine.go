// Package sim is the execution engine of a backtest. It owns the orders,
// cash and positions of one run and fills orders on the bar after they
// were submitted.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/barsim/broker"
	"github.com/rustyeddy/barsim/journal"
	"github.com/rustyeddy/barsim/market"
)

var (
	// ErrUnknownInstrument is returned for bars of an instrument that was
	// never added.
	ErrUnknownInstrument = errors.New("unknown instrument")

	// ErrOrderNotFound is returned when canceling an order the engine does
	// not hold as pending.
	ErrOrderNotFound = errors.New("order not found")
)

// Config holds the account settings of one run.
type Config struct {
	Cash       float64
	Commission float64 // fraction of fill value, in [0, 1)
	Fill       FillPolicy
	AllowShort bool

	// RunID is stamped on every journal record.
	RunID string
}

func (c Config) validate() error {
	if !(c.Cash > 0) || math.IsInf(c.Cash, 0) {
		return fmt.Errorf("sim: starting cash must be positive, got %v", c.Cash)
	}
	if !(c.Commission >= 0 && c.Commission < 1) {
		return fmt.Errorf("sim: commission must be in [0,1), got %v", c.Commission)
	}
	return nil
}

type Engine struct {
	mu      sync.Mutex
	cfg     Config
	cash    decimal.Decimal
	rate    decimal.Decimal
	books   map[string]*book
	names   []string // instruments in the order they were added
	pending []*broker.Order
	orders  []*broker.Order
	trades  []broker.Trade
	journal journal.Journal

	nextOrder int64
	nextTrade int64
	jerr      error
	halted    bool

	// undelivered events, drained by the runner
	notes  []broker.Notification
	closed []broker.Trade
}

// NewEngine returns an engine with cfg.Cash in the account. A nil journal
// discards records.
func NewEngine(cfg Config, j journal.Journal) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if j == nil {
		j = journal.Nop{}
	}
	return &Engine{
		cfg:     cfg,
		cash:    decimal.NewFromFloat(cfg.Cash),
		rate:    decimal.NewFromFloat(cfg.Commission),
		books:   make(map[string]*book),
		journal: j,
	}, nil
}

// Config returns the settings the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// AddInstrument makes instrument tradable. Adding it twice is a no-op.
func (e *Engine) AddInstrument(instrument string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.books[instrument]; ok {
		return
	}
	e.books[instrument] = newBook(instrument)
	e.names = append(e.names, instrument)
}

// Submit validates o and queues it for the next bar. The returned order is
// o itself, now Accepted or Rejected. Submit never blocks and never fails;
// problems are reported through the order status and a notification.
func (e *Engine) Submit(o *broker.Order, bar int) *broker.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	if o.Status != broker.Created {
		// Already owned by an engine; resubmitting is a no-op.
		return o
	}
	e.nextOrder++
	o.ID = e.nextOrder
	o.CreatedAt = bar
	e.orders = append(e.orders, o)
	_ = o.Transition(broker.Submitted)

	b, ok := e.books[o.Instrument]
	switch {
	case e.halted:
		o.Reason = "replay ended"
	case !ok:
		o.Reason = fmt.Sprintf("%s %q", ErrUnknownInstrument, o.Instrument)
	case o.Kind != broker.Market:
		o.Reason = fmt.Sprintf("unsupported order kind %s", o.Kind)
	case !(o.Size > 0) || math.IsInf(o.Size, 0):
		o.Reason = fmt.Sprintf("size must be positive, got %v", o.Size)
	}
	if o.Reason != "" {
		_ = o.Transition(broker.Rejected)
		e.keep(e.terminalLocked(o, bar, e.timeOf(b)))
		return o
	}

	_ = o.Transition(broker.Accepted)
	e.pending = append(e.pending, o)
	e.notes = append(e.notes, broker.Notify(o, bar, b.lastTime))
	return o
}

// Cancel withdraws an Accepted order that has not filled yet.
func (e *Engine) Cancel(o *broker.Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.pendingIndex(o)
	if i < 0 {
		return fmt.Errorf("cancel order %d: %w", o.ID, ErrOrderNotFound)
	}
	if err := o.Transition(broker.Canceled); err != nil {
		return err
	}
	e.pending = append(e.pending[:i], e.pending[i+1:]...)
	b := e.books[o.Instrument]
	return e.terminalLocked(o, b.lastBar, b.lastTime)
}

// Halt stops the engine from accepting orders. Orders submitted after
// Halt are rejected with a notification. Pending orders are untouched.
func (e *Engine) Halt() {
	e.mu.Lock()
	e.halted = true
	e.mu.Unlock()
}

// CancelAll cancels every order still pending, in submission order.
func (e *Engine) CancelAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, o := range e.pending {
		if err := o.Transition(broker.Canceled); err != nil {
			return err
		}
		b := e.books[o.Instrument]
		e.keep(e.terminalLocked(o, b.lastBar, b.lastTime))
	}
	e.pending = nil
	return e.takeErr()
}

// ProcessBar marks instrument to bar and fills, in submission order, every
// pending order for it that was submitted on an earlier bar. It records one
// equity snapshot. Fill outcomes are queued for Drain.
func (e *Engine) ProcessBar(instrument string, index int, bar market.Bar) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.books[instrument]
	if !ok {
		return fmt.Errorf("process bar: %w %q", ErrUnknownInstrument, instrument)
	}
	if b.marked && index <= b.lastBar {
		return fmt.Errorf("process bar: %s bar %d not after %d", instrument, index, b.lastBar)
	}
	if err := e.takeErr(); err != nil {
		return err
	}
	b.mark(index, bar.Time, bar.Close)

	keep := e.pending[:0]
	var due []*broker.Order
	for _, o := range e.pending {
		if o.Instrument == instrument && o.CreatedAt < index {
			due = append(due, o)
		} else {
			keep = append(keep, o)
		}
	}
	e.pending = keep

	for _, o := range due {
		if err := e.fillLocked(b, o, index, bar); err != nil {
			return err
		}
	}

	return e.journal.RecordEquity(journal.EquitySnapshot{
		RunID:    e.cfg.RunID,
		Bar:      index,
		Time:     bar.Time,
		Cash:     e.cash.InexactFloat64(),
		Value:    e.valueLocked(),
		Position: b.pos.Size,
	})
}

func (e *Engine) fillLocked(b *book, o *broker.Order, index int, bar market.Bar) error {
	price := e.cfg.Fill.price(bar)
	value := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(o.Size))
	comm := value.Mul(e.rate)

	switch {
	case o.Side == broker.Buy:
		if need := value.Add(comm); need.GreaterThan(e.cash) {
			o.Reason = fmt.Sprintf("insufficient cash: need %s, have %s",
				need.StringFixed(2), e.cash.StringFixed(2))
		}
	case !e.cfg.AllowShort && decimal.NewFromFloat(o.Size).GreaterThan(b.size):
		o.Reason = fmt.Sprintf("short selling disabled: sell %g with position %g", o.Size, b.pos.Size)
	}
	if o.Reason != "" {
		if err := o.Transition(broker.Margin); err != nil {
			return err
		}
		return e.terminalLocked(o, index, bar.Time)
	}

	if o.Side == broker.Buy {
		e.cash = e.cash.Sub(value).Sub(comm)
	} else {
		e.cash = e.cash.Add(value).Sub(comm)
	}

	o.Executed = broker.Fill{
		Bar:        index,
		Time:       bar.Time,
		Price:      price,
		Size:       o.Size,
		Value:      value.InexactFloat64(),
		Commission: comm.InexactFloat64(),
	}
	if err := o.Transition(broker.Completed); err != nil {
		return err
	}

	// Settle the book before journaling.
	closed := b.apply(o.Side, o.Executed, e.newTradeID)
	if closed != nil {
		e.trades = append(e.trades, *closed)
		e.closed = append(e.closed, *closed)
	}
	if err := e.terminalLocked(o, index, bar.Time); err != nil {
		return err
	}
	if closed == nil {
		return nil
	}
	return e.journal.RecordTrade(TradeRecord(e.cfg.RunID, *closed))
}

func (e *Engine) newTradeID() int64 {
	e.nextTrade++
	return e.nextTrade
}

// terminalLocked queues the notification for o and journals it.
func (e *Engine) terminalLocked(o *broker.Order, bar int, t time.Time) error {
	n := broker.Notify(o, bar, t)
	e.notes = append(e.notes, n)
	return e.journal.RecordOrder(journal.OrderRecord{
		RunID:      e.cfg.RunID,
		OrderID:    o.ID,
		Instrument: o.Instrument,
		Side:       o.Side.String(),
		Status:     o.Status.String(),
		Size:       o.Size,
		CreatedBar: o.CreatedAt,
		Bar:        bar,
		Time:       t,
		Price:      n.Price,
		Value:      n.Value,
		Commission: n.Commission,
		Reason:     o.Reason,
	})
}

// keep holds on to a journal error from a call that cannot return one; the
// next ProcessBar or CancelAll reports it.
func (e *Engine) keep(err error) {
	if err != nil && e.jerr == nil {
		e.jerr = err
	}
}

func (e *Engine) takeErr() error {
	err := e.jerr
	e.jerr = nil
	return err
}

func (e *Engine) timeOf(b *book) time.Time {
	if b == nil {
		return time.Time{}
	}
	return b.lastTime
}

func (e *Engine) pendingIndex(o *broker.Order) int {
	for i, p := range e.pending {
		if p == o {
			return i
		}
	}
	return -1
}

// Drain returns and clears the notifications and closed trades produced
// since the previous call, each in emission order.
func (e *Engine) Drain() ([]broker.Notification, []broker.Trade) {
	e.mu.Lock()
	defer e.mu.Unlock()
	notes, closed := e.notes, e.closed
	e.notes, e.closed = nil, nil
	return notes, closed
}

// Cash returns the free cash balance.
func (e *Engine) Cash() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cash.InexactFloat64()
}

// CashDecimal returns the exact cash balance.
func (e *Engine) CashDecimal() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cash
}

// Value returns cash plus every position marked at its latest close.
func (e *Engine) Value() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.valueLocked()
}

func (e *Engine) valueLocked() float64 {
	v := e.cash
	for _, name := range e.names {
		b := e.books[name]
		if b.size.IsZero() {
			continue
		}
		v = v.Add(b.size.Mul(decimal.NewFromFloat(b.lastClose)))
	}
	return v.InexactFloat64()
}

// Position returns the current holding in instrument.
func (e *Engine) Position(instrument string) broker.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.books[instrument]; ok {
		return b.pos
	}
	return broker.Position{Instrument: instrument}
}

// OpenTrade returns a copy of the trade open in instrument, if any.
func (e *Engine) OpenTrade(instrument string) (broker.Trade, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[instrument]
	if !ok || b.trade == nil {
		return broker.Trade{}, false
	}
	return *b.trade, true
}

// Pending returns the orders waiting for the next bar.
func (e *Engine) Pending() []*broker.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*broker.Order, len(e.pending))
	copy(out, e.pending)
	return out
}

// Orders returns every order ever submitted, in submission order.
func (e *Engine) Orders() []*broker.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*broker.Order, len(e.orders))
	copy(out, e.orders)
	return out
}

// Trades returns the closed trade log.
func (e *Engine) Trades() []broker.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]broker.Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// TradeRecord converts a closed trade into its journal row.
func TradeRecord(runID string, t broker.Trade) journal.TradeRecord {
	side := "long"
	if t.Side == broker.Sell {
		side = "short"
	}
	return journal.TradeRecord{
		RunID:      runID,
		TradeID:    t.ID,
		Instrument: t.Instrument,
		Side:       side,
		Size:       t.Size,
		EntryPrice: t.AvgEntry,
		ExitPrice:  t.AvgExit(),
		OpenBar:    t.OpenedAt,
		CloseBar:   t.ClosedAt,
		OpenTime:   t.OpenTime,
		CloseTime:  t.CloseTime,
		GrossPL:    t.GrossPnL,
		Commission: t.Commission,
		NetPL:      t.NetPnL,
	}
}

package sim

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/barsim/broker"
)

// book tracks one instrument: its position, the trade currently open and
// the latest mark. size is the exact signed holding; pos.Size mirrors it.
type book struct {
	pos   broker.Position
	size  decimal.Decimal
	trade *broker.Trade

	lastClose float64
	lastBar   int
	lastTime  time.Time
	marked    bool
}

func newBook(instrument string) *book {
	return &book{pos: broker.Position{Instrument: instrument}, lastBar: -1}
}

func (b *book) mark(bar int, t time.Time, close float64) {
	b.lastBar = bar
	b.lastTime = t
	b.lastClose = close
	b.marked = true
}

func (b *book) add(side broker.Side, qty decimal.Decimal) {
	if side == broker.Buy {
		b.size = b.size.Add(qty)
	} else {
		b.size = b.size.Sub(qty)
	}
	b.pos.Size = b.size.InexactFloat64()
}

// apply folds a fill into the position. It returns the trade that the fill
// closed, if any. A fill that flips the sign is split into a closing part
// and an opening part with commission apportioned by size.
func (b *book) apply(side broker.Side, f broker.Fill, nextID func() int64) *broker.Trade {
	qty := decimal.NewFromFloat(f.Size)

	// Opening from flat or adding in the same direction.
	if b.size.IsZero() || b.size.IsPositive() == (side == broker.Buy) {
		b.open(side, f, qty, nextID)
		return nil
	}

	held := b.size.Abs()
	closingQty := decimal.Min(qty, held)
	closing := closingQty.InexactFloat64()
	exit := f
	if qty.GreaterThan(held) {
		exit.Size = closing
		exit.Value = f.Price * closing
		exit.Commission = f.Commission * closing / f.Size
	}

	t := b.trade
	t.GrossPnL += (f.Price - b.pos.AvgPrice) * closing * float64(b.size.Sign())
	t.Commission += exit.Commission
	t.Exits = append(t.Exits, exit)
	b.add(side, closingQty)

	if !b.size.IsZero() {
		return nil
	}

	b.pos.AvgPrice = 0
	t.NetPnL = t.GrossPnL - t.Commission
	t.ClosedAt = f.Bar
	t.CloseTime = f.Time
	t.Closed = true
	b.trade = nil

	if rest := qty.Sub(closingQty); rest.IsPositive() {
		entry := f
		entry.Size = rest.InexactFloat64()
		entry.Value = f.Price * entry.Size
		entry.Commission = f.Commission - exit.Commission
		b.open(side, entry, rest, nextID)
	}
	return t
}

func (b *book) open(side broker.Side, f broker.Fill, qty decimal.Decimal, nextID func() int64) {
	if b.size.IsZero() {
		b.trade = &broker.Trade{
			ID:         nextID(),
			Instrument: b.pos.Instrument,
			Side:       side,
			OpenedAt:   f.Bar,
			OpenTime:   f.Time,
		}
		b.pos.AvgPrice = f.Price
	} else {
		held := b.size.Abs().InexactFloat64()
		b.pos.AvgPrice = (held*b.pos.AvgPrice + f.Size*f.Price) / (held + f.Size)
	}
	b.add(side, qty)

	t := b.trade
	t.Entries = append(t.Entries, f)
	t.Commission += f.Commission
	t.AvgEntry = b.pos.AvgPrice
	t.Size = math.Max(t.Size, math.Abs(b.pos.Size))
}

// Package journal records what happened during a backtest: closed trades,
// terminal order notifications, per-bar equity and a summary of each run.
package journal

import (
	"context"
	"time"
)

// TradeRecord is one closed round trip.
type TradeRecord struct {
	RunID      string
	TradeID    int64
	Instrument string
	Side       string // long or short
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	OpenBar    int
	CloseBar   int
	OpenTime   time.Time
	CloseTime  time.Time
	GrossPL    float64
	Commission float64
	NetPL      float64
}

// OrderRecord is an order in a terminal state.
type OrderRecord struct {
	RunID      string
	OrderID    int64
	Instrument string
	Side       string
	Status     string
	Size       float64
	CreatedBar int
	Bar        int
	Time       time.Time
	Price      float64
	Value      float64
	Commission float64
	Reason     string
}

// EquitySnapshot is the portfolio marked to the close of one bar.
type EquitySnapshot struct {
	RunID    string
	Bar      int
	Time     time.Time
	Cash     float64
	Value    float64
	Position float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordOrder(OrderRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// RunRecorder is implemented by journals that can also store the run summary.
type RunRecorder interface {
	RecordRun(ctx context.Context, run BacktestRun) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordOrder(OrderRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }

// Memory keeps records in slices. It is handy in tests and for callers
// that post-process a run without touching disk.
type Memory struct {
	Trades []TradeRecord
	Orders []OrderRecord
	Equity []EquitySnapshot
	Closed bool
}

func (m *Memory) RecordTrade(r TradeRecord) error {
	m.Trades = append(m.Trades, r)
	return nil
}

func (m *Memory) RecordOrder(r OrderRecord) error {
	m.Orders = append(m.Orders, r)
	return nil
}

func (m *Memory) RecordEquity(r EquitySnapshot) error {
	m.Equity = append(m.Equity, r)
	return nil
}

func (m *Memory) Close() error {
	m.Closed = true
	return nil
}

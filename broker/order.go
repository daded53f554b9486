// Package broker defines the trading vocabulary shared by the execution
// engine and strategies: orders and their lifecycle, fills, positions and
// closed trades.
package broker

import (
	"errors"
	"fmt"
	"time"
)

// ErrBadTransition is returned when an order is moved to a status that is
// not reachable from its current one.
var ErrBadTransition = errors.New("illegal order status transition")

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Sign is +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	if s == Buy {
		return 1
	}
	return -1
}

type Kind int

// Market is the only order kind: it fills at the price chosen by the
// engine's fill policy.
const Market Kind = iota

func (k Kind) String() string { return "market" }

type Status int

const (
	Created Status = iota
	Submitted
	Accepted
	Completed
	Canceled
	Margin
	Rejected
)

var statusNames = [...]string{"Created", "Submitted", "Accepted", "Completed", "Canceled", "Margin", "Rejected"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s >= Completed }

var transitions = map[Status][]Status{
	Created:   {Submitted},
	Submitted: {Accepted, Rejected},
	Accepted:  {Completed, Canceled, Margin, Rejected},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Fill is the execution of an order or part of one.
type Fill struct {
	Bar        int
	Time       time.Time
	Price      float64
	Size       float64 // unsigned quantity
	Value      float64 // Price * Size
	Commission float64
}

// Order is a trading intent. Once submitted it is owned by the engine;
// strategies keep the pointer as a read-only handle.
type Order struct {
	ID         int64
	Instrument string
	Side       Side
	Kind       Kind
	Size       float64
	Status     Status

	// CreatedAt is the bar index the order was submitted on.
	CreatedAt int

	// Executed is set once the order is Completed.
	Executed Fill

	// Reason explains Rejected and Margin outcomes.
	Reason string
}

// NewMarketOrder returns an order in the Created state.
func NewMarketOrder(instrument string, side Side, size float64) *Order {
	return &Order{
		Instrument: instrument,
		Side:       side,
		Kind:       Market,
		Size:       size,
		Status:     Created,
		CreatedAt:  -1,
	}
}

// Transition moves the order to status to.
func (o *Order) Transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("order %d: %w: %s -> %s", o.ID, ErrBadTransition, o.Status, to)
	}
	o.Status = to
	return nil
}

// Alive reports whether the order can still fill.
func (o *Order) Alive() bool { return !o.Status.Terminal() }

func (o *Order) String() string {
	return fmt.Sprintf("order %d %s %g %s [%s]", o.ID, o.Side, o.Size, o.Instrument, o.Status)
}

// Notification is delivered to the strategy whenever an order changes
// status after submission.
type Notification struct {
	Order      *Order
	OrderID    int64
	Instrument string
	Side       Side
	Status     Status
	Size       float64
	Bar        int
	Time       time.Time
	Price      float64
	Value      float64
	Commission float64
	Reason     string
}

// Notify snapshots the current state of o.
func Notify(o *Order, bar int, t time.Time) Notification {
	return Notification{
		Order:      o,
		OrderID:    o.ID,
		Instrument: o.Instrument,
		Side:       o.Side,
		Status:     o.Status,
		Size:       o.Size,
		Bar:        bar,
		Time:       t,
		Price:      o.Executed.Price,
		Value:      o.Executed.Value,
		Commission: o.Executed.Commission,
		Reason:     o.Reason,
	}
}

package sim

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/barsim/market"
)

// FillPolicy chooses the price an order fills at on the bar after it was
// submitted.
type FillPolicy int

const (
	// NextOpen fills at the open of the next bar.
	NextOpen FillPolicy = iota
	// NextClose fills at the close of the next bar.
	NextClose
)

func (p FillPolicy) String() string {
	if p == NextClose {
		return "next-close"
	}
	return "next-open"
}

// ParseFillPolicy accepts "next-open" (or "open") and "next-close" (or "close").
func ParseFillPolicy(s string) (FillPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "next-open", "open":
		return NextOpen, nil
	case "next-close", "close":
		return NextClose, nil
	}
	return NextOpen, fmt.Errorf("unknown fill policy %q (want next-open or next-close)", s)
}

func (p FillPolicy) price(b market.Bar) float64 {
	if p == NextClose {
		return b.Close
	}
	return b.Open
}

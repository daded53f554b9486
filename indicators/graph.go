package indicators

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when indicators depend on each other in a loop.
var ErrCycle = errors.New("indicator dependency cycle")

// Graph evaluates a set of indicators once per bar in dependency order.
// Each indicator caches its slot for the bar in its lines, so shared inputs
// (an OBV feeding both a strategy and an SMA) are computed once.
type Graph struct {
	order []Indicator
	state map[Indicator]int // 1 visiting, 2 done
	bars  int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{state: make(map[Indicator]int)}
}

// Add registers ind and, transitively, every indicator it reads from.
// Adding the same indicator twice is a no-op.
func (g *Graph) Add(ind Indicator) error {
	if g.bars > 0 {
		return fmt.Errorf("indicators: cannot add %s after replay started", ind.Name())
	}
	return g.visit(ind)
}

func (g *Graph) visit(ind Indicator) error {
	switch g.state[ind] {
	case 2:
		return nil
	case 1:
		return fmt.Errorf("%w at %s", ErrCycle, ind.Name())
	}
	g.state[ind] = 1
	for _, in := range ind.Inputs() {
		dep := producer(in)
		if dep == nil {
			continue
		}
		if err := g.visit(dep); err != nil {
			return err
		}
	}
	g.state[ind] = 2
	g.order = append(g.order, ind)
	return nil
}

// producer returns the indicator behind an input, or nil for raw price data.
func producer(in Input) Indicator {
	switch v := in.(type) {
	case Indicator:
		return v
	case *Line:
		return v.owner
	}
	return nil
}

// Update advances every registered indicator by one bar. It must be called
// exactly once per bar, after the series cursor moved.
func (g *Graph) Update() error {
	g.bars++
	for _, ind := range g.order {
		if err := ind.Update(); err != nil {
			return fmt.Errorf("update %s: %w", ind.Name(), err)
		}
		for _, l := range ind.Lines() {
			if l.Len() != g.bars {
				return fmt.Errorf("indicators: %s has %d slots after %d bars", l.Name(), l.Len(), g.bars)
			}
		}
	}
	return nil
}

// Order returns the evaluation order.
func (g *Graph) Order() []Indicator {
	out := make([]Indicator, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the number of registered indicators.
func (g *Graph) Len() int { return len(g.order) }

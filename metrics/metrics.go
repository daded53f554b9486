// Package metrics exposes the counters of a backtest run in Prometheus
// format. Each run owns its registry so parallel sweeps never share series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "barsim"

// Run holds the metrics of one backtest run.
type Run struct {
	reg *prometheus.Registry

	BarsProcessed prometheus.Counter
	Orders        *prometheus.CounterVec
	TradesClosed  *prometheus.CounterVec
	WinningPnL    prometheus.Counter
	Commission    prometheus.Counter

	PortfolioValue prometheus.Gauge
	Cash           prometheus.Gauge
	Position       prometheus.Gauge
	DrawdownPct    prometheus.Gauge
}

// New registers the run metrics on a fresh registry. runID and strategy
// become constant labels.
func New(runID, strategy string) *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"run_id": runID, "strategy": strategy}

	return &Run{
		reg: reg,
		BarsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "bars_processed_total",
			Help:        "Bars replayed.",
			ConstLabels: labels,
		}),
		Orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "order_notifications_total",
			Help:        "Order notifications by status.",
			ConstLabels: labels,
		}, []string{"status"}),
		TradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "trades_closed_total",
			Help:        "Closed trades by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		WinningPnL: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "winning_pnl_total",
			Help:        "Sum of net P&L over winning trades.",
			ConstLabels: labels,
		}),
		Commission: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "commission_total",
			Help:        "Commission paid on fills.",
			ConstLabels: labels,
		}),
		PortfolioValue: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "portfolio_value",
			Help:        "Cash plus marked positions at the last bar.",
			ConstLabels: labels,
		}),
		Cash: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "cash",
			Help:        "Cash at the last bar.",
			ConstLabels: labels,
		}),
		Position: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "position_size",
			Help:        "Signed position size at the last bar.",
			ConstLabels: labels,
		}),
		DrawdownPct: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "max_drawdown_percent",
			Help:        "Largest peak to trough drop of portfolio value so far.",
			ConstLabels: labels,
		}),
	}
}

// Registry returns the registry the run metrics live in.
func (m *Run) Registry() *prometheus.Registry { return m.reg }

// ObserveBar records the account state after a bar was processed.
func (m *Run) ObserveBar(value, cash, position, drawdownPct float64) {
	m.BarsProcessed.Inc()
	m.PortfolioValue.Set(value)
	m.Cash.Set(cash)
	m.Position.Set(position)
	m.DrawdownPct.Set(drawdownPct)
}

// ObserveOrder counts a notification and any commission it carries.
func (m *Run) ObserveOrder(status string, commission float64) {
	m.Orders.WithLabelValues(status).Inc()
	if commission > 0 {
		m.Commission.Add(commission)
	}
}

// ObserveTrade counts a closed trade.
func (m *Run) ObserveTrade(net float64) {
	switch {
	case net > 0:
		m.TradesClosed.WithLabelValues("win").Inc()
		m.WinningPnL.Add(net)
	case net < 0:
		m.TradesClosed.WithLabelValues("loss").Inc()
	default:
		m.TradesClosed.WithLabelValues("flat").Inc()
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

package backtest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/barsim/journal"
	"github.com/rustyeddy/barsim/market"
	"github.com/rustyeddy/barsim/metrics"
	"github.com/rustyeddy/barsim/sim"
	"github.com/rustyeddy/barsim/strategies"
)

// Job is one fully specified backtest.
type Job struct {
	RunID   string
	Dataset string // where the bars came from, for the run record
	Series  *market.Series

	Strategy string
	Params   map[string]float64

	Broker sim.Config
	Stake  float64

	// Journal receives trades, orders and equity. It is not closed by
	// Execute. A journal that is a journal.RunRecorder also gets the run
	// summary.
	Journal journal.Journal
	Logger  *slog.Logger
}

// Execute builds the strategy and engine for job and runs it.
func Execute(ctx context.Context, job Job) (Result, error) {
	strat, err := strategies.ByName(job.Strategy, job.Params)
	if err != nil {
		return Result{}, err
	}
	params, _ := strategies.Defaults(job.Strategy)
	for k, v := range job.Params {
		params[k] = v
	}

	cfg := job.Broker
	cfg.RunID = job.RunID
	eng, err := sim.NewEngine(cfg, job.Journal)
	if err != nil {
		return Result{}, err
	}

	log := job.Logger
	if log == nil {
		log = slog.Default()
	}
	m := metrics.New(job.RunID, strat.Name())
	r := &Runner{
		Engine:   eng,
		Series:   job.Series,
		Strategy: strat,
		Stake:    job.Stake,
		Logger:   log,
		Metrics:  m,
	}
	res, err := r.Run(ctx)
	if err != nil {
		return Result{}, err
	}
	res.Params = params
	res.Metrics = m

	if rr, ok := job.Journal.(journal.RunRecorder); ok {
		if err := rr.RecordRun(ctx, res.Run(job.Dataset)); err != nil {
			return res, fmt.Errorf("record run %s: %w", job.RunID, err)
		}
	}
	return res, nil
}

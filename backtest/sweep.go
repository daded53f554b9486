package backtest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/barsim/journal"
)

// Sweep runs base once per parameter set in grid, at most parallel runs
// at a time (0 means unlimited). Each run replays its own clone of the
// series and gets the run ID base.RunID-NNN. Results keep grid order.
// The first failing run cancels the rest.
func Sweep(ctx context.Context, base Job, grid []map[string]float64, parallel int) ([]Result, error) {
	if base.Series == nil {
		return nil, fmt.Errorf("sweep: Series is required")
	}
	if base.Journal != nil {
		if _, ok := base.Journal.(*journal.Shared); !ok {
			base.Journal = journal.NewShared(base.Journal)
		}
	}

	results := make([]Result, len(grid))
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, p := range grid {
		job := base
		job.RunID = fmt.Sprintf("%s-%03d", base.RunID, i+1)
		job.Series = base.Series.Clone()
		job.Params = make(map[string]float64, len(base.Params)+len(p))
		for k, v := range base.Params {
			job.Params[k] = v
		}
		for k, v := range p {
			job.Params[k] = v
		}
		if base.Logger != nil {
			job.Logger = base.Logger.With("run_id", job.RunID)
		}

		i := i
		g.Go(func() error {
			res, err := Execute(gctx, job)
			if err != nil {
				return fmt.Errorf("sweep run %s: %w", job.RunID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ParseParams parses key=value pairs.
func ParseParams(pairs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("bad param %q, want key=value", kv)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("bad param %q: %w", kv, err)
		}
		out[k] = f
	}
	return out, nil
}

// ParseGrid expands key=v1,v2,... entries into the cartesian product of
// their values. The first key varies slowest.
func ParseGrid(entries []string) ([]map[string]float64, error) {
	grid := []map[string]float64{{}}
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		k, list, ok := strings.Cut(entry, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("bad grid %q, want key=v1,v2", entry)
		}
		if seen[k] {
			return nil, fmt.Errorf("grid key %q given twice", k)
		}
		seen[k] = true

		var vals []float64
		for _, s := range strings.Split(list, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("bad grid %q: %w", entry, err)
			}
			vals = append(vals, f)
		}
		if len(vals) == 0 {
			return nil, fmt.Errorf("grid %q has no values", entry)
		}

		next := make([]map[string]float64, 0, len(grid)*len(vals))
		for _, p := range grid {
			for _, v := range vals {
				q := make(map[string]float64, len(p)+1)
				for pk, pv := range p {
					q[pk] = pv
				}
				q[k] = v
				next = append(next, q)
			}
		}
		grid = next
	}
	return grid, nil
}

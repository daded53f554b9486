package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create schema in %s: %w", path, err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, trade_id, instrument, side, size, entry_price, exit_price,
		 open_bar, close_bar, open_time, close_time, gross_pl, commission, net_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.TradeID, t.Instrument, t.Side, t.Size, t.EntryPrice, t.ExitPrice,
		t.OpenBar, t.CloseBar, t.OpenTime, t.CloseTime, t.GrossPL, t.Commission, t.NetPL,
	)
	return err
}

func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(run_id, order_id, instrument, side, status, size, created_bar, bar, time,
		 price, value, commission, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.OrderID, o.Instrument, o.Side, o.Status, o.Size, o.CreatedBar, o.Bar, o.Time,
		o.Price, o.Value, o.Commission, o.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, bar, time, cash, value, position)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Bar, e.Time, e.Cash, e.Value, e.Position,
	)
	return err
}

func (j *SQLite) RecordRun(ctx context.Context, r BacktestRun) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(run_id, created, dataset, instrument, strategy, params, start_time, end_time,
		 bars, trades, wins, losses, start_value, end_value, net_pl, commission,
		 return_pct, win_rate, profit_factor, max_dd_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Dataset, r.Instrument, r.Strategy, r.ParamString(), r.Start, r.End,
		r.Bars, r.Trades, r.Wins, r.Losses, r.StartValue, r.EndValue, r.NetPL, r.Commission,
		r.ReturnPct, r.WinRate, r.ProfitFactor, r.MaxDDPct,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordRun(r Run) error {
	return j.RecordRunContext(context.Background(), r)
}

// RecordRunContext stores the run and all of its detail rows in one
// transaction. Recording the same run ID twice is an error.
func (j *SQLite) RecordRunContext(ctx context.Context, r Run) error {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return err
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	m := r.Metrics
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, created, strategy, params, symbols, dataset, start_date, end_date,
		 initial_capital, final_equity, commission_rate, slippage_rate, allow_shorts,
		 total_return, cagr, sharpe, max_drawdown, win_rate, profit_factor, avg_duration,
		 trades, wins, losses, gross_profit, gross_loss, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Strategy, string(params), strings.Join(r.Symbols, ","), r.Dataset,
		r.Start, r.End,
		r.InitialCapital, r.FinalEquity, r.Costs.CommissionRate, r.Costs.SlippageRate, r.AllowShorts,
		m.TotalReturn, m.CAGR, m.Sharpe, m.MaxDrawdown, m.WinRate, nullable(m.ProfitFactor), m.AvgDuration,
		m.Trades, m.Wins, m.Losses, m.GrossProfit, m.GrossLoss, strings.Join(r.Notes, "\n"),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}

	if err := insertEach(ctx, tx, `
		INSERT INTO fills
		(run_id, seq, symbol, date, bar, quantity, price, commission, slippage, cash_delta, intent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, len(r.Fills), func(i int) []any {
		f := r.Fills[i]
		return []any{r.RunID, i, f.Symbol, f.Date, f.Bar, f.Quantity, f.Price,
			f.Commission, f.Slippage, f.CashDelta, int(f.Intent)}
	}); err != nil {
		return fmt.Errorf("insert fills for %s: %w", r.RunID, err)
	}

	if err := insertEach(ctx, tx, `
		INSERT INTO equity (run_id, date, cash, holdings, equity)
		VALUES (?, ?, ?, ?, ?)`, len(r.Equity), func(i int) []any {
		e := r.Equity[i]
		return []any{r.RunID, e.Date, e.Cash, e.Holdings, e.Equity}
	}); err != nil {
		return fmt.Errorf("insert equity for %s: %w", r.RunID, err)
	}

	if err := insertEach(ctx, tx, `
		INSERT INTO trades
		(run_id, seq, symbol, side, quantity, entry_date, exit_date, entry_bar, exit_bar,
		 entry_amount, exit_amount, pnl, bars)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, len(r.Trades), func(i int) []any {
		t := r.Trades[i]
		return []any{r.RunID, i, t.Symbol, t.Side, t.Quantity, t.EntryDate, t.ExitDate,
			t.EntryBar, t.ExitBar, t.EntryAmount, t.ExitAmount, t.PnL, t.Bars}
	}); err != nil {
		return fmt.Errorf("insert trades for %s: %w", r.RunID, err)
	}

	return tx.Commit()
}

func insertEach(ctx context.Context, tx *sql.Tx, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRun removes a run and its detail rows.
func (j *SQLite) DeleteRun(ctx context.Context, runID string) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// SQLite stores NaN as NULL.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/sim"
)

const runColumns = `
	run_id, created, strategy, params, symbols, dataset, start_date, end_date,
	initial_capital, final_equity, commission_rate, slippage_rate, allow_shorts,
	total_return, cagr, sharpe, max_drawdown, win_rate, profit_factor, avg_duration,
	trades, wins, losses, gross_profit, gross_loss, notes`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r               Run
		params, symbols string
		notes           string
		pf              sql.NullFloat64
	)
	m := &r.Metrics
	err := s.Scan(
		&r.RunID, &r.Created, &r.Strategy, &params, &symbols, &r.Dataset, &r.Start, &r.End,
		&r.InitialCapital, &r.FinalEquity, &r.Costs.CommissionRate, &r.Costs.SlippageRate, &r.AllowShorts,
		&m.TotalReturn, &m.CAGR, &m.Sharpe, &m.MaxDrawdown, &m.WinRate, &pf, &m.AvgDuration,
		&m.Trades, &m.Wins, &m.Losses, &m.GrossProfit, &m.GrossLoss, &notes,
	)
	if err != nil {
		return Run{}, err
	}

	if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
		return Run{}, fmt.Errorf("run %s params: %w", r.RunID, err)
	}
	if symbols != "" {
		r.Symbols = strings.Split(symbols, ",")
	}
	if notes != "" {
		r.Notes = strings.Split(notes, "\n")
	}
	m.ProfitFactor = math.NaN()
	if pf.Valid {
		m.ProfitFactor = pf.Float64
	}
	return r, nil
}

// GetRun returns a run's summary without detail rows.
func (j *SQLite) GetRun(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT`+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return Run{}, err
	}
	return r, nil
}

// ListRuns returns run summaries, newest first. limit <= 0 returns all.
func (j *SQLite) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `SELECT`+runColumns+` FROM runs ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFills returns a run's trade log in execution order.
func (j *SQLite) ListFills(ctx context.Context, runID string) ([]sim.Fill, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT symbol, date, bar, quantity, price, commission, slippage, cash_delta, intent
		FROM fills
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sim.Fill
	for rows.Next() {
		var (
			f      sim.Fill
			intent int
		)
		if err := rows.Scan(
			&f.Symbol,
			&f.Date,
			&f.Bar,
			&f.Quantity,
			&f.Price,
			&f.Commission,
			&f.Slippage,
			&f.CashDelta,
			&intent,
		); err != nil {
			return nil, err
		}
		f.Intent = market.Intent(intent)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquity returns a run's equity curve in date order.
func (j *SQLite) ListEquity(ctx context.Context, runID string) ([]sim.EquityPoint, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, cash, holdings, equity
		FROM equity
		WHERE run_id = ?
		ORDER BY date ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sim.EquityPoint
	for rows.Next() {
		var e sim.EquityPoint
		if err := rows.Scan(&e.Date, &e.Cash, &e.Holdings, &e.Equity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTrades returns a run's closed round trips in closing order.
func (j *SQLite) ListTrades(ctx context.Context, runID string) ([]metrics.RoundTrip, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT symbol, side, quantity, entry_date, exit_date, entry_bar, exit_bar,
		       entry_amount, exit_amount, pnl, bars
		FROM trades
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metrics.RoundTrip
	for rows.Next() {
		var t metrics.RoundTrip
		if err := rows.Scan(
			&t.Symbol,
			&t.Side,
			&t.Quantity,
			&t.EntryDate,
			&t.ExitDate,
			&t.EntryBar,
			&t.ExitBar,
			&t.EntryAmount,
			&t.ExitAmount,
			&t.PnL,
			&t.Bars,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadRun returns a run with all detail rows; drawdowns are derived from
// the stored equity curve.
func (j *SQLite) LoadRun(ctx context.Context, runID string) (Run, error) {
	r, err := j.GetRun(ctx, runID)
	if err != nil {
		return Run{}, err
	}
	if r.Equity, err = j.ListEquity(ctx, runID); err != nil {
		return Run{}, err
	}
	if r.Fills, err = j.ListFills(ctx, runID); err != nil {
		return Run{}, err
	}
	if r.Trades, err = j.ListTrades(ctx, runID); err != nil {
		return Run{}, err
	}
	r.Drawdowns = metrics.Drawdowns(r.Equity)
	return r, nil
}

// ExportOrg loads everything and returns the Org block.
func (j *SQLite) ExportOrg(ctx context.Context, runID string) (string, error) {
	r, err := j.LoadRun(ctx, runID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := WriteRunOrg(&b, r); err != nil {
		return "", err
	}
	return b.String(), nil
}

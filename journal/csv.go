package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// CSV writes each run into its own directory under Dir:
//
//	<dir>/<run-id>/equity.csv
//	<dir>/<run-id>/drawdown.csv
//	<dir>/<run-id>/fills.csv
//	<dir>/<run-id>/trades.csv
//	<dir>/<run-id>/metrics.csv
type CSV struct {
	Dir string
}

func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CSV{Dir: dir}, nil
}

// RunDir is where r's files are written.
func (j *CSV) RunDir(runID string) string {
	return filepath.Join(j.Dir, runID)
}

func (j *CSV) RecordRun(r Run) error {
	dir := j.RunDir(r.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	files := []struct {
		name   string
		header []string
		rows   func(emit func([]string) error) error
	}{
		{"equity.csv", []string{"date", "cash", "holdings", "equity"}, func(emit func([]string) error) error {
			for _, e := range r.Equity {
				if err := emit([]string{day(e.Date), money(e.Cash), money(e.Holdings), money(e.Equity)}); err != nil {
					return err
				}
			}
			return nil
		}},
		{"drawdown.csv", []string{"date", "equity", "peak", "drawdown"}, func(emit func([]string) error) error {
			for _, d := range r.Drawdowns {
				if err := emit([]string{day(d.Date), money(d.Equity), money(d.Peak), f(d.Drawdown)}); err != nil {
					return err
				}
			}
			return nil
		}},
		{"fills.csv", []string{"date", "bar", "symbol", "side", "quantity", "price", "commission", "slippage", "cash_delta", "intent"}, func(emit func([]string) error) error {
			for _, fl := range r.Fills {
				if err := emit([]string{
					day(fl.Date),
					strconv.Itoa(fl.Bar),
					fl.Symbol,
					fl.Side(),
					strconv.FormatInt(fl.Quantity, 10),
					money(fl.Price),
					money(fl.Commission),
					money(fl.Slippage),
					money(fl.CashDelta),
					fl.Intent.String(),
				}); err != nil {
					return err
				}
			}
			return nil
		}},
		{"trades.csv", []string{"symbol", "side", "quantity", "entry_date", "exit_date", "entry_bar", "exit_bar", "entry_amount", "exit_amount", "pnl", "bars"}, func(emit func([]string) error) error {
			for _, t := range r.Trades {
				if err := emit([]string{
					t.Symbol,
					t.Side,
					strconv.FormatInt(t.Quantity, 10),
					day(t.EntryDate),
					day(t.ExitDate),
					strconv.Itoa(t.EntryBar),
					strconv.Itoa(t.ExitBar),
					money(t.EntryAmount),
					money(t.ExitAmount),
					money(t.PnL),
					strconv.Itoa(t.Bars),
				}); err != nil {
					return err
				}
			}
			return nil
		}},
		{"metrics.csv", []string{"metric", "value"}, func(emit func([]string) error) error {
			m := r.Metrics
			for _, kv := range [][]string{
				{"run_id", r.RunID},
				{"strategy", r.Strategy},
				{"start", day(r.Start)},
				{"end", day(r.End)},
				{"initial_capital", money(r.InitialCapital)},
				{"final_equity", money(r.FinalEquity)},
				{"total_return", f(m.TotalReturn)},
				{"cagr", f(m.CAGR)},
				{"sharpe", f(m.Sharpe)},
				{"max_drawdown", f(m.MaxDrawdown)},
				{"win_rate", f(m.WinRate)},
				{"profit_factor", f(m.ProfitFactor)},
				{"avg_duration", f(m.AvgDuration)},
				{"trades", strconv.Itoa(m.Trades)},
				{"wins", strconv.Itoa(m.Wins)},
				{"losses", strconv.Itoa(m.Losses)},
			} {
				if err := emit(kv); err != nil {
					return err
				}
			}
			return nil
		}},
	}

	for _, file := range files {
		if err := writeCSV(filepath.Join(dir, file.name), file.header, file.rows); err != nil {
			return fmt.Errorf("write %s: %w", file.name, err)
		}
	}
	return nil
}

func (j *CSV) Close() error { return nil }

func writeCSV(path string, header []string, rows func(emit func([]string) error) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(fh)
	if err := w.Write(header); err != nil {
		_ = fh.Close()
		return err
	}
	if err := rows(w.Write); err != nil {
		_ = fh.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

// money prints an amount as its shortest decimal form at 1e-6 precision,
// without binary float noise.
func money(x float64) string {
	return decimal.NewFromFloat(x).Round(6).String()
}

func day(t time.Time) string {
	return t.Format(time.DateOnly)
}

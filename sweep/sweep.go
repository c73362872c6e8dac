// Package sweep runs a moving average crossover over a grid of window
// pairs and ranks the results.
package sweep

import (
	"cmp"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

// Params is one grid point.
type Params struct {
	Short int `json:"short"`
	Long  int `json:"long"`
}

// Grid is the cartesian product of shorts and longs, keeping only pairs
// with short < long. Order follows the inputs.
func Grid(shorts, longs []int) []Params {
	var out []Params
	for _, s := range shorts {
		for _, l := range longs {
			if s > 0 && s < l {
				out = append(out, Params{Short: s, Long: l})
			}
		}
	}
	return out
}

// Options configure a sweep. Every grid point gets its own engine built
// from Config.
type Options struct {
	Config         sim.Config
	PeriodsPerYear int
	Workers        int // <= 0 means GOMAXPROCS

	// New builds the strategy for a grid point. Defaults to the simple
	// moving average crossover.
	New    func(Params) (strategies.SignalProvider, error)
	Logger *slog.Logger
}

// Row is the outcome of one grid point.
type Row struct {
	Params
	Metrics     metrics.Report `json:"metrics"`
	FinalEquity float64        `json:"final_equity"`
	Fills       int            `json:"fills"`
}

// Run evaluates every grid point concurrently and returns the rows
// ranked by Sharpe ratio, best first. Ties keep the smaller windows
// first so the order does not depend on scheduling.
func Run(ctx context.Context, h *market.History, opts Options, grid []Params) ([]Row, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	build := opts.New
	if build == nil {
		build = func(p Params) (strategies.SignalProvider, error) {
			return strategies.NewMACrossover(p.Short, p.Long)
		}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	rows := make([]Row, len(grid))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range grid {
		g.Go(func() error {
			strat, err := build(p)
			if err != nil {
				return fmt.Errorf("sweep %d/%d: %w", p.Short, p.Long, err)
			}
			eng, err := sim.NewEngine(opts.Config)
			if err != nil {
				return err
			}
			r := backtest.Runner{
				Engine:         eng,
				Strategy:       strat,
				PeriodsPerYear: opts.PeriodsPerYear,
				Logger:         log,
			}
			res, err := r.Run(ctx, h)
			if err != nil {
				return fmt.Errorf("sweep %d/%d: %w", p.Short, p.Long, err)
			}
			rows[i] = Row{
				Params:      p,
				Metrics:     res.Metrics,
				FinalEquity: res.FinalEquity(),
				Fills:       len(res.Engine.Fills),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	Rank(rows)
	return rows, nil
}

// Rank sorts rows by Sharpe descending, then by short and long window.
func Rank(rows []Row) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		if c := cmp.Compare(b.Metrics.Sharpe, a.Metrics.Sharpe); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Short, b.Short); c != 0 {
			return c
		}
		return cmp.Compare(a.Long, b.Long)
	})
}

var header = []string{
	"short", "long", "total_return", "cagr", "sharpe", "max_drawdown",
	"win_rate", "profit_factor", "trades", "final_equity",
}

// WriteCSV writes one line per row in the given order.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		m := r.Metrics
		rec := []string{
			strconv.Itoa(r.Short),
			strconv.Itoa(r.Long),
			f(m.TotalReturn),
			f(m.CAGR),
			f(m.Sharpe),
			f(m.MaxDrawdown),
			f(m.WinRate),
			f(m.ProfitFactor),
			strconv.Itoa(m.Trades),
			f(r.FinalEquity),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// Timing describes how long a sweep took.
type Timing struct {
	Cores    int           `json:"cores"`
	GridSize int           `json:"grid_size"`
	Workers  int           `json:"workers"`
	Elapsed  time.Duration `json:"-"`
	Seconds  float64       `json:"elapsed_sec"`
}

func NewTiming(grid, workers int, elapsed time.Duration) Timing {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return Timing{
		Cores:    runtime.NumCPU(),
		GridSize: grid,
		Workers:  workers,
		Elapsed:  elapsed,
		Seconds:  elapsed.Seconds(),
	}
}

// WriteJSON writes t as indented JSON.
func (t Timing) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// Package backtest ties the pieces of one run together: strategy signals,
// the simulation engine, metrics and the journal.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

// Result is everything produced by one Runner.Run.
type Result struct {
	RunID    string
	Created  time.Time
	Strategy string
	Params   map[string]float64
	Symbols  []string

	Start time.Time
	End   time.Time

	Engine    sim.Result
	Trades    []metrics.RoundTrip
	Metrics   metrics.Report
	Drawdowns []metrics.DrawdownPoint
}

// FinalEquity is the equity at the last marked bar.
func (r Result) FinalEquity() float64 {
	return r.Engine.FinalEquity()
}

// Runner drives one strategy through the engine over a history.
type Runner struct {
	Engine   *sim.Engine
	Strategy strategies.SignalProvider

	// Params are recorded with the run; they do not configure Strategy.
	Params  map[string]float64
	Dataset string
	Notes   []string

	// Journal, when set, receives every successful run.
	Journal journal.Journal

	// Verify, when set, checks the simulation before anything is
	// recorded. CheckConsistency is the usual choice.
	Verify func(h *market.History, res sim.Result) error

	PeriodsPerYear int
	Logger         *slog.Logger
	IDs            *id.Generator
}

// Run generates signals, simulates them and computes the report. If a
// journal is configured the run is recorded before Run returns; a
// journal or Verify failure is returned together with the completed
// result, and a run that fails Verify is not recorded.
func (r *Runner) Run(ctx context.Context, h *market.History) (Result, error) {
	if r.Engine == nil {
		return Result{}, fmt.Errorf("backtest: Engine is required")
	}
	if r.Strategy == nil {
		return Result{}, fmt.Errorf("backtest: Strategy is required")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	log := r.logger().With("strategy", r.Strategy.Name())
	began := time.Now()

	sig, err := r.Strategy.GenerateSignals(h)
	if err != nil {
		return Result{}, fmt.Errorf("generate signals: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res, err := r.Engine.Run(h, sig)
	if err != nil {
		return Result{}, fmt.Errorf("simulate: %w", err)
	}

	// Returns are measured from the capital the run started with, so fills
	// and price moves on the first traded bar count.
	calc := metrics.Calculator{
		PeriodsPerYear: r.PeriodsPerYear,
		InitialEquity:  r.Engine.Config().InitialCapital,
	}
	out := Result{
		RunID:     r.newID(),
		Created:   time.Now().UTC(),
		Strategy:  r.Strategy.Name(),
		Params:    maps.Clone(r.Params),
		Symbols:   h.Symbols(),
		Start:     h.Date(0),
		End:       h.Date(h.Len() - 1),
		Engine:    res,
		Trades:    metrics.RoundTrips(res.Fills),
		Metrics:   calc.Compute(res.Equity, res.Fills),
		Drawdowns: metrics.Drawdowns(res.Equity),
	}

	log.Info("backtest complete",
		"run_id", out.RunID,
		"symbols", len(out.Symbols),
		"bars", h.Len(),
		"fills", len(res.Fills),
		"final_equity", out.FinalEquity(),
		"elapsed", time.Since(began))

	if r.Verify != nil {
		if err := r.Verify(h, res); err != nil {
			log.Warn("run not recorded", "run_id", out.RunID, "err", err)
			return out, fmt.Errorf("consistency check failed: %w", err)
		}
		log.Debug("consistency checks passed", "run_id", out.RunID)
	}

	if r.Journal != nil {
		if err := r.Journal.RecordRun(r.record(out)); err != nil {
			return out, fmt.Errorf("record run %s: %w", out.RunID, err)
		}
		log.Debug("run recorded", "run_id", out.RunID)
	}
	return out, nil
}

// record converts a result into a journal entry.
func (r *Runner) record(res Result) journal.Run {
	cfg := r.Engine.Config()
	return journal.Run{
		RunID:          res.RunID,
		Created:        res.Created,
		Strategy:       res.Strategy,
		Params:         res.Params,
		Symbols:        res.Symbols,
		Dataset:        r.Dataset,
		Start:          res.Start,
		End:            res.End,
		InitialCapital: cfg.InitialCapital,
		FinalEquity:    res.FinalEquity(),
		Costs:          cfg.Costs,
		AllowShorts:    cfg.AllowShorts,
		Metrics:        res.Metrics,
		Notes:          r.Notes,
		Equity:         res.Engine.Equity,
		Fills:          res.Engine.Fills,
		Trades:         res.Trades,
		Drawdowns:      res.Drawdowns,
	}
}

func (r *Runner) newID() string {
	if r.IDs != nil {
		return r.IDs.New()
	}
	return id.New()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

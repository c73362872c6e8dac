// Package journal persists backtest runs: their summary, equity curve,
// trade log and round trips.
package journal

import (
	"errors"
	"time"

	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/sim"
)

// ErrNotFound is returned by lookups of unknown run IDs.
var ErrNotFound = errors.New("not found")

// Run is one recorded backtest.
type Run struct {
	RunID    string             `json:"run_id"`
	Created  time.Time          `json:"created"`
	Strategy string             `json:"strategy"`
	Params   map[string]float64 `json:"params,omitempty"`
	Symbols  []string           `json:"symbols"`
	Dataset  string             `json:"dataset,omitempty"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	InitialCapital float64       `json:"initial_capital"`
	FinalEquity    float64       `json:"final_equity"`
	Costs          sim.CostModel `json:"costs"`
	AllowShorts    bool          `json:"allow_shorts"`

	Metrics metrics.Report `json:"metrics"`
	Notes   []string       `json:"notes,omitempty"`

	// Detail; not filled by summary queries.
	Equity    []sim.EquityPoint       `json:"-"`
	Fills     []sim.Fill              `json:"-"`
	Trades    []metrics.RoundTrip     `json:"-"`
	Drawdowns []metrics.DrawdownPoint `json:"-"`
}

// NetPL is final equity minus initial capital.
func (r Run) NetPL() float64 {
	return r.FinalEquity - r.InitialCapital
}

type Journal interface {
	RecordRun(Run) error
	Close() error
}

// Tee records every run in all journals, stopping at the first error.
func Tee(js ...Journal) Journal {
	return tee(js)
}

type tee []Journal

func (t tee) RecordRun(r Run) error {
	for _, j := range t {
		if err := j.RecordRun(r); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Close() error {
	var errs []error
	for _, j := range t {
		errs = append(errs, j.Close())
	}
	return errors.Join(errs...)
}

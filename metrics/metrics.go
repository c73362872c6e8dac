// Package metrics derives performance statistics from a finished run.
//
// Every function here is total: degenerate inputs (an empty curve, a
// single bar, no trades) produce zero, NaN or +Inf as documented on
// Report instead of an error.
package metrics

import (
	"math"
	"time"

	"github.com/rustyeddy/backtester/sim"
)

// DefaultPeriodsPerYear is the number of trading days used to annualize.
const DefaultPeriodsPerYear = 252

// Report holds the scalar statistics of a run.
type Report struct {
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`

	// WinRate is winners / closed round trips, 0 with no trades.
	WinRate float64 `json:"win_rate"`
	// ProfitFactor is +Inf with no losing trade and NaN with no trades.
	ProfitFactor float64 `json:"profit_factor"`
	// AvgDuration is the mean holding period in bars.
	AvgDuration float64 `json:"avg_duration"`

	Trades      int     `json:"trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	GrossProfit float64 `json:"gross_profit"`
	GrossLoss   float64 `json:"gross_loss"`
}

// Calculator computes reports. The zero value uses 252 periods per year
// and the first curve point as the base.
type Calculator struct {
	PeriodsPerYear int

	// InitialEquity, when positive, is prepended to the curve as the base
	// value, so the first marked bar counts as a return period.
	InitialEquity float64
}

// Compute is Calculator{PeriodsPerYear: periodsPerYear}.Compute.
func Compute(curve []sim.EquityPoint, fills []sim.Fill, periodsPerYear int) Report {
	return Calculator{PeriodsPerYear: periodsPerYear}.Compute(curve, fills)
}

func (c Calculator) Compute(curve []sim.EquityPoint, fills []sim.Fill) Report {
	ppy := c.PeriodsPerYear
	if ppy <= 0 {
		ppy = DefaultPeriodsPerYear
	}

	values := make([]float64, 0, len(curve)+1)
	if c.InitialEquity > 0 {
		values = append(values, c.InitialEquity)
	}
	for _, pt := range curve {
		values = append(values, pt.Equity)
	}

	var r Report
	r.TotalReturn, r.CAGR = growth(values, ppy)
	r.Sharpe = sharpe(returns(values), ppy)
	r.MaxDrawdown = maxDrawdown(values)
	r.tradeStats(RoundTrips(fills))
	return r
}

func growth(values []float64, ppy int) (total, cagr float64) {
	if len(values) == 0 {
		return 0, 0
	}
	initial, final := values[0], values[len(values)-1]
	if !(initial > 0) {
		return 0, 0
	}
	total = final/initial - 1

	periods := len(values) - 1
	switch {
	case periods == 0:
		cagr = 0
	case final <= 0:
		cagr = -1
	default:
		cagr = math.Pow(final/initial, float64(ppy)/float64(periods)) - 1
	}
	return total, cagr
}

// returns are simple period returns; a non-positive prior value yields 0.
func returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 {
			out[i-1] = values[i]/values[i-1] - 1
		}
	}
	return out
}

func sharpe(rets []float64, ppy int) float64 {
	n := len(rets)
	if n < 2 {
		return 0
	}

	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(n)

	var ss float64
	for _, r := range rets {
		d := r - mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(n-1))
	if !(sd > 0) {
		return 0
	}
	return mean / sd * math.Sqrt(float64(ppy))
}

func maxDrawdown(values []float64) float64 {
	var worst, peak float64
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := v/peak - 1; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

func (r *Report) tradeStats(trips []RoundTrip) {
	r.Trades = len(trips)
	if r.Trades == 0 {
		r.ProfitFactor = math.NaN()
		return
	}

	var bars int
	for _, t := range trips {
		bars += t.Bars
		switch {
		case t.PnL > 0:
			r.Wins++
			r.GrossProfit += t.PnL
		case t.PnL < 0:
			r.Losses++
			r.GrossLoss += t.PnL
		}
	}

	r.WinRate = float64(r.Wins) / float64(r.Trades)
	r.AvgDuration = float64(bars) / float64(r.Trades)
	if r.GrossLoss == 0 {
		r.ProfitFactor = math.Inf(1)
	} else {
		r.ProfitFactor = r.GrossProfit / math.Abs(r.GrossLoss)
	}
}

// DrawdownPoint is one sample of the drawdown series.
type DrawdownPoint struct {
	Date     time.Time `json:"date"`
	Equity   float64   `json:"equity"`
	Peak     float64   `json:"peak"`
	Drawdown float64   `json:"drawdown"`
}

// Drawdowns returns equity/runningPeak - 1 for every curve point.
func Drawdowns(curve []sim.EquityPoint) []DrawdownPoint {
	out := make([]DrawdownPoint, len(curve))
	var peak float64
	for i, pt := range curve {
		if i == 0 || pt.Equity > peak {
			peak = pt.Equity
		}
		var dd float64
		if peak > 0 {
			dd = pt.Equity/peak - 1
		}
		out[i] = DrawdownPoint{Date: pt.Date, Equity: pt.Equity, Peak: peak, Drawdown: dd}
	}
	return out
}

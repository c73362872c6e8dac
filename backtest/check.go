package backtest

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
)

// Tolerance bounds the error allowed when re-marking equity, relative to
// the equity value (absolute below 1).
const Tolerance = 1e-6

// CheckConsistency re-derives the ledger from the fills and verifies
// it against the engine's output:
//
//	cash never goes negative after any fill
//	every equity point equals cash plus positions marked at that close
//	the final equity matches the final portfolio marked at the last close
//
// All violations are joined into the returned error.
func CheckConsistency(h *market.History, res sim.Result) error {
	var errs []error

	if len(res.Equity) != max(h.Len()-1, 0) {
		errs = append(errs, fmt.Errorf("equity curve has %d points for %d bars", len(res.Equity), h.Len()))
	}

	cash := res.InitialCapital
	qty := make(map[string]int64)
	next := 0
	for _, pt := range res.Equity {
		for next < len(res.Fills) && !res.Fills[next].Date.After(pt.Date) {
			f := res.Fills[next]
			cash += f.CashDelta
			qty[f.Symbol] += f.Quantity
			if cash < 0 {
				errs = append(errs, fmt.Errorf("%s: cash %.6f after fill %d (%s %s)",
					f.Date.Format(time.DateOnly), cash, next, f.Side(), f.Symbol))
			}
			next++
		}

		i, ok := indexOf(h, pt.Date)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: equity point outside the history", pt.Date.Format(time.DateOnly)))
			continue
		}
		var holdings float64
		for sym, n := range qty {
			bar, _ := h.Bar(i, sym)
			holdings += float64(n) * bar.Close
		}
		if d := math.Abs(cash + holdings - pt.Equity); d > Tolerance*math.Max(1, math.Abs(pt.Equity)) {
			errs = append(errs, fmt.Errorf("%s: equity %.6f, recomputed %.6f",
				pt.Date.Format(time.DateOnly), pt.Equity, cash+holdings))
		}
	}
	if next != len(res.Fills) {
		errs = append(errs, fmt.Errorf("%d fills after the last equity point", len(res.Fills)-next))
	}

	if h.Len() > 1 && res.Final.Positions != nil {
		last, err := res.Final.MarkToMarket(h.Date(h.Len()-1), h.Closes(h.Len()-1))
		switch {
		case err != nil:
			errs = append(errs, err)
		case math.Abs(last.Equity-res.FinalEquity()) > Tolerance*math.Max(1, math.Abs(last.Equity)):
			errs = append(errs, fmt.Errorf("final portfolio marks at %.6f, curve ends at %.6f",
				last.Equity, res.FinalEquity()))
		}
	}
	return errors.Join(errs...)
}

func indexOf(h *market.History, date time.Time) (int, bool) {
	dates := h.Dates()
	i := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(date) })
	return i, i < len(dates) && dates[i].Equal(date)
}

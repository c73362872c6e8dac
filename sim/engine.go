package sim

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rustyeddy/backtester/market"
)

// Config is the complete, explicit input of an engine. There is no
// package level state; two engines never share anything.
type Config struct {
	InitialCapital float64
	Costs          CostModel
	AllowShorts    bool
}

func (c Config) Validate() error {
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		return fmt.Errorf("%w: initial capital must be positive (got %v)", ErrConfiguration, c.InitialCapital)
	}
	return c.Costs.Validate()
}

// Engine runs next-bar execution backtests over daily bars.
//
//   - the intent recorded at bar t-1 is executed at bar t's open
//   - positions are only traded when the intent changes
//   - each symbol gets a fixed budget of InitialCapital / symbols
//   - equity is marked at every bar's close, starting with the second bar
//
// An Engine holds only its configuration, so one value may serve many
// concurrent Runs.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Result is everything a run produces.
type Result struct {
	InitialCapital float64
	Equity         []EquityPoint
	Fills          []Fill
	Final          Portfolio
}

// FinalEquity is the last marked equity, or the initial capital when the
// curve is empty.
func (r Result) FinalEquity() float64 {
	if len(r.Equity) == 0 {
		return r.InitialCapital
	}
	return r.Equity[len(r.Equity)-1].Equity
}

// Run is a convenience wrapper around NewEngine(...).Run.
func Run(h *market.History, sig *market.Signals, initialCapital float64, costs CostModel, allowShorts bool) (Result, error) {
	e, err := NewEngine(Config{
		InitialCapital: initialCapital,
		Costs:          costs,
		AllowShorts:    allowShorts,
	})
	if err != nil {
		return Result{}, err
	}
	return e.Run(h, sig)
}

// order is a pending position change for one symbol on one bar.
type order struct {
	symbol string
	intent market.Intent
	qty    int64
	price  float64
}

// Run simulates the signals over the history. Inputs are validated
// before any state is created.
func (e *Engine) Run(h *market.History, sig *market.Signals) (Result, error) {
	if err := validate(h, sig); err != nil {
		return Result{}, err
	}

	symbols := h.Symbols()
	budget := e.cfg.InitialCapital / float64(len(symbols))

	pf := NewPortfolio(e.cfg.InitialCapital)
	acted := make(map[string]market.Intent, len(symbols))

	res := Result{
		InitialCapital: e.cfg.InitialCapital,
		Equity:         make([]EquityPoint, 0, h.Len()-1),
	}

	for t := 1; t < h.Len(); t++ {
		date := h.Date(t)

		var orders []order
		for _, sym := range symbols {
			want := sig.At(t-1, sym)
			if want == market.Short && !e.cfg.AllowShorts {
				want = market.Flat
			}
			if want == acted[sym] {
				continue
			}
			acted[sym] = want

			bar, _ := h.Bar(t, sym)
			target := int64(budget/bar.Open) * int64(want)
			if qty := target - pf.Quantity(sym); qty != 0 {
				orders = append(orders, order{symbol: sym, intent: want, qty: qty, price: bar.Open})
			}
		}

		// Sells raise cash, so they go first; symbols stay in lexicographic
		// order inside each group.
		sort.SliceStable(orders, func(i, j int) bool {
			return orders[i].qty < 0 && orders[j].qty > 0
		})

		for _, o := range orders {
			f, ok, err := e.affordable(pf.Cash, o, date, t)
			if err != nil {
				return Result{}, err
			}
			if !ok {
				continue
			}
			if pf, err = pf.Apply(f); err != nil {
				return Result{}, err
			}
			res.Fills = append(res.Fills, f)
		}

		pt, err := pf.MarkToMarket(date, h.Closes(t))
		if err != nil {
			return Result{}, err
		}
		res.Equity = append(res.Equity, pt)
	}

	res.Final = pf
	return res, nil
}

// affordable builds the fill for o, shrinking it to the largest whole-share
// quantity that keeps cash non-negative. ok is false when nothing fits.
func (e *Engine) affordable(cash float64, o order, date time.Time, bar int) (Fill, bool, error) {
	qty := o.qty
	dir := sign64(qty)

	// Net cash consumed per share; zero or negative means the fill adds cash.
	unit := o.price * (float64(dir) + e.cfg.Costs.rate())
	if unit > 0 {
		if most := int64(math.Floor(cash / unit)); abs64(qty) > most {
			qty = dir * most
		}
	}

	for qty != 0 {
		f, err := newFill(e.cfg.Costs, o.symbol, date, bar, qty, o.price, o.intent)
		if err != nil {
			return Fill{}, false, err
		}
		if cash+f.CashDelta >= 0 {
			return f, true, nil
		}
		qty -= dir
	}
	return Fill{}, false, nil
}

func validate(h *market.History, sig *market.Signals) error {
	if h.Len() == 0 {
		return fmt.Errorf("%w: empty history", ErrData)
	}
	if sig == nil {
		return fmt.Errorf("%w: nil signals", ErrData)
	}
	if !sig.SameIndex(h.Dates()) {
		return fmt.Errorf("%w: signals cover %d dates, history %d (or dates differ)",
			ErrData, sig.Len(), h.Len())
	}
	if err := sig.Validate(); err != nil {
		return err
	}

	known := make(map[string]bool)
	for _, sym := range h.Symbols() {
		known[sym] = true
		for i := 0; i < h.Len(); i++ {
			b, _ := h.Bar(i, sym)
			if !b.Valid() {
				return fmt.Errorf("%w: %s non-positive price on %s",
					ErrData, sym, b.Date.Format(time.DateOnly))
			}
		}
	}
	for _, sym := range sig.Symbols() {
		if !known[sym] {
			return fmt.Errorf("%w: signals for unknown symbol %s", ErrData, sym)
		}
	}
	return nil
}

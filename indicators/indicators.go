// Package indicators provides streaming technical indicators over daily bars.
package indicators

import "github.com/rustyeddy/backtester/market"

// Indicator computes a single streaming value from bars.
// It is deterministic and safe to reuse across backtests after Reset.
type Indicator interface {
	// Name returns a stable identifier like "MA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next *closed* bar and updates internal state.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current value, or 0 before Ready().
	Value() float64
}

// Series feeds bars through ind (after a Reset) and returns one value per
// bar along with its readiness.
func Series(ind Indicator, bars []market.Bar) (values []float64, ready []bool) {
	ind.Reset()
	values = make([]float64, len(bars))
	ready = make([]bool, len(bars))
	for i, b := range bars {
		ind.Update(b)
		ready[i] = ind.Ready()
		values[i] = ind.Value()
	}
	return values, ready
}

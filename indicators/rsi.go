package indicators

import (
	"fmt"

	"github.com/rustyeddy/backtester/market"
)

// RSI is the Relative Strength Index with Wilder smoothing
// (an exponential average with alpha = 1/period, seeded with the first
// close-to-close change).
type RSI struct {
	period  int
	alpha   float64
	prev    float64
	count   int // closes seen
	avgUp   float64
	avgDown float64
}

func NewRSI(period int) *RSI {
	r := &RSI{period: period}
	if period > 0 {
		r.alpha = 1 / float64(period)
	}
	return r
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI(%d)", r.period)
}

// Warmup is period changes, so period+1 closes.
func (r *RSI) Warmup() int {
	return r.period + 1
}

func (r *RSI) Reset() {
	r.prev = 0
	r.count = 0
	r.avgUp = 0
	r.avgDown = 0
}

func (r *RSI) Update(b market.Bar) {
	r.count++
	if r.count == 1 {
		r.prev = b.Price()
		return
	}

	delta := b.Price() - r.prev
	r.prev = b.Price()
	up, down := max(delta, 0), max(-delta, 0)

	if r.count == 2 {
		r.avgUp, r.avgDown = up, down
		return
	}
	r.avgUp += r.alpha * (up - r.avgUp)
	r.avgDown += r.alpha * (down - r.avgDown)
}

func (r *RSI) Ready() bool {
	return r.period > 0 && r.count >= r.Warmup()
}

// Value is in [0, 100]. Without any down move it is 100, and 50 when
// prices have not moved at all.
func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgDown == 0 {
		if r.avgUp == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgUp / r.avgDown
	return 100 - 100/(1+rs)
}

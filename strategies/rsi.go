package strategies

import (
	"fmt"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// RSICross is a long-only mean reversion strategy. It goes long when the
// RSI crosses up through Lower and back to flat when it crosses down
// through Upper; in between it keeps its last intent.
type RSICross struct {
	Period int
	Lower  float64
	Upper  float64
}

func NewRSICross(period int, lower, upper float64) (*RSICross, error) {
	if period <= 0 {
		return nil, configErr("rsi period must be positive (got %d)", period)
	}
	if lower < 0 || upper > 100 || lower >= upper {
		return nil, configErr("rsi bands must satisfy 0 <= lower < upper <= 100 (got %g, %g)", lower, upper)
	}
	return &RSICross{Period: period, Lower: lower, Upper: upper}, nil
}

func (s *RSICross) Name() string {
	return fmt.Sprintf("rsi-cross(%d,%g,%g)", s.Period, s.Lower, s.Upper)
}

func (s *RSICross) GenerateSignals(h *market.History) (*market.Signals, error) {
	return perSymbol(h, func(bars []market.Bar) []market.Intent {
		rsi, ready := indicators.Series(indicators.NewRSI(s.Period), bars)

		out := make([]market.Intent, len(bars))
		state := market.Flat
		for i := 1; i < len(bars); i++ {
			if ready[i-1] && ready[i] {
				prev, cur := rsi[i-1], rsi[i]
				switch {
				case prev < s.Lower && cur >= s.Lower:
					state = market.Long
				case prev > s.Upper && cur <= s.Upper:
					state = market.Flat
				}
			}
			out[i] = state
		}
		return out
	})
}

package strategies

import (
	"fmt"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// EMAADX trades a fast/slow EMA crossover, but only when ADX says the
// market is trending.
//   - Enters only on a cross with ADX >= Threshold
//   - Reverses on the opposite qualifying cross
//   - Holds its last intent between crosses
//
// With MinATR set, a cross also needs ATR(ADXPeriod)/close >= MinATR, so
// crosses in quiet markets are skipped.
type EMAADX struct {
	Fast      int
	Slow      int
	ADXPeriod int
	Threshold float64
	MinATR    float64
}

func NewEMAADX(fast, slow, adxPeriod int, threshold float64) (*EMAADX, error) {
	if fast <= 0 || slow <= 0 || adxPeriod <= 0 {
		return nil, configErr("ema-adx periods must be positive (got %d, %d, %d)", fast, slow, adxPeriod)
	}
	if fast >= slow {
		return nil, configErr("fast period must be < slow period (got %d >= %d)", fast, slow)
	}
	if threshold < 0 || threshold > 100 {
		return nil, configErr("adx threshold must be within [0, 100] (got %g)", threshold)
	}
	return &EMAADX{Fast: fast, Slow: slow, ADXPeriod: adxPeriod, Threshold: threshold}, nil
}

// WithMinATR sets the volatility filter; 0 disables it.
func (s *EMAADX) WithMinATR(frac float64) (*EMAADX, error) {
	if frac < 0 || frac >= 1 {
		return nil, configErr("min-atr must be within [0, 1) (got %g)", frac)
	}
	s.MinATR = frac
	return s, nil
}

func (s *EMAADX) Name() string {
	if s.MinATR > 0 {
		return fmt.Sprintf("ema-adx(%d,%d,%d,%g,atr>=%g)", s.Fast, s.Slow, s.ADXPeriod, s.Threshold, s.MinATR)
	}
	return fmt.Sprintf("ema-adx(%d,%d,%d,%g)", s.Fast, s.Slow, s.ADXPeriod, s.Threshold)
}

// volatile reports whether the ATR filter lets a cross through.
func (s *EMAADX) volatile(atr *indicators.ATR, b market.Bar) bool {
	if s.MinATR <= 0 {
		return true
	}
	return atr.Ready() && atr.Value()/b.Close >= s.MinATR
}

func (s *EMAADX) GenerateSignals(h *market.History) (*market.Signals, error) {
	return perSymbol(h, func(bars []market.Bar) []market.Intent {
		fast, slow, adx := indicators.NewEMA(s.Fast), indicators.NewEMA(s.Slow), indicators.NewADX(s.ADXPeriod)
		atr := indicators.NewATR(s.ADXPeriod)

		out := make([]market.Intent, len(bars))
		state := market.Flat
		var lastDiff float64
		haveLastDiff := false

		for i, b := range bars {
			fast.Update(b)
			slow.Update(b)
			adx.Update(b)
			atr.Update(b)

			if fast.Ready() && slow.Ready() && adx.Ready() {
				diff := fast.Value() - slow.Value()
				if haveLastDiff && adx.Value() >= s.Threshold && s.volatile(atr, b) {
					switch {
					case diff > 0 && lastDiff <= 0:
						state = market.Long
					case diff < 0 && lastDiff >= 0:
						state = market.Short
					}
				}
				lastDiff = diff
				haveLastDiff = true
			}
			out[i] = state
		}
		return out
	})
}

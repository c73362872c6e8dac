package strategies

import (
	"fmt"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
)

// MACrossover compares a short and a long simple moving average of closes.
//   - Long while SMA(short) > SMA(long)
//   - Short while SMA(short) < SMA(long)
//   - Flat while either average is warming up, or when they are equal
type MACrossover struct {
	Short int
	Long  int
}

func NewMACrossover(short, long int) (*MACrossover, error) {
	if short <= 0 || long <= 0 {
		return nil, configErr("moving average windows must be positive (got %d, %d)", short, long)
	}
	if short >= long {
		return nil, configErr("short window must be < long window (got %d >= %d)", short, long)
	}
	return &MACrossover{Short: short, Long: long}, nil
}

func (s *MACrossover) Name() string {
	return fmt.Sprintf("ma-crossover(%d,%d)", s.Short, s.Long)
}

func (s *MACrossover) GenerateSignals(h *market.History) (*market.Signals, error) {
	return perSymbol(h, func(bars []market.Bar) []market.Intent {
		return cross(bars, indicators.NewMA(s.Short), indicators.NewMA(s.Long))
	})
}

// EMACrossover is MACrossover over exponential averages.
type EMACrossover struct {
	Fast int
	Slow int
}

func NewEMACrossover(fast, slow int) (*EMACrossover, error) {
	if fast <= 0 || slow <= 0 {
		return nil, configErr("ema periods must be positive (got %d, %d)", fast, slow)
	}
	if fast >= slow {
		return nil, configErr("fast period must be < slow period (got %d >= %d)", fast, slow)
	}
	return &EMACrossover{Fast: fast, Slow: slow}, nil
}

func (s *EMACrossover) Name() string {
	return fmt.Sprintf("ema-crossover(%d,%d)", s.Fast, s.Slow)
}

func (s *EMACrossover) GenerateSignals(h *market.History) (*market.Signals, error) {
	return perSymbol(h, func(bars []market.Bar) []market.Intent {
		return cross(bars, indicators.NewEMA(s.Fast), indicators.NewEMA(s.Slow))
	})
}

func cross(bars []market.Bar, fast, slow indicators.Indicator) []market.Intent {
	fv, fok := indicators.Series(fast, bars)
	sv, sok := indicators.Series(slow, bars)

	out := make([]market.Intent, len(bars))
	for i := range bars {
		if !fok[i] || !sok[i] {
			continue
		}
		switch {
		case fv[i] > sv[i]:
			out[i] = market.Long
		case fv[i] < sv[i]:
			out[i] = market.Short
		}
	}
	return out
}

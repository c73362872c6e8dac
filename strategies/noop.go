package strategies

import "github.com/rustyeddy/backtester/market"

// Flat never takes a position.
type Flat struct{}

func (Flat) Name() string { return "flat" }

func (Flat) GenerateSignals(h *market.History) (*market.Signals, error) {
	return perSymbol(h, func(bars []market.Bar) []market.Intent {
		return make([]market.Intent, len(bars))
	})
}

// BuyAndHold is long on every bar, so the engine buys at the second open
// and never sells.
type BuyAndHold struct{}

func (BuyAndHold) Name() string { return "buy-and-hold" }

func (BuyAndHold) GenerateSignals(h *market.History) (*market.Signals, error) {
	return perSymbol(h, func(bars []market.Bar) []market.Intent {
		out := make([]market.Intent, len(bars))
		for i := range out {
			out[i] = market.Long
		}
		return out
	})
}

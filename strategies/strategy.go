package strategies

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
)

// SignalProvider turns an aligned history into a matrix of intents.
//
// The intent at index t may use everything up to and including the close
// of bar t. The engine executes it at the next bar's open, so providers
// never shift their output.
type SignalProvider interface {
	Name() string
	GenerateSignals(h *market.History) (*market.Signals, error)
}

// Params are strategy parameters by name, as they come from config files
// and the command line.
type Params map[string]float64

// Int returns p[key] truncated, or def when unset.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Factory builds a provider from parameters.
type Factory func(Params) (SignalProvider, error)

var (
	registry = make(map[string]Factory)
)

func init() {
	Register("flat", func(Params) (SignalProvider, error) { return Flat{}, nil })
	Register("buy-and-hold", func(Params) (SignalProvider, error) { return BuyAndHold{}, nil })
	Register("ma-crossover", func(p Params) (SignalProvider, error) {
		return NewMACrossover(p.Int("short", 50), p.Int("long", 200))
	})
	Register("ema-crossover", func(p Params) (SignalProvider, error) {
		return NewEMACrossover(p.Int("fast", 20), p.Int("slow", 50))
	})
	Register("ema-adx", func(p Params) (SignalProvider, error) {
		s, err := NewEMAADX(p.Int("fast", 10), p.Int("slow", 30), p.Int("adx", 14), p.Float("threshold", 25))
		if err != nil {
			return nil, err
		}
		return s.WithMinATR(p.Float("min-atr", 0))
	})
	Register("rsi-cross", func(p Params) (SignalProvider, error) {
		return NewRSICross(p.Int("period", 14), p.Float("lower", 30), p.Float("upper", 70))
	})
}

// Register adds or replaces a named factory.
func Register(name string, f Factory) {
	registry[normalize(name)] = f
}

// aliases accepted by New for backwards compatible names
var aliases = map[string]string{
	"noop":    "flat",
	"none":    "flat",
	"hold":    "buy-and-hold",
	"ma":      "ma-crossover",
	"sma":     "ma-crossover",
	"ema":     "ema-crossover",
	"rsi":     "rsi-cross",
	"macross": "ma-crossover",
}

// New builds the named strategy. Names are case insensitive.
func New(name string, p Params) (SignalProvider, error) {
	key := normalize(name)
	if a, ok := aliases[key]; ok {
		key = a
	}
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return f(p)
}

// Names lists registered strategies, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// perSymbol runs fn over every symbol's bars and collects the rows.
func perSymbol(h *market.History, fn func(bars []market.Bar) []market.Intent) (*market.Signals, error) {
	if h.Len() == 0 {
		return nil, fmt.Errorf("%w: empty history", market.ErrData)
	}
	sig := market.NewSignals(h.Dates())
	for _, sym := range h.Symbols() {
		if err := sig.SetSeries(sym, fn(h.Series(sym))); err != nil {
			return nil, err
		}
	}
	return sig, nil
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", sim.ErrConfiguration, fmt.Sprintf(format, args...))
}

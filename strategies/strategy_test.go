package strategies

import (
	"testing"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func history(t *testing.T, closes map[string][]float64) *market.History {
	t.Helper()

	raw := make(map[string][]market.Bar, len(closes))
	for sym, px := range closes {
		for i, p := range px {
			raw[sym] = append(raw[sym], market.Bar{
				Symbol: sym, Date: t0.AddDate(0, 0, i),
				Open: p, High: p, Low: p, Close: p,
			})
		}
	}
	h, err := market.Align(raw)
	require.NoError(t, err)
	return h
}

func row(t *testing.T, sig *market.Signals, sym string, n int) []int {
	t.Helper()
	out := make([]int, n)
	for i := range out {
		out[i] = int(sig.At(i, sym))
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		params   Params
		wantName string
	}{
		{"flat", "flat", nil, "flat"},
		{"noop alias", "  NOOP ", nil, "flat"},
		{"buy and hold", "buy-and-hold", nil, "buy-and-hold"},
		{"ma defaults", "ma-crossover", nil, "ma-crossover(50,200)"},
		{"ma params", "sma", Params{"short": 10, "long": 100}, "ma-crossover(10,100)"},
		{"ema params", "EMA-Crossover", Params{"fast": 5, "slow": 8}, "ema-crossover(5,8)"},
		{"rsi defaults", "rsi", nil, "rsi-cross(14,30,70)"},
		{"ema-adx defaults", "ema-adx", nil, "ema-adx(10,30,14,25)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.key, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, s.Name())
		})
	}
}

func TestNewErrors(t *testing.T) {
	_, err := New("martingale", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
	assert.Contains(t, err.Error(), "ma-crossover")

	bad := []struct {
		name   string
		params Params
	}{
		{"ma-crossover", Params{"short": 200, "long": 50}},
		{"ma-crossover", Params{"short": 0, "long": 50}},
		{"ema-crossover", Params{"fast": 10, "slow": 10}},
		{"ema-adx", Params{"threshold": 150}},
		{"rsi-cross", Params{"period": 0}},
		{"rsi-cross", Params{"lower": 80, "upper": 20}},
	}
	for _, b := range bad {
		_, err := New(b.name, b.params)
		assert.ErrorIs(t, err, sim.ErrConfiguration, "%s %v", b.name, b.params)
	}
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{"buy-and-hold", "ema-adx", "ema-crossover", "flat", "ma-crossover", "rsi-cross"}, names)
}

func TestParams(t *testing.T) {
	p := Params{"short": 12.9, "lower": 25.5}
	assert.Equal(t, 12, p.Int("short", 1))
	assert.Equal(t, 7, p.Int("long", 7))
	assert.Equal(t, 25.5, p.Float("lower", 30))
	assert.Equal(t, 70.0, Params(nil).Float("upper", 70))
}

func TestFlatAndBuyAndHold(t *testing.T) {
	h := history(t, map[string][]float64{
		"AAA": {1, 2, 3},
		"BBB": {3, 2, 1},
	})

	sig, err := Flat{}.GenerateSignals(h)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, sig.Symbols())
	assert.Equal(t, []int{0, 0, 0}, row(t, sig, "AAA", 3))

	sig, err = BuyAndHold{}.GenerateSignals(h)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1}, row(t, sig, "BBB", 3))

	_, err = Flat{}.GenerateSignals(nil)
	assert.ErrorIs(t, err, market.ErrData)
}

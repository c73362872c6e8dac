package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/sim"
)

func TestMACrossoverSignals(t *testing.T) {
	h := history(t, map[string][]float64{"AAA": {1, 2, 3, 4, 5, 4, 3, 2, 1}})

	s, err := NewMACrossover(2, 3)
	require.NoError(t, err)

	sig, err := s.GenerateSignals(h)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1, 1, 1, -1, -1, -1}, row(t, sig, "AAA", h.Len()))
}

// Signals follow the adjusted close, not the traded close.
func TestMACrossoverUsesAdjustedClose(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15}
	adj := []float64{15, 14, 13, 12, 11, 10}

	var bars []market.Bar
	for i := range closes {
		bars = append(bars, market.Bar{
			Symbol: "AAA", Date: t0.AddDate(0, 0, i),
			Open: closes[i], High: closes[i], Low: closes[i], Close: closes[i], AdjClose: adj[i],
		})
	}
	h, err := market.Align(map[string][]market.Bar{"AAA": bars})
	require.NoError(t, err)

	s, err := NewMACrossover(2, 3)
	require.NoError(t, err)
	sig, err := s.GenerateSignals(h)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, -1, -1, -1, -1}, row(t, sig, "AAA", h.Len()))
}

func TestMACrossoverEqualAveragesAreFlat(t *testing.T) {
	h := history(t, map[string][]float64{"AAA": {5, 5, 5, 5, 5}})

	s, err := NewMACrossover(2, 4)
	require.NoError(t, err)
	sig, err := s.GenerateSignals(h)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, row(t, sig, "AAA", h.Len()))
}

func TestEMACrossoverTrend(t *testing.T) {
	up := []float64{10, 11, 12, 13, 14, 15, 16, 17}
	down := []float64{17, 16, 15, 14, 13, 12, 11, 10}
	h := history(t, map[string][]float64{"UP": up, "DOWN": down})

	s, err := NewEMACrossover(2, 4)
	require.NoError(t, err)
	sig, err := s.GenerateSignals(h)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 0, 1, 1, 1, 1, 1}, row(t, sig, "UP", h.Len()))
	assert.Equal(t, []int{0, 0, 0, -1, -1, -1, -1, -1}, row(t, sig, "DOWN", h.Len()))
}

// Signals computed on a truncated history must match the full run's prefix.
func TestSignalsUseNoFutureBars(t *testing.T) {
	h := history(t, map[string][]float64{
		"AAA": {10, 11, 13, 12, 9, 8, 10, 12, 15, 14, 11, 9, 8, 10},
	})

	providers := []SignalProvider{
		&MACrossover{Short: 2, Long: 4},
		&EMACrossover{Fast: 2, Slow: 3},
		&RSICross{Period: 3, Lower: 30, Upper: 70},
		&EMAADX{Fast: 2, Slow: 3, ADXPeriod: 2, Threshold: 20},
		BuyAndHold{},
	}

	for _, p := range providers {
		full, err := p.GenerateSignals(h)
		require.NoError(t, err)

		for k := 1; k <= h.Len(); k++ {
			part, err := h.Window(h.Date(0), h.Date(k-1))
			require.NoError(t, err)

			sig, err := p.GenerateSignals(part)
			require.NoError(t, err)
			assert.Equal(t, row(t, full, "AAA", k), row(t, sig, "AAA", k), "%s through bar %d", p.Name(), k-1)
		}
	}
}

// vee falls for ten bars then rises for fourteen.
func vee() []float64 {
	var px []float64
	for p := 20.0; p > 10; p-- {
		px = append(px, p)
	}
	for p := 12.0; p <= 25; p++ {
		px = append(px, p)
	}
	return px
}

func TestEMAADXEntersOnTrendingCross(t *testing.T) {
	h := history(t, map[string][]float64{"AAA": vee()})

	s, err := NewEMAADX(2, 4, 2, 25)
	require.NoError(t, err)
	sig, err := s.GenerateSignals(h)
	require.NoError(t, err)

	got := row(t, sig, "AAA", h.Len())
	// the bearish cross happens during warmup, so nothing until the turn
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, got[:10])
	assert.NotContains(t, got, -1)
	assert.Equal(t, 1, got[len(got)-1])
}

func TestEMAADXFiltersWeakTrend(t *testing.T) {
	h := history(t, map[string][]float64{"AAA": vee()})

	s, err := NewEMAADX(2, 4, 2, 100)
	require.NoError(t, err)
	sig, err := s.GenerateSignals(h)
	require.NoError(t, err)
	assert.NotContains(t, row(t, sig, "AAA", h.Len()), 1)
}

func TestEMAADXATRFilter(t *testing.T) {
	h := history(t, map[string][]float64{"AAA": vee()})

	// every bar moves by one, so ATR/close is 1/13 at the bullish cross
	tests := []struct {
		minATR  float64
		entered bool
	}{
		{0.05, true},
		{0.1, false},
	}
	for _, tt := range tests {
		s, err := NewEMAADX(2, 4, 2, 25)
		require.NoError(t, err)
		s, err = s.WithMinATR(tt.minATR)
		require.NoError(t, err)

		sig, err := s.GenerateSignals(h)
		require.NoError(t, err)
		got := row(t, sig, "AAA", h.Len())
		assert.Equal(t, tt.entered, got[len(got)-1] == 1, "min-atr %g", tt.minATR)
		assert.NotContains(t, got, -1)
	}

	s, err := New("ema-adx", Params{"min-atr": 0.02})
	require.NoError(t, err)
	assert.Equal(t, "ema-adx(10,30,14,25,atr>=0.02)", s.Name())

	_, err = New("ema-adx", Params{"min-atr": -0.1})
	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestNewEMAADXValidation(t *testing.T) {
	for _, tc := range []struct {
		fast, slow, adx int
		threshold       float64
	}{
		{0, 30, 14, 25},
		{30, 10, 14, 25},
		{10, 30, 0, 25},
		{10, 30, 14, -1},
	} {
		_, err := NewEMAADX(tc.fast, tc.slow, tc.adx, tc.threshold)
		assert.ErrorIs(t, err, sim.ErrConfiguration, "%+v", tc)
	}
}

package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/market"
)

func createTestBars() []market.Bar {
	return ohlc([][4]float64{
		{100, 105, 99, 102},
		{102, 107, 101, 105},
		{105, 108, 104, 106},
		{106, 110, 105, 108},
		{108, 112, 107, 110},
		{110, 113, 109, 111},
		{111, 115, 110, 113},
		{113, 116, 112, 114},
		{114, 118, 113, 116},
		{116, 120, 115, 118},
	})
}

func ohlc(rows [][4]float64) []market.Bar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Bar, len(rows))
	for i, r := range rows {
		out[i] = market.Bar{Symbol: "TEST", Date: t0.AddDate(0, 0, i), Open: r[0], High: r[1], Low: r[2], Close: r[3]}
	}
	return out
}

// trending rises by one every bar with a constant two point range.
func trending(n int) []market.Bar {
	rows := make([][4]float64, n)
	for i := range rows {
		p := 100 + float64(i)
		rows[i] = [4]float64{p, p + 1, p - 1, p}
	}
	return ohlc(rows)
}

func TestMA(t *testing.T) {
	ma, err := MA(createTestBars(), 5)
	require.NoError(t, err)
	// Last 5 closes: 111,113,114,116,118 => 572/5 = 114.4
	assert.InDelta(t, 114.4, ma, 0.001)

	_, err = MA(createTestBars(), 0)
	assert.Error(t, err)
	_, err = MA(createTestBars(), 11)
	assert.Error(t, err)
}

func TestEMA(t *testing.T) {
	ema, err := EMA(createTestBars(), 5)
	require.NoError(t, err)
	assert.Greater(t, ema, 110.0)
	assert.Less(t, ema, 118.0)
}

func TestATRFuncDetailed(t *testing.T) {
	bars := ohlc([][4]float64{
		{9, 10, 8, 9},
		{10, 11, 9, 10},
		{11, 12, 10, 11},
		{10, 11, 9, 10},
		{11, 12, 10, 11},
		{12, 13, 11, 12},
	})
	atr, err := ATRFunc(bars, 3)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, atr, 1e-9)

	_, err = ATRFunc(bars[:3], 3)
	assert.Error(t, err)
}

func TestTrueRange(t *testing.T) {
	current := market.Bar{High: 110, Low: 100, Close: 105}

	assert.Equal(t, 10.0, trueRange(current, market.Bar{Close: 104}))
	// gap up: previous close below the low
	assert.Equal(t, 15.0, trueRange(current, market.Bar{Close: 95}))
	// gap down: previous close above the high
	assert.Equal(t, 12.0, trueRange(current, market.Bar{Close: 112}))
}

func TestATRStreamingMatchesBatch(t *testing.T) {
	bars := createTestBars()
	atr := NewATR(4)
	assert.Equal(t, "ATR(4)", atr.Name())
	assert.Equal(t, 5, atr.Warmup())

	for i, b := range bars {
		atr.Update(b)
		if i+1 < atr.Warmup() {
			assert.False(t, atr.Ready(), "bar %d", i)
			assert.Zero(t, atr.Value())
		}
	}
	require.True(t, atr.Ready())

	want, err := ATRFunc(bars, 4)
	require.NoError(t, err)
	assert.InDelta(t, want, atr.Value(), 1e-9)

	atr.Reset()
	assert.False(t, atr.Ready())
}

func TestADXTrending(t *testing.T) {
	adx := NewADX(5)
	assert.Equal(t, "ADX(5)", adx.Name())
	assert.Equal(t, 11, adx.Warmup())

	bars := trending(20)
	for i, b := range bars {
		adx.Update(b)
		if i+1 < adx.Warmup() {
			assert.False(t, adx.Ready(), "bar %d", i)
		} else {
			assert.True(t, adx.Ready(), "bar %d", i)
		}
	}
	// only positive directional movement: DX is 100 every bar
	assert.InDelta(t, 100.0, adx.Value(), 1e-9)

	adx.Reset()
	assert.False(t, adx.Ready())
	assert.Zero(t, adx.Value())
	assert.Equal(t, 5, adx.Period)
}

func TestADXFlat(t *testing.T) {
	values, ready := Series(NewADX(3), closes(10, 10, 10, 10, 10, 10, 10, 10, 10))
	assert.False(t, ready[5])
	assert.True(t, ready[6])
	assert.Zero(t, values[8])
}

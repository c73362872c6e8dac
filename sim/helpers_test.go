package sim

import (
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/backtester/market"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return t0.AddDate(0, 0, i) }

// series is opens and closes for one symbol; nil closes means close == open.
type series struct {
	opens  []float64
	closes []float64
}

func flat(px float64, n int) series {
	s := series{opens: make([]float64, n)}
	for i := range s.opens {
		s.opens[i] = px
	}
	return s
}

func newHistory(t *testing.T, in map[string]series) *market.History {
	t.Helper()

	raw := make(map[string][]market.Bar, len(in))
	for sym, s := range in {
		bars := make([]market.Bar, len(s.opens))
		for i, o := range s.opens {
			c := o
			if s.closes != nil {
				c = s.closes[i]
			}
			bars[i] = market.Bar{
				Symbol: sym,
				Date:   day(i),
				Open:   o,
				High:   math.Max(o, c),
				Low:    math.Min(o, c),
				Close:  c,
			}
		}
		raw[sym] = bars
	}
	h, err := market.Align(raw)
	require.NoError(t, err)
	return h
}

func newSignals(t *testing.T, h *market.History, rows map[string][]int) *market.Signals {
	t.Helper()

	s := market.NewSignals(h.Dates())
	for sym, row := range rows {
		in := make([]market.Intent, len(row))
		for i, v := range row {
			in[i] = market.Intent(v)
		}
		require.NoError(t, s.SetSeries(sym, in))
	}
	return s
}

func zeroCosts() CostModel { return CostModel{} }

package backtest

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

func day(i int) time.Time { return time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC) }

// newHistory builds bars whose open equals close.
func newHistory(t *testing.T, px map[string][]float64) *market.History {
	t.Helper()

	raw := make(map[string][]market.Bar, len(px))
	for sym, prices := range px {
		for i, p := range prices {
			raw[sym] = append(raw[sym], market.Bar{
				Symbol: sym, Date: day(i), Open: p, High: p, Low: p, Close: p,
			})
		}
	}
	h, err := market.Align(raw)
	require.NoError(t, err)
	return h
}

func twoSymbols(t *testing.T) *market.History {
	return newHistory(t, map[string][]float64{
		"AAA": {10, 10, 12, 12},
		"BBB": {20, 20, 20, 25},
	})
}

func newEngine(t *testing.T, capital float64) *sim.Engine {
	t.Helper()
	e, err := sim.NewEngine(sim.Config{InitialCapital: capital})
	require.NoError(t, err)
	return e
}

// memJournal keeps recorded runs in memory.
type memJournal struct {
	runs []journal.Run
	err  error
}

func (m *memJournal) RecordRun(r journal.Run) error {
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, r)
	return nil
}

func (m *memJournal) Close() error { return nil }

type brokenStrategy struct{}

func (brokenStrategy) Name() string { return "broken" }

func (brokenStrategy) GenerateSignals(*market.History) (*market.Signals, error) {
	return nil, errors.New("strategy error")
}

func TestRunnerValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := twoSymbols(t)

	t.Run("missing engine", func(t *testing.T) {
		t.Parallel()

		r := &Runner{Strategy: strategies.Flat{}}
		_, err := r.Run(ctx, h)
		require.Error(t, err)
		assert.Equal(t, "backtest: Engine is required", err.Error())
	})

	t.Run("missing strategy", func(t *testing.T) {
		t.Parallel()

		r := &Runner{Engine: newEngine(t, 1000)}
		_, err := r.Run(ctx, h)
		require.Error(t, err)
		assert.Equal(t, "backtest: Strategy is required", err.Error())
	})
}

func TestRunnerRun(t *testing.T) {
	t.Parallel()

	h := twoSymbols(t)
	j := &memJournal{}
	r := &Runner{
		Engine:   newEngine(t, 2000),
		Strategy: strategies.BuyAndHold{},
		Params:   map[string]float64{"x": 1},
		Dataset:  "testdata",
		Journal:  j,
		IDs:      id.NewGenerator(7),
	}

	res, err := r.Run(context.Background(), h)
	require.NoError(t, err)

	assert.True(t, id.Valid(res.RunID))
	assert.Equal(t, "buy-and-hold", res.Strategy)
	assert.Equal(t, []string{"AAA", "BBB"}, res.Symbols)
	assert.True(t, day(0).Equal(res.Start))
	assert.True(t, day(3).Equal(res.End))

	require.Len(t, res.Engine.Fills, 2)
	require.Len(t, res.Engine.Equity, 3)
	assert.InDelta(t, 2450.0, res.FinalEquity(), 1e-9)
	assert.InDelta(t, 0.225, res.Metrics.TotalReturn, 1e-12)
	assert.Zero(t, res.Metrics.Trades, "positions are never closed")
	assert.True(t, math.IsNaN(res.Metrics.ProfitFactor))
	assert.Len(t, res.Drawdowns, 3)
	assert.NoError(t, CheckConsistency(h, res.Engine))

	require.Len(t, j.runs, 1)
	rec := j.runs[0]
	assert.Equal(t, res.RunID, rec.RunID)
	assert.Equal(t, "testdata", rec.Dataset)
	assert.Equal(t, 2000.0, rec.InitialCapital)
	assert.InDelta(t, 450.0, rec.NetPL(), 1e-9)
	assert.Equal(t, res.Engine.Fills, rec.Fills)
	assert.Equal(t, map[string]float64{"x": 1}, rec.Params)

	r.Params["x"] = 2
	assert.Equal(t, 1.0, res.Params["x"], "params are copied")
}

func TestRunnerMatchesEngine(t *testing.T) {
	t.Parallel()

	h := newHistory(t, map[string][]float64{
		"AAA": {10, 11, 9, 12, 13, 12, 14, 15, 13, 16, 17, 18},
	})
	strat, err := strategies.NewMACrossover(2, 4)
	require.NoError(t, err)

	e, err := sim.NewEngine(sim.Config{InitialCapital: 10_000, Costs: sim.DefaultCosts()})
	require.NoError(t, err)

	res, err := (&Runner{Engine: e, Strategy: strat}).Run(context.Background(), h)
	require.NoError(t, err)

	sig, err := strat.GenerateSignals(h)
	require.NoError(t, err)
	direct, err := e.Run(h, sig)
	require.NoError(t, err)

	assert.Equal(t, direct.Equity, res.Engine.Equity)
	assert.Equal(t, direct.Fills, res.Engine.Fills)
	want := metrics.Calculator{InitialEquity: 10_000}.Compute(direct.Equity, direct.Fills)
	assert.Equal(t, want.TotalReturn, res.Metrics.TotalReturn)
	assert.Equal(t, want.Sharpe, res.Metrics.Sharpe)
	assert.Equal(t, want.Trades, res.Metrics.Trades)
	assert.NoError(t, CheckConsistency(h, res.Engine))
}

// The first traded bar moves from open 10 to close 20, and its costs are
// charged; both must show up in the reported return.
func TestRunnerMeasuresFromInitialCapital(t *testing.T) {
	t.Parallel()

	raw := map[string][]market.Bar{"AAA": {
		{Symbol: "AAA", Date: day(0), Open: 10, High: 10, Low: 10, Close: 10},
		{Symbol: "AAA", Date: day(1), Open: 10, High: 20, Low: 10, Close: 20},
		{Symbol: "AAA", Date: day(2), Open: 20, High: 20, Low: 20, Close: 20},
	}}
	h, err := market.Align(raw)
	require.NoError(t, err)

	e, err := sim.NewEngine(sim.Config{InitialCapital: 1000, Costs: sim.DefaultCosts()})
	require.NoError(t, err)

	res, err := (&Runner{Engine: e, Strategy: strategies.BuyAndHold{}, PeriodsPerYear: 252}).Run(context.Background(), h)
	require.NoError(t, err)

	require.Len(t, res.Engine.Fills, 1)
	final := res.FinalEquity()
	assert.Greater(t, final, 1900.0)
	assert.InDelta(t, final/1000-1, res.Metrics.TotalReturn, 1e-12)
	assert.InEpsilon(t, math.Pow(final/1000, 252.0/2)-1, res.Metrics.CAGR, 1e-9)
	assert.Greater(t, res.Metrics.Sharpe, 0.0)

	var out strings.Builder
	PrintResult(&out, res)
	assert.Contains(t, out.String(), "Start Equity:  1,000.00")
	assert.Contains(t, out.String(), "Return:        98.")
}

func TestRunnerVerifyBeforeRecord(t *testing.T) {
	t.Parallel()

	h := twoSymbols(t)

	j := &memJournal{}
	r := &Runner{
		Engine:   newEngine(t, 2000),
		Strategy: strategies.BuyAndHold{},
		Journal:  j,
		Verify: func(*market.History, sim.Result) error {
			return errors.New("cash went negative")
		},
	}
	res, err := r.Run(context.Background(), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consistency check failed: cash went negative")
	assert.NotEmpty(t, res.RunID, "the result is still returned")
	assert.Empty(t, j.runs)

	r.Verify = CheckConsistency
	_, err = r.Run(context.Background(), h)
	require.NoError(t, err)
	assert.Len(t, j.runs, 1)
}

func TestRunnerErrors(t *testing.T) {
	t.Parallel()

	h := twoSymbols(t)

	t.Run("strategy error", func(t *testing.T) {
		t.Parallel()

		r := &Runner{Engine: newEngine(t, 1000), Strategy: brokenStrategy{}}
		_, err := r.Run(context.Background(), h)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "strategy error")
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := &Runner{Engine: newEngine(t, 1000), Strategy: strategies.Flat{}}
		_, err := r.Run(ctx, h)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("journal error keeps result", func(t *testing.T) {
		t.Parallel()

		j := &memJournal{err: errors.New("disk full")}
		r := &Runner{Engine: newEngine(t, 1000), Strategy: strategies.Flat{}, Journal: j}
		res, err := r.Run(context.Background(), h)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.NotEmpty(t, res.RunID)
		assert.Len(t, res.Engine.Equity, 3)
	})
}

func TestCheckConsistencyDetectsTampering(t *testing.T) {
	t.Parallel()

	h := twoSymbols(t)
	run := func() sim.Result {
		res, err := (&Runner{Engine: newEngine(t, 2000), Strategy: strategies.BuyAndHold{}}).
			Run(context.Background(), h)
		require.NoError(t, err)
		return res.Engine
	}

	res := run()
	res.Equity[1].Equity += 5
	err := CheckConsistency(h, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recomputed")

	res = run()
	res.Fills[0].CashDelta -= 10_000
	err = CheckConsistency(h, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cash")

	res = run()
	res.Equity = res.Equity[:2]
	err = CheckConsistency(h, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "equity curve has 2 points")
}

func TestPrintResult(t *testing.T) {
	t.Parallel()

	r := Result{
		RunID:    "01J0000000000000000000000A",
		Strategy: "ma-crossover(50,200)",
		Symbols:  []string{"AAA", "BBB"},
		Start:    day(0),
		End:      day(9),
		Engine: sim.Result{
			InitialCapital: 1_234_567,
			Equity:         []sim.EquityPoint{{Date: day(9), Equity: 1_300_000}},
		},
		Metrics: metrics.Report{
			TotalReturn:  0.053,
			Trades:       1,
			Wins:         1,
			WinRate:      1,
			ProfitFactor: math.Inf(1),
		},
		Trades: []metrics.RoundTrip{{
			Symbol: "AAA", Side: metrics.SideLong, Quantity: 1500,
			EntryDate: day(1), ExitDate: day(5), PnL: 65_433,
		}},
	}

	var b strings.Builder
	PrintResult(&b, r)
	out := b.String()

	assert.Contains(t, out, "Strategy:      ma-crossover(50,200)")
	assert.Contains(t, out, "Symbols:       AAA, BBB")
	assert.Contains(t, out, "Start:         2024-03-01")
	assert.Contains(t, out, "Start Equity:  1,234,567.00")
	assert.Contains(t, out, "Net P/L:       65,433.00")
	assert.Contains(t, out, "Return:        5.30%")
	assert.Contains(t, out, "Profit Factor: inf")
	assert.Contains(t, out, "Win Rate:      100.00%")
	assert.Contains(t, out, "65,433.00")
	assert.Contains(t, out, "2024-03-02 -> 2024-03-06")
}

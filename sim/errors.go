package sim

import (
	"errors"

	"github.com/rustyeddy/backtester/market"
)

var (
	// ErrData is returned for empty, misaligned or invalid price/signal
	// input. It aborts a run before any state is touched.
	ErrData = market.ErrData

	// ErrSolvency means a fill would have left cash negative. The engine
	// sizes fills so this cannot happen; seeing it indicates a defect.
	ErrSolvency = errors.New("solvency error")

	// ErrConfiguration covers non-positive capital and out-of-range cost
	// fractions.
	ErrConfiguration = errors.New("configuration error")
)

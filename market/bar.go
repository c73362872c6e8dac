package market

import (
	"errors"
	"time"
)

// ErrData marks malformed price or signal input: empty or misaligned
// series, non-positive prices, unknown intents.
var ErrData = errors.New("data error")

// Bar is one daily OHLCV record for a single symbol.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	// AdjClose is the split and dividend adjusted close, 0 when unknown.
	AdjClose float64
}

// Price is what strategies compute signals on: the adjusted close when
// known, else Close. Fills and marks always use Open and Close.
func (b Bar) Price() float64 {
	if b.AdjClose > 0 {
		return b.AdjClose
	}
	return b.Close
}

// Valid reports whether the bar's open and close are usable prices.
func (b Bar) Valid() bool {
	return b.Open > 0 && b.Close > 0
}

// Day truncates t to midnight UTC so bars from different sources share
// a calendar key.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

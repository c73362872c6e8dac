package sim

import (
	"time"

	"github.com/rustyeddy/backtester/market"
)

// Fill is one executed trade. Quantity is the signed change in position:
// positive buys, negative sells. CashDelta includes principal and costs.
type Fill struct {
	Symbol     string        `json:"symbol"`
	Date       time.Time     `json:"date"`
	Bar        int           `json:"bar"`
	Quantity   int64         `json:"quantity"`
	Price      float64       `json:"price"`
	Commission float64       `json:"commission"`
	Slippage   float64       `json:"slippage"`
	CashDelta  float64       `json:"cash_delta"`
	Intent     market.Intent `json:"intent"`
}

func (f Fill) Side() string {
	if f.Quantity < 0 {
		return "SELL"
	}
	return "BUY"
}

// Notional is |quantity| * price.
func (f Fill) Notional() float64 {
	return float64(abs64(f.Quantity)) * f.Price
}

// Costs is commission plus slippage.
func (f Fill) Costs() float64 {
	return f.Commission + f.Slippage
}

func newFill(costs CostModel, sym string, date time.Time, bar int, qty int64, price float64, in market.Intent) (Fill, error) {
	notional := float64(abs64(qty)) * price
	comm, slip, err := costs.Quote(notional)
	if err != nil {
		return Fill{}, err
	}
	return Fill{
		Symbol:     sym,
		Date:       date,
		Bar:        bar,
		Quantity:   qty,
		Price:      price,
		Commission: comm,
		Slippage:   slip,
		CashDelta:  -float64(qty)*price - comm - slip,
		Intent:     in,
	}, nil
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

func sign64(x int64) int64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

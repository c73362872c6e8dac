package metrics

import (
	"time"

	"github.com/rustyeddy/backtester/sim"
)

const (
	SideLong  = "LONG"
	SideShort = "SHORT"
)

// RoundTrip is a position opened and later fully closed.
//
// For a long trip EntryAmount is what was paid including costs and
// ExitAmount what was received net of costs; for a short trip the roles
// swap. PnL is always net of commission and slippage.
type RoundTrip struct {
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Quantity    int64     `json:"quantity"`
	EntryDate   time.Time `json:"entry_date"`
	ExitDate    time.Time `json:"exit_date"`
	EntryBar    int       `json:"entry_bar"`
	ExitBar     int       `json:"exit_bar"`
	EntryAmount float64   `json:"entry_amount"`
	ExitAmount  float64   `json:"exit_amount"`
	PnL         float64   `json:"pnl"`
	Bars        int       `json:"bars"`
}

type openTrip struct {
	pos  int64
	trip RoundTrip
}

// RoundTrips rebuilds closed round trips from a trade log. Fills are taken
// in log order per symbol. A fill that crosses zero closes the current
// trip and opens the next one, with its costs split per share. Trips
// still open at the end of the log are not returned.
func RoundTrips(fills []sim.Fill) []RoundTrip {
	var out []RoundTrip
	open := make(map[string]*openTrip)

	for _, f := range fills {
		if f.Quantity == 0 {
			continue
		}
		st, ok := open[f.Symbol]
		if !ok {
			st = &openTrip{}
			open[f.Symbol] = st
		}

		perShare := f.Costs() / float64(abs(f.Quantity))
		remaining := f.Quantity

		// close against the open position first
		if st.pos != 0 && sign(st.pos) != sign(remaining) {
			n := min(abs(remaining), abs(st.pos))
			st.exit(n, f.Price, perShare)
			st.pos += sign(remaining) * n
			remaining -= sign(remaining) * n

			if st.pos == 0 {
				t := st.trip
				t.ExitDate = f.Date
				t.ExitBar = f.Bar
				t.Bars = f.Bar - t.EntryBar
				if t.Side == SideLong {
					t.PnL = t.ExitAmount - t.EntryAmount
				} else {
					t.PnL = t.EntryAmount - t.ExitAmount
				}
				out = append(out, t)
				st.trip = RoundTrip{}
			}
		}

		if remaining != 0 {
			if st.pos == 0 {
				side := SideLong
				if remaining < 0 {
					side = SideShort
				}
				st.trip = RoundTrip{
					Symbol:    f.Symbol,
					Side:      side,
					EntryDate: f.Date,
					EntryBar:  f.Bar,
				}
			}
			st.enter(abs(remaining), f.Price, perShare)
			st.pos += remaining
		}
	}
	return out
}

func (o *openTrip) enter(n int64, price, perShare float64) {
	o.trip.Quantity += n
	if o.trip.Side == SideLong {
		o.trip.EntryAmount += float64(n) * (price + perShare)
	} else {
		o.trip.EntryAmount += float64(n) * (price - perShare)
	}
}

func (o *openTrip) exit(n int64, price, perShare float64) {
	if o.trip.Side == SideLong {
		o.trip.ExitAmount += float64(n) * (price - perShare)
	} else {
		o.trip.ExitAmount += float64(n) * (price + perShare)
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int64) int64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

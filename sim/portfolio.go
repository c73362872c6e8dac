package sim

import (
	"fmt"
	"sort"
	"time"
)

// Position is an open holding in one symbol. Quantity is negative for a
// short. A position with zero quantity does not exist in the ledger.
type Position struct {
	Symbol    string    `json:"symbol"`
	Quantity  int64     `json:"quantity"`
	AvgPrice  float64   `json:"avg_price"`
	EntryDate time.Time `json:"entry_date"`
	EntryBar  int       `json:"entry_bar"`
}

// Value marks the position at price.
func (p Position) Value(price float64) float64 {
	return float64(p.Quantity) * price
}

// EquityPoint is the end-of-day valuation of the portfolio.
type EquityPoint struct {
	Date     time.Time `json:"date"`
	Cash     float64   `json:"cash"`
	Holdings float64   `json:"holdings"`
	Equity   float64   `json:"equity"`
}

// Portfolio is the ledger of one run: cash plus open positions. It is a
// value; Apply returns an updated copy and never mutates the receiver.
type Portfolio struct {
	Cash      float64             `json:"cash"`
	Positions map[string]Position `json:"positions"`
	AsOf      time.Time           `json:"as_of"`
}

func NewPortfolio(cash float64) Portfolio {
	return Portfolio{
		Cash:      cash,
		Positions: make(map[string]Position),
	}
}

// Quantity returns the signed holding in sym (zero when flat).
func (p Portfolio) Quantity(sym string) int64 {
	return p.Positions[sym].Quantity
}

// Apply books a fill and returns the new ledger state. A fill that would
// leave cash negative is rejected with ErrSolvency.
func (p Portfolio) Apply(f Fill) (Portfolio, error) {
	cash := p.Cash + f.CashDelta
	if cash < 0 {
		return p, fmt.Errorf("%w: %s %d %s on %s leaves cash at %.6f",
			ErrSolvency, f.Side(), abs64(f.Quantity), f.Symbol,
			f.Date.Format(time.DateOnly), cash)
	}

	next := Portfolio{
		Cash:      cash,
		Positions: make(map[string]Position, len(p.Positions)+1),
		AsOf:      f.Date,
	}
	for sym, pos := range p.Positions {
		next.Positions[sym] = pos
	}

	cur := next.Positions[f.Symbol]
	qty := cur.Quantity + f.Quantity

	switch {
	case qty == 0:
		delete(next.Positions, f.Symbol)
		return next, nil

	case cur.Quantity == 0 || sign64(qty) != sign64(cur.Quantity):
		// fresh entry, or flipped through zero
		cur = Position{
			Symbol:    f.Symbol,
			Quantity:  qty,
			AvgPrice:  f.Price,
			EntryDate: f.Date,
			EntryBar:  f.Bar,
		}

	case sign64(f.Quantity) == sign64(cur.Quantity):
		held := float64(abs64(cur.Quantity))
		added := float64(abs64(f.Quantity))
		cur.AvgPrice = (cur.AvgPrice*held + f.Price*added) / (held + added)
		cur.Quantity = qty

	default:
		cur.Quantity = qty
	}

	next.Positions[f.Symbol] = cur
	return next, nil
}

// Holdings is the mark-to-market value of all open positions.
func (p Portfolio) Holdings(closes map[string]float64) (float64, error) {
	syms := make([]string, 0, len(p.Positions))
	for sym := range p.Positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	total := 0.0
	for _, sym := range syms {
		px, ok := closes[sym]
		if !ok {
			return 0, fmt.Errorf("%w: no close for held symbol %s", ErrData, sym)
		}
		total += p.Positions[sym].Value(px)
	}
	return total, nil
}

// MarkToMarket values the portfolio at the given closes. It does not
// change the ledger.
func (p Portfolio) MarkToMarket(date time.Time, closes map[string]float64) (EquityPoint, error) {
	h, err := p.Holdings(closes)
	if err != nil {
		return EquityPoint{}, err
	}
	return EquityPoint{
		Date:     date,
		Cash:     p.Cash,
		Holdings: h,
		Equity:   p.Cash + h,
	}, nil
}

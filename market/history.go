package market

import (
	"fmt"
	"sort"
	"time"
)

// History is an aligned, read-only price history: every symbol has a bar
// on every date of the index. Build it with Align.
type History struct {
	dates   []time.Time
	symbols []string
	bars    map[string][]Bar // parallel to dates
}

// Align inner-joins the per-symbol series on their calendar. Each series
// must have strictly increasing dates and positive open/close prices.
// The resulting index is ascending and non-empty.
func Align(series map[string][]Bar) (*History, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no symbols", ErrData)
	}

	symbols := make([]string, 0, len(series))
	for sym := range series {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	counts := make(map[time.Time]int)
	byDay := make(map[string]map[time.Time]Bar, len(series))

	for _, sym := range symbols {
		bars := series[sym]
		if len(bars) == 0 {
			return nil, fmt.Errorf("%w: %s has no bars", ErrData, sym)
		}
		idx := make(map[time.Time]Bar, len(bars))
		var prev time.Time
		for i, b := range bars {
			d := Day(b.Date)
			if i > 0 && !d.After(prev) {
				return nil, fmt.Errorf("%w: %s dates not strictly increasing at %s",
					ErrData, sym, d.Format(time.DateOnly))
			}
			if !b.Valid() {
				return nil, fmt.Errorf("%w: %s non-positive price on %s",
					ErrData, sym, d.Format(time.DateOnly))
			}
			prev = d
			b.Symbol = sym
			b.Date = d
			idx[d] = b
			counts[d]++
		}
		byDay[sym] = idx
	}

	var dates []time.Time
	for d, n := range counts {
		if n == len(symbols) {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: symbols share no common dates", ErrData)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	h := &History{
		dates:   dates,
		symbols: symbols,
		bars:    make(map[string][]Bar, len(symbols)),
	}
	for _, sym := range symbols {
		row := make([]Bar, len(dates))
		for i, d := range dates {
			row[i] = byDay[sym][d]
		}
		h.bars[sym] = row
	}
	return h, nil
}

// Len returns the number of aligned dates.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.dates)
}

// Dates returns a copy of the date index.
func (h *History) Dates() []time.Time {
	return append([]time.Time(nil), h.dates...)
}

// Date returns the i-th date of the index.
func (h *History) Date(i int) time.Time { return h.dates[i] }

// Symbols returns the tracked symbols in lexicographic order.
func (h *History) Symbols() []string {
	return append([]string(nil), h.symbols...)
}

// Bar returns the bar for sym at index i. ok is false for an unknown symbol.
func (h *History) Bar(i int, sym string) (Bar, bool) {
	row, ok := h.bars[sym]
	if !ok || i < 0 || i >= len(row) {
		return Bar{}, false
	}
	return row[i], true
}

// Series returns a copy of sym's aligned bars.
func (h *History) Series(sym string) []Bar {
	return append([]Bar(nil), h.bars[sym]...)
}

// Closes returns symbol -> close at index i.
func (h *History) Closes(i int) map[string]float64 {
	out := make(map[string]float64, len(h.symbols))
	for _, sym := range h.symbols {
		out[sym] = h.bars[sym][i].Close
	}
	return out
}

// Window returns a new history restricted to dates in [from, to]. Zero
// bounds are open.
func (h *History) Window(from, to time.Time) (*History, error) {
	lo, hi := 0, len(h.dates)
	for lo < hi && !from.IsZero() && h.dates[lo].Before(Day(from)) {
		lo++
	}
	for hi > lo && !to.IsZero() && h.dates[hi-1].After(Day(to)) {
		hi--
	}
	if lo == hi {
		return nil, fmt.Errorf("%w: no dates between %s and %s", ErrData,
			from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	w := &History{
		dates:   append([]time.Time(nil), h.dates[lo:hi]...),
		symbols: h.Symbols(),
		bars:    make(map[string][]Bar, len(h.symbols)),
	}
	for _, sym := range h.symbols {
		w.bars[sym] = append([]Bar(nil), h.bars[sym][lo:hi]...)
	}
	return w, nil
}

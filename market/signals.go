package market

import (
	"fmt"
	"sort"
	"time"
)

// Intent is a discrete position target: short, flat or long.
type Intent int8

const (
	Short Intent = -1
	Flat  Intent = 0
	Long  Intent = +1
)

func (i Intent) Valid() bool { return i >= Short && i <= Long }

func (i Intent) String() string {
	switch i {
	case Short:
		return "short"
	case Flat:
		return "flat"
	case Long:
		return "long"
	}
	return fmt.Sprintf("Intent(%d)", int8(i))
}

// Signals is a per-date, per-symbol matrix of intents. The intent stored
// at index t may only use information available up to the close of bar t.
type Signals struct {
	dates []time.Time
	rows  map[string][]Intent
}

// NewSignals returns an all-flat matrix over dates.
func NewSignals(dates []time.Time) *Signals {
	return &Signals{
		dates: append([]time.Time(nil), dates...),
		rows:  make(map[string][]Intent),
	}
}

// Len returns the number of dates in the index.
func (s *Signals) Len() int {
	if s == nil {
		return 0
	}
	return len(s.dates)
}

func (s *Signals) Dates() []time.Time {
	return append([]time.Time(nil), s.dates...)
}

// Set stores intent for sym at index i.
func (s *Signals) Set(sym string, i int, in Intent) {
	row, ok := s.rows[sym]
	if !ok {
		row = make([]Intent, len(s.dates))
		s.rows[sym] = row
	}
	row[i] = in
}

// SetSeries replaces sym's whole row. The slice length must match the
// date index.
func (s *Signals) SetSeries(sym string, intents []Intent) error {
	if len(intents) != len(s.dates) {
		return fmt.Errorf("%w: %s has %d intents for %d dates",
			ErrData, sym, len(intents), len(s.dates))
	}
	s.rows[sym] = append([]Intent(nil), intents...)
	return nil
}

// At returns the intent for sym at index i; unknown symbols are flat.
func (s *Signals) At(i int, sym string) Intent {
	row, ok := s.rows[sym]
	if !ok {
		return Flat
	}
	return row[i]
}

// Symbols lists symbols with an explicit row, sorted.
func (s *Signals) Symbols() []string {
	out := make([]string, 0, len(s.rows))
	for sym := range s.rows {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// SameIndex reports whether s is defined over exactly the given dates.
func (s *Signals) SameIndex(dates []time.Time) bool {
	if len(s.dates) != len(dates) {
		return false
	}
	for i := range dates {
		if !s.dates[i].Equal(dates[i]) {
			return false
		}
	}
	return true
}

// Validate checks every stored intent is in {-1, 0, +1}.
func (s *Signals) Validate() error {
	for _, sym := range s.Symbols() {
		for i, in := range s.rows[sym] {
			if !in.Valid() {
				return fmt.Errorf("%w: %s intent %d at %s", ErrData, sym, in,
					s.dates[i].Format(time.DateOnly))
			}
		}
	}
	return nil
}

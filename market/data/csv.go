// Package data loads daily price files into market bars.
package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/backtester/market"
)

// Columns is the header written by WriteCSV.
var Columns = []string{"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume", "Symbol"}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"01/02/2006",
	"20060102",
}

// LoadCSV reads one price file. The symbol comes from a Symbol column
// when present, otherwise from the file name (AAPL.csv.xz -> AAPL).
func LoadCSV(path string) ([]market.Bar, error) {
	r, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	defer r.Close()

	bars, err := ReadCSV(r, baseName(path))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return bars, nil
}

// ReadCSV parses Date,Open,High,Low,Close[,Adj Close][,Volume][,Symbol]
// rows in any column order. Header names are case insensitive; Close
// falls back to Adj Close when missing.
//
// Rows are returned sorted by date with duplicates dropped (the first
// row wins). Rows whose open or close is missing, unparsable or not
// positive are skipped; an unparsable date is an error.
func ReadCSV(r io.Reader, symbol string) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", market.ErrData)
		}
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	closeCol := "close"
	if _, ok := idx[closeCol]; !ok {
		closeCol = "adj close"
	}
	var missing []string
	for _, col := range []string{"date", "open", closeCol} {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %v", market.ErrData, missing)
	}

	field := func(rec []string, col string) (string, bool) {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}
	num := func(rec []string, col string) float64 {
		s, ok := field(rec, col)
		if !ok || s == "" {
			return math.NaN()
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return v
	}

	var bars []market.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", market.ErrData, line, err)
		}

		ds, _ := field(rec, "date")
		date, err := parseDate(ds)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", market.ErrData, line, err)
		}

		b := market.Bar{
			Symbol:   symbol,
			Date:     date,
			Open:     num(rec, "open"),
			High:     num(rec, "high"),
			Low:      num(rec, "low"),
			Close:    num(rec, closeCol),
			Volume:   num(rec, "volume"),
			AdjClose: num(rec, "adj close"),
		}
		if !(b.Open > 0) || !(b.Close > 0) {
			continue
		}
		if math.IsNaN(b.High) {
			b.High = math.Max(b.Open, b.Close)
		}
		if math.IsNaN(b.Low) {
			b.Low = math.Min(b.Open, b.Close)
		}
		if math.IsNaN(b.Volume) {
			b.Volume = 0
		}
		if !(b.AdjClose > 0) {
			b.AdjClose = b.Close
		}
		if s, ok := field(rec, "symbol"); ok && s != "" {
			b.Symbol = s
		}
		bars = append(bars, b)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no valid rows", market.ErrData)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	out := bars[:1]
	for _, b := range bars[1:] {
		if !b.Date.Equal(out[len(out)-1].Date) {
			out = append(out, b)
		}
	}

	// a Symbol column names the whole file
	for i := range out {
		out[i].Symbol = out[0].Symbol
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return market.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}

// WriteCSV writes bars with the Columns header. Adj Close falls back to
// Close when unknown.
func WriteCSV(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Date.Format(time.DateOnly),
			f(b.Open),
			f(b.High),
			f(b.Low),
			f(b.Close),
			f(b.Price()),
			f(b.Volume),
			b.Symbol,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

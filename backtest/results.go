package backtest

import (
	"io"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrintResult writes a human readable summary of r. Money is printed with
// thousands separators.
func PrintResult(w io.Writer, r Result) {
	p := message.NewPrinter(language.English)
	m := r.Metrics
	initial := r.Engine.InitialCapital

	p.Fprintln(w, "==================================================")
	p.Fprintln(w, " Backtest Result")
	p.Fprintln(w, "==================================================")

	p.Fprintf(w, "Run ID:        %s\n", r.RunID)
	p.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	p.Fprintf(w, "Symbols:       %s\n", strings.Join(r.Symbols, ", "))

	p.Fprintln(w)
	p.Fprintln(w, "Period")
	p.Fprintln(w, "--------------------------------------------------")
	p.Fprintf(w, "Start:         %s\n", r.Start.Format(time.DateOnly))
	p.Fprintf(w, "End:           %s\n", r.End.Format(time.DateOnly))
	p.Fprintf(w, "Bars:          %d\n", len(r.Engine.Equity)+1)

	p.Fprintln(w)
	p.Fprintln(w, "Trade Statistics")
	p.Fprintln(w, "--------------------------------------------------")
	p.Fprintf(w, "Fills:         %d\n", len(r.Engine.Fills))
	p.Fprintf(w, "Trades:        %d\n", m.Trades)
	p.Fprintf(w, "Wins:          %d\n", m.Wins)
	p.Fprintf(w, "Losses:        %d\n", m.Losses)
	p.Fprintf(w, "Win Rate:      %.2f%%\n", m.WinRate*100)
	p.Fprintf(w, "Profit Factor: %s\n", ratio(m.ProfitFactor))
	p.Fprintf(w, "Avg Duration:  %.1f bars\n", m.AvgDuration)

	p.Fprintln(w)
	p.Fprintln(w, "Account Performance")
	p.Fprintln(w, "--------------------------------------------------")
	p.Fprintf(w, "Start Equity:  %.2f\n", initial)
	p.Fprintf(w, "End Equity:    %.2f\n", r.FinalEquity())
	p.Fprintf(w, "Net P/L:       %.2f\n", r.FinalEquity()-initial)
	p.Fprintf(w, "Return:        %.2f%%\n", m.TotalReturn*100)
	p.Fprintf(w, "CAGR:          %.2f%%\n", m.CAGR*100)
	p.Fprintf(w, "Sharpe:        %.4f\n", m.Sharpe)
	p.Fprintf(w, "Max Drawdown:  %.2f%%\n", m.MaxDrawdown*100)

	if len(r.Trades) > 0 {
		p.Fprintln(w)
		p.Fprintln(w, "Last Trades")
		p.Fprintln(w, "--------------------------------------------------")
		from := max(len(r.Trades)-5, 0)
		for _, t := range r.Trades[from:] {
			p.Fprintf(w, "%-6s %-5s %8d  %s -> %s  %12.2f\n",
				t.Symbol, t.Side, t.Quantity,
				t.EntryDate.Format(time.DateOnly), t.ExitDate.Format(time.DateOnly), t.PnL)
		}
	}

	p.Fprintln(w)
}

func ratio(v float64) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 1):
		return "inf"
	}
	return message.NewPrinter(language.English).Sprintf("%.4f", v)
}

package journal

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/rustyeddy/backtester/metrics"
)

var runOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"ratio": func(x float64) string {
		switch {
		case math.IsNaN(x):
			return "n/a"
		case math.IsInf(x, 1):
			return "inf"
		}
		return fmt.Sprintf("%.2f", x)
	},
	"join":   strings.Join,
	"trades": FormatTripsOrg,
}

var runOrg = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

// WriteRunOrg renders r as an Org-mode entry.
func WriteRunOrg(w io.Writer, r Run) error {
	return runOrg.Execute(w, r)
}

const RunOrgTemplate = `* BACKTEST: {{.Strategy}} {{join .Symbols " "}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:SYMBOLS:     {{join .Symbols ","}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_BAL:   {{printf "%.2f" .InitialCapital}}
:END_BAL:     {{printf "%.2f" .FinalEquity}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:RETURN_PCT:  {{printf "%.2f" (mul100 .Metrics.TotalReturn)}}
:MAX_DD_PCT:  {{printf "%.2f" (mul100 .Metrics.MaxDrawdown)}}
:TRADES:      {{.Metrics.Trades}}
:WINS:        {{.Metrics.Wins}}
:LOSSES:      {{.Metrics.Losses}}
:WIN_RATE:    {{printf "%.2f" .Metrics.WinRate}}
:PROFIT_FAC:  {{ratio .Metrics.ProfitFactor}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Parameters
| Parameter       | Value |
|-----------------+-------|
{{- range $k, $v := .Params }}
| {{$k}} | {{$v}} |
{{- end }}
| Commission rate | {{.Costs.CommissionRate}} |
| Slippage rate   | {{.Costs.SlippageRate}} |
| Allow shorts    | {{.AllowShorts}} |

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPL}}*
- Return:           *{{printf "%.2f" (mul100 .Metrics.TotalReturn)}}%*
- CAGR:             *{{printf "%.2f" (mul100 .Metrics.CAGR)}}%*
- Sharpe:           *{{printf "%.2f" .Metrics.Sharpe}}*
- Max Drawdown:     *{{printf "%.2f" (mul100 .Metrics.MaxDrawdown)}}%*
- Win Rate:         *{{printf "%.2f" (mul100 .Metrics.WinRate)}}%*
- Profit Factor:    *{{ratio .Metrics.ProfitFactor}}*
- Avg Duration:     *{{printf "%.1f" .Metrics.AvgDuration}} bars*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Metrics.Wins}} |
| Losses  | {{.Metrics.Losses}} |
| Total   | {{.Metrics.Trades}} |

{{- if .Trades }}

** Round Trips
{{ trades .Trades }}
{{- end }}

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`

// Org writes each run to <dir>/<run-id>.org.
type Org struct {
	Dir string
}

func NewOrg(dir string) (*Org, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Org{Dir: dir}, nil
}

// Path is the file r is written to.
func (j *Org) Path(runID string) string {
	return filepath.Join(j.Dir, runID+".org")
}

func (j *Org) RecordRun(r Run) error {
	fh, err := os.Create(j.Path(r.RunID))
	if err != nil {
		return err
	}
	if err := WriteRunOrg(fh, r); err != nil {
		fh.Close()
		return fmt.Errorf("write org for %s: %w", r.RunID, err)
	}
	return fh.Close()
}

func (j *Org) Close() error { return nil }

// FormatTripOrg renders a round trip as an Org-mode block. Structured
// facts live in a PROPERTIES drawer for easy search.
func FormatTripOrg(t metrics.RoundTrip) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*** %s %s %d\n", t.Side, t.Symbol, t.Quantity)
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":QUANTITY: %d\n", t.Quantity)
	fmt.Fprintf(&b, ":ENTRY_DATE: %s\n", t.EntryDate.Format(time.DateOnly))
	fmt.Fprintf(&b, ":EXIT_DATE: %s\n", t.ExitDate.Format(time.DateOnly))
	fmt.Fprintf(&b, ":ENTRY_AMOUNT: %.2f\n", t.EntryAmount)
	fmt.Fprintf(&b, ":EXIT_AMOUNT: %.2f\n", t.ExitAmount)
	fmt.Fprintf(&b, ":PNL: %.2f\n", t.PnL)
	fmt.Fprintf(&b, ":BARS: %d\n", t.Bars)
	b.WriteString(":END:\n")
	return b.String()
}

// FormatTripsOrg renders multiple round trips separated by blank lines.
func FormatTripsOrg(trips []metrics.RoundTrip) string {
	var b strings.Builder
	for i, t := range trips {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTripOrg(t))
	}
	return b.String()
}

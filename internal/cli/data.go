package cli

import (
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market/data"
)

func newDataCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Prepare and inspect price files",
		Long: `Prepare and inspect daily price files.

Subcommands:
  convert - Clean a price file and rewrite it, optionally compressed
  info    - Summarize price files with recent indicator values

Examples:
  backtester data convert raw/AAPL.csv data/AAPL.csv.xz
  backtester data info --period 50 data/`,
	}

	cmd.AddCommand(newDataConvertCmd(), newDataInfoCmd(rc))
	return cmd
}

func newDataConvertCmd() *cobra.Command {
	var symbol string

	cmd := &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Clean a price file and rewrite it (.xz, .lzma, .gz by suffix)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bars, err := data.LoadCSV(args[0])
			if err != nil {
				return err
			}
			if symbol != "" {
				for i := range bars {
					bars[i].Symbol = symbol
				}
			}

			w, err := data.Create(args[1])
			if err != nil {
				return fmt.Errorf("create %s: %w", args[1], err)
			}
			if err := data.WriteCSV(w, bars); err != nil {
				w.Close()
				return fmt.Errorf("write %s: %w", args[1], err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("write %s: %w", args[1], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bars for %s to %s\n", len(bars), bars[0].Symbol, args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "override the symbol (default from the file)")

	return cmd
}

func newDataInfoCmd(rc *RootConfig) *cobra.Command {
	var period int

	cmd := &cobra.Command{
		Use:   "info [price files or directories...]",
		Short: "Summarize price files with SMA, EMA and ATR of the latest bars",
		RunE: func(cmd *cobra.Command, args []string) error {
			if period <= 0 {
				return fmt.Errorf("--period must be positive")
			}
			cfg, err := rc.Load()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Data.Paths = args
			}
			files, err := data.Find(cfg.Data.Paths...)
			if err != nil {
				return err
			}
			series, err := data.LoadMany(cmd.Context(), files, cfg.Data.Workers)
			if err != nil {
				return err
			}

			symbols := make([]string, 0, len(series))
			for sym := range series {
				symbols = append(symbols, sym)
			}
			slices.Sort(symbols)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "SYMBOL\tBARS\tFIRST\tLAST\tCLOSE\tSMA(%d)\tEMA(%d)\tATR(%d)\n", period, period, period)
			for _, sym := range symbols {
				bars := series[sym]
				last := bars[len(bars)-1]
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
					sym, len(bars),
					bars[0].Date.Format(time.DateOnly), last.Date.Format(time.DateOnly), last.Close,
					value(indicators.MA(bars, period)),
					value(indicators.EMA(bars, period)),
					value(indicators.ATRFunc(bars, period)))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&period, "period", 20, "indicator period")

	return cmd
}

// value formats an indicator result, "n/a" while there are too few bars.
func value(v float64, err error) string {
	if err != nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

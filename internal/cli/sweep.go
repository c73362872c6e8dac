package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/sweep"
)

func newSweepCmd(rc *RootConfig) *cobra.Command {
	var (
		shorts  []int
		longs   []int
		workers int
		output  string
		timing  string
		top     int
	)

	cmd := &cobra.Command{
		Use:   "sweep [price files or directories...]",
		Short: "Search moving average crossover windows, ranked by Sharpe",
		Long: `Sweep runs the ma-crossover strategy for every (short, long) pair with
short < long. Pairs run concurrently, each on its own engine, and the results
are ranked by annualized Sharpe ratio.

Example:
  backtester sweep --shorts 10,20,50 --longs 100,200 -o results/opt_results.csv data/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.Load()
			if err != nil {
				return err
			}
			fl := cmd.Flags()
			if len(args) > 0 {
				cfg.Data.Paths = args
			}
			if fl.Changed("shorts") {
				cfg.Sweep.Shorts = shorts
			}
			if fl.Changed("longs") {
				cfg.Sweep.Longs = longs
			}
			if fl.Changed("workers") {
				cfg.Sweep.Workers = workers
			}
			if fl.Changed("output") {
				cfg.Sweep.Output = output
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			grid := sweep.Grid(cfg.Sweep.Shorts, cfg.Sweep.Longs)
			if len(grid) == 0 {
				return fmt.Errorf("sweep grid is empty: no short window below a long window")
			}

			h, err := loadHistory(cmd.Context(), rc, cfg)
			if err != nil {
				return err
			}

			rc.Logger.Info("sweep starting", "pairs", len(grid), "workers", cfg.Sweep.Workers)
			began := time.Now()
			rows, err := sweep.Run(cmd.Context(), h, sweep.Options{
				Config:         cfg.SimConfig(),
				PeriodsPerYear: cfg.Engine.PeriodsPerYear,
				Workers:        cfg.Sweep.Workers,
			}, grid)
			if err != nil {
				return err
			}
			tm := sweep.NewTiming(len(grid), cfg.Sweep.Workers, time.Since(began))
			rc.Logger.Info("sweep complete", "pairs", len(rows), "elapsed", tm.Elapsed)

			printRows(cmd.OutOrStdout(), rows, top)

			if cfg.Sweep.Output != "" {
				if err := writeFile(cfg.Sweep.Output, func(w io.Writer) error {
					return sweep.WriteCSV(w, rows)
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nSaved: %s\n", cfg.Sweep.Output)
			}
			if timing != "" {
				if err := writeFile(timing, tm.WriteJSON); err != nil {
					return err
				}
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.IntSliceVar(&shorts, "shorts", nil, "short windows (default sweep.shorts)")
	fl.IntSliceVar(&longs, "longs", nil, "long windows (default sweep.longs)")
	fl.IntVarP(&workers, "workers", "w", 0, "concurrent runs (0 = GOMAXPROCS)")
	fl.StringVarP(&output, "output", "o", "", "write all rows as CSV")
	fl.StringVar(&timing, "timing", "", "write timing JSON")
	fl.IntVar(&top, "top", 10, "rows to print (0 = all)")

	return cmd
}

func printRows(w io.Writer, rows []sweep.Row, top int) {
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "short\tlong\treturn %\tcagr %\tsharpe\tmax dd %\ttrades\t")
	for _, r := range rows {
		m := r.Metrics
		fmt.Fprintf(tw, "%d\t%d\t%.2f\t%.2f\t%.4f\t%.2f\t%d\t\n",
			r.Short, r.Long, m.TotalReturn*100, m.CAGR*100, m.Sharpe, m.MaxDrawdown*100, m.Trades)
	}
	tw.Flush()
}

func writeFile(path string, write func(io.Writer) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(fh); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

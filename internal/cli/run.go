package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/market/data"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
)

func newRunCmd(rc *RootConfig) *cobra.Command {
	var (
		paths    []string
		strategy string
		params   map[string]string
		capital  float64
		comm     float64
		slip     float64
		shorts   bool
		start    string
		end      string
		csvDir   string
		orgDir   string
		notes    []string
		noRecord bool
		noCheck  bool
	)

	cmd := &cobra.Command{
		Use:   "run [price files or directories...]",
		Short: "Run one strategy over daily bars",
		Long: `Run loads daily OHLCV CSV files (optionally .xz, .lzma or .gz compressed),
aligns them on their common dates and simulates one strategy with next-bar
execution. The summary is printed and the run is recorded in the configured
journals.

Strategies: ` + strings.Join(strategies.Names(), ", ") + `

Examples:
  backtester run data/
  backtester run -s rsi-cross -p period=14 -p lower=30 data/AAPL.csv data/MSFT.csv
  backtester run --config backtest.yaml --allow-shorts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.Load()
			if err != nil {
				return err
			}

			fl := cmd.Flags()
			if len(args) > 0 {
				cfg.Data.Paths = args
			} else if fl.Changed("data") {
				cfg.Data.Paths = paths
			}
			if fl.Changed("strategy") {
				cfg.Strategy.Name = strategy
				cfg.Strategy.Params = nil
			}
			if err := mergeParams(cfg, params); err != nil {
				return err
			}
			if fl.Changed("capital") {
				cfg.Account.InitialCapital = capital
			}
			if fl.Changed("commission") {
				cfg.Costs.CommissionRate = comm
			}
			if fl.Changed("slippage") {
				cfg.Costs.SlippageRate = slip
			}
			if fl.Changed("allow-shorts") {
				cfg.Engine.AllowShorts = shorts
			}
			if fl.Changed("start") {
				cfg.Data.Start = start
			}
			if fl.Changed("end") {
				cfg.Data.End = end
			}
			if fl.Changed("csv-dir") {
				cfg.Journal.CSVDir = csvDir
			}
			if fl.Changed("org-dir") {
				cfg.Journal.OrgDir = orgDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			h, err := loadHistory(cmd.Context(), rc, cfg)
			if err != nil {
				return err
			}

			strat, err := strategies.New(cfg.Strategy.Name, cfg.Strategy.Params)
			if err != nil {
				return err
			}
			engine, err := sim.NewEngine(cfg.SimConfig())
			if err != nil {
				return err
			}

			runner := &backtest.Runner{
				Engine:         engine,
				Strategy:       strat,
				Params:         cfg.Strategy.Params,
				Dataset:        strings.Join(cfg.Data.Paths, ","),
				Notes:          notes,
				PeriodsPerYear: cfg.Engine.PeriodsPerYear,
				Logger:         rc.Logger,
			}
			if !noCheck {
				runner.Verify = backtest.CheckConsistency
			}
			if !noRecord {
				j, err := openJournals(cfg)
				if err != nil {
					return err
				}
				if j != nil {
					defer j.Close()
					runner.Journal = j
				}
			}

			res, err := runner.Run(cmd.Context(), h)
			if err != nil && res.RunID == "" {
				return err
			}
			backtest.PrintResult(cmd.OutOrStdout(), res)
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVarP(&paths, "data", "d", nil, "price files, directories or globs (default data.paths)")
	fl.StringVarP(&strategy, "strategy", "s", "", "strategy name")
	fl.StringToStringVarP(&params, "param", "p", nil, "strategy parameter key=value (repeatable)")
	fl.Float64Var(&capital, "capital", 0, "initial capital")
	fl.Float64Var(&comm, "commission", 0, "commission as a fraction of notional")
	fl.Float64Var(&slip, "slippage", 0, "slippage as a fraction of notional")
	fl.BoolVar(&shorts, "allow-shorts", false, "execute short signals instead of going flat")
	fl.StringVar(&start, "start", "", "first date (YYYY-MM-DD)")
	fl.StringVar(&end, "end", "", "last date (YYYY-MM-DD)")
	fl.StringVar(&csvDir, "csv-dir", "", "write CSV artifacts under this directory")
	fl.StringVar(&orgDir, "org-dir", "", "write an org-mode report under this directory")
	fl.StringArrayVar(&notes, "note", nil, "observation recorded with the run (repeatable)")
	fl.BoolVar(&noRecord, "no-record", false, "do not record the run in any journal")
	fl.BoolVar(&noCheck, "no-check", false, "skip the post-run consistency checks")

	return cmd
}

func mergeParams(cfg *config.Config, params map[string]string) error {
	if len(params) == 0 {
		return nil
	}
	if cfg.Strategy.Params == nil {
		cfg.Strategy.Params = make(map[string]float64, len(params))
	}
	for k, v := range params {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("--param %s=%q: not a number", k, v)
		}
		cfg.Strategy.Params[k] = f
	}
	return nil
}

// loadHistory resolves data.paths and loads the aligned, windowed history.
func loadHistory(ctx context.Context, rc *RootConfig, cfg *config.Config) (*market.History, error) {
	files, err := data.Find(cfg.Data.Paths...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no price files in %s", strings.Join(cfg.Data.Paths, ", "))
	}
	rc.Logger.Info("loading prices", "files", len(files), "workers", cfg.Data.Workers)

	h, err := data.LoadHistory(ctx, files, cfg.Data.Workers)
	if err != nil {
		return nil, err
	}
	from, to, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	if !from.IsZero() || !to.IsZero() {
		if h, err = h.Window(from, to); err != nil {
			return nil, err
		}
	}
	rc.Logger.Info("prices aligned", "symbols", len(h.Symbols()), "bars", h.Len())
	return h, nil
}

// openJournals opens every journal the config enables. It returns nil
// when none is.
func openJournals(cfg *config.Config) (journal.Journal, error) {
	var js []journal.Journal
	closeAll := func() {
		for _, j := range js {
			_ = j.Close()
		}
	}

	if p := cfg.Journal.DBPath; p != "" {
		j, err := journal.NewSQLite(p)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		js = append(js, j)
	}
	if d := cfg.Journal.CSVDir; d != "" {
		j, err := journal.NewCSV(d)
		if err != nil {
			closeAll()
			return nil, err
		}
		js = append(js, j)
	}
	if d := cfg.Journal.OrgDir; d != "" {
		j, err := journal.NewOrg(d)
		if err != nil {
			closeAll()
			return nil, err
		}
		js = append(js, j)
	}

	switch len(js) {
	case 0:
		return nil, nil
	case 1:
		return js[0], nil
	}
	return journal.Tee(js...), nil
}

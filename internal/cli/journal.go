package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/journal"
)

var errNoDB = errors.New("no journal database configured (set --db or journal.db_path)")

func openDB(rc *RootConfig) (*journal.SQLite, error) {
	cfg, err := rc.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Journal.DBPath == "" {
		return nil, errNoDB
	}
	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

// runIDArg accepts exactly one well formed run ID.
var runIDArg = cobra.MatchAll(cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
	if !id.Valid(args[0]) {
		return fmt.Errorf("invalid run id %q", args[0])
	}
	return nil
})

func newJournalCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query recorded backtest runs",
		Long: `Query and display runs recorded in the SQLite journal.

Subcommands:
  runs    - List recorded runs, newest first
  show    - Print a run as an org-mode entry
  trades  - Print a run's round trips
  delete  - Remove a run and its detail rows

Examples:
  backtester journal runs --limit 5
  backtester journal show <run-id>`,
	}

	var limit int
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openDB(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tCREATED\tSTRATEGY\tSYMBOLS\tRETURN %\tSHARPE\tTRADES")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%.4f\t%d\n",
					r.RunID, r.Created.Local().Format(time.DateTime), r.Strategy,
					strings.Join(r.Symbols, ","), r.Metrics.TotalReturn*100, r.Metrics.Sharpe, r.Metrics.Trades)
			}
			return tw.Flush()
		},
	}
	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 = all)")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a run as an org-mode entry",
		Args:  runIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openDB(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			org, err := j.ExportOrg(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), org)
			return nil
		},
	}

	tradesCmd := &cobra.Command{
		Use:   "trades <run-id>",
		Short: "Print a run's round trips",
		Args:  runIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openDB(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			if _, err := j.GetRun(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			trips, err := j.ListTrades(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("query trades: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTripsOrg(trips))
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Remove a run and its detail rows",
		Args:  runIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openDB(rc)
			if err != nil {
				return err
			}
			defer j.Close()

			if err := j.DeleteRun(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete run: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(runsCmd, showCmd, tradesCmd, deleteCmd)
	return cmd
}

package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cutflow/internal/cli/config"
	"github.com/leapstack-labs/cutflow/internal/state"
	"github.com/leapstack-labs/cutflow/pkg/core"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs",
		Long: `List the most recent runs from the history database, newest first.
With a run id, show that run's cut efficiencies and aggregations.`,
		Example: `  # The last 20 runs
  cutflow history

  # Details of one run
  cutflow history 3f1c2a9e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			if cfg.StatePath != state.MemoryPath {
				if _, err := os.Stat(cfg.StatePath); errors.Is(err, fs.ErrNotExist) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
					return nil
				}
			}

			store := state.NewSQLiteStore(config.GetLogger(ctx))
			if err := store.Open(cfg.StatePath); err != nil {
				return fmt.Errorf("failed to open history %s: %w", cfg.StatePath, err)
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				return showRun(cmd, store, args[0])
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			renderRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")

	return cmd
}

func showRun(cmd *cobra.Command, store state.Store, id string) error {
	ctx := cmd.Context()
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	cuts, err := store.GetCuts(ctx, id)
	if err != nil {
		return err
	}
	aggs, err := store.GetAggregations(ctx, id)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	renderRuns(w, []*core.Run{run})
	if run.Error != "" {
		_, _ = fmt.Fprintf(w, "error: %s\n", run.Error)
	}

	if len(cuts) > 0 {
		t := newTable(w)
		t.AppendHeader(table.Row{"#", "Cut", "Predicate", "Pass", "All"})
		for _, c := range cuts {
			t.AppendRow(table.Row{c.Position, c.Label, c.Predicate, c.Pass, c.All})
		}
		t.Render()
	}

	if len(aggs) > 0 {
		t := newTable(w)
		t.AppendHeader(table.Row{"Aggregation", "Style", "Entries", "Output"})
		for _, a := range aggs {
			t.AppendRow(table.Row{a.Name, a.Style, a.Entries, a.OutputPath})
		}
		t.Render()
	}
	return nil
}

func renderRuns(w io.Writer, runs []*core.Run) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Run", "Status", "Detector", "Config", "Started", "Duration"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			string(r.Status),
			r.DetectorID,
			r.ConfigPath,
			r.StartedAt.Local().Format(time.DateTime),
			duration(r),
		})
	}
	t.Render()
}

func duration(r *core.Run) string {
	if r.CompletedAt == nil {
		return "-"
	}
	return r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cutflow/internal/analysis"
	"github.com/leapstack-labs/cutflow/internal/cli/config"
	"github.com/leapstack-labs/cutflow/internal/library"
	"github.com/leapstack-labs/cutflow/internal/pipeline"
	"github.com/leapstack-labs/cutflow/internal/state"
	"github.com/leapstack-labs/cutflow/pkg/core"
	"github.com/leapstack-labs/cutflow/pkg/frame"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Detector  string
	Report    bool
	NoSave    bool
	Parallel  bool
	Watch     bool
	NoHistory bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <analysis.yaml>",
		Short: "Run an analysis",
		Long: `Resolve the analysis document, define its columns and user functions,
apply the cuts in order and fill every configured histogram and profile.

Each aggregation is written to output_dir as <name>.json unless --no-save
is given. Runs are recorded in the history database unless --no-history
is given or history is disabled in cutflow.yaml.`,
		Example: `  # Run and save every aggregation
  cutflow run analysis.yaml

  # Print the cut efficiency report without writing artifacts
  cutflow run analysis.yaml --report --no-save

  # Use another detector and re-run whenever an input changes
  cutflow run analysis.yaml --detector detectors/north.yaml --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Watch {
				return runWatch(cmd, args[0], opts)
			}
			_, err := runAnalysis(cmd, args[0], opts)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Detector, "detector", "", "Detector document, overriding detector_config")
	cmd.Flags().BoolVarP(&opts.Report, "report", "r", false, "Print the cut efficiency report")
	cmd.Flags().BoolVarP(&opts.NoSave, "no-save", "n", false, "Do not write aggregation artifacts")
	cmd.Flags().BoolVarP(&opts.Parallel, "parallel", "p", false, "Request parallel execution (runs serially)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Re-run when the analysis, detector or library file changes")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record the run in the history database")

	return cmd
}

// outcome is what a run produced, for the history store.
type outcome struct {
	cuts []core.CutRecord
	aggs []core.AggregationRecord
}

// runAnalysis performs one run and returns the files it depends on. The file
// list is filled as far as loading got, also on failure.
func runAnalysis(cmd *cobra.Command, path string, opts *RunOptions) ([]string, error) {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := config.GetLogger(ctx)

	resolved, docs, err := resolveAnalysis(cmd, path, opts.Detector)
	if err != nil {
		return watchedFiles(path, docs, nil), err
	}
	files := watchedFiles(path, docs, resolved)

	var history *runHistory
	if cfg.History && !opts.NoHistory {
		history, err = openHistory(cfg.StatePath, logger)
		if err != nil {
			return files, err
		}
		defer history.close()
		history.start(ctx, path, resolved)
	}

	out, err := execute(ctx, cmd, resolved, opts, cfg.Engine, logger)
	history.finish(ctx, out, err)
	return files, err
}

// execute runs the pipeline for resolved.
func execute(ctx context.Context, cmd *cobra.Command, resolved *analysis.Resolved, opts *RunOptions, engine frame.EngineConfig, logger *slog.Logger) (*outcome, error) {
	rt, err := frame.NewRuntime(ctx, engine, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rt.Close() }()

	p, err := pipeline.New(resolved, pipeline.Options{
		Logger:   logger,
		Runtime:  rt,
		Parallel: opts.Parallel,
	})
	if err != nil {
		return nil, err
	}

	res, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}

	out := &outcome{}
	if opts.Report {
		report, err := res.Report(ctx)
		if err != nil {
			return out, err
		}
		report.Render(cmd.OutOrStdout())
		for i, c := range report.Cuts {
			out.cuts = append(out.cuts, core.CutRecord{
				Position:  i + 1,
				Label:     c.Label,
				Predicate: c.Predicate,
				Pass:      c.Pass,
				All:       c.All,
			})
		}
	}

	if opts.NoSave {
		for _, agg := range res.Aggregations {
			out.aggs = append(out.aggs, core.AggregationRecord{
				Name:    agg.AggregationName(),
				Style:   agg.Kind(),
				Entries: agg.TotalEntries(),
			})
		}
		return out, nil
	}

	artifacts, err := res.Save()
	for _, a := range artifacts {
		out.aggs = append(out.aggs, core.AggregationRecord{
			Name:       a.Name,
			Style:      a.Kind,
			Entries:    a.Entries,
			OutputPath: a.Path,
		})
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", a.Path)
	}
	return out, err
}

// watchedFiles lists the inputs of a run that --watch re-runs on.
func watchedFiles(path string, docs *analysis.Documents, resolved *analysis.Resolved) []string {
	if docs == nil {
		return []string{path}
	}
	files := docs.Files()
	if resolved != nil {
		if lib := resolved.Config().LibraryFile; lib != "" && !strings.EqualFold(lib, library.BuiltinLibrary) {
			files = append(files, lib)
		}
	}
	return files
}

// runHistory records one run. A nil *runHistory records nothing.
type runHistory struct {
	store  state.Store
	run    *core.Run
	logger *slog.Logger
}

func openHistory(path string, logger *slog.Logger) (*runHistory, error) {
	if path != state.MemoryPath {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	return &runHistory{store: store, logger: logger}, nil
}

func (h *runHistory) start(ctx context.Context, path string, resolved *analysis.Resolved) {
	run, err := h.store.CreateRun(ctx, path, resolved.Fingerprint(), resolved.DetectorID)
	if err != nil {
		h.logger.Warn("run not recorded", "error", err)
		return
	}
	h.run = run
}

func (h *runHistory) finish(ctx context.Context, out *outcome, runErr error) {
	if h == nil || h.run == nil {
		return
	}
	var errs []error
	if out != nil {
		errs = append(errs,
			h.store.SaveCuts(ctx, h.run.ID, out.cuts),
			h.store.SaveAggregations(ctx, h.run.ID, out.aggs))
	}
	status, msg := core.RunStatusCompleted, ""
	if runErr != nil {
		status, msg = core.RunStatusFailed, runErr.Error()
	}
	errs = append(errs, h.store.CompleteRun(ctx, h.run.ID, status, msg))
	if err := errors.Join(errs...); err != nil {
		h.logger.Warn("run history incomplete", "run", h.run.ID, "error", err)
		return
	}
	h.logger.Debug("run recorded", "run", h.run.ID, "status", string(status))
}

func (h *runHistory) close() {
	_ = h.store.Close()
}

// runWatch runs once, then again whenever an input changes, until
// interrupted.
func runWatch(cmd *cobra.Command, path string, opts *RunOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	cmd.SetContext(ctx)
	logger := config.GetLogger(ctx)

	run := func() []string {
		files, err := runAnalysis(cmd, path, opts)
		if err != nil {
			logger.Error("run failed", "error", err)
		}
		return files
	}
	return watchLoop(ctx, run(), watchDebounce, run, logger)
}

const watchDebounce = 100 * time.Millisecond

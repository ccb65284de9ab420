// Package pipeline runs an analysis: columns, user functions, cuts and
// aggregations, in that order, over one frame.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/cutflow/internal/aggregate"
	"github.com/leapstack-labs/cutflow/internal/analysis"
	"github.com/leapstack-labs/cutflow/internal/columns"
	"github.com/leapstack-labs/cutflow/internal/cuts"
	"github.com/leapstack-labs/cutflow/internal/library"
	"github.com/leapstack-labs/cutflow/internal/logging"
	"github.com/leapstack-labs/cutflow/internal/output"
	"github.com/leapstack-labs/cutflow/pkg/core"
	"github.com/leapstack-labs/cutflow/pkg/frame"
	"github.com/leapstack-labs/cutflow/pkg/hist"
)

// Backend is a distributed execution backend. It is accepted and kept for
// future use; runs always execute on the local runtime.
type Backend interface {
	Name() string
}

// Options configures a Pipeline.
type Options struct {
	Logger *slog.Logger
	// Runtime evaluates frames. Required.
	Runtime frame.Runtime
	// Source provides library callables. Defaults to the library_file of
	// the resolved configuration.
	Source library.Source
	// Backend is stored but not used.
	Backend Backend
	// Parallel requests parallel execution, which is not supported.
	Parallel bool
}

// Pipeline is one run of a resolved analysis.
type Pipeline struct {
	cfg    core.AnalysisConfig
	opts   Options
	logger *slog.Logger

	dispatcher *library.Dispatcher
	columns    *columns.Engine
	chain      *cuts.Chain
	builder    *aggregate.Builder

	mu    sync.Mutex
	stage Stage
}

// New wires a pipeline for resolved. The transformation library is loaded
// once here so a broken library fails before any data is read.
func New(resolved *analysis.Resolved, opts Options) (*Pipeline, error) {
	if resolved == nil {
		return nil, &StageError{Stage: StageResolved, Err: errors.New("configuration not resolved")}
	}
	if opts.Runtime == nil {
		return nil, errors.New("pipeline needs an engine runtime")
	}
	logger := logging.Component(opts.Logger, "pipeline")
	cfg := resolved.Config()

	if opts.Source == nil {
		src, err := library.SourceFor(cfg.LibraryFile)
		if err != nil {
			return nil, err
		}
		opts.Source = src
	}

	p := &Pipeline{
		cfg:        cfg,
		opts:       opts,
		logger:     logger,
		dispatcher: library.NewDispatcher(opts.Source, opts.Runtime, opts.Logger),
		columns:    columns.NewEngine(opts.Logger),
		stage:      StageResolved,
	}
	p.chain = cuts.NewChain(p.columns, opts.Logger)
	p.builder = aggregate.NewBuilder(p.columns, opts.Logger)

	if _, err := p.dispatcher.Validate(); err != nil {
		return nil, err
	}
	if opts.Backend != nil {
		logger.Debug("distributed backend configured but not used", "backend", opts.Backend.Name())
	}
	if opts.Parallel {
		logger.Warn("parallel execution is not supported, running serially")
	}
	return p, nil
}

// Stage returns the current lifecycle stage.
func (p *Pipeline) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

// Backend returns the configured distributed backend, if any.
func (p *Pipeline) Backend() Backend {
	return p.opts.Backend
}

func (p *Pipeline) advance(to Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if to <= p.stage {
		return &StageError{Stage: to, Err: fmt.Errorf("%w: run is %s", ErrStageOrder, p.stage)}
	}
	p.logger.Debug("stage entered", "stage", to.String())
	p.stage = to
	return nil
}

// Run executes the analysis up to the aggregations. A pipeline runs once.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if s := p.Stage(); s != StageResolved {
		return nil, &StageError{Stage: StageColumnsDefined, Err: fmt.Errorf("%w: run is %s", ErrStageOrder, s)}
	}

	f, err := p.opts.Runtime.Open(ctx, frame.Source{Path: p.cfg.InputFile, Table: p.cfg.TreeName})
	if err != nil {
		return nil, &StageError{Stage: StageColumnsDefined, Op: "open " + p.cfg.InputFile, Err: err}
	}
	p.logger.Info("dataset opened", "input_file", p.cfg.InputFile, "tree_name", p.cfg.TreeName)

	f, err = p.defineColumns(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := p.advance(StageColumnsDefined); err != nil {
		return nil, err
	}

	f, applied, err := p.chain.ApplyAll(ctx, f, p.cfg.Cuts)
	if err != nil {
		return nil, &StageError{Stage: StageFiltered, Err: err}
	}
	if err := p.advance(StageFiltered); err != nil {
		return nil, err
	}

	aggs := p.builder.BuildAll(ctx, f, p.cfg.Aggregations)
	if err := p.advance(StageAggregated); err != nil {
		return nil, err
	}

	undefined := p.columns.Undefined()
	if len(undefined) > 0 {
		p.logger.Warn("run finished with undefined columns", "columns", undefined)
	}
	p.logger.Info("analysis complete",
		"cuts", len(applied),
		"aggregations", len(aggs),
		"requested", len(p.cfg.Aggregations))

	return &Result{
		Aggregations: aggs,
		Cuts:         applied,
		Undefined:    undefined,
		Frame:        f,
		pipeline:     p,
	}, nil
}

// defineColumns defines new_columns then user_functions. Column failures are
// recoverable; a library that stopped loading is not.
func (p *Pipeline) defineColumns(ctx context.Context, f frame.Frame) (frame.Frame, error) {
	f, _ = p.columns.DefineAll(ctx, f, p.cfg.NewColumns)

	for _, ref := range p.cfg.UserFunctions {
		def, err := p.dispatcher.Dispatch(ctx, ref)
		if err != nil {
			var libErr *library.LibraryError
			if errors.As(err, &libErr) {
				return nil, &StageError{Stage: StageColumnsDefined, Op: "load library", Err: err}
			}
			p.logger.Warn("user function left undefined", "new_column", ref.NewColumn, "error", err)
			p.columns.MarkUndefinedIn(f, ref.NewColumn, err.Error())
			continue
		}

		next, err := p.columns.Define(ctx, f, *def)
		if err != nil {
			continue
		}
		f = next
	}
	return f, nil
}

// Result is the outcome of Run.
type Result struct {
	Aggregations []hist.Aggregation
	Cuts         []core.Cut
	// Undefined lists columns that could not be defined.
	Undefined []string
	Frame     frame.Frame

	pipeline *Pipeline
}

// Report runs the efficiency report on the final frame.
func (r *Result) Report(ctx context.Context) (*frame.Report, error) {
	if err := r.pipeline.advance(StageReported); err != nil {
		return nil, err
	}
	report, err := r.Frame.Report(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageReported, Err: err}
	}
	return report, nil
}

// Save writes every aggregation to output_dir.
func (r *Result) Save() ([]output.Artifact, error) {
	if err := r.pipeline.advance(StageSaved); err != nil {
		return nil, err
	}
	artifacts, err := output.NewWriter(r.pipeline.cfg.OutputDir, r.pipeline.opts.Logger).Save(r.Aggregations)
	if err != nil {
		return artifacts, &StageError{Stage: StageSaved, Err: err}
	}
	return artifacts, nil
}

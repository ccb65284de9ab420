// Package aggregate builds histograms and profiles from a filtered frame.
//
// A bad aggregation never aborts a run: Build logs a warning and returns nil.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/leapstack-labs/cutflow/internal/columns"
	"github.com/leapstack-labs/cutflow/internal/logging"
	"github.com/leapstack-labs/cutflow/pkg/core"
	"github.com/leapstack-labs/cutflow/pkg/frame"
	"github.com/leapstack-labs/cutflow/pkg/hist"
)

// Builder turns aggregation specs into filled aggregations.
type Builder struct {
	columns  *columns.Engine
	validate *validator.Validate
	logger   *slog.Logger
}

// NewBuilder creates a builder. Specs over columns cols marks undefined are
// skipped; cols may be nil.
func NewBuilder(cols *columns.Engine, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		columns:  cols,
		validate: newValidator(),
		logger:   logging.Component(logger, "aggregate"),
	}
}

// Build fills the aggregation described by spec, or returns nil.
func (b *Builder) Build(ctx context.Context, f frame.Frame, spec core.AggregationSpec) hist.Aggregation {
	agg, err := b.build(ctx, f, spec)
	if err != nil {
		b.logger.Warn("aggregation skipped", "name", spec.Name, "style", spec.Style, "error", err)
		return nil
	}

	agg.SetAxisTitles(spec.XTitle, spec.YTitle)
	agg.SetShowStats(spec.StatsShown())
	if h, ok := agg.(*hist.Histogram); ok && len(spec.YRangeUser) == 2 {
		h.SetYRange(spec.YRangeUser[0], spec.YRangeUser[1])
	}

	b.logger.Info("aggregation built", "name", spec.Name, "style", spec.Style, "entries", agg.TotalEntries())
	return agg
}

// BuildAll builds every spec in order and drops the ones that failed. Names
// key the saved artifacts, so a spec reusing the name of one already built
// is skipped.
func (b *Builder) BuildAll(ctx context.Context, f frame.Frame, specs []core.AggregationSpec) []hist.Aggregation {
	out := make([]hist.Aggregation, 0, len(specs))
	built := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if built[spec.Name] {
			b.logger.Warn("aggregation skipped", "name", spec.Name, "style", spec.Style,
				"error", fmt.Sprintf("duplicate aggregation name %q", spec.Name))
			continue
		}
		if agg := b.Build(ctx, f, spec); agg != nil {
			built[spec.Name] = true
			out = append(out, agg)
		}
	}
	return out
}

func (b *Builder) build(ctx context.Context, f frame.Frame, spec core.AggregationSpec) (hist.Aggregation, error) {
	switch spec.Style {
	case core.StyleHistogram, core.StyleProfile:
	default:
		return nil, fmt.Errorf("unknown style %q", spec.Style)
	}

	if b.columns != nil {
		if err := b.columns.CheckDefined("aggregation "+spec.Name, spec.Columns()...); err != nil {
			return nil, err
		}
	}

	if spec.Style == core.StyleHistogram {
		return b.histogram(ctx, f, spec)
	}
	return b.profile(ctx, f, spec)
}

func (b *Builder) histogram(ctx context.Context, f frame.Frame, spec core.AggregationSpec) (hist.Aggregation, error) {
	err := check(b.validate, histogramSpec{
		Name:   spec.Name,
		Column: spec.Column,
		Bins:   spec.Bins,
		Min:    spec.Min,
		Max:    spec.Max,
		YRange: spec.YRangeUser,
	})
	if err != nil {
		return nil, err
	}

	binning, err := hist.Uniform(spec.Bins, spec.Min, spec.Max)
	if err != nil {
		return nil, err
	}
	h, err := f.Histogram1D(ctx, hist.HistogramModel{Name: spec.Name, Title: spec.Title, Binning: binning}, spec.Column)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (b *Builder) profile(ctx context.Context, f frame.Frame, spec core.AggregationSpec) (hist.Aggregation, error) {
	if err := check(b.validate, profileSpec{Name: spec.Name, XColumn: spec.XColumn, YColumn: spec.YColumn}); err != nil {
		return nil, err
	}

	binning, err := b.profileBinning(spec)
	if err != nil {
		return nil, err
	}
	model := hist.ProfileModel{Name: spec.Name, Title: spec.Title, Binning: binning, Options: spec.Options}
	p, err := f.Profile1D(ctx, model, spec.XColumn, spec.YColumn)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// profileBinning prefers explicit edges, sorted ascending, over the uniform
// x_bins/x_min/x_max axis.
func (b *Builder) profileBinning(spec core.AggregationSpec) (hist.Binning, error) {
	if len(spec.XBinEdges) > 0 {
		edges := EffectiveEdges(spec.XBinEdges)
		if err := check(b.validate, variableAxis{XBinEdges: edges}); err != nil {
			return hist.Binning{}, err
		}
		return hist.Variable(edges)
	}

	if err := check(b.validate, uniformAxis{XBins: spec.XBins, XMin: spec.XMin, XMax: spec.XMax}); err != nil {
		return hist.Binning{}, err
	}
	return hist.Uniform(spec.XBins, spec.XMin, spec.XMax)
}

// EffectiveEdges returns a sorted copy of edges.
func EffectiveEdges(edges []float64) []float64 {
	out := slices.Clone(edges)
	slices.Sort(out)
	return out
}

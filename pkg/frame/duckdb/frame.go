package duckdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/cutflow/pkg/frame"
	"github.com/leapstack-labs/cutflow/pkg/hist"
)

// ErrColumnNotFound is returned when a frame operation names a column the
// frame does not have.
var ErrColumnNotFound = errors.New("column not found")

type nodeKind int

const (
	kindBase nodeKind = iota
	kindDefine
	kindFilter
)

// node is an immutable frame. query is the complete SELECT producing its rows.
type node struct {
	rt      *Runtime
	parent  *node
	kind    nodeKind
	query   string
	columns []column

	label     string
	predicate string
}

func (n *node) column(name string) (column, bool) {
	for _, c := range n.columns {
		if c.Name == name {
			return c, true
		}
	}
	return column{}, false
}

// Define implements frame.Frame.
func (n *node) Define(ctx context.Context, name, expr string) (frame.Frame, error) {
	if name == "" {
		return nil, fmt.Errorf("column name is empty")
	}
	if _, exists := n.column(name); exists {
		return nil, fmt.Errorf("column %s already defined", name)
	}

	q := defineQuery(n.query, name, elementAccess(expr))
	cols, err := n.rt.describe(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to define column %s: %w", name, err)
	}
	return &node{rt: n.rt, parent: n, kind: kindDefine, query: q, columns: cols}, nil
}

// Filter implements frame.Frame.
func (n *node) Filter(ctx context.Context, predicate, label string) (frame.Frame, error) {
	q := filterQuery(n.query, predicate)
	cols, err := n.rt.describe(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to apply filter %s: %w", label, err)
	}
	return &node{
		rt:        n.rt,
		parent:    n,
		kind:      kindFilter,
		query:     q,
		columns:   cols,
		label:     label,
		predicate: predicate,
	}, nil
}

// Histogram1D implements frame.Frame.
func (n *node) Histogram1D(ctx context.Context, model hist.HistogramModel, name string) (*hist.Histogram, error) {
	col, ok := n.column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}

	rows, err := n.rt.query(ctx, histogramQuery(n.query, col.value(), model.Binning))
	if err != nil {
		return nil, fmt.Errorf("failed to fill histogram %s: %w", model.Name, err)
	}
	defer func() { _ = rows.Close() }()

	h := hist.NewHistogram(model)
	for rows.Next() {
		var bin, count int64
		var sum, sumSq float64
		if err := rows.Scan(&bin, &count, &sum, &sumSq); err != nil {
			return nil, fmt.Errorf("failed to scan histogram bin: %w", err)
		}
		h.AddBin(int(bin), count, sum, sumSq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating histogram bins: %w", err)
	}
	return h, nil
}

// Profile1D implements frame.Frame.
func (n *node) Profile1D(ctx context.Context, model hist.ProfileModel, xname, yname string) (*hist.Profile, error) {
	x, ok := n.column(xname)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, xname)
	}
	y, ok := n.column(yname)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, yname)
	}

	rows, err := n.rt.query(ctx, profileQuery(n.query, x.value(), y.value(), model.Binning))
	if err != nil {
		return nil, fmt.Errorf("failed to fill profile %s: %w", model.Name, err)
	}
	defer func() { _ = rows.Close() }()

	p := hist.NewProfile(model)
	for rows.Next() {
		var bin, count int64
		var sumY, sumY2 float64
		if err := rows.Scan(&bin, &count, &sumY, &sumY2); err != nil {
			return nil, fmt.Errorf("failed to scan profile bin: %w", err)
		}
		p.AddBin(int(bin), count, sumY, sumY2)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile bins: %w", err)
	}
	return p, nil
}

// ColumnsAsArrays implements frame.Frame.
func (n *node) ColumnsAsArrays(ctx context.Context, names ...string) (map[string][]any, error) {
	if len(names) == 0 {
		return map[string][]any{}, nil
	}
	for _, name := range names {
		if _, ok := n.column(name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
		}
	}

	rows, err := n.rt.query(ctx, selectQuery(n.query, names))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]any, len(names))
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, name := range names {
			out[name] = append(out[name], vals[i])
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// ColumnNames implements frame.Frame.
func (n *node) ColumnNames() []string {
	names := make([]string, len(n.columns))
	for i, c := range n.columns {
		names[i] = c.Name
	}
	return names
}

// filters returns the labelled filters from the base towards n.
func (n *node) filters() []*node {
	var out []*node
	for cur := n; cur != nil; cur = cur.parent {
		if cur.kind == kindFilter {
			out = append(out, cur)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Report implements frame.Frame.
func (n *node) Report(ctx context.Context) (*frame.Report, error) {
	filters := n.filters()
	if len(filters) == 0 {
		total, err := n.rt.count(ctx, n.query)
		if err != nil {
			return nil, err
		}
		return frame.NewReport(total, nil, nil, nil), nil
	}

	total, err := n.rt.count(ctx, filters[0].parent.query)
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(filters))
	predicates := make([]string, len(filters))
	passes := make([]int64, len(filters))
	for i, f := range filters {
		pass, err := n.rt.count(ctx, f.query)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", f.label, err)
		}
		labels[i] = f.label
		predicates[i] = f.predicate
		passes[i] = pass
	}
	return frame.NewReport(total, labels, predicates, passes), nil
}

var _ frame.Frame = (*node)(nil)

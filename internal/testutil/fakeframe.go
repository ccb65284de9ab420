package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/leapstack-labs/cutflow/pkg/frame"
	"github.com/leapstack-labs/cutflow/pkg/hist"
)

// Source returns a dataset source for use with FakeEngine.Open.
func Source() frame.Source {
	return frame.Source{Path: "events.parquet", Table: "events"}
}

// Call is one recorded engine operation.
type Call struct {
	Op   string // open, declare, register, define, filter, histogram, profile, arrays, report
	Name string
	Arg  string
}

// FakeEngine is a frame.Runtime that evaluates nothing. It tracks columns
// and filters so callers can assert on what the pipeline asked for.
type FakeEngine struct {
	mu sync.Mutex

	// Columns of every opened dataset.
	Columns []string
	// Rows is the dataset size reported to the first filter.
	Rows int64
	// Pass maps a filter label to the rows passing it.
	Pass map[string]int64

	OpenErr    error
	DeclareErr error
	DefineErr  map[string]error // by column name
	FilterErr  map[string]error // by predicate
	AggErr     error

	calls    []Call
	declared []string
	managed  map[string]frame.ManagedFunc
	closed   bool
}

// NewFakeEngine returns an engine whose datasets have the given columns.
func NewFakeEngine(columns ...string) *FakeEngine {
	return &FakeEngine{
		Columns:   columns,
		Pass:      make(map[string]int64),
		DefineErr: make(map[string]error),
		FilterErr: make(map[string]error),
		managed:   make(map[string]frame.ManagedFunc),
	}
}

func (e *FakeEngine) record(c Call) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)
}

// Calls returns the recorded operations in order.
func (e *FakeEngine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// CallsOf returns the recorded operations of one kind.
func (e *FakeEngine) CallsOf(op string) []Call {
	var out []Call
	for _, c := range e.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Declared returns the code passed to Declare.
func (e *FakeEngine) Declared() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.declared...)
}

// Managed returns a registered managed function.
func (e *FakeEngine) Managed(name string) (frame.ManagedFunc, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn, ok := e.managed[name]
	return fn, ok
}

// Closed reports whether Close was called.
func (e *FakeEngine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Open implements frame.Runtime.
func (e *FakeEngine) Open(_ context.Context, src frame.Source) (frame.Frame, error) {
	e.record(Call{Op: "open", Name: src.Path, Arg: src.Table})
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	return &FakeFrame{engine: e, columns: slices.Clone(e.Columns)}, nil
}

// Declare implements frame.Runtime.
func (e *FakeEngine) Declare(_ context.Context, code string) error {
	e.record(Call{Op: "declare", Arg: code})
	if e.DeclareErr != nil {
		return e.DeclareErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.declared = append(e.declared, code)
	return nil
}

// RegisterManaged implements frame.Runtime.
func (e *FakeEngine) RegisterManaged(_ context.Context, name string, arity int, fn frame.ManagedFunc) error {
	e.record(Call{Op: "register", Name: name, Arg: fmt.Sprint(arity)})
	e.mu.Lock()
	defer e.mu.Unlock()
	e.managed[name] = fn
	return nil
}

// Close implements frame.Runtime.
func (e *FakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// FakeFrame is the frame.Frame produced by FakeEngine.
type FakeFrame struct {
	engine  *FakeEngine
	columns []string
	cuts    []frame.CutResult // label and predicate only
}

func (f *FakeFrame) has(name string) bool {
	return slices.Contains(f.columns, name)
}

// Define implements frame.Frame.
func (f *FakeFrame) Define(_ context.Context, name, expr string) (frame.Frame, error) {
	f.engine.record(Call{Op: "define", Name: name, Arg: expr})
	if err := f.engine.DefineErr[name]; err != nil {
		return nil, err
	}
	if f.has(name) {
		return nil, fmt.Errorf("column %s already defined", name)
	}
	return &FakeFrame{engine: f.engine, columns: append(slices.Clone(f.columns), name), cuts: f.cuts}, nil
}

// Filter implements frame.Frame.
func (f *FakeFrame) Filter(_ context.Context, predicate, label string) (frame.Frame, error) {
	f.engine.record(Call{Op: "filter", Name: label, Arg: predicate})
	if err := f.engine.FilterErr[predicate]; err != nil {
		return nil, err
	}
	cuts := append(slices.Clone(f.cuts), frame.CutResult{Label: label, Predicate: predicate})
	return &FakeFrame{engine: f.engine, columns: f.columns, cuts: cuts}, nil
}

// Histogram1D implements frame.Frame. The histogram is returned empty.
func (f *FakeFrame) Histogram1D(_ context.Context, model hist.HistogramModel, column string) (*hist.Histogram, error) {
	f.engine.record(Call{Op: "histogram", Name: model.Name, Arg: column})
	if f.engine.AggErr != nil {
		return nil, f.engine.AggErr
	}
	if !f.has(column) {
		return nil, fmt.Errorf("column not found: %s", column)
	}
	return hist.NewHistogram(model), nil
}

// Profile1D implements frame.Frame. The profile is returned empty.
func (f *FakeFrame) Profile1D(_ context.Context, model hist.ProfileModel, xcol, ycol string) (*hist.Profile, error) {
	f.engine.record(Call{Op: "profile", Name: model.Name, Arg: xcol + "," + ycol})
	if f.engine.AggErr != nil {
		return nil, f.engine.AggErr
	}
	for _, c := range []string{xcol, ycol} {
		if !f.has(c) {
			return nil, fmt.Errorf("column not found: %s", c)
		}
	}
	return hist.NewProfile(model), nil
}

// ColumnsAsArrays implements frame.Frame. Every column is empty.
func (f *FakeFrame) ColumnsAsArrays(_ context.Context, names ...string) (map[string][]any, error) {
	f.engine.record(Call{Op: "arrays", Arg: fmt.Sprint(names)})
	out := make(map[string][]any, len(names))
	for _, n := range names {
		if !f.has(n) {
			return nil, fmt.Errorf("column not found: %s", n)
		}
		out[n] = nil
	}
	return out, nil
}

// ColumnNames implements frame.Frame.
func (f *FakeFrame) ColumnNames() []string {
	return slices.Clone(f.columns)
}

// Report implements frame.Frame using the engine's Rows and Pass table.
func (f *FakeFrame) Report(_ context.Context) (*frame.Report, error) {
	f.engine.record(Call{Op: "report"})
	labels := make([]string, len(f.cuts))
	predicates := make([]string, len(f.cuts))
	passes := make([]int64, len(f.cuts))
	for i, c := range f.cuts {
		labels[i] = c.Label
		predicates[i] = c.Predicate
		passes[i] = f.engine.Pass[c.Label]
	}
	return frame.NewReport(f.engine.Rows, labels, predicates, passes), nil
}

var (
	_ frame.Runtime = (*FakeEngine)(nil)
	_ frame.Frame   = (*FakeFrame)(nil)
)

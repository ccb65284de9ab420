package frame

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// CutResult is the accounting of one labelled filter.
type CutResult struct {
	Label     string
	Predicate string
	Pass      int64
	All       int64
}

// Efficiency returns pass/all as a percentage.
func (c CutResult) Efficiency() float64 {
	if c.All == 0 {
		return 0
	}
	return float64(c.Pass) / float64(c.All) * 100
}

// Report is the ordered efficiency report of a filter chain.
type Report struct {
	Total int64 // rows entering the first filter
	Cuts  []CutResult
}

// NewReport builds a report from the total row count and the row counts
// passing each filter in order.
func NewReport(total int64, labels, predicates []string, passes []int64) *Report {
	r := &Report{Total: total, Cuts: make([]CutResult, len(passes))}
	all := total
	for i, pass := range passes {
		r.Cuts[i] = CutResult{Label: labels[i], Predicate: predicates[i], Pass: pass, All: all}
		all = pass
	}
	return r
}

// Cumulative returns the fraction of the total passing cut i, as a percentage.
func (r *Report) Cumulative(i int) float64 {
	if r.Total == 0 || i < 0 || i >= len(r.Cuts) {
		return 0
	}
	return float64(r.Cuts[i].Pass) / float64(r.Total) * 100
}

// String renders the report one line per cut.
func (r *Report) String() string {
	var sb strings.Builder
	for i, c := range r.Cuts {
		fmt.Fprintf(&sb, "%-10s: pass=%-10d all=%-10d -- eff=%3.2f %% cumulative eff=%3.2f %%\n",
			c.Label, c.Pass, c.All, c.Efficiency(), r.Cumulative(i))
	}
	return sb.String()
}

// Render writes the report as a table.
func (r *Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Cut", "Predicate", "Pass", "All", "Eff %", "Cumulative %"})
	for i, c := range r.Cuts {
		t.AppendRow(table.Row{
			c.Label,
			c.Predicate,
			c.Pass,
			c.All,
			fmt.Sprintf("%.2f", c.Efficiency()),
			fmt.Sprintf("%.2f", r.Cumulative(i)),
		})
	}
	t.Render()
}

package hist

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Binning errors.
var (
	ErrNoBins       = errors.New("number of bins must be positive")
	ErrEmptyRange   = errors.New("upper edge must be greater than lower edge")
	ErrTooFewEdges  = errors.New("variable binning needs at least two edges")
	ErrUnsortedEdge = errors.New("bin edges must be strictly increasing")
)

// Binning describes the x axis of an aggregation.
type Binning struct {
	n      int
	lo, hi float64
	edges  []float64 // nil for uniform binning
}

// Uniform returns n equal-width bins spanning [lo, hi).
func Uniform(n int, lo, hi float64) (Binning, error) {
	if n <= 0 {
		return Binning{}, ErrNoBins
	}
	if !(hi > lo) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return Binning{}, fmt.Errorf("%w: [%g, %g)", ErrEmptyRange, lo, hi)
	}
	return Binning{n: n, lo: lo, hi: hi}, nil
}

// Variable returns len(edges)-1 bins with the given boundaries. Edges must be
// strictly increasing.
func Variable(edges []float64) (Binning, error) {
	if len(edges) < 2 {
		return Binning{}, ErrTooFewEdges
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return Binning{}, fmt.Errorf("%w: %g after %g", ErrUnsortedEdge, edges[i], edges[i-1])
		}
	}
	e := append([]float64(nil), edges...)
	return Binning{n: len(e) - 1, lo: e[0], hi: e[len(e)-1], edges: e}, nil
}

// N returns the number of in-range bins.
func (b Binning) N() int { return b.n }

// Low returns the lower edge of the first bin.
func (b Binning) Low() float64 { return b.lo }

// High returns the upper edge of the last bin.
func (b Binning) High() float64 { return b.hi }

// IsVariable reports whether the bins have explicit edges.
func (b Binning) IsVariable() bool { return b.edges != nil }

// Edges returns the n+1 bin boundaries.
func (b Binning) Edges() []float64 {
	if b.edges != nil {
		return append([]float64(nil), b.edges...)
	}
	out := make([]float64, b.n+1)
	width := (b.hi - b.lo) / float64(b.n)
	for i := range out {
		out[i] = b.lo + float64(i)*width
	}
	out[b.n] = b.hi
	return out
}

// Center returns the midpoint of in-range bin i.
func (b Binning) Center(i int) float64 {
	if i < 1 || i > b.n {
		return math.NaN()
	}
	if b.edges != nil {
		return (b.edges[i-1] + b.edges[i]) / 2
	}
	width := (b.hi - b.lo) / float64(b.n)
	return b.lo + (float64(i)-0.5)*width
}

// FindBin returns the bin that x falls in. NaN is not binned and yields -1.
func (b Binning) FindBin(x float64) int {
	switch {
	case math.IsNaN(x):
		return -1
	case x < b.lo:
		return 0
	case x >= b.hi:
		return b.n + 1
	}
	if b.edges != nil {
		return sort.Search(len(b.edges), func(i int) bool { return b.edges[i] > x })
	}
	bin := int(math.Floor((x-b.lo)*float64(b.n)/(b.hi-b.lo))) + 1
	return min(bin, b.n)
}

// SQL renders FindBin as a SQL expression over expr. The expression must
// not be NaN or NULL; callers filter those rows.
func (b Binning) SQL(expr string) string {
	v := "CAST(" + expr + " AS DOUBLE)"
	var sb strings.Builder
	sb.WriteString("CASE WHEN ")
	sb.WriteString(v)
	sb.WriteString(" < ")
	sb.WriteString(literal(b.lo))
	sb.WriteString(" THEN 0")

	if b.edges != nil {
		for i := 1; i <= b.n; i++ {
			fmt.Fprintf(&sb, " WHEN %s < %s THEN %d", v, literal(b.edges[i]), i)
		}
		fmt.Fprintf(&sb, " ELSE %d END", b.n+1)
		return sb.String()
	}

	fmt.Fprintf(&sb, " WHEN %s >= %s THEN %d", v, literal(b.hi), b.n+1)
	fmt.Fprintf(&sb, " ELSE LEAST(CAST(floor((%s - %s) * %d / (%s - %s)) AS BIGINT) + 1, %d) END",
		v, literal(b.lo), b.n, literal(b.hi), literal(b.lo), b.n)
	return sb.String()
}

func literal(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

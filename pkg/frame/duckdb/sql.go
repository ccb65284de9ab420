package duckdb

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/cutflow/pkg/hist"
)

var (
	identRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	elementRe = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*\[(.*)\]\s*$`)
)

// column is one output column of a node.
type column struct {
	Name string
	Type string
}

// isList reports whether values of the column are lists or arrays.
func (c column) isList() bool {
	return strings.HasSuffix(c.Type, "]") || strings.HasPrefix(c.Type, "LIST")
}

// value returns the expression yielding the column's values, one per
// element for list columns.
func (c column) value() string {
	if c.isList() {
		return "unnest(" + quoteIdent(c.Name) + ")"
	}
	return quoteIdent(c.Name)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// elementAccess rewrites an expression that is exactly name[index], with a
// 0-based index, into DuckDB's 1-based list_extract. An index past either
// end reads NULL. Slices and every other expression are returned unchanged.
func elementAccess(expr string) string {
	m := elementRe.FindStringSubmatch(expr)
	if m == nil {
		return expr
	}
	index := strings.TrimSpace(m[2])
	if index == "" {
		return expr
	}
	depth := 0
	for _, r := range index {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
			if depth < 0 {
				return expr
			}
		case ':':
			if depth == 0 {
				return expr
			}
		}
	}
	if depth != 0 {
		return expr
	}
	return fmt.Sprintf("CASE WHEN (%[2]s) < 0 THEN NULL ELSE list_extract(%[1]s, (%[2]s) + 1) END", m[1], index)
}

func defineQuery(from, name, expr string) string {
	return fmt.Sprintf("SELECT *, (%s) AS %s FROM (%s) AS _cf", expr, quoteIdent(name), from)
}

func filterQuery(from, predicate string) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS _cf WHERE (%s)", from, predicate)
}

func countQuery(from string) string {
	return fmt.Sprintf("SELECT count(*) FROM (%s) AS _cf", from)
}

func selectQuery(from string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return fmt.Sprintf("SELECT %s FROM (%s) AS _cf", strings.Join(quoted, ", "), from)
}

// histogramQuery groups the non-null, non-NaN values of value by bin and
// returns per-bin count, sum and sum of squares.
func histogramQuery(from, value string, b hist.Binning) string {
	return fmt.Sprintf(
		"SELECT %s AS bin, count(*) AS n, sum(v) AS sx, sum(v * v) AS sx2 "+
			"FROM (SELECT CAST(v AS DOUBLE) AS v FROM (SELECT %s AS v FROM (%s) AS _cf) AS _u) AS _h "+
			"WHERE v IS NOT NULL AND NOT isnan(v) GROUP BY 1 ORDER BY 1",
		b.SQL("v"), value, from)
}

// profileQuery groups (x, y) pairs by the bin of x and returns per-bin
// count, sum of y and sum of y squared.
func profileQuery(from, x, y string, b hist.Binning) string {
	return fmt.Sprintf(
		"SELECT %s AS bin, count(*) AS n, sum(y) AS sy, sum(y * y) AS sy2 "+
			"FROM (SELECT CAST(x AS DOUBLE) AS x, CAST(y AS DOUBLE) AS y FROM (SELECT %s AS x, %s AS y FROM (%s) AS _cf) AS _u) AS _p "+
			"WHERE x IS NOT NULL AND y IS NOT NULL AND NOT isnan(x) AND NOT isnan(y) GROUP BY 1 ORDER BY 1",
		b.SQL("x"), x, y, from)
}

// Package frame defines the contract between cutflow and the columnar engine
// that executes it.
//
// A Frame is a persistent, lazily evaluated view of a dataset. Define and
// Filter never mutate the receiver; they return a new Frame and the old one
// stays a valid view.
package frame

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/cutflow/pkg/hist"
)

// Frame is a handle onto a (possibly filtered and extended) dataset.
type Frame interface {
	// Define returns a frame with one additional column computed by expr.
	Define(ctx context.Context, name, expr string) (Frame, error)

	// Filter returns a frame keeping only rows where predicate holds. The
	// label names the filter in the efficiency report.
	Filter(ctx context.Context, predicate, label string) (Frame, error)

	// Histogram1D fills a histogram from column.
	Histogram1D(ctx context.Context, model hist.HistogramModel, column string) (*hist.Histogram, error)

	// Profile1D fills a profile of ycol in bins of xcol.
	Profile1D(ctx context.Context, model hist.ProfileModel, xcol, ycol string) (*hist.Profile, error)

	// ColumnsAsArrays materialises the named columns.
	ColumnsAsArrays(ctx context.Context, names ...string) (map[string][]any, error)

	// ColumnNames lists the columns visible from this frame.
	ColumnNames() []string

	// Report returns the pass counts of every labelled filter leading to
	// this frame, in application order.
	Report(ctx context.Context) (*Report, error)
}

// ManagedFunc is a host callback evaluated once per row.
type ManagedFunc func(args []any) (any, error)

// Runtime owns the engine session that frames are evaluated in.
type Runtime interface {
	// Open returns the base frame of a dataset.
	Open(ctx context.Context, source Source) (Frame, error)

	// Declare compiles code in the engine session (macros, functions).
	Declare(ctx context.Context, code string) error

	// RegisterManaged exposes fn to expressions under name.
	RegisterManaged(ctx context.Context, name string, arity int, fn ManagedFunc) error

	// Close releases the session.
	Close() error
}

// Source identifies a dataset: a file and, for multi-table containers, the
// table inside it.
type Source struct {
	Path  string
	Table string
}

// Format is the storage format of a Source.
type Format string

// Supported source formats.
const (
	FormatParquet  Format = "parquet"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatDatabase Format = "database"
	FormatUnknown  Format = ""
)

// Format infers the storage format from the file extension.
func (s Source) Format() Format {
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".parquet", ".pq":
		return FormatParquet
	case ".csv", ".tsv":
		return FormatCSV
	case ".json", ".ndjson", ".jsonl":
		return FormatJSON
	case ".duckdb", ".db":
		return FormatDatabase
	}
	return FormatUnknown
}

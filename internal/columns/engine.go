// Package columns defines derived columns on a frame, in declared order, and
// tracks the columns that could not be defined.
package columns

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"slices"

	"github.com/leapstack-labs/cutflow/internal/logging"
	"github.com/leapstack-labs/cutflow/pkg/core"
	"github.com/leapstack-labs/cutflow/pkg/frame"
)

var (
	identRe  = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	stringRe = regexp.MustCompile(`'(?:[^']|'')*'|"(?:[^"]|"")*"`)
)

// Engine applies column definitions and owns the undefined-column set.
type Engine struct {
	logger    *slog.Logger
	undefined map[string]string
	order     []string
}

// NewEngine creates a column engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:    logging.Component(logger, "columns"),
		undefined: make(map[string]string),
	}
}

// Define extends f with def. A disabled definition returns f unchanged. On
// failure f is returned together with a *ColumnError or *UndefinedError,
// the failure is logged as a warning and the column is marked undefined
// unless f already has it.
func (e *Engine) Define(ctx context.Context, f frame.Frame, def core.ColumnDef) (frame.Frame, error) {
	if !def.Enabled() {
		e.logger.Debug("column skipped", "name", def.Name, "init", false)
		return f, nil
	}

	if err := e.CheckDefined("column "+def.Name, e.ReferencedIn(def.Expression)...); err != nil {
		e.logger.Warn("column left undefined", "name", def.Name, "error", err)
		e.MarkUndefinedIn(f, def.Name, "depends on an undefined column")
		return f, err
	}

	next, err := f.Define(ctx, def.Name, def.Expression)
	if err != nil {
		colErr := &ColumnError{Column: def.Name, Expression: def.Expression, Err: err}
		e.logger.Warn("column left undefined", "name", def.Name, "error", colErr)
		e.MarkUndefinedIn(f, def.Name, err.Error())
		return f, colErr
	}

	delete(e.undefined, def.Name)
	e.logger.Info("column defined", "name", def.Name, "expression", def.Expression)
	return next, nil
}

// DefineAll defines every column in order. Failures are collected; the
// returned frame carries every column that succeeded.
func (e *Engine) DefineAll(ctx context.Context, f frame.Frame, defs []core.ColumnDef) (frame.Frame, error) {
	var errs []error
	for _, def := range defs {
		next, err := e.Define(ctx, f, def)
		if err != nil {
			errs = append(errs, err)
		}
		f = next
	}
	return f, errors.Join(errs...)
}

// MarkUndefined records name as undefined.
func (e *Engine) MarkUndefined(name, reason string) {
	if _, ok := e.undefined[name]; !ok {
		e.order = append(e.order, name)
	}
	e.undefined[name] = reason
}

// MarkUndefinedIn records name as undefined unless f has a column of that
// name. It reports whether name was marked.
func (e *Engine) MarkUndefinedIn(f frame.Frame, name, reason string) bool {
	if slices.Contains(f.ColumnNames(), name) {
		e.logger.Debug("existing column kept", "name", name, "reason", reason)
		return false
	}
	e.MarkUndefined(name, reason)
	return true
}

// IsUndefined reports whether name is marked undefined.
func (e *Engine) IsUndefined(name string) bool {
	_, ok := e.undefined[name]
	return ok
}

// Undefined returns the undefined columns in the order they were marked.
func (e *Engine) Undefined() []string {
	var out []string
	for _, name := range e.order {
		if e.IsUndefined(name) {
			out = append(out, name)
		}
	}
	return out
}

// Reason returns why name is undefined.
func (e *Engine) Reason(name string) string {
	return e.undefined[name]
}

// CheckDefined returns an *UndefinedError naming every undefined column among
// names. usage describes the referencing site.
func (e *Engine) CheckDefined(usage string, names ...string) error {
	var missing []string
	reasons := make(map[string]string)
	for _, n := range names {
		if e.IsUndefined(n) && !slices.Contains(missing, n) {
			missing = append(missing, n)
			reasons[n] = e.undefined[n]
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &UndefinedError{Columns: missing, Reasons: reasons, Usage: usage}
}

// ReferencedIn returns the undefined columns named in expr. Identifiers inside
// string literals are ignored.
func (e *Engine) ReferencedIn(expr string) []string {
	if len(e.undefined) == 0 {
		return nil
	}
	expr = stringRe.ReplaceAllString(expr, "''")
	var out []string
	for _, id := range identRe.FindAllString(expr, -1) {
		if e.IsUndefined(id) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

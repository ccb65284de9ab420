package library

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/leapstack-labs/cutflow/internal/logging"
	"github.com/leapstack-labs/cutflow/pkg/core"
	"github.com/leapstack-labs/cutflow/pkg/frame"
)

// ManagedPrefix marks engine functions backed by a managed callable.
const ManagedPrefix = "star_"

// Dispatcher turns user-function references into column definitions.
type Dispatcher struct {
	source  Source
	runtime frame.Runtime
	logger  *slog.Logger

	mu         sync.Mutex
	registered map[string]int // managed name -> arity
}

// NewDispatcher creates a dispatcher that declares code in runtime.
func NewDispatcher(source Source, runtime frame.Runtime, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		source:     source,
		runtime:    runtime,
		logger:     logging.Component(logger, "library"),
		registered: make(map[string]int),
	}
}

// Validate loads the library once and reports what it provides.
func (d *Dispatcher) Validate() (*Registry, error) {
	reg, err := d.source.Load()
	if err != nil {
		return nil, err
	}
	d.logger.Debug("library loaded", "callables", strings.Join(reg.Names(), ","))
	return reg, nil
}

// Dispatch resolves ref into a column definition. Recoverable failures are
// returned as *ColumnError; a library that no longer loads is a *LibraryError.
func (d *Dispatcher) Dispatch(ctx context.Context, ref core.UserFunction) (*core.ColumnDef, error) {
	args := ref.ArgValues()

	if ref.Callable == "" {
		expr, err := directExpression(args)
		if err != nil {
			return nil, &ColumnError{Column: ref.NewColumn, Message: err.Error()}
		}
		return &core.ColumnDef{Name: ref.NewColumn, Expression: expr}, nil
	}

	lang := ref.Lang()
	if lang == core.LanguageUnsupported || lang == core.LanguageDirect {
		return nil, &ColumnError{
			Column:   ref.NewColumn,
			Callable: ref.Callable,
			Message:  fmt.Sprintf("unsupported language %q", ref.Language),
		}
	}

	reg, err := d.source.Load()
	if err != nil {
		return nil, err
	}
	fn, ok := reg.Lookup(ref.Callable)
	if !ok {
		return nil, &ColumnError{Column: ref.NewColumn, Callable: ref.Callable, Message: "callable not found in library"}
	}

	switch lang {
	case core.LanguageNative:
		return d.native(ctx, ref, fn, args)
	default:
		return d.managed(ctx, ref, fn, args)
	}
}

func (d *Dispatcher) native(ctx context.Context, ref core.UserFunction, fn Func, args []string) (*core.ColumnDef, error) {
	in := make([]any, len(args))
	for i, a := range args {
		in[i] = a
	}
	out, err := fn(in)
	if err != nil {
		return nil, &ColumnError{Column: ref.NewColumn, Callable: ref.Callable, Message: "code generation failed", Err: err}
	}
	code, ok := out.(string)
	if !ok || strings.TrimSpace(code) == "" {
		return nil, &ColumnError{Column: ref.NewColumn, Callable: ref.Callable, Message: "native callable must return code text"}
	}
	if err := d.runtime.Declare(ctx, code); err != nil {
		return nil, &ColumnError{Column: ref.NewColumn, Callable: ref.Callable, Message: "failed to declare code", Err: err}
	}
	d.logger.Debug("declared native code", "callable", ref.Callable)

	return &core.ColumnDef{
		Name:       ref.NewColumn,
		Expression: callExpression(ref.Callable, args),
	}, nil
}

func (d *Dispatcher) managed(ctx context.Context, ref core.UserFunction, fn Func, args []string) (*core.ColumnDef, error) {
	name := ManagedPrefix + ref.Callable

	d.mu.Lock()
	defer d.mu.Unlock()

	if arity, ok := d.registered[name]; ok {
		if arity != len(args) {
			return nil, &ColumnError{
				Column:   ref.NewColumn,
				Callable: ref.Callable,
				Message:  fmt.Sprintf("already registered with %d arguments", arity),
			}
		}
	} else {
		if err := d.runtime.RegisterManaged(ctx, name, len(args), frame.ManagedFunc(fn)); err != nil {
			return nil, &ColumnError{Column: ref.NewColumn, Callable: ref.Callable, Message: "failed to register managed function", Err: err}
		}
		d.registered[name] = len(args)
		d.logger.Debug("registered managed function", "name", name, "arity", len(args))
	}

	return &core.ColumnDef{
		Name:       ref.NewColumn,
		Expression: callExpression(name, args),
	}, nil
}

func directExpression(args []string) (string, error) {
	switch len(args) {
	case 1:
		return args[0], nil
	case 2:
		return fmt.Sprintf("%s[%s]", args[0], args[1]), nil
	default:
		return "", fmt.Errorf("expected 1 or 2 arguments without a callable, got %d", len(args))
	}
}

func callExpression(name string, args []string) string {
	return name + "(" + strings.Join(args, ", ") + ")"
}

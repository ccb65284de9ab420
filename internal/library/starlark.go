package library

import (
	"fmt"
	"os"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// StarlarkSource loads callables from a .star file. The file must export
// exactly one struct whose callable fields form the registry:
//
//	def _twice(x):
//	    return x * 2
//
//	lib = struct(twice = _twice)
type StarlarkSource struct {
	Path string
}

// Load executes the file in a fresh interpreter and returns its callables.
func (s *StarlarkSource) Load() (*Registry, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, &LibraryError{Path: s.Path, Message: "failed to read file", Err: err}
	}

	thread := &starlark.Thread{
		Name: "load:" + s.Path,
		Print: func(_ *starlark.Thread, _ string) {
			// Ignore prints during library loading
		},
	}
	predeclared := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}

	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, s.Path, content, predeclared)
	if err != nil {
		return nil, &LibraryError{Path: s.Path, Message: "Starlark execution error", Err: err}
	}
	globals.Freeze()

	var structs []string
	for _, name := range globals.Keys() {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if _, ok := globals[name].(*starlarkstruct.Struct); ok {
			structs = append(structs, name)
		}
	}
	if len(structs) != 1 {
		return nil, &LibraryError{
			Path:    s.Path,
			Message: fmt.Sprintf("expected exactly one exported struct, found %d", len(structs)),
		}
	}

	lib := globals[structs[0]].(*starlarkstruct.Struct)
	reg := NewRegistry()
	for _, name := range lib.AttrNames() {
		v, err := lib.Attr(name)
		if err != nil {
			return nil, &LibraryError{Path: s.Path, Message: "failed to read struct field " + name, Err: err}
		}
		fn, ok := v.(starlark.Callable)
		if !ok {
			continue
		}
		if err := reg.Register(name, starlarkFunc(name, fn)); err != nil {
			return nil, &LibraryError{Path: s.Path, Message: err.Error()}
		}
	}
	if reg.Len() == 0 {
		return nil, &LibraryError{
			Path:    s.Path,
			Message: fmt.Sprintf("struct %s has no callables", structs[0]),
		}
	}
	return reg, nil
}

// starlarkFunc wraps a frozen Starlark callable. Each call runs on its own
// thread so the engine may invoke it concurrently.
func starlarkFunc(name string, fn starlark.Callable) Func {
	return func(args []any) (any, error) {
		sargs := make(starlark.Tuple, len(args))
		for i, a := range args {
			v, err := GoToStarlark(a)
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", name, i, err)
			}
			sargs[i] = v
		}

		thread := &starlark.Thread{Name: "call:" + name}
		out, err := starlark.Call(thread, fn, sargs, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return ToGo(out)
	}
}

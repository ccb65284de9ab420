// Package library resolves user-function references into column definitions.
//
// Callables come from an explicit Registry: a table of named functions with
// the fixed signature Func. Registries are produced by a Source, either the
// compiled-in builtins or a Starlark library file.
package library

import (
	"fmt"
	"maps"
	"slices"
)

// Func is a library callable. Native callables receive argument names and
// return code text; managed callables receive row values and return a value.
type Func func(args []any) (any, error)

// Registry maps callable names to functions.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds fn under name, replacing any previous entry.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return fmt.Errorf("callable name is empty")
	}
	if fn == nil {
		return fmt.Errorf("callable %s is nil", name)
	}
	r.funcs[name] = fn
	return nil
}

// Lookup returns the callable registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.funcs))
}

// Len returns the number of callables.
func (r *Registry) Len() int {
	return len(r.funcs)
}

// Merge returns a registry holding r's entries overridden by other's.
func (r *Registry) Merge(other *Registry) *Registry {
	out := &Registry{funcs: maps.Clone(r.funcs)}
	if other != nil {
		maps.Copy(out.funcs, other.funcs)
	}
	return out
}

package library

import (
	"path/filepath"
	"strings"
)

// BuiltinLibrary is the library_file value selecting only the builtins.
const BuiltinLibrary = "builtin"

// Source produces a fresh Registry on every Load.
type Source interface {
	Load() (*Registry, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (*Registry, error)

// Load implements Source.
func (f SourceFunc) Load() (*Registry, error) { return f() }

// Layered loads every source in order; later sources override earlier ones.
type Layered []Source

// Load implements Source.
func (l Layered) Load() (*Registry, error) {
	reg := NewRegistry()
	for _, s := range l {
		next, err := s.Load()
		if err != nil {
			return nil, err
		}
		reg = reg.Merge(next)
	}
	return reg, nil
}

// SourceFor returns the source for a library_file value: the builtins,
// overridden by the Starlark file when one is named.
func SourceFor(path string) (Source, error) {
	if strings.EqualFold(path, BuiltinLibrary) {
		return SourceFunc(builtinRegistry), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".star", ".starlark", ".sky":
		return Layered{SourceFunc(builtinRegistry), &StarlarkSource{Path: path}}, nil
	}
	return nil, &LibraryError{Path: path, Message: "unsupported library format, expected a .star file"}
}

func builtinRegistry() (*Registry, error) {
	return Builtins(), nil
}

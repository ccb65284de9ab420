package library

import (
	"fmt"
	"regexp"
	"strings"
)

var paramRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// macro is a native generator producing a DuckDB macro definition.
type macro struct {
	name  string
	arity int
	body  func(p []string) string
}

var builtinMacros = []macro{
	{"findMaxInRVec", 1, func(p []string) string {
		return fmt.Sprintf("coalesce(list_max(%s), -1.7976931348623157e+308)", p[0])
	}},
	{"findMaxIndex", 1, func(p []string) string {
		return fmt.Sprintf("CASE WHEN len(%[1]s) = 0 THEN -1 ELSE list_position(%[1]s, list_max(%[1]s)) - 1 END", p[0])
	}},
	{"calculateMeanOfVectors", 1, func(p []string) string {
		return fmt.Sprintf("list_transform(%s, __m -> coalesce(list_avg(__m), 0))", p[0])
	}},
	{"coreProximity", 4, func(p []string) string {
		return fmt.Sprintf("sqrt(pow(%s - %s, 2) + pow(%s - %s, 2)) / 1000.0", p[0], p[2], p[1], p[3])
	}},
	{"addConstantToRVec", 2, addConstant},
	{"addConstant_to_RVec", 2, addConstant},
	{"extractFADC0", 1, func(p []string) string {
		return fmt.Sprintf("flatten(list_transform(%s, __t -> __t[1][1:128]))", p[0])
	}},
	{"extractFADC1", 1, func(p []string) string {
		return fmt.Sprintf("flatten(list_transform(%s, __t -> __t[2][1:128]))", p[0])
	}},
}

func addConstant(p []string) string {
	return fmt.Sprintf("list_transform(%s, __e -> __e + %s)", p[0], p[1])
}

// Builtins returns the compiled-in native generators.
func Builtins() *Registry {
	reg := NewRegistry()
	for _, m := range builtinMacros {
		reg.funcs[m.name] = m.generate
	}
	return reg
}

// generate renders CREATE OR REPLACE MACRO for the given argument names.
// Parameters take the argument names when they are distinct identifiers,
// otherwise positional names p1..pN.
func (m macro) generate(args []any) (any, error) {
	if len(args) != m.arity {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", m.name, m.arity, len(args))
	}
	params := make([]string, len(args))
	seen := make(map[string]bool, len(args))
	named := true
	for i, a := range args {
		s, ok := a.(string)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d must be a string, got %T", m.name, i, a)
		}
		if !paramRe.MatchString(s) || seen[strings.ToLower(s)] {
			named = false
		}
		seen[strings.ToLower(s)] = true
		params[i] = s
	}
	if !named {
		for i := range params {
			params[i] = fmt.Sprintf("p%d", i+1)
		}
	}
	return fmt.Sprintf("CREATE OR REPLACE MACRO %s(%s) AS %s",
		m.name, strings.Join(params, ", "), m.body(params)), nil
}

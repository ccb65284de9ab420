package core

import "strings"

// Language selects how a user function is dispatched.
type Language int

// Supported dispatch languages.
const (
	LanguageDirect Language = iota
	LanguageNative
	LanguageManaged
	LanguageUnsupported
)

func (l Language) String() string {
	switch l {
	case LanguageDirect:
		return "direct"
	case LanguageNative:
		return "native"
	case LanguageManaged:
		return "managed"
	default:
		return "unsupported"
	}
}

// ParseLanguage maps a configuration language tag to a Language.
// Tags are case-insensitive; an empty tag means direct.
func ParseLanguage(tag string) Language {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "", "direct", "none", "root", "rdf":
		return LanguageDirect
	case "native", "c++", "cpp", "cxx", "sql", "macro":
		return LanguageNative
	case "managed", "python", "py", "starlark", "star":
		return LanguageManaged
	default:
		return LanguageUnsupported
	}
}

// Arg is a positional user-function argument.
type Arg struct {
	Value string `mapstructure:"value"`
}

// UserFunction references a library callable that produces one new column.
type UserFunction struct {
	Language  string `mapstructure:"language"`
	NewColumn string `mapstructure:"new_column"`
	Callable  string `mapstructure:"callable"`
	Args      []Arg  `mapstructure:"args"`
}

// Lang returns the parsed dispatch language.
func (u UserFunction) Lang() Language {
	return ParseLanguage(u.Language)
}

// ArgValues returns the raw argument strings in order.
func (u UserFunction) ArgValues() []string {
	values := make([]string, len(u.Args))
	for i, a := range u.Args {
		values[i] = a.Value
	}
	return values
}

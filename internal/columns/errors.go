package columns

import (
	"fmt"
	"strings"
)

// ColumnError reports a column the engine could not define.
type ColumnError struct {
	Column     string
	Expression string
	Err        error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("failed to define column %s = %s: %v", e.Column, e.Expression, e.Err)
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}

// UndefinedError reports a reference to columns left undefined by an
// earlier failure.
type UndefinedError struct {
	Columns []string
	// Reasons holds why each column is undefined, by name.
	Reasons map[string]string
	// Usage describes the referencing site, e.g. "cut Cut_2".
	Usage string
}

func (e *UndefinedError) Error() string {
	parts := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		parts[i] = c
		if r := e.Reasons[c]; r != "" {
			parts[i] += " (" + r + ")"
		}
	}
	msg := "undefined columns: " + strings.Join(parts, ", ")
	if e.Usage != "" {
		msg = e.Usage + " references " + msg
	}
	return msg
}

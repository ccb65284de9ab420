package library

import "fmt"

// LibraryError reports a transformation library that cannot be used. It is
// fatal for the run.
type LibraryError struct {
	Path    string
	Message string
	Err     error
}

func (e *LibraryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("library %s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("library %s: %s", e.Path, e.Message)
}

func (e *LibraryError) Unwrap() error {
	return e.Err
}

// ColumnError reports a user function that could not be turned into a
// column. The column is left undefined and the run continues.
type ColumnError struct {
	Column   string
	Callable string
	Message  string
	Err      error
}

func (e *ColumnError) Error() string {
	msg := fmt.Sprintf("column %s", e.Column)
	if e.Callable != "" {
		msg += fmt.Sprintf(" (callable %s)", e.Callable)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}

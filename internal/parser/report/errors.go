package report

import "fmt"

// MalformedInputError indicates a truncated or syntactically invalid input
// file. It is stream-fatal: the run aborts rather than yielding partial
// output for the broken file.
type MalformedInputError struct {
	File string
	Err  error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input %s: %v", e.File, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

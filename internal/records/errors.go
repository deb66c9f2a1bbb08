package records

import "fmt"

// FormatError reports input that could not be read as a table at all.
type FormatError struct {
	Op  string
	Err error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("records: %s: invalid tabular data", e.Op)
	}
	return fmt.Sprintf("records: %s: invalid tabular data: %v", e.Op, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ValidationError reports a record that cannot be stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("records: %s %s", e.Field, e.Reason)
}

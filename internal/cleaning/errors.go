package cleaning

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownOperation = errors.New("unknown cleaning operation")
	ErrColumnNotFound   = errors.New("column not found")
	ErrEmptyTable       = errors.New("cannot apply operations to an empty table")
	ErrDuplicateColumn  = errors.New("column already exists")
)

// OpError reports which operation and column a failure belongs to.
type OpError struct {
	Op     Operation
	Column string
	Err    error
}

func (e *OpError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s on %q: %v", e.Op, e.Column, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

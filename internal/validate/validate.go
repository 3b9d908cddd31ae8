// Package validate checks user requests against the working table before
// anything is applied. Every check returns nil or an *Error whose message is
// fit to show the user.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/cleaning"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

var (
	ErrColumnNotFound = table.ErrColumnNotFound
	ErrTypeMismatch   = errors.New("column type mismatch")
	ErrEmpty          = errors.New("dataset is empty")
	ErrTooFewRows     = errors.New("not enough rows")
	ErrAllMissing     = errors.New("column has only missing values")
	ErrTooFewClasses  = errors.New("not enough classes")
	ErrRowOutOfRange  = table.ErrRowOutOfRange
)

// MinSamples is the smallest table a model is trained on.
const MinSamples = 10

// MinClasses is the smallest number of target classes for classification.
const MinClasses = 2

// Error is a validation failure. Err is one of the sentinels above.
type Error struct {
	Err error
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

func fail(err error, format string, args ...any) error {
	return &Error{Err: err, Msg: fmt.Sprintf(format, args...)}
}

var (
	textOps = map[cleaning.Operation]bool{
		cleaning.Lowercase: true, cleaning.Uppercase: true, cleaning.Trim: true,
		cleaning.LStrip: true, cleaning.RStrip: true, cleaning.Alnum: true,
	}
	numericOps = map[cleaning.Operation]bool{
		cleaning.Normalize: true, cleaning.RemoveOutliers: true,
	}
)

// ColumnExists fails when column is not in f. The message lists up to ten
// available columns.
func ColumnExists(f *table.Frame, column string) error {
	if f.Has(column) {
		return nil
	}
	names := f.Names()
	if len(names) > 10 {
		names = names[:10]
	}
	return fail(ErrColumnNotFound, "Column '%s' not found. Available: %s", column, strings.Join(names, ", "))
}

func NumericColumn(f *table.Frame, column string) error {
	if k := f.Kind(column); k != table.KindNumeric {
		return fail(ErrTypeMismatch, "Column '%s' is not numeric (type: %s).", column, k)
	}
	return nil
}

// TextColumn accepts anything stored as strings, which includes dates that
// have not been converted.
func TextColumn(f *table.Frame, column string) error {
	if k := f.Kind(column); k == table.KindNumeric {
		return fail(ErrTypeMismatch, "Column '%s' is not text (type: %s).", column, k)
	}
	return nil
}

func NotEmpty(f *table.Frame) error {
	if f == nil || f.NumCols() == 0 || f.NumRows() == 0 {
		return fail(ErrEmpty, "The dataset is empty. Please upload data first.")
	}
	return nil
}

// Row fails when i is not a row index of f. Indexes are zero-based.
func Row(f *table.Frame, i int) error {
	if i < 0 || i >= f.NumRows() {
		return fail(ErrRowOutOfRange, "Row %d is out of range (0-%d).", i, f.NumRows()-1)
	}
	return nil
}

func MinRows(f *table.Frame, n int, context string) error {
	if f.NumRows() < n {
		return fail(ErrTooFewRows, "Need at least %d rows for %s, but only %d available.", n, context, f.NumRows())
	}
	return nil
}

func NotAllMissing(f *table.Frame, column string) error {
	cells, _ := f.Column(column)
	for _, c := range cells {
		if !c.Null {
			return nil
		}
	}
	return fail(ErrAllMissing, "Column '%s' contains only missing values.", column)
}

// CleaningCompatible rejects string operations on numeric columns and numeric
// operations on text columns.
func CleaningCompatible(f *table.Frame, op cleaning.Operation, column string) error {
	kind := f.Kind(column)
	if textOps[op] && kind == table.KindNumeric {
		return fail(ErrTypeMismatch, "Cannot apply '%s' to non-text column '%s'.", op, column)
	}
	if numericOps[op] && kind != table.KindNumeric {
		return fail(ErrTypeMismatch, "Cannot apply '%s' to non-numeric column '%s'.", op, column)
	}
	return nil
}

// Cleaning runs the checks a cleaning request needs, in order.
func Cleaning(f *table.Frame, op cleaning.Operation, column string) error {
	if err := NotEmpty(f); err != nil {
		return err
	}
	if err := ColumnExists(f, column); err != nil {
		return err
	}
	return CleaningCompatible(f, op, column)
}

// MLInputs checks that every feature exists and is numeric and that the table
// has at least minSamples rows.
func MLInputs(f *table.Frame, minSamples int, features ...string) error {
	for _, col := range features {
		if err := ColumnExists(f, col); err != nil {
			return err
		}
		if err := NumericColumn(f, col); err != nil {
			return err
		}
	}
	if f.NumRows() < minSamples {
		return fail(ErrTooFewRows, "Need at least %d rows, but only %d available.", minSamples, f.NumRows())
	}
	return nil
}

// ClassificationTarget requires at least minClasses distinct non-null values.
func ClassificationTarget(f *table.Frame, target string, minClasses int) error {
	if err := ColumnExists(f, target); err != nil {
		return err
	}
	cells, _ := f.Column(target)
	distinct := map[string]bool{}
	for _, c := range cells {
		if !c.Null {
			distinct[c.V] = true
		}
	}
	if len(distinct) < minClasses {
		return fail(ErrTooFewClasses, "Target '%s' has %d class(es), need at least %d.", target, len(distinct), minClasses)
	}
	return nil
}

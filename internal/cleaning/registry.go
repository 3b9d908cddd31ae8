// Package cleaning is the fixed catalog of column transformations. Every
// operation is a pure function from a table to a new table.
package cleaning

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

// Operation is a catalog key, also used as the wire name in the action log.
type Operation string

const (
	LStrip         Operation = "lstrip"
	RStrip         Operation = "rstrip"
	Alnum          Operation = "alnum"
	DropNA         Operation = "dropna"
	FillNA         Operation = "fillna"
	ToNumeric      Operation = "to_numeric"
	ToString       Operation = "to_string"
	ToDatetime     Operation = "to_datetime"
	Lowercase      Operation = "lowercase"
	Uppercase      Operation = "uppercase"
	Trim           Operation = "trim"
	DropColumn     Operation = "drop_column"
	RenameColumn   Operation = "rename_column"
	Normalize      Operation = "normalize"
	RemoveOutliers Operation = "remove_outliers"
	DropDuplicates Operation = "drop_duplicates"
	SortAsc        Operation = "sort_asc"
	SortDesc       Operation = "sort_desc"
)

// Params are the optional inputs some operations read.
type Params struct {
	FillValue string
	NewName   string
}

type applyFunc func(f *table.Frame, col string, p Params) (*table.Frame, error)

// Spec describes one catalog entry.
type Spec struct {
	Op          Operation
	Label       string
	Destructive bool
	apply       applyFunc
}

// catalog order is the display order
var catalog = []Spec{
	{Op: LStrip, Label: "Strip value (left)", apply: lstrip},
	{Op: RStrip, Label: "Strip value (right)", apply: rstrip},
	{Op: Alnum, Label: "Remove non-alphanumeric characters", apply: alnum},
	{Op: DropNA, Label: "Drop NA", Destructive: true, apply: dropNA},
	{Op: FillNA, Label: "Fill NA", apply: fillNA},
	{Op: ToNumeric, Label: "Convert to Numeric", apply: toNumeric},
	{Op: ToString, Label: "Convert to String", apply: toString},
	{Op: ToDatetime, Label: "Convert to DateTime", apply: toDatetime},
	{Op: Lowercase, Label: "Convert to Lowercase", apply: mapText(strings.ToLower)},
	{Op: Uppercase, Label: "Convert to Uppercase", apply: mapText(strings.ToUpper)},
	{Op: Trim, Label: "Trim Whitespace", apply: mapText(strings.TrimSpace)},
	{Op: DropColumn, Label: "Drop Column", Destructive: true, apply: dropColumn},
	{Op: RenameColumn, Label: "Rename Column", apply: renameColumn},
	{Op: Normalize, Label: "Normalize", apply: normalize},
	{Op: RemoveOutliers, Label: "Remove Outliers", Destructive: true, apply: removeOutliers},
	{Op: DropDuplicates, Label: "Drop Duplicates", Destructive: true, apply: dropDuplicates},
	{Op: SortAsc, Label: "Sort Ascending", apply: sortBy(true)},
	{Op: SortDesc, Label: "Sort Descending", apply: sortBy(false)},
}

var byOp = func() map[Operation]Spec {
	m := make(map[Operation]Spec, len(catalog))
	for _, s := range catalog {
		m[s.Op] = s
	}
	return m
}()

// Catalog returns every operation in display order.
func Catalog() []Spec { return append([]Spec(nil), catalog...) }

// Lookup returns the catalog entry for op.
func Lookup(op Operation) (Spec, bool) {
	s, ok := byOp[op]
	return s, ok
}

// Known reports whether op is in the catalog.
func Known(op Operation) bool {
	_, ok := byOp[op]
	return ok
}

// IsDestructive reports whether op removes or nulls data and so needs an
// explicit confirmation and a snapshot.
func IsDestructive(op Operation) bool { return byOp[op].Destructive }

// Label returns the human label for op, or the key itself when unknown.
func Label(op Operation) string {
	if s, ok := byOp[op]; ok {
		return s.Label
	}
	return string(op)
}

// Apply runs op against column and returns a new table. f is never modified.
func Apply(f *table.Frame, op Operation, column string, p Params) (*table.Frame, error) {
	spec, ok := byOp[op]
	if !ok {
		return nil, &OpError{Op: op, Column: column, Err: ErrUnknownOperation}
	}
	if f.NumRows() == 0 {
		return nil, &OpError{Op: op, Column: column, Err: ErrEmptyTable}
	}
	if !f.Has(column) {
		return nil, &OpError{Op: op, Column: column, Err: fmt.Errorf("%w; available: %s", ErrColumnNotFound, strings.Join(f.Names(), ", "))}
	}
	out, err := spec.apply(f.Clone(), column, p)
	if err != nil {
		return nil, &OpError{Op: op, Column: column, Err: err}
	}
	return out, nil
}

// Note returns a human note for requests that are accepted but change nothing.
func Note(op Operation, column string, p Params) string {
	if op == RenameColumn && p.NewName == "" {
		return fmt.Sprintf("rename_column on %q skipped: no new name provided", column)
	}
	return ""
}

// Describe renders a history description for op.
func Describe(op Operation, column string, p Params) string {
	s := fmt.Sprintf("%s on '%s'", Label(op), column)
	switch {
	case op == RenameColumn && p.NewName != "":
		s += fmt.Sprintf(" -> '%s'", p.NewName)
	case p.FillValue != "" && (op == FillNA || op == LStrip || op == RStrip):
		s += fmt.Sprintf(" (value '%s')", p.FillValue)
	}
	return s
}

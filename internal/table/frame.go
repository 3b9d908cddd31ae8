// Package table holds the working dataset: an in-memory frame of nullable
// string cells plus the single on-disk CSV store it is read from and written to.
package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cell is one nullable value. The zero Cell is an empty, non-null string.
type Cell struct {
	V    string
	Null bool
}

// Null is the missing-value cell.
var Null = Cell{Null: true}

// Str returns a non-null cell.
func Str(s string) Cell { return Cell{V: s} }

// Num returns a non-null cell holding a formatted float.
func Num(x float64) Cell { return Cell{V: FormatFloat(x)} }

// Float parses the cell as a number. Null cells never parse.
func (c Cell) Float() (float64, bool) {
	if c.Null {
		return 0, false
	}
	return ParseFloat(c.V)
}

// ParseFloat is the strict numeric parser used for kind inference and coercion.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FormatFloat renders x in the shortest form that parses back to x.
func FormatFloat(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }

// ParseTime tries the datetime layouts the tool recognizes.
func ParseTime(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	}
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTime renders a timestamp as a date, or date and time when the time of
// day is not midnight.
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

var (
	ErrColumnNotFound  = errors.New("column not found")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrLengthMismatch  = errors.New("column length mismatch")
	ErrRowOutOfRange   = errors.New("row out of range")
)

// Frame is an ordered set of equally long named columns.
type Frame struct {
	names []string
	cols  [][]Cell
}

// New returns an empty frame with the given column names.
func New(names ...string) *Frame {
	f := &Frame{names: append([]string(nil), names...), cols: make([][]Cell, len(names))}
	return f
}

// FromRecords builds a frame from a header and string rows. Short rows are
// padded with nulls; recognized missing markers become null.
func FromRecords(header []string, rows [][]string) (*Frame, error) {
	seen := map[string]bool{}
	for _, h := range header {
		if seen[h] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, h)
		}
		seen[h] = true
	}
	f := New(header...)
	for j := range f.cols {
		f.cols[j] = make([]Cell, len(rows))
	}
	for i, rec := range rows {
		for j := range header {
			if j < len(rec) {
				f.cols[j][i] = cellFromField(rec[j])
			} else {
				f.cols[j][i] = Null
			}
		}
	}
	return f, nil
}

// missing markers read as null, matching common CSV tooling defaults
var naValues = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-NaN": true, "-nan": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

func cellFromField(s string) Cell {
	if naValues[s] {
		return Null
	}
	return Str(s)
}

// Field returns the cell a CSV field s reads as.
func Field(s string) Cell { return cellFromField(s) }

// Names returns a copy of the column names in order.
func (f *Frame) Names() []string { return append([]string(nil), f.names...) }

// NumCols returns the column count.
func (f *Frame) NumCols() int { return len(f.names) }

// NumRows returns the row count.
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return len(f.cols[0])
}

// Index returns the position of a column or -1.
func (f *Frame) Index(name string) int {
	for i, n := range f.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Has reports whether the column exists.
func (f *Frame) Has(name string) bool { return f.Index(name) >= 0 }

// Column returns the cells of a column. The slice is owned by the frame.
func (f *Frame) Column(name string) ([]Cell, bool) {
	i := f.Index(name)
	if i < 0 {
		return nil, false
	}
	return f.cols[i], true
}

// SetColumn replaces a column in place or appends a new one.
func (f *Frame) SetColumn(name string, cells []Cell) error {
	if len(f.names) > 0 && len(cells) != f.NumRows() {
		return fmt.Errorf("%w: %q has %d cells, frame has %d rows", ErrLengthMismatch, name, len(cells), f.NumRows())
	}
	if i := f.Index(name); i >= 0 {
		f.cols[i] = cells
		return nil
	}
	f.names = append(f.names, name)
	f.cols = append(f.cols, cells)
	return nil
}

// DropColumn removes a column.
func (f *Frame) DropColumn(name string) error {
	i := f.Index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	f.names = append(f.names[:i], f.names[i+1:]...)
	f.cols = append(f.cols[:i], f.cols[i+1:]...)
	return nil
}

// RenameColumn renames old to name, keeping its position.
func (f *Frame) RenameColumn(old, name string) error {
	i := f.Index(old)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, old)
	}
	if old == name {
		return nil
	}
	if f.Has(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	f.names[i] = name
	return nil
}

// Set replaces the cell at row i of column name.
func (f *Frame) Set(i int, name string, c Cell) error {
	j := f.Index(name)
	if j < 0 {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	if i < 0 || i >= f.NumRows() {
		return fmt.Errorf("%w: %d (table has %d rows)", ErrRowOutOfRange, i, f.NumRows())
	}
	f.cols[j][i] = c
	return nil
}

// AppendRow adds one row; cells are in column order.
func (f *Frame) AppendRow(cells ...Cell) error {
	if len(cells) != len(f.names) {
		return fmt.Errorf("%w: row has %d cells, frame has %d columns", ErrLengthMismatch, len(cells), len(f.names))
	}
	for j, c := range cells {
		f.cols[j] = append(f.cols[j], c)
	}
	return nil
}

// Row returns a copy of row i in column order.
func (f *Frame) Row(i int) []Cell {
	out := make([]Cell, len(f.cols))
	for j := range f.cols {
		out[j] = f.cols[j][i]
	}
	return out
}

// Records returns every row as strings, nulls rendered empty.
func (f *Frame) Records() [][]string {
	n := f.NumRows()
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		rec := make([]string, len(f.cols))
		for j := range f.cols {
			if !f.cols[j][i].Null {
				rec[j] = f.cols[j][i].V
			}
		}
		out[i] = rec
	}
	return out
}

// Take returns a new frame holding the given rows in the given order.
func (f *Frame) Take(rows []int) *Frame {
	g := New(f.names...)
	for j := range f.cols {
		col := make([]Cell, len(rows))
		for k, i := range rows {
			col[k] = f.cols[j][i]
		}
		g.cols[j] = col
	}
	return g
}

// Head returns at most n leading rows.
func (f *Frame) Head(n int) *Frame {
	if n > f.NumRows() {
		n = f.NumRows()
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return f.Take(rows)
}

// Clone deep-copies the frame.
func (f *Frame) Clone() *Frame {
	g := &Frame{names: append([]string(nil), f.names...), cols: make([][]Cell, len(f.cols))}
	for j, c := range f.cols {
		g.cols[j] = append([]Cell(nil), c...)
	}
	return g
}

// Equal reports whether two frames have the same names and cells.
func (f *Frame) Equal(g *Frame) bool {
	if f == nil || g == nil {
		return f == g
	}
	if len(f.names) != len(g.names) || f.NumRows() != g.NumRows() {
		return false
	}
	for j := range f.names {
		if f.names[j] != g.names[j] {
			return false
		}
		for i := range f.cols[j] {
			if f.cols[j][i] != g.cols[j][i] {
				return false
			}
		}
	}
	return true
}

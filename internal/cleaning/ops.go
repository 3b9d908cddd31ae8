package cleaning

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

// column fetches a column known to exist; Apply checked it.
func column(f *table.Frame, col string) []table.Cell {
	cells, _ := f.Column(col)
	return cells
}

// mapText applies fn to every non-null cell.
func mapText(fn func(string) string) applyFunc {
	return func(f *table.Frame, col string, _ Params) (*table.Frame, error) {
		cells := column(f, col)
		for i, c := range cells {
			if !c.Null {
				cells[i] = table.Str(fn(c.V))
			}
		}
		return f, nil
	}
}

func lstrip(f *table.Frame, col string, p Params) (*table.Frame, error) {
	if p.FillValue == "" {
		return mapText(func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) })(f, col, p)
	}
	return mapText(func(s string) string { return strings.TrimLeft(s, p.FillValue) })(f, col, p)
}

func rstrip(f *table.Frame, col string, p Params) (*table.Frame, error) {
	if p.FillValue == "" {
		return mapText(func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) })(f, col, p)
	}
	return mapText(func(s string) string { return strings.TrimRight(s, p.FillValue) })(f, col, p)
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

func alnum(f *table.Frame, col string, p Params) (*table.Frame, error) {
	return mapText(func(s string) string { return nonAlnum.ReplaceAllString(s, "") })(f, col, p)
}

// keepRows returns the frame restricted to rows where keep is true. All
// columns are filtered together so rows stay aligned.
func keepRows(f *table.Frame, keep func(i int) bool) *table.Frame {
	rows := make([]int, 0, f.NumRows())
	for i := 0; i < f.NumRows(); i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return f.Take(rows)
}

func dropNA(f *table.Frame, col string, _ Params) (*table.Frame, error) {
	cells := column(f, col)
	return keepRows(f, func(i int) bool { return !cells[i].Null }), nil
}

func dropDuplicates(f *table.Frame, col string, _ Params) (*table.Frame, error) {
	cells := column(f, col)
	numeric := table.KindOf(cells) == table.KindNumeric
	// numeric cells compare by value, so 1 and 1.0 are the same key
	key := func(c table.Cell) table.Cell {
		if numeric {
			if x, ok := c.Float(); ok {
				return table.Num(x)
			}
		}
		return c
	}
	seen := make(map[table.Cell]bool, len(cells))
	return keepRows(f, func(i int) bool {
		k := key(cells[i])
		if seen[k] {
			return false
		}
		seen[k] = true
		return true
	}), nil
}

func fillNA(f *table.Frame, col string, p Params) (*table.Frame, error) {
	cells := column(f, col)
	fill := table.Str(p.FillValue)
	if p.FillValue == "" {
		var ok bool
		if table.KindOf(cells) == table.KindNumeric {
			fill, ok = meanCell(cells)
		} else {
			fill, ok = modeCell(cells)
		}
		if !ok {
			return f, nil
		}
	}
	for i, c := range cells {
		if c.Null {
			cells[i] = fill
		}
	}
	return f, nil
}

func meanCell(cells []table.Cell) (table.Cell, bool) {
	var sum float64
	var n int
	for _, c := range cells {
		if x, ok := c.Float(); ok {
			sum += x
			n++
		}
	}
	if n == 0 {
		return table.Null, false
	}
	return table.Num(sum / float64(n)), true
}

// modeCell returns the most frequent value; ties go to the smallest value.
func modeCell(cells []table.Cell) (table.Cell, bool) {
	counts := map[string]int{}
	for _, c := range cells {
		if !c.Null {
			counts[c.V]++
		}
	}
	if len(counts) == 0 {
		return table.Null, false
	}
	best, bestN := "", -1
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return table.Str(best), true
}

// coerceNumeric rewrites cells as canonical numbers; anything unparseable
// becomes null.
func coerceNumeric(cells []table.Cell) {
	for i, c := range cells {
		if x, ok := c.Float(); ok && !math.IsNaN(x) {
			cells[i] = table.Num(x)
		} else {
			cells[i] = table.Null
		}
	}
}

func toNumeric(f *table.Frame, col string, _ Params) (*table.Frame, error) {
	coerceNumeric(column(f, col))
	return f, nil
}

// toString keeps values as text. Nulls stay null.
func toString(f *table.Frame, _ string, _ Params) (*table.Frame, error) {
	return f, nil
}

func toDatetime(f *table.Frame, col string, _ Params) (*table.Frame, error) {
	cells := column(f, col)
	for i, c := range cells {
		if c.Null {
			continue
		}
		if t, ok := table.ParseTime(c.V); ok {
			cells[i] = table.Str(table.FormatTime(t))
		} else {
			cells[i] = table.Null
		}
	}
	return f, nil
}

func dropColumn(f *table.Frame, col string, _ Params) (*table.Frame, error) {
	if err := f.DropColumn(col); err != nil {
		return nil, err
	}
	return f, nil
}

func renameColumn(f *table.Frame, col string, p Params) (*table.Frame, error) {
	if p.NewName == "" {
		return f, nil
	}
	if p.NewName != col && f.Has(p.NewName) {
		return nil, ErrDuplicateColumn
	}
	if err := f.RenameColumn(col, p.NewName); err != nil {
		return nil, err
	}
	return f, nil
}

// normalize coerces to numbers, fills nulls with 0 and min-max scales to
// [0,1]. A constant column scales to all zeros.
func normalize(f *table.Frame, col string, _ Params) (*table.Frame, error) {
	cells := column(f, col)
	coerceNumeric(cells)
	vals := make([]float64, len(cells))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, c := range cells {
		x, ok := c.Float()
		if !ok {
			x = 0
		}
		vals[i] = x
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	span := hi - lo
	for i, x := range vals {
		if span == 0 {
			cells[i] = table.Num(0)
			continue
		}
		cells[i] = table.Num((x - lo) / span)
	}
	return f, nil
}

// removeOutliers nulls values whose population z-score is at least 3.
func removeOutliers(f *table.Frame, col string, _ Params) (*table.Frame, error) {
	cells := column(f, col)
	coerceNumeric(cells)
	var sum float64
	var n int
	for _, c := range cells {
		if x, ok := c.Float(); ok {
			sum += x
			n++
		}
	}
	if n == 0 {
		return f, nil
	}
	mean := sum / float64(n)
	var ss float64
	for _, c := range cells {
		if x, ok := c.Float(); ok {
			ss += (x - mean) * (x - mean)
		}
	}
	std := math.Sqrt(ss / float64(n))
	if std == 0 {
		return f, nil
	}
	for i, c := range cells {
		if x, ok := c.Float(); ok && math.Abs((x-mean)/std) >= 3 {
			cells[i] = table.Null
		}
	}
	return f, nil
}

// sortBy stable-sorts rows by col. Numeric columns compare as numbers, others
// as strings. Nulls go last in both directions.
func sortBy(asc bool) applyFunc {
	return func(f *table.Frame, col string, _ Params) (*table.Frame, error) {
		cells := column(f, col)
		numeric := table.KindOf(cells) == table.KindNumeric
		rows := make([]int, len(cells))
		for i := range rows {
			rows[i] = i
		}
		less := func(a, b table.Cell) bool {
			if numeric {
				x, _ := a.Float()
				y, _ := b.Float()
				return x < y
			}
			return a.V < b.V
		}
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := cells[rows[i]], cells[rows[j]]
			if a.Null || b.Null {
				return !a.Null && b.Null
			}
			if asc {
				return less(a, b)
			}
			return less(b, a)
		})
		return f.Take(rows), nil
	}
}

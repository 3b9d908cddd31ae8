package table

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric  Kind = "numeric"
	KindDatetime Kind = "datetime"
	KindText     Kind = "text"
)

// KindOf infers a column's kind from its non-null values. A column with no
// values counts as numeric, like an all-missing float column.
func KindOf(cells []Cell) Kind {
	numeric, datetime := true, true
	for _, c := range cells {
		if c.Null {
			continue
		}
		if numeric {
			if _, ok := ParseFloat(c.V); !ok {
				numeric = false
			}
		}
		if !numeric && datetime {
			if _, ok := ParseTime(c.V); !ok {
				datetime = false
			}
		}
		if !numeric && !datetime {
			return KindText
		}
	}
	if numeric {
		return KindNumeric
	}
	return KindDatetime
}

// Kind infers the kind of a named column. Missing columns report text.
func (f *Frame) Kind(name string) Kind {
	cells, ok := f.Column(name)
	if !ok {
		return KindText
	}
	return KindOf(cells)
}

// IsNumeric reports whether the column is numeric.
func (f *Frame) IsNumeric(name string) bool { return f.Has(name) && f.Kind(name) == KindNumeric }

// Option is a label/value pair for column pickers.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

func options(names []string) []Option {
	out := make([]Option, 0, len(names))
	for _, n := range names {
		out = append(out, Option{Label: n, Value: n})
	}
	return out
}

// AllColumnOptions lists every column.
func AllColumnOptions(f *Frame) []Option { return options(f.Names()) }

// NumericColumnOptions lists numeric columns.
func NumericColumnOptions(f *Frame) []Option {
	var names []string
	for _, n := range f.names {
		if f.Kind(n) == KindNumeric {
			names = append(names, n)
		}
	}
	return options(names)
}

// CategoricalColumnOptions lists columns that are not numeric.
func CategoricalColumnOptions(f *Frame) []Option {
	var names []string
	for _, n := range f.names {
		if f.Kind(n) != KindNumeric {
			names = append(names, n)
		}
	}
	return options(names)
}

// Package analysis computes descriptive statistics over the working table
// and renders them as a compact Markdown report.
package analysis

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

// Options controls which optional sections a report carries.
type Options struct {
	// SampleRows is how many leading rows to include. Negative means 5.
	SampleRows int
	// GroupBy computes per-group numeric summaries for the named columns.
	GroupBy []string
	// Correlations computes pairwise Pearson r among numeric columns.
	Correlations bool
	// Outliers counts values whose robust z-score (MAD based) exceeds
	// OutlierThreshold.
	Outliers         bool
	OutlierThreshold float64
	// TopValues caps the category list per text column.
	TopValues int
}

// DefaultOptions returns the options used by the summary command.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		Correlations:     true,
		Outliers:         true,
		OutlierThreshold: 3.5,
		TopValues:        8,
	}
}

// Report summarizes a table.
type Report struct {
	Name       string          `json:"name,omitempty"`
	Rows       int             `json:"rows"`
	MissingPct float64         `json:"missing_pct"`
	Cols       []ColumnSummary `json:"columns"`
	Samples    [][]string      `json:"samples,omitempty"`
	Groups     []GroupResult   `json:"groups,omitempty"`
	Corr       *CorrMatrix     `json:"correlations,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// ColumnSummary captures the inferred kind and statistics of one column.
type ColumnSummary struct {
	Name       string  `json:"name"`
	Kind       string  `json:"kind"` // numeric|datetime|categorical|text
	Unit       string  `json:"unit,omitempty"`
	NonNull    int     `json:"non_null"`
	Missing    int     `json:"missing"`
	MissingPct float64 `json:"missing_pct"`
	Unique     int     `json:"unique"`

	Min    float64 `json:"min,omitempty"`
	Q1     float64 `json:"q1,omitempty"`
	Median float64 `json:"median,omitempty"`
	Q3     float64 `json:"q3,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Mean   float64 `json:"mean,omitempty"`
	Std    float64 `json:"std,omitempty"`

	OutliersCount    int     `json:"outliers,omitempty"`
	OutliersMaxAbsZ  float64 `json:"outliers_max_abs_z,omitempty"`
	OutlierThreshold float64 `json:"outlier_threshold,omitempty"`

	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`

	TopValues    []CategoryCount `json:"top_values,omitempty"`
	ExampleTexts []string        `json:"examples,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// GroupResult aggregates numeric columns within one group key.
type GroupResult struct {
	Key     string                `json:"key"`
	Size    int                   `json:"size"`
	Metrics map[string]NumSummary `json:"metrics"`
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix holds a symmetric Pearson correlation matrix.
type CorrMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// values longer than this are treated as free text, not categories
const maxCategoryLen = 64

// Summarize computes a report over f. It never modifies f.
func Summarize(f *table.Frame, name string, opt Options) *Report {
	rep := &Report{Name: name, Rows: f.NumRows()}
	sampleRows := opt.SampleRows
	if sampleRows < 0 {
		sampleRows = 5
	}
	topN := opt.TopValues
	if topN <= 0 {
		topN = 8
	}

	numeric := map[string][]float64{}
	var numCols []string
	totalMissing := 0
	for _, col := range f.Names() {
		cells, _ := f.Column(col)
		_, unit := splitUnits(col)
		s := ColumnSummary{Name: col, Unit: unit}
		var present []string
		for _, c := range cells {
			if c.Null {
				s.Missing++
				continue
			}
			present = append(present, c.V)
		}
		s.NonNull = len(present)
		totalMissing += s.Missing
		if len(cells) > 0 {
			s.MissingPct = float64(s.Missing) * 100 / float64(len(cells))
		}
		counts := map[string]int{}
		for _, v := range present {
			counts[v]++
		}
		s.Unique = len(counts)

		switch table.KindOf(cells) {
		case table.KindNumeric:
			s.Kind = "numeric"
			vals := floats(cells)
			numeric[col] = vals
			numCols = append(numCols, col)
			describeNumeric(&s, vals, opt)
		case table.KindDatetime:
			s.Kind = "datetime"
			s.First, s.Last = timeRange(present)
		default:
			s.TopValues, s.ExampleTexts = categories(counts, present, topN)
			if len(s.TopValues) > 0 {
				s.Kind = "categorical"
			} else {
				s.Kind = "text"
			}
		}
		rep.Cols = append(rep.Cols, s)
	}
	if rep.Rows > 0 && f.NumCols() > 0 {
		rep.MissingPct = float64(totalMissing) * 100 / float64(rep.Rows*f.NumCols())
	}

	for _, row := range f.Head(sampleRows).Records() {
		rep.Samples = append(rep.Samples, row)
	}
	if len(opt.GroupBy) > 0 {
		groups, warn := groupBy(f, opt.GroupBy, numCols)
		rep.Groups = groups
		rep.Warnings = append(rep.Warnings, warn...)
	}
	if opt.Correlations && len(numCols) >= 2 {
		rep.Corr = correlations(f, numCols)
	}
	return rep
}

// floats returns the non-null numeric values of a column.
func floats(cells []table.Cell) []float64 {
	var out []float64
	for _, c := range cells {
		if x, ok := c.Float(); ok {
			out = append(out, x)
		}
	}
	return out
}

func describeNumeric(s *ColumnSummary, vals []float64, opt Options) {
	if len(vals) == 0 {
		return
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Q1 = quantile(sorted, 0.25)
	s.Median = quantile(sorted, 0.5)
	s.Q3 = quantile(sorted, 0.75)

	if len(vals) > 1 {
		s.Mean, s.Std = stat.MeanStdDev(vals, nil)
	} else {
		s.Mean = vals[0]
	}

	if !opt.Outliers || len(vals) < 8 {
		return
	}
	thr := opt.OutlierThreshold
	if thr <= 0 {
		thr = 3.5
	}
	s.OutlierThreshold = thr
	median, mad := medianMAD(vals)
	if mad == 0 {
		return
	}
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			s.OutliersCount++
		}
		s.OutliersMaxAbsZ = math.Max(s.OutliersMaxAbsZ, az)
	}
}

func timeRange(present []string) (first, last string) {
	var lo, hi time.Time
	for _, v := range present {
		t, ok := table.ParseTime(v)
		if !ok {
			continue
		}
		if first == "" || t.Before(lo) {
			first, lo = v, t
		}
		if last == "" || t.After(hi) {
			last, hi = v, t
		}
	}
	return first, last
}

// categories ranks short values by frequency; ties break by value. Long
// values are only kept as examples.
func categories(counts map[string]int, present []string, topN int) ([]CategoryCount, []string) {
	var tops []CategoryCount
	for v, n := range counts {
		if len(v) <= maxCategoryLen {
			tops = append(tops, CategoryCount{Value: v, Count: n})
		}
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > topN {
		tops = tops[:topN]
	}
	var examples []string
	if len(tops) == 0 {
		for _, v := range present {
			if len(examples) == 3 {
				break
			}
			examples = append(examples, v)
		}
	}
	return tops, examples
}

func groupBy(f *table.Frame, by []string, numCols []string) ([]GroupResult, []string) {
	var keys [][]table.Cell
	var names []string
	var warnings []string
	for _, name := range by {
		cells, ok := f.Column(name)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("group-by column %q not found", name))
			continue
		}
		keys = append(keys, cells)
		names = append(names, name)
	}
	if len(keys) == 0 {
		return nil, warnings
	}
	groups := map[string]*GroupResult{}
	for i := 0; i < f.NumRows(); i++ {
		parts := make([]string, len(keys))
		for k, cells := range keys {
			v := cells[i].V
			if cells[i].Null {
				v = "(missing)"
			}
			parts[k] = names[k] + "=" + safeVal(v)
		}
		key := strings.Join(parts, " | ")
		g := groups[key]
		if g == nil {
			g = &GroupResult{Key: key, Metrics: map[string]NumSummary{}}
			groups[key] = g
		}
		g.Size++
		for _, col := range numCols {
			cells, _ := f.Column(col)
			x, ok := cells[i].Float()
			if !ok {
				continue
			}
			m, seen := g.Metrics[col]
			if !seen || x < m.Min {
				m.Min = x
			}
			if !seen || x > m.Max {
				m.Max = x
			}
			m.Mean += (x - m.Mean) / float64(m.Count+1)
			m.Count++
			g.Metrics[col] = m
		}
	}
	out := make([]GroupResult, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	if len(out) > 20 {
		out = out[:20]
		warnings = append(warnings, "showing the 20 largest groups")
	}
	return out, warnings
}

// correlations uses pairwise-complete observations.
func correlations(f *table.Frame, numCols []string) *CorrMatrix {
	n := len(numCols)
	cols := make([][]table.Cell, n)
	for i, name := range numCols {
		cols[i], _ = f.Column(name)
	}
	mat := make([][]float64, n)
	for i := range mat {
		mat[i] = make([]float64, n)
		mat[i][i] = 1
	}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			r := pearson(cols[a], cols[b])
			mat[a][b], mat[b][a] = r, r
		}
	}
	return &CorrMatrix{Columns: numCols, Values: mat}
}

func pearson(xs, ys []table.Cell) float64 {
	var px, py []float64
	for i := range xs {
		x, okx := xs[i].Float()
		y, oky := ys[i].Float()
		if !okx || !oky {
			continue
		}
		px = append(px, x)
		py = append(py, y)
	}
	if len(px) < 2 {
		return 0
	}
	r := stat.Correlation(px, py, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, r))
}

// Markdown renders the report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		fmt.Fprintf(&b, "File: %s\n", r.Name)
	}
	fmt.Fprintf(&b, "Rows: %d\n", r.Rows)
	fmt.Fprintf(&b, "Columns: %d\n", len(r.Cols))
	fmt.Fprintf(&b, "Missing: %.1f%%\n\n", r.MissingPct)

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		name := safeName(c.Name)
		fmt.Fprintf(&b, "- %s: %s (non-null %d, missing %.1f%%)", name, c.Kind, c.NonNull, c.MissingPct)
		switch c.Kind {
		case "numeric":
			if c.NonNull > 0 {
				fmt.Fprintf(&b, "; min %.4g, q1 %.4g, median %.4g, q3 %.4g, max %.4g, mean %.4g, std %.4g",
					c.Min, c.Q1, c.Median, c.Q3, c.Max, c.Mean, c.Std)
			}
			if c.OutlierThreshold > 0 {
				fmt.Fprintf(&b, "; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold)
				if c.OutliersMaxAbsZ > 0 {
					fmt.Fprintf(&b, " (max |z|≈%.2f)", c.OutliersMaxAbsZ)
				}
			}
		case "datetime":
			if c.First != "" {
				fmt.Fprintf(&b, "; from %s to %s", c.First, c.Last)
			}
		case "categorical":
			b.WriteString("; top: ")
			for i, kv := range c.TopValues {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%s(%d)", safeVal(kv.Value), kv.Count)
			}
			if c.Unique > len(c.TopValues) {
				fmt.Fprintf(&b, "; unique=%d", c.Unique)
			}
		case "text":
			if len(c.ExampleTexts) > 0 {
				b.WriteString("; e.g., ")
				for i, ex := range c.ExampleTexts {
					if i > 0 {
						b.WriteString(" | ")
					}
					b.WriteString(safeVal(ex))
				}
			}
		}
		b.WriteString("\n")
	}

	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUP-BY SUMMARY]\n")
		for _, g := range r.Groups {
			fmt.Fprintf(&b, "- %s (n=%d)\n", g.Key, g.Size)
			keys := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) > 6 {
				keys = keys[:6]
			}
			for _, k := range keys {
				m := g.Metrics[k]
				fmt.Fprintf(&b, "  • %s: mean %.4g (min %.4g, max %.4g)\n", k, m.Mean, m.Min, m.Max)
			}
		}
	}

	if r.Corr != nil && len(r.Corr.Columns) >= 2 {
		b.WriteString("\n[CORRELATIONS]\n")
		type pair struct {
			A, B string
			R    float64
		}
		var pairs []pair
		n := len(r.Corr.Columns)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs = append(pairs, pair{A: r.Corr.Columns[i], B: r.Corr.Columns[j], R: r.Corr.Values[i][j]})
			}
		}
		sort.SliceStable(pairs, func(i, j int) bool {
			return math.Abs(pairs[i].R) > math.Abs(pairs[j].R)
		})
		if len(pairs) > 10 {
			pairs = pairs[:10]
		}
		for _, p := range pairs {
			fmt.Fprintf(&b, "- %s ~ %s: r=%.3f\n", p.A, p.B, p.R)
		}
	}

	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD]\n| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n|")
		for range r.Cols {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range r.Cols {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`),  // Alpha (%)
	regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), // Mass [mg/L]
	regexp.MustCompile(`^(.*?)[_\s-]+(mg/L|g/L|ug/L|°[CF]|Brix|%|ppm|ppb)$`),
}

// splitUnits extracts a unit annotation from a column header.
func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, re := range unitPatterns {
		if m := re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[2])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}

// medianMAD computes the median and median absolute deviation.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	return median, quantile(dev, 0.5)
}

// quantile interpolates linearly between closest ranks of sorted, the
// pandas default. stat.Quantile's LinInterp interpolates the empirical CDF
// instead and gives different quartiles on small samples.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

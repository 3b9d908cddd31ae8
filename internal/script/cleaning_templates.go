package script

import (
	"regexp"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/cleaning"
)

// Cleaning templates are written once as line formats with placeholders:
//
//	%C  the column, as a Python string literal
//	%V  the fill value, as a Python string literal
//	%N  the new column name, as a Python string literal
//
// The same format renders the code and, compiled to a regexp, matches it back.
type cleaningTemplate struct {
	op    cleaning.Operation
	lines []string
	// applies reports whether this variant renders c.
	applies func(c action.Cleaning) bool

	patterns []*regexp.Regexp
}

const (
	phColumn  = "%C"
	phValue   = "%V"
	phNewName = "%N"
)

func always(action.Cleaning) bool        { return true }
func withValue(c action.Cleaning) bool    { return c.FillValue != "" }
func withoutValue(c action.Cleaning) bool { return c.FillValue == "" }
func withName(c action.Cleaning) bool     { return c.NewName != "" }
func withoutName(c action.Cleaning) bool  { return c.NewName == "" }

// Order is match priority: multi-line blocks first, then the value-carrying
// single-line forms, then the rest.
var cleaningTemplates = compileCleaning([]cleaningTemplate{
	{op: cleaning.FillNA, applies: withoutValue, lines: []string{
		"if pd.api.types.is_numeric_dtype(df[%C]):",
		"    df[%C] = df[%C].fillna(df[%C].mean())",
		"else:",
		"    df[%C] = df[%C].fillna(df[%C].mode()[0])",
	}},
	{op: cleaning.Normalize, applies: always, lines: []string{
		"df[%C] = pd.to_numeric(df[%C], errors='coerce')",
		"df[%C] = df[%C].fillna(0)",
		"from sklearn.preprocessing import MinMaxScaler",
		"_scaler = MinMaxScaler()",
		"df[%C] = _scaler.fit_transform(df[[%C]])",
	}},
	{op: cleaning.RemoveOutliers, applies: always, lines: []string{
		"df[%C] = pd.to_numeric(df[%C], errors='coerce')",
		"_z = np.abs(scipy.stats.zscore(df[%C].dropna()))",
		"_mask = df[%C].notna()",
		"_mask.loc[df[%C].notna()] = _z >= 3",
		"df.loc[_mask, %C] = None",
	}},
	{op: cleaning.FillNA, applies: withValue, lines: []string{"df[%C] = df[%C].fillna(%V)"}},
	{op: cleaning.LStrip, applies: withValue, lines: []string{"df[%C] = df[%C].str.lstrip(%V)"}},
	{op: cleaning.LStrip, applies: withoutValue, lines: []string{"df[%C] = df[%C].str.lstrip()"}},
	{op: cleaning.RStrip, applies: withValue, lines: []string{"df[%C] = df[%C].str.rstrip(%V)"}},
	{op: cleaning.RStrip, applies: withoutValue, lines: []string{"df[%C] = df[%C].str.rstrip()"}},
	{op: cleaning.Alnum, applies: always, lines: []string{`df[%C] = df[%C].str.replace("[^a-zA-Z0-9]", "", regex=True)`}},
	{op: cleaning.DropNA, applies: always, lines: []string{"df = df.dropna(subset=[%C])"}},
	{op: cleaning.ToNumeric, applies: always, lines: []string{"df[%C] = pd.to_numeric(df[%C], errors='coerce')"}},
	{op: cleaning.ToString, applies: always, lines: []string{"df[%C] = df[%C].astype(str)"}},
	{op: cleaning.ToDatetime, applies: always, lines: []string{"df[%C] = pd.to_datetime(df[%C], errors='coerce')"}},
	{op: cleaning.Lowercase, applies: always, lines: []string{"df[%C] = df[%C].str.lower()"}},
	{op: cleaning.Uppercase, applies: always, lines: []string{"df[%C] = df[%C].str.upper()"}},
	{op: cleaning.Trim, applies: always, lines: []string{"df[%C] = df[%C].str.strip()"}},
	{op: cleaning.DropColumn, applies: always, lines: []string{"df = df.drop(columns=[%C])"}},
	{op: cleaning.DropDuplicates, applies: always, lines: []string{"df = df.drop_duplicates(subset=[%C])"}},
	{op: cleaning.SortAsc, applies: always, lines: []string{"df = df.sort_values(by=%C, ascending=True)"}},
	{op: cleaning.SortDesc, applies: always, lines: []string{"df = df.sort_values(by=%C, ascending=False)"}},
	{op: cleaning.RenameColumn, applies: withName, lines: []string{"df = df.rename(columns={%C: %N})"}},
	{op: cleaning.RenameColumn, applies: withoutName, lines: []string{"# rename_column on %C (no new name provided, skipped)"}},
})

// a Python string literal in either quote style
const pyStrPattern = `'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`

var placeholderRe = regexp.MustCompile(`%[CVN]`)

// linePattern compiles one format line. The first occurrence of each
// placeholder captures; later occurrences only need to match a literal.
func linePattern(format string) *regexp.Regexp {
	format = strings.TrimSpace(format)
	var b strings.Builder
	b.WriteString(`^`)
	seen := map[string]bool{}
	last := 0
	for _, loc := range placeholderRe.FindAllStringIndex(format, -1) {
		b.WriteString(regexp.QuoteMeta(format[last:loc[0]]))
		ph := format[loc[0]:loc[1]]
		expr := pyStrPattern
		if ph == phValue {
			// hand-written scripts may fill with a bare number
			expr = pyStrPattern + `|[^,()]+?`
		}
		if seen[ph] {
			b.WriteString(`(?:` + expr + `)`)
		} else {
			b.WriteString(`(?P<` + ph[1:] + `>` + expr + `)`)
			seen[ph] = true
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(format[last:]))
	b.WriteString(`$`)
	return regexp.MustCompile(b.String())
}

func compileCleaning(ts []cleaningTemplate) []cleaningTemplate {
	for i := range ts {
		for _, l := range ts[i].lines {
			ts[i].patterns = append(ts[i].patterns, linePattern(l))
		}
	}
	return ts
}

func (t cleaningTemplate) render(c action.Cleaning) string {
	r := strings.NewReplacer(phColumn, pyRepr(c.Column), phValue, pyRepr(c.FillValue), phNewName, pyRepr(c.NewName))
	out := make([]string, len(t.lines))
	for i, l := range t.lines {
		out[i] = r.Replace(l)
	}
	return strings.Join(out, "\n")
}

// match tries the template against lines starting at the first one. lines are
// already trimmed. It returns the recovered action and how many lines it used.
func (t cleaningTemplate) match(lines []string) (action.Cleaning, int, bool) {
	if len(lines) < len(t.patterns) {
		return action.Cleaning{}, 0, false
	}
	c := action.Cleaning{Operation: string(t.op)}
	for i, re := range t.patterns {
		m := re.FindStringSubmatch(lines[i])
		if m == nil {
			return action.Cleaning{}, 0, false
		}
		for gi, name := range re.SubexpNames() {
			if name == "" || m[gi] == "" {
				continue
			}
			switch "%" + name {
			case phColumn:
				if i == 0 {
					c.Column = pyValue(m[gi])
				}
			case phValue:
				c.FillValue = pyValue(m[gi])
			case phNewName:
				c.NewName = pyValue(m[gi])
			}
		}
	}
	return c, len(t.patterns), true
}

// renderCleaning returns the code for one cleaning action.
func renderCleaning(c action.Cleaning) string {
	for _, t := range cleaningTemplates {
		if string(t.op) == c.Operation && t.applies(c) {
			return t.render(c)
		}
	}
	return "# Unknown cleaning operation: " + c.Operation
}

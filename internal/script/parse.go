package script

import (
	"regexp"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
)

// SkippedLine is a statement in the cleaning section that matched no template.
type SkippedLine struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Result is the outcome of parsing a script.
type Result struct {
	Actions []action.Action
	Skipped []SkippedLine
}

// Counts returns how many actions of each type were recovered.
func (r Result) Counts() map[action.Type]int {
	out := map[action.Type]int{}
	for _, a := range r.Actions {
		out[a.Type()]++
	}
	return out
}

var (
	chartAnchorRe = regexp.MustCompile(`^# --- Chart: (\w+) ---$`)
	mlAnchorRe    = regexp.MustCompile(`^# --- ML: (\w+) ---$`)
	formatNoteRe  = regexp.MustCompile(`#\s*format:\s*(\w+)\s*$`)
)

type line struct {
	no   int
	text string
}

// sections slices the script into the bodies after each top-level anchor.
// Text before the first anchor is ignored.
func sections(text string) map[string][]line {
	out := map[string][]line{}
	current := ""
	for i, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		switch trimmed {
		case AnchorLoad, AnchorCleaning, AnchorCharts, AnchorML:
			current = trimmed
			if _, ok := out[current]; !ok {
				out[current] = []line{}
			}
			continue
		}
		if current != "" {
			out[current] = append(out[current], line{no: i + 1, text: trimmed})
		}
	}
	return out
}

// Parse recovers actions from script text. Upload comes first, then cleaning,
// charts and ML, each in script order.
func Parse(text string) Result {
	var res Result
	secs := sections(text)
	if u, ok := parseLoad(secs[AnchorLoad]); ok {
		res.Actions = append(res.Actions, u)
	}
	cl, skipped := parseCleaning(secs[AnchorCleaning])
	res.Skipped = skipped
	for _, c := range cl {
		res.Actions = append(res.Actions, c)
	}
	for _, c := range parseSubBlocks(secs[AnchorCharts], chartAnchorRe) {
		res.Actions = append(res.Actions, matchChart(c.name, c.body))
	}
	for _, m := range parseSubBlocks(secs[AnchorML], mlAnchorRe) {
		res.Actions = append(res.Actions, matchML(m.name, m.body))
	}
	return res
}

func parseLoad(lines []line) (action.Upload, bool) {
	for _, l := range lines {
		if l.text == "" || strings.HasPrefix(l.text, "#") {
			continue
		}
		if strings.Contains(l.text, "json_normalize") {
			if raw, ok := callArgs(l.text, "pd.read_json"); ok {
				if args := parseArgs(raw); len(args.positional) > 0 {
					return action.Upload{Filename: pyValue(args.positional[0]), FileFormat: "json"}, true
				}
			}
		}
		for _, reader := range []struct{ fn, format string }{
			{"pd.read_csv", "csv"}, {"pd.read_excel", "xlsx"}, {"pd.read_json", "json"},
		} {
			raw, ok := callArgs(l.text, reader.fn)
			if !ok {
				continue
			}
			args := parseArgs(raw)
			if len(args.positional) == 0 {
				continue
			}
			u := action.Upload{Filename: pyValue(args.positional[0]), FileFormat: reader.format}
			if m := formatNoteRe.FindStringSubmatch(l.text); m != nil {
				u.FileFormat = m[1]
			}
			return u, true
		}
	}
	return action.Upload{}, false
}

// parseCleaning walks the section trying every template at each statement.
// Comments and blank lines are skipped unless a template claims them.
func parseCleaning(lines []line) ([]action.Cleaning, []SkippedLine) {
	var stmts []line
	for _, l := range lines {
		if l.text != "" {
			stmts = append(stmts, l)
		}
	}
	texts := make([]string, len(stmts))
	for i, l := range stmts {
		texts[i] = l.text
	}

	var out []action.Cleaning
	var skipped []SkippedLine
	for i := 0; i < len(stmts); {
		matched := false
		for _, t := range cleaningTemplates {
			if c, n, ok := t.match(texts[i:]); ok {
				out = append(out, c)
				i += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if !strings.HasPrefix(texts[i], "#") {
			skipped = append(skipped, SkippedLine{Line: stmts[i].no, Text: texts[i]})
		}
		i++
	}
	return out, skipped
}

type subBlock struct {
	name string
	body string
}

func parseSubBlocks(lines []line, anchor *regexp.Regexp) []subBlock {
	var out []subBlock
	var body []string
	flush := func() {
		if len(out) > 0 {
			out[len(out)-1].body = strings.Join(body, "\n")
		}
		body = body[:0]
	}
	for _, l := range lines {
		if m := anchor.FindStringSubmatch(l.text); m != nil {
			flush()
			out = append(out, subBlock{name: m[1]})
			continue
		}
		body = append(body, l.text)
	}
	flush()
	return out
}

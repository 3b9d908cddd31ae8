package script

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/cleaning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entries(acts ...action.Action) []action.Entry {
	out := make([]action.Entry, len(acts))
	for i, a := range acts {
		out[i] = action.Entry{ID: i, Timestamp: float64(1000 + i), Action: action.Normalize(a)}
	}
	return out
}

func allActions() []action.Action {
	acts := []action.Action{action.Upload{Filename: "sales data.csv", FileFormat: "csv"}}
	for _, spec := range cleaning.Catalog() {
		acts = append(acts, action.Cleaning{Operation: string(spec.Op), Column: "col " + string(spec.Op)})
	}
	acts = append(acts,
		action.Cleaning{Operation: "fillna", Column: "age", FillValue: "0"},
		action.Cleaning{Operation: "lstrip", Column: "code", FillValue: "x"},
		action.Cleaning{Operation: "rstrip", Column: "code", FillValue: "it's"},
		action.Cleaning{Operation: "rename_column", Column: "old", NewName: "new \"name\""},
	)
	acts = append(acts,
		action.Chart{ChartType: "histogram", XCol: "age", ColorCol: "sex"},
		action.Chart{ChartType: "histogram", XCol: "age"},
		action.Chart{ChartType: "boxplot", XCol: "fare", ColorCol: "class"},
		action.Chart{ChartType: "scatter", XCol: "a", YCol: "b", ColorCol: "c"},
		action.Chart{ChartType: "line", XCol: "t", YCol: "v"},
		action.Chart{ChartType: "bar", XCol: "city"},
		action.Chart{ChartType: "pie", XCol: "city"},
		action.Chart{ChartType: "area", XCol: "t", YCol: "v", ColorCol: "g"},
		action.Chart{ChartType: "violin", XCol: "g", YCol: "v"},
		action.Chart{ChartType: "heatmap"},
		action.Chart{ChartType: "pairplot", ColorCol: "species"},
		action.Chart{ChartType: "pairplot"},
		action.Chart{ChartType: "correlation"},
		action.Chart{ChartType: "bubble", XCol: "a", YCol: "b", ColorCol: "c", SizeCol: "d"},
		action.Chart{ChartType: "treemap", XCol: "region"},
		action.Chart{ChartType: "sunburst", XCol: "region"},
	)
	acts = append(acts,
		action.ML{Task: "clustering", XCol: "a", YCol: "b", NClusters: 4},
		action.ML{Task: "classification", XCol: "a", YCol: "b", TargetCol: "label", Kernel: "rbf", TestSize: 0.3},
		action.ML{Task: "decision_tree", XCol: "a", YCol: "b", TargetCol: "label", MaxDepth: 7, TestSize: 0.2},
		action.ML{Task: "random_forest", XCol: "a", YCol: "b", TargetCol: "label", NEstimators: 250, MaxDepth: 3, TestSize: 0.25},
		action.ML{Task: "regression", XCol: "x", TargetCol: "y", TestSize: 0.4},
		action.ML{Task: "clustering", XCol: "a", YCol: "b"},
		action.ML{Task: "regression", XCol: "w]]", TargetCol: "price[usd]", TestSize: 0.25},
		action.ML{Task: "classification", XCol: "x[0]", YCol: "y], z", TargetCol: "grade]", Kernel: "linear", TestSize: 0.25},
		action.ML{Task: "random_forest", XCol: "it's", YCol: `say "hi"`, TargetCol: "a]].dropna()", NEstimators: 100, MaxDepth: 5, TestSize: 0.25},
	)
	return acts
}

func TestRoundTripEveryVariant(t *testing.T) {
	log := entries(allActions()...)
	res := Parse(Generate(log))
	assert.Empty(t, res.Skipped)

	want := make([]action.Action, len(log))
	for i, e := range log {
		want[i] = e.Action
	}
	require.Len(t, res.Actions, len(want))
	for i := range want {
		assert.Equal(t, want[i], action.Normalize(res.Actions[i]), "action %d", i)
	}
}

func TestRoundTripGroupsBySection(t *testing.T) {
	log := entries(
		action.Upload{Filename: "d.json", FileFormat: "json"},
		action.Chart{ChartType: "pie", XCol: "c"},
		action.Cleaning{Operation: "trim", Column: "c"},
		action.ML{Task: "regression", XCol: "x", TargetCol: "y"},
		action.Cleaning{Operation: "dropna", Column: "x"},
	)
	res := Parse(Generate(log))
	require.Len(t, res.Actions, 5)
	assert.Equal(t, action.Upload{Filename: "d.json", FileFormat: "json"}, res.Actions[0])
	assert.Equal(t, action.Cleaning{Operation: "trim", Column: "c"}, res.Actions[1])
	assert.Equal(t, action.Cleaning{Operation: "dropna", Column: "x"}, res.Actions[2])
	assert.Equal(t, action.Chart{ChartType: "pie", XCol: "c"}, res.Actions[3])
	assert.Equal(t, action.ML{Task: "regression", XCol: "x", TargetCol: "y", TestSize: 0.25}, res.Actions[4])
}

func TestUploadFormats(t *testing.T) {
	for _, format := range []string{"csv", "xlsx", "xls", "json", "tsv", "parquet"} {
		t.Run(format, func(t *testing.T) {
			u := action.Upload{Filename: "data." + format, FileFormat: format}
			res := Parse(Generate(entries(u)))
			require.Len(t, res.Actions, 1)
			assert.Equal(t, u, res.Actions[0])
		})
	}
	assert.Contains(t, loadLine(action.Upload{Filename: "d.xlsx", FileFormat: "xlsx"}), "pd.read_excel('d.xlsx')")
	assert.Contains(t, loadLine(action.Upload{Filename: "d.bin", FileFormat: "bin"}), "pd.read_csv('d.bin')  # format: bin")
}

func TestGenerateEmptyAndDisabled(t *testing.T) {
	assert.Equal(t, emptyScript, Generate(nil))

	log := entries(action.Upload{Filename: "a.csv", FileFormat: "csv"}, action.Cleaning{Operation: "trim", Column: "n"})
	log[0].Disabled = true
	log[1].Disabled = true
	assert.Equal(t, emptyScript, Generate(log))
	assert.Empty(t, Parse(Generate(log)).Actions)
}

func TestGenerateOmitsEmptySections(t *testing.T) {
	out := Generate(entries(action.Upload{Filename: "a.csv", FileFormat: "csv"}, action.Chart{ChartType: "bar", XCol: "c"}))
	assert.Contains(t, out, AnchorLoad)
	assert.Contains(t, out, AnchorCharts)
	assert.NotContains(t, out, AnchorCleaning)
	assert.NotContains(t, out, AnchorML)
	assert.Contains(t, out, "# --- Chart: bar ---")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "fig.show()"))
}

func TestImports(t *testing.T) {
	out := Generate(entries(action.Cleaning{Operation: "trim", Column: "a"}))
	assert.Contains(t, out, "import pandas as pd")
	assert.NotContains(t, out, "numpy")
	assert.NotContains(t, out, "plotly")

	out = Generate(entries(action.Cleaning{Operation: "remove_outliers", Column: "a"}))
	assert.Contains(t, out, "import numpy as np\nimport scipy.stats")

	out = Generate(entries(action.Chart{ChartType: "heatmap"}))
	assert.Contains(t, out, "import numpy as np")
	assert.Contains(t, out, "import plotly.graph_objects as go")
	assert.NotContains(t, out, "plotly.express")

	out = Generate(entries(action.Chart{ChartType: "scatter", XCol: "a", YCol: "b"}, action.Chart{ChartType: "correlation"}))
	assert.Contains(t, out, "import plotly.express as px\nimport plotly.graph_objects as go")
}

func TestCleaningTemplatesRenderExpectedCode(t *testing.T) {
	cases := map[string]action.Cleaning{
		"df['a'] = df['a'].str.lstrip()":                        {Operation: "lstrip", Column: "a"},
		"df['a'] = df['a'].fillna('0')":                         {Operation: "fillna", Column: "a", FillValue: "0"},
		"df = df.sort_values(by='a', ascending=False)":          {Operation: "sort_desc", Column: "a"},
		"df = df.rename(columns={'a': 'b'})":                    {Operation: "rename_column", Column: "a", NewName: "b"},
		"# rename_column on 'a' (no new name provided, skipped)": {Operation: "rename_column", Column: "a"},
		"# Unknown cleaning operation: explode":                 {Operation: "explode", Column: "a"},
	}
	for want, c := range cases {
		assert.Equal(t, want, renderCleaning(c))
	}
	block := renderCleaning(action.Cleaning{Operation: "fillna", Column: "a"})
	assert.Equal(t, 4, strings.Count(block, "\n")+1)
	assert.Contains(t, block, "    df['a'] = df['a'].fillna(df['a'].mean())")
}

func TestParseHandWrittenScript(t *testing.T) {
	text := `import pandas as pd

# --- Load data ---
df = pd.read_csv("titanic.csv")

# --- Data cleaning ---
# tidy names first
df["Name"] = df["Name"].str.strip()

df["Age"] = df["Age"].fillna(0)
df = df.dropna(subset=["Embarked"])
print(df.head())

# --- Charts ---

# --- Chart: scatter ---
fig = px.scatter(df, x="Age", y="count", color="Sex")
fig.show()

# --- Machine Learning ---

# --- ML: classification ---
_X = df[["Age", "Fare"]].dropna()
_y = LabelEncoder().fit_transform(df.loc[_X.index, "Survived"])
_clf = SVC(kernel="poly", random_state=42)
`
	res := Parse(text)
	require.Len(t, res.Actions, 6)
	assert.Equal(t, action.Upload{Filename: "titanic.csv", FileFormat: "csv"}, res.Actions[0])
	assert.Equal(t, action.Cleaning{Operation: "trim", Column: "Name"}, res.Actions[1])
	assert.Equal(t, action.Cleaning{Operation: "fillna", Column: "Age", FillValue: "0"}, res.Actions[2])
	assert.Equal(t, action.Cleaning{Operation: "dropna", Column: "Embarked"}, res.Actions[3])
	// y='count' is dropped as the generator's own aggregate column
	assert.Equal(t, action.Chart{ChartType: "scatter", XCol: "Age", ColorCol: "Sex"}, res.Actions[4])
	assert.Equal(t, action.ML{Task: "classification", XCol: "Age", YCol: "Fare", TargetCol: "Survived", Kernel: "poly"}, res.Actions[5])

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "print(df.head())", res.Skipped[0].Text)
	assert.Equal(t, 12, res.Skipped[0].Line)

	counts := res.Counts()
	assert.Equal(t, 3, counts[action.TypeCleaning])
	assert.Equal(t, 1, counts[action.TypeChart])
}

func TestParseWithoutAnchors(t *testing.T) {
	res := Parse("print('hello')\n")
	assert.Empty(t, res.Actions)
	assert.Empty(t, res.Skipped)
}

func TestPyLiterals(t *testing.T) {
	for _, s := range []string{"", "plain", "it's", `say "hi"`, `both ' and "`, "tab\tnew\nline", `back\slash`, "émoji ☃"} {
		lit := pyRepr(s)
		got, ok := pyString(lit)
		require.True(t, ok, lit)
		assert.Equal(t, s, got)
	}
	assert.Equal(t, `"it's"`, pyRepr("it's"))
	assert.Equal(t, `'both \' and "'`, pyRepr(`both ' and "`))
	assert.Equal(t, "0.25", pyFloat(0.25))
	assert.Equal(t, "1.0", pyFloat(1))
	assert.Equal(t, []string{"df", "x='a, b'", "path=['c']"}, splitArgs("df, x='a, b', path=['c']"))

	list, ok := pyList("['a', \"b\"]")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, list)
}

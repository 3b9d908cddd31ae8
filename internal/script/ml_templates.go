package script

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
)

// hyperParam extracts one hyperparameter from a task body.
type hyperParam struct {
	re  *regexp.Regexp
	set func(m *action.ML, v string)
}

type mlTemplate struct {
	task   string
	render func(m action.ML) []string
	params []hyperParam
}

var (
	nClustersParam = hyperParam{regexp.MustCompile(`KMeans\(n_clusters=(\d+)`), func(m *action.ML, v string) { m.NClusters, _ = strconv.Atoi(v) }}
	kernelParam    = hyperParam{regexp.MustCompile(`SVC\(kernel=('[^']*'|"[^"]*")`), func(m *action.ML, v string) { m.Kernel = pyValue(v) }}
	maxDepthParam  = hyperParam{regexp.MustCompile(`max_depth=(\d+)`), func(m *action.ML, v string) { m.MaxDepth, _ = strconv.Atoi(v) }}
	nEstParam      = hyperParam{regexp.MustCompile(`n_estimators=(\d+)`), func(m *action.ML, v string) { m.NEstimators, _ = strconv.Atoi(v) }}
	testSizeParam  = hyperParam{regexp.MustCompile(`test_size=([\d.]+)`), func(m *action.ML, v string) { m.TestSize, _ = strconv.ParseFloat(v, 64) }}

	// column names are matched as whole string literals so brackets inside
	// them cannot end the match
	featuresRe = regexp.MustCompile(`df\[\[((?:` + pyStrPattern + `)(?:\s*,\s*(?:` + pyStrPattern + `))*)\]\]\.dropna\(\)`)
	targetRe   = regexp.MustCompile(`df\.loc\[_X\.index,\s*(` + pyStrPattern + `)\]`)
)

const seed = "42"

func features(m action.ML) string {
	cols := []string{pyRepr(m.XCol)}
	if m.YCol != "" {
		cols = append(cols, pyRepr(m.YCol))
	}
	return "_X = df[[" + strings.Join(cols, ", ") + "]].dropna()"
}

func labelledTarget(m action.ML) string {
	return "_y = LabelEncoder().fit_transform(df.loc[_X.index, " + pyRepr(m.TargetCol) + "])"
}

func split(m action.ML, x string) string {
	return "_X_train, _X_test, _y_train, _y_test = train_test_split(" + x + ", _y, test_size=" + pyFloat(m.TestSize) + ", random_state=" + seed + ")"
}

// classifier is the shared body of the three classification tasks.
func classifier(importLine, model string) func(m action.ML) []string {
	return func(m action.ML) []string {
		return []string{
			importLine,
			"from sklearn.model_selection import train_test_split",
			"from sklearn.preprocessing import StandardScaler, LabelEncoder",
			"from sklearn.metrics import classification_report, accuracy_score",
			features(m),
			labelledTarget(m),
			"_X_scaled = StandardScaler().fit_transform(_X)",
			split(m, "_X_scaled"),
			"_clf = " + strings.NewReplacer(
				"{kernel}", pyRepr(m.Kernel),
				"{max_depth}", strconv.Itoa(m.MaxDepth),
				"{n_estimators}", strconv.Itoa(m.NEstimators),
			).Replace(model),
			"_clf.fit(_X_train, _y_train)",
			"_y_pred = _clf.predict(_X_test)",
			"print(classification_report(_y_test, _y_pred))",
			"print(f'Accuracy: {accuracy_score(_y_test, _y_pred):.3f}')",
		}
	}
}

var mlTemplates = []mlTemplate{
	{task: "clustering", params: []hyperParam{nClustersParam},
		render: func(m action.ML) []string {
			return []string{
				"from sklearn.cluster import KMeans",
				"from sklearn.preprocessing import StandardScaler",
				"from sklearn.metrics import silhouette_score",
				features(m),
				"_X_scaled = StandardScaler().fit_transform(_X)",
				"_km = KMeans(n_clusters=" + strconv.Itoa(m.NClusters) + ", random_state=" + seed + ", n_init='auto')",
				"_labels = _km.fit_predict(_X_scaled)",
				"print(f'Silhouette Score: {silhouette_score(_X_scaled, _labels):.3f}')",
			}
		}},
	{task: "classification", params: []hyperParam{kernelParam, testSizeParam},
		render: classifier("from sklearn.svm import SVC", "SVC(kernel={kernel}, random_state="+seed+")")},
	{task: "decision_tree", params: []hyperParam{maxDepthParam, testSizeParam},
		render: classifier("from sklearn.tree import DecisionTreeClassifier", "DecisionTreeClassifier(max_depth={max_depth}, random_state="+seed+")")},
	{task: "random_forest", params: []hyperParam{nEstParam, maxDepthParam, testSizeParam},
		render: classifier("from sklearn.ensemble import RandomForestClassifier", "RandomForestClassifier(n_estimators={n_estimators}, max_depth={max_depth}, random_state="+seed+")")},
	{task: "regression", params: []hyperParam{testSizeParam},
		render: func(m action.ML) []string {
			return []string{
				"from sklearn.linear_model import LinearRegression",
				"from sklearn.model_selection import train_test_split",
				"from sklearn.metrics import mean_squared_error, r2_score",
				features(m),
				"_y = df.loc[_X.index, " + pyRepr(m.TargetCol) + "]",
				split(m, "_X"),
				"_reg = LinearRegression()",
				"_reg.fit(_X_train, _y_train)",
				"_y_pred = _reg.predict(_X_test)",
				"print(f'R-squared: {r2_score(_y_test, _y_pred):.4f}')",
				"print(f'MSE: {mean_squared_error(_y_test, _y_pred):.4f}')",
			}
		}},
}

func mlTemplateFor(task string) (mlTemplate, bool) {
	for _, t := range mlTemplates {
		if t.task == task {
			return t, true
		}
	}
	return mlTemplate{}, false
}

// renderML returns the sub-block for one model run, anchor included.
func renderML(m action.ML) string {
	lines := []string{"", "# --- ML: " + m.Task + " ---"}
	t, ok := mlTemplateFor(m.Task)
	if !ok {
		lines = append(lines, "# Unknown ML task: "+m.Task)
		return strings.Join(lines, "\n")
	}
	m = action.Normalize(m).(action.ML)
	lines = append(lines, t.render(m)...)
	return strings.Join(lines, "\n")
}

// matchML recovers a model run from its sub-block body.
func matchML(task, body string) action.ML {
	m := action.ML{Task: task}
	if fm := featuresRe.FindStringSubmatch(body); fm != nil {
		cols := splitArgs(fm[1])
		if len(cols) >= 1 {
			m.XCol = pyValue(cols[0])
		}
		if len(cols) >= 2 {
			m.YCol = pyValue(cols[1])
		}
	}
	if tm := targetRe.FindStringSubmatch(body); tm != nil {
		m.TargetCol = pyValue(tm[1])
	}
	t, ok := mlTemplateFor(task)
	if !ok {
		return m
	}
	for _, p := range t.params {
		if pm := p.re.FindStringSubmatch(body); pm != nil {
			p.set(&m, pm[1])
		}
	}
	return m
}

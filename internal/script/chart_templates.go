package script

import (
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
)

// chartTemplate renders one chart type and knows which keyword arguments of
// its plotting call carry which column.
type chartTemplate struct {
	chartType string
	// call is the plotting function whose arguments hold the columns.
	call string
	// kwargs maps a keyword argument to the chart field it carries.
	kwargs map[string]string
	render func(c action.Chart) []string
	// graphObjects marks charts built with plotly.graph_objects.
	graphObjects bool
}

// countColumn is the aggregate column the generator itself introduces for
// value-count charts.
const countColumn = "count"

func optKw(name, col string) string {
	if col == "" {
		return ""
	}
	return ", " + name + "=" + pyRepr(col)
}

func title(s string) string { return ", title=" + pyRepr(s) }

func valueCounts(x string) []string {
	return []string{
		"_counts = df[" + pyRepr(x) + "].value_counts().reset_index()",
		"_counts.columns = [" + pyRepr(x) + ", 'count']",
	}
}

var chartTemplates = []chartTemplate{
	{chartType: "histogram", call: "px.histogram", kwargs: map[string]string{"x": action.FieldX, "color": action.FieldColor},
		render: func(c action.Chart) []string {
			return []string{"fig = px.histogram(df, x=" + pyRepr(c.XCol) + optKw("color", c.ColorCol) + title("Histogram of "+c.XCol) + ")"}
		}},
	{chartType: "boxplot", call: "px.box", kwargs: map[string]string{"y": action.FieldX, "color": action.FieldColor},
		render: func(c action.Chart) []string {
			return []string{"fig = px.box(df, y=" + pyRepr(c.XCol) + optKw("color", c.ColorCol) + title("Box Plot of "+c.XCol) + ")"}
		}},
	{chartType: "scatter", call: "px.scatter", kwargs: map[string]string{"x": action.FieldX, "y": action.FieldY, "color": action.FieldColor},
		render: func(c action.Chart) []string {
			return []string{"fig = px.scatter(df, x=" + pyRepr(c.XCol) + ", y=" + pyRepr(c.YCol) + optKw("color", c.ColorCol) + title(c.XCol+" vs "+c.YCol) + ")"}
		}},
	{chartType: "line", call: "px.line", kwargs: map[string]string{"x": action.FieldX, "y": action.FieldY},
		render: func(c action.Chart) []string {
			return []string{"fig = px.line(df, x=" + pyRepr(c.XCol) + ", y=" + pyRepr(c.YCol) + title("Line: "+c.XCol+" vs "+c.YCol) + ")"}
		}},
	{chartType: "bar", call: "px.bar", kwargs: map[string]string{"x": action.FieldX, "y": action.FieldY},
		render: func(c action.Chart) []string {
			lines := []string{"# Bar chart: value counts of column"}
			lines = append(lines, valueCounts(c.XCol)...)
			return append(lines, "fig = px.bar(_counts, x="+pyRepr(c.XCol)+", y='count'"+title("Distribution of "+c.XCol)+")")
		}},
	{chartType: "pie", call: "px.pie", kwargs: map[string]string{"names": action.FieldX},
		render: func(c action.Chart) []string {
			return []string{"fig = px.pie(df, names=" + pyRepr(c.XCol) + title("Pie Chart of "+c.XCol) + ")"}
		}},
	{chartType: "area", call: "px.area", kwargs: map[string]string{"x": action.FieldX, "y": action.FieldY, "color": action.FieldColor},
		render: func(c action.Chart) []string {
			return []string{"fig = px.area(df, x=" + pyRepr(c.XCol) + ", y=" + pyRepr(c.YCol) + optKw("color", c.ColorCol) + title("Area: "+c.XCol+" vs "+c.YCol) + ")"}
		}},
	{chartType: "violin", call: "px.violin", kwargs: map[string]string{"x": action.FieldX, "y": action.FieldY},
		render: func(c action.Chart) []string {
			return []string{"fig = px.violin(df, x=" + pyRepr(c.XCol) + ", y=" + pyRepr(c.YCol) + ", box=True" + title("Violin: "+c.YCol+" by "+c.XCol) + ")"}
		}},
	{chartType: "heatmap", graphObjects: true,
		render: func(action.Chart) []string {
			return []string{
				"_num = df.select_dtypes('number')",
				"_corr = _num.corr()",
				"fig = go.Figure(go.Heatmap(z=_corr.values, x=_corr.columns.tolist(), y=_corr.columns.tolist(), colorscale='RdBu_r', zmin=-1, zmax=1, text=np.round(_corr.values, 2), texttemplate='%{text}'))",
				"fig.update_layout(title='Correlation Heatmap')",
			}
		}},
	{chartType: "pairplot", call: "px.scatter_matrix", kwargs: map[string]string{"color": action.FieldColor},
		render: func(c action.Chart) []string {
			return []string{
				"_cols = df.select_dtypes('number').columns.tolist()[:6]",
				"fig = px.scatter_matrix(df, dimensions=_cols" + optKw("color", c.ColorCol) + ", title='Pair Plot')",
				"fig.update_traces(diagonal_visible=True, marker=dict(size=3))",
				"fig.update_layout(height=700)",
			}
		}},
	{chartType: "correlation", graphObjects: true,
		render: func(action.Chart) []string {
			return []string{
				"_num = df.select_dtypes('number')",
				"_corr = _num.corr()",
				"fig = go.Figure(go.Heatmap(z=_corr.values, x=_corr.columns.tolist(), y=_corr.columns.tolist(), colorscale='Viridis', text=np.round(_corr.values, 3), texttemplate='%{text}'))",
				"fig.update_layout(title='Correlation Matrix')",
			}
		}},
	{chartType: "bubble", call: "px.scatter", kwargs: map[string]string{"x": action.FieldX, "y": action.FieldY, "color": action.FieldColor, "size": action.FieldSize},
		render: func(c action.Chart) []string {
			return []string{"fig = px.scatter(df, x=" + pyRepr(c.XCol) + ", y=" + pyRepr(c.YCol) + optKw("color", c.ColorCol) + optKw("size", c.SizeCol) + title("Bubble: "+c.XCol+" vs "+c.YCol) + ")"}
		}},
	{chartType: "treemap", call: "px.treemap", kwargs: map[string]string{"path": action.FieldX},
		render: func(c action.Chart) []string {
			return append(valueCounts(c.XCol), "fig = px.treemap(_counts, path=["+pyRepr(c.XCol)+"], values='count'"+title("Treemap: "+c.XCol)+")")
		}},
	{chartType: "sunburst", call: "px.sunburst", kwargs: map[string]string{"path": action.FieldX},
		render: func(c action.Chart) []string {
			return append(valueCounts(c.XCol), "fig = px.sunburst(_counts, path=["+pyRepr(c.XCol)+"], values='count'"+title("Sunburst: "+c.XCol)+")")
		}},
}

// genericChart is used for chart types the table does not know.
var genericChart = chartTemplate{
	call:   "px.",
	kwargs: map[string]string{"x": action.FieldX, "y": action.FieldY, "color": action.FieldColor, "size": action.FieldSize},
}

func chartTemplateFor(chartType string) (chartTemplate, bool) {
	for _, t := range chartTemplates {
		if t.chartType == chartType {
			return t, true
		}
	}
	return chartTemplate{}, false
}

// renderChart returns the sub-block for one chart, anchor included.
func renderChart(c action.Chart) string {
	lines := []string{"", "# --- Chart: " + c.ChartType + " ---"}
	t, ok := chartTemplateFor(c.ChartType)
	if !ok {
		lines = append(lines, "# Unknown chart type: "+c.ChartType)
		return strings.Join(lines, "\n")
	}
	lines = append(lines, t.render(c)...)
	lines = append(lines, "fig.show()")
	return strings.Join(lines, "\n")
}

// matchChart recovers a chart action from its sub-block body.
func matchChart(chartType, body string) action.Chart {
	c := action.Chart{ChartType: chartType}
	t, ok := chartTemplateFor(chartType)
	if !ok || t.call == "" {
		if ok {
			return c
		}
		t = genericChart
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "fig =") && !strings.HasPrefix(line, "fig=") {
			continue
		}
		raw, found := callArgsPrefix(line, t.call)
		if !found {
			continue
		}
		args := parseArgs(raw)
		for kw, field := range t.kwargs {
			lit, ok := args.keywords[kw]
			if !ok {
				continue
			}
			var col string
			if list, isList := pyList(lit); isList {
				if len(list) == 0 {
					continue
				}
				col = list[0]
			} else if s, isStr := pyString(lit); isStr {
				col = s
			} else {
				continue
			}
			setChartField(&c, field, col)
		}
		break
	}
	return c
}

// callArgsPrefix is callArgs where fn may be a prefix such as "px." that
// matches any function in that namespace.
func callArgsPrefix(line, fn string) (string, bool) {
	if !strings.HasSuffix(fn, ".") {
		return callArgs(line, fn)
	}
	i := strings.Index(line, fn)
	if i < 0 {
		return "", false
	}
	j := strings.IndexByte(line[i:], '(')
	if j < 0 {
		return "", false
	}
	return callArgs(line[i:], line[i:i+j])
}

func setChartField(c *action.Chart, field, col string) {
	switch field {
	case action.FieldX:
		c.XCol = col
	case action.FieldY:
		// the generator's own aggregate column is not a user column
		if col != countColumn {
			c.YCol = col
		}
	case action.FieldColor:
		c.ColorCol = col
	case action.FieldSize:
		c.SizeCol = col
	}
}

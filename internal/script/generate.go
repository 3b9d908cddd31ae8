// Package script turns an action log into a standalone pandas script and
// parses such a script back into actions. Each action kind renders and
// matches through one template table so the two directions stay in step.
package script

import (
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/cleaning"
)

// Section anchors, in output order.
const (
	AnchorLoad     = "# --- Load data ---"
	AnchorCleaning = "# --- Data cleaning ---"
	AnchorCharts   = "# --- Charts ---"
	AnchorML       = "# --- Machine Learning ---"
)

// DefaultFilename is the suggested name for exported scripts.
const DefaultFilename = "session_export.py"

const emptyScript = `"""tabstep session: no actions recorded."""

print('No actions were recorded in this session.')
`

// Generate renders the enabled entries as a script. Disabled entries are
// skipped; an empty result yields a placeholder script.
func Generate(entries []action.Entry) string {
	var acts []action.Action
	for _, e := range entries {
		if !e.Disabled && e.Action != nil {
			acts = append(acts, e.Action)
		}
	}
	return GenerateActions(acts)
}

// GenerateActions renders actions in order. Sections appear in fixed order
// and are omitted when they would be empty.
func GenerateActions(acts []action.Action) string {
	if len(acts) == 0 {
		return emptyScript
	}
	var (
		upload    *action.Upload
		cleanings []action.Cleaning
		charts    []action.Chart
		models    []action.ML
	)
	for _, a := range acts {
		switch v := a.(type) {
		case action.Upload:
			if upload == nil {
				u := v
				upload = &u
			}
		case action.Cleaning:
			cleanings = append(cleanings, v)
		case action.Chart:
			charts = append(charts, v)
		case action.ML:
			models = append(models, v)
		}
	}

	out := []string{
		`"""`,
		"tabstep: exported session script.",
		"Generated automatically. Run with: python " + DefaultFilename,
		`"""`,
		"",
		imports(cleanings, charts),
	}
	if upload != nil {
		out = append(out, "", AnchorLoad, loadLine(*upload))
	}
	if len(cleanings) > 0 {
		out = append(out, "", AnchorCleaning)
		for _, c := range cleanings {
			out = append(out, renderCleaning(c))
		}
	}
	if len(charts) > 0 {
		out = append(out, "", AnchorCharts)
		for _, c := range charts {
			out = append(out, renderChart(c))
		}
	}
	if len(models) > 0 {
		out = append(out, "", AnchorML)
		for _, m := range models {
			out = append(out, renderML(m))
		}
	}
	out = append(out, "")
	return strings.Join(out, "\n")
}

// imports lists only the libraries the script uses.
func imports(cleanings []action.Cleaning, charts []action.Chart) string {
	var numpy, scipy, px, gobj bool
	for _, c := range charts {
		if t, ok := chartTemplateFor(c.ChartType); ok && t.graphObjects {
			gobj = true
			numpy = true
		} else {
			px = true
		}
	}
	for _, c := range cleanings {
		if c.Operation == string(cleaning.RemoveOutliers) {
			numpy = true
			scipy = true
		}
	}
	lines := []string{"import pandas as pd"}
	if numpy {
		lines = append(lines, "import numpy as np")
	}
	if scipy {
		lines = append(lines, "import scipy.stats")
	}
	if px {
		lines = append(lines, "import plotly.express as px")
	}
	if gobj {
		lines = append(lines, "import plotly.graph_objects as go")
	}
	return strings.Join(lines, "\n")
}

// loadLine picks the pandas reader for the uploaded format. Formats without a
// dedicated reader fall back to read_csv and keep the format in a comment.
func loadLine(u action.Upload) string {
	f := pyRepr(u.Filename)
	switch u.FileFormat {
	case "csv":
		return "df = pd.read_csv(" + f + ")"
	case "xlsx":
		return "df = pd.read_excel(" + f + ")"
	case "xls":
		return "df = pd.read_excel(" + f + ")  # format: xls"
	case "json":
		return "df = pd.json_normalize(pd.read_json(" + f + ").to_dict(orient='records'))"
	case "tsv":
		return "df = pd.read_csv(" + f + ", sep='\\t')  # format: tsv"
	}
	return "df = pd.read_csv(" + f + ")  # format: " + u.FileFormat
}

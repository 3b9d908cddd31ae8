package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/analysis"
	"github.com/KaramelBytes/tabstep-cli/internal/cleaning"
	"github.com/KaramelBytes/tabstep-cli/internal/logging"
	"github.com/KaramelBytes/tabstep-cli/internal/metrics"
	"github.com/KaramelBytes/tabstep-cli/internal/upload"
	"github.com/KaramelBytes/tabstep-cli/internal/validate"
)

const sample = `name,age,score,city
 Alice ,30,10,Paris
Bob,,12,London
carol,25,11,Paris
Dave,41,30,Rome
eve,35,14,London
Frank,29,13,Paris
Grace,52,16,Rome
heidi,33,15,London
Ivan,47,22,Paris
Judy,38,19,Rome
Ken,27,17,London
Liam,44,21,Paris
`

func newSession(t *testing.T) (*Session, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	s := New(Options{Workspace: t.TempDir(), Logger: logging.Discard(), Metrics: m})
	_, err := s.Upload("people.csv", []byte(sample))
	require.NoError(t, err)
	return s, m
}

func column(t *testing.T, s *Session, name string) []string {
	t.Helper()
	f, err := s.Table()
	require.NoError(t, err)
	cells, ok := f.Column(name)
	require.True(t, ok, "column %s", name)
	out := make([]string, len(cells))
	for i, c := range cells {
		if c.Null {
			out[i] = "<null>"
		} else {
			out[i] = c.V
		}
	}
	return out
}

func types(entries []action.Entry) []action.Type {
	out := make([]action.Type, len(entries))
	for i, e := range entries {
		out[i] = e.Action.Type()
	}
	return out
}

func TestUploadResetsLogAndHistory(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Clean(CleanRequest{Operation: cleaning.Uppercase, Column: "name"})
	require.NoError(t, err)
	require.Len(t, s.History().Log(), 1)

	res, err := s.Upload("again.tsv", []byte("a\tb\n1\t2\n"))
	require.NoError(t, err)
	assert.Equal(t, "tsv", res.Format)
	assert.Equal(t, []string{"a", "b"}, res.Columns)
	assert.Equal(t, 1, res.Rows)

	steps := s.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, 0, steps[0].ID)
	assert.Equal(t, action.Upload{Filename: "again.tsv", FileFormat: "tsv"}, steps[0].Action)
	assert.Empty(t, s.History().Log())
}

func TestUploadUnsupported(t *testing.T) {
	s := New(Options{Workspace: t.TempDir(), Logger: logging.Discard()})
	_, err := s.Upload("notes.txt", []byte("hello"))
	assert.ErrorIs(t, err, upload.ErrUnsupported)
	_, err = s.Table()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadFileUsesBaseName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	s := New(Options{Workspace: t.TempDir(), Logger: logging.Discard()})
	res, err := s.UploadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "people.csv", res.Filename)
	assert.Equal(t, 12, res.Rows)
}

func TestCleanLogsAndSnapshots(t *testing.T) {
	s, m := newSession(t)
	res, err := s.Clean(CleanRequest{Operation: cleaning.Trim, Column: "name"})
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.True(t, res.Snapshot)
	assert.Equal(t, 1, res.Entry.ID)
	assert.Equal(t, action.Cleaning{Operation: "trim", Column: "name"}, res.Entry.Action)
	assert.Equal(t, "Alice", column(t, s, "name")[0])

	assert.Equal(t, []action.Type{action.TypeUpload, action.TypeCleaning}, types(s.Steps()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CleaningTotal.WithLabelValues("trim", "ok")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.WorkingTableRows))
}

func TestDestructiveNeedsConfirmation(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Clean(CleanRequest{Operation: cleaning.DropNA, Column: "age"})
	require.ErrorIs(t, err, ErrConfirmationRequired)
	var ce *ConfirmationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, `Are you sure you want to apply "Drop NA" on column "age"? This may remove data.`, ce.Prompt)

	// nothing happened
	assert.Len(t, column(t, s, "age"), 12)
	assert.Len(t, s.Steps(), 1)
	assert.Empty(t, s.History().Log())

	res, err := s.Clean(CleanRequest{Operation: cleaning.DropNA, Column: "age", Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, 12, res.RowsBefore)
	assert.Equal(t, 11, res.RowsAfter)
	assert.NotContains(t, column(t, s, "name"), "Bob")
}

func TestNonDestructiveSkipsConfirmation(t *testing.T) {
	s, _ := newSession(t)
	for _, op := range []cleaning.Operation{cleaning.SortAsc, cleaning.SortDesc} {
		_, err := s.Clean(CleanRequest{Operation: op, Column: "score"})
		require.NoError(t, err, op)
	}
}

func TestCleanValidation(t *testing.T) {
	s, m := newSession(t)

	_, err := s.Clean(CleanRequest{Operation: cleaning.Lowercase, Column: "age"})
	assert.ErrorIs(t, err, validate.ErrTypeMismatch)

	_, err = s.Clean(CleanRequest{Operation: cleaning.Normalize, Column: "city"})
	assert.ErrorIs(t, err, validate.ErrTypeMismatch)

	_, err = s.Clean(CleanRequest{Operation: cleaning.Trim, Column: "missing"})
	assert.ErrorIs(t, err, validate.ErrColumnNotFound)

	_, err = s.Clean(CleanRequest{Operation: "shuffle", Column: "name"})
	assert.ErrorIs(t, err, cleaning.ErrUnknownOperation)

	assert.Len(t, s.Steps(), 1)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.CleaningTotal.WithLabelValues("lowercase", "error"))+
		testutil.ToFloat64(m.CleaningTotal.WithLabelValues("normalize", "error"))+
		testutil.ToFloat64(m.CleaningTotal.WithLabelValues("trim", "error"))+
		testutil.ToFloat64(m.CleaningTotal.WithLabelValues("shuffle", "error")))

	empty := New(Options{Workspace: t.TempDir(), Logger: logging.Discard()})
	_, err = empty.Clean(CleanRequest{Operation: cleaning.Trim, Column: "name"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenameWithoutNameIsANote(t *testing.T) {
	s, _ := newSession(t)
	res, err := s.Clean(CleanRequest{Operation: cleaning.RenameColumn, Column: "city"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Note)
	assert.Nil(t, res.Entry)
	assert.False(t, res.Snapshot)
	assert.Len(t, s.Steps(), 1)

	res, err = s.Clean(CleanRequest{Operation: cleaning.RenameColumn, Column: "city", NewName: "town"})
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.Equal(t, action.Cleaning{Operation: "rename_column", Column: "city", NewName: "town"}, res.Entry.Action)
	f, err := s.Table()
	require.NoError(t, err)
	assert.True(t, f.Has("town"))
}

func TestRenameKeepsSurroundingSpaces(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Clean(CleanRequest{Operation: cleaning.RenameColumn, Column: "city", NewName: " town"})
	require.NoError(t, err)
	s.Store().Cache().Invalidate()

	f, err := s.Table()
	require.NoError(t, err)
	assert.True(t, f.Has(" town"))
	_, err = s.Clean(CleanRequest{Operation: cleaning.Lowercase, Column: " town"})
	require.NoError(t, err)
	assert.Equal(t, "paris", column(t, s, " town")[0])
}

func TestPreviewDoesNotChangeAnything(t *testing.T) {
	s, _ := newSession(t)
	p, err := s.Preview(CleanRequest{Operation: cleaning.DropNA, Column: "age"})
	require.NoError(t, err)
	assert.Equal(t, 12, p.RowsBefore)
	assert.Equal(t, 11, p.RowsAfter)
	assert.Equal(t, 1, p.RowsAffected)

	assert.Len(t, column(t, s, "age"), 12)
	assert.Len(t, s.Steps(), 1)
	assert.Empty(t, s.History().Log())

	_, err = s.Preview(CleanRequest{Operation: cleaning.Trim, Column: "nope"})
	assert.ErrorIs(t, err, validate.ErrColumnNotFound)
}

func TestUndoRedo(t *testing.T) {
	s, m := newSession(t)
	_, err := s.Clean(CleanRequest{Operation: cleaning.Uppercase, Column: "name"})
	require.NoError(t, err)
	assert.Equal(t, " ALICE ", column(t, s, "name")[0])

	res, ok, err := s.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "uppercase", res.Record.Operation)
	require.NotNil(t, res.Entry)
	assert.Equal(t, 1, res.Entry.ID)
	assert.Equal(t, " Alice ", column(t, s, "name")[0])
	assert.Equal(t, []action.Type{action.TypeUpload}, types(s.Steps()))

	res, ok, err = s.Redo()
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, res.Entry)
	assert.Equal(t, action.Cleaning{Operation: "uppercase", Column: "name"}, res.Entry.Action)
	assert.Equal(t, " ALICE ", column(t, s, "name")[0])
	assert.Equal(t, []action.Type{action.TypeUpload, action.TypeCleaning}, types(s.Steps()))

	// redo pushed the replaced state, so it can be undone again
	_, ok, err = s.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, " Alice ", column(t, s, "name")[0])

	_, ok, err = s.Undo()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryTotal.WithLabelValues("undo", "empty")))
}

func TestNewCleaningClearsRedo(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Clean(CleanRequest{Operation: cleaning.Uppercase, Column: "name"})
	require.NoError(t, err)
	_, ok, err := s.Undo()
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.Clean(CleanRequest{Operation: cleaning.Lowercase, Column: "city"})
	require.NoError(t, err)
	_, ok, err = s.Redo()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEditCell(t *testing.T) {
	s, m := newSession(t)
	_, err := s.Clean(CleanRequest{Operation: cleaning.Trim, Column: "name"})
	require.NoError(t, err)

	res, err := s.Edit(1, "age", "31")
	require.NoError(t, err)
	assert.True(t, res.Snapshot)
	assert.Equal(t, "Edited row 1 of 'age'", res.Description)
	assert.Equal(t, "31", column(t, s, "age")[1])
	_, err = s.Edit(0, "city", "NA")
	require.NoError(t, err)
	assert.Equal(t, "<null>", column(t, s, "city")[0])
	assert.Equal(t, []action.Type{action.TypeUpload, action.TypeCleaning}, types(s.Steps()), "edits are not steps")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EditsTotal.WithLabelValues("cell", "ok")))

	// undoing an edit keeps the cleaning step
	res2, ok, err := s.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, EditOperation, res2.Record.Operation)
	assert.Nil(t, res2.Entry)
	assert.Equal(t, "Paris", column(t, s, "city")[0])
	assert.Len(t, s.Steps(), 2)

	_, ok, err = s.Redo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "<null>", column(t, s, "city")[0])
	assert.Len(t, s.Steps(), 2)

	_, err = s.Edit(12, "age", "1")
	assert.ErrorIs(t, err, validate.ErrRowOutOfRange)
	_, err = s.Edit(0, "nope", "1")
	assert.ErrorIs(t, err, validate.ErrColumnNotFound)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EditsTotal.WithLabelValues("cell", "error")))

	empty := New(Options{Workspace: t.TempDir(), Logger: logging.Discard()})
	_, err = empty.Edit(0, "a", "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveTable(t *testing.T) {
	s, _ := newSession(t)
	res, err := s.SaveTable([]string{"name", "age"}, [][]string{{"Zed", "9"}, {"Amy"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 2, res.Cols)
	assert.Equal(t, []string{"9", "<null>"}, column(t, s, "age"))
	assert.Len(t, s.Steps(), 1, "the upload entry survives")

	_, ok, err := s.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, column(t, s, "age"), 12)

	_, err = s.SaveTable(nil, nil)
	assert.ErrorIs(t, err, validate.ErrEmpty)
	_, err = s.SaveTable([]string{"a", "a"}, nil)
	assert.Error(t, err)

	empty := New(Options{Workspace: t.TempDir(), Logger: logging.Discard()})
	_, err = empty.SaveTable([]string{"a"}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStepsToggleAndDelete(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Clean(CleanRequest{Operation: cleaning.Trim, Column: "name"})
	require.NoError(t, err)

	e, err := s.ToggleStep(1)
	require.NoError(t, err)
	assert.True(t, e.Disabled)
	assert.NotContains(t, s.Export(), "df['name'] = df['name'].str.strip()")

	e, err = s.ToggleStep(1)
	require.NoError(t, err)
	assert.False(t, e.Disabled)

	_, err = s.ToggleStep(9)
	assert.ErrorIs(t, err, ErrStepNotFound)

	require.NoError(t, s.DeleteStep(1))
	_, err = s.Step(1)
	assert.ErrorIs(t, err, ErrStepNotFound)
	assert.ErrorIs(t, s.DeleteStep(1), ErrStepNotFound)
	// deleting a step leaves the data alone
	assert.Equal(t, "Alice", column(t, s, "name")[0])
}

func TestRecordChart(t *testing.T) {
	s, m := newSession(t)
	e, err := s.RecordChart(action.Chart{ChartType: "bar", XCol: "city", YCol: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, action.Chart{ChartType: "bar", XCol: "city"}, e.Action)

	_, err = s.RecordChart(action.Chart{ChartType: "scatter", XCol: "age", YCol: "height"})
	assert.ErrorIs(t, err, validate.ErrColumnNotFound)

	_, err = s.RecordChart(action.Chart{ChartType: "radar", XCol: "age"})
	assert.ErrorIs(t, err, action.ErrUnknownChart)

	assert.Len(t, s.Steps(), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsTotal.WithLabelValues("chart")))
}

func TestRunMLLogsOnSuccess(t *testing.T) {
	s, _ := newSession(t)
	res, e, err := s.RunML(action.ML{Task: "clustering", XCol: "age", YCol: "score", NClusters: 2})
	require.NoError(t, err)
	assert.Equal(t, "clustering", res.Task)
	assert.Contains(t, res.Report, "Silhouette Score: ")
	assert.Len(t, res.Assignments, 11)
	assert.Equal(t, action.ML{Task: "clustering", XCol: "age", YCol: "score", NClusters: 2}, e.Action)

	_, _, err = s.RunML(action.ML{Task: "clustering", XCol: "name", YCol: "score"})
	assert.ErrorIs(t, err, validate.ErrTypeMismatch)
	assert.Len(t, s.Steps(), 2)
}

func TestExportImportRoundTrip(t *testing.T) {
	s, m := newSession(t)
	_, err := s.Clean(CleanRequest{Operation: cleaning.Trim, Column: "name"})
	require.NoError(t, err)
	_, err = s.Clean(CleanRequest{Operation: cleaning.DropNA, Column: "age", Confirmed: true})
	require.NoError(t, err)
	_, err = s.Clean(CleanRequest{Operation: cleaning.RenameColumn, Column: "city", NewName: "town"})
	require.NoError(t, err)
	_, err = s.RecordChart(action.Chart{ChartType: "histogram", XCol: "score"})
	require.NoError(t, err)
	_, _, err = s.RunML(action.ML{Task: "regression", XCol: "age", TargetCol: "score"})
	require.NoError(t, err)

	want, err := s.Table()
	require.NoError(t, err)
	before := s.Steps()

	out := filepath.Join(t.TempDir(), "scripts", "session.py")
	require.NoError(t, s.ExportTo(out))
	text, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, s.Export(), string(text))

	_, err = s.Upload("people.csv", []byte(sample))
	require.NoError(t, err)
	rep, err := s.Import(string(text), "session.py")
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Cleaning)
	assert.Equal(t, 1, rep.Charts)
	assert.Equal(t, 1, rep.ML)
	assert.Empty(t, rep.Errors)
	assert.Equal(t, "Imported 3 cleaning, 1 chart, 1 ML actions from session.py.", rep.Message())

	got, err := s.Table()
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	after := s.Steps()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Action, after[i].Action)
		assert.Equal(t, i, after[i].ID)
	}
	// replayed cleaning can be undone
	assert.Len(t, s.History().Log(), 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportedTotal.WithLabelValues("chart")))
}

func TestImportReportsReplayErrorsAndSkippedLines(t *testing.T) {
	s, _ := newSession(t)
	text := strings.Join([]string{
		"import pandas as pd",
		"",
		"# --- Load data ---",
		"df = pd.read_csv('people.csv')",
		"",
		"# --- Data cleaning ---",
		"df['name'] = df['name'].str.upper()",
		"df['salary'] = df['salary'].str.lower()",
		"df = df.merge(other)",
		"",
	}, "\n")
	rep, err := s.Import(text, "")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Cleaning)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "lowercase on salary")
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, "df = df.merge(other)", rep.Skipped[0].Text)
	assert.Equal(t, "Imported 1 cleaning actions from script.", rep.Message())
	assert.Equal(t, "BOB", column(t, s, "name")[1])
}

func TestImportGuards(t *testing.T) {
	empty := New(Options{Workspace: t.TempDir(), Logger: logging.Discard()})
	_, err := empty.Import("# --- Data cleaning ---\ndf['a'] = df['a'].str.strip()\n", "x.py")
	assert.ErrorIs(t, err, ErrNotFound)

	s, _ := newSession(t)
	_, err = s.Import("print('hello')\n", "x.py")
	assert.ErrorIs(t, err, ErrNoActions)
	// the log survives a failed import
	assert.Len(t, s.Steps(), 1)
}

func TestImportWithoutUploadClearsLog(t *testing.T) {
	s, _ := newSession(t)
	rep, err := s.Import("# --- Data cleaning ---\ndf['city'] = df['city'].str.upper()\n", "x.py")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Cleaning)
	steps := s.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, action.TypeCleaning, steps[0].Action.Type())
	assert.Equal(t, 0, steps[0].ID)
}

func TestColumnsAndSummary(t *testing.T) {
	s, _ := newSession(t)
	cols, err := s.Columns()
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, Column{Name: "age", Kind: "numeric", Nulls: 1}, cols[1])
	assert.Equal(t, "text", cols[0].Kind)

	rep, err := s.Summary(analysis.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "people.csv", rep.Name)
	assert.Equal(t, 12, rep.Rows)
	assert.Contains(t, rep.Markdown(), "[DATASET SUMMARY]")
}

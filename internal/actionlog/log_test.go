package actionlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLog(t *testing.T) *Log {
	t.Helper()
	return New(t.TempDir(), logging.Discard())
}

func ids(entries []action.Entry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestIDsAreMonotonic(t *testing.T) {
	l := newLog(t)
	for _, op := range []string{"trim", "dropna", "lowercase"} {
		_, err := l.LogAction(action.Cleaning{Operation: op, Column: "a"})
		require.NoError(t, err)
	}
	assert.Equal(t, []int{0, 1, 2}, ids(l.Entries()))

	require.NoError(t, l.Delete(1))
	assert.Equal(t, []int{0, 2}, ids(l.Entries()))

	e, err := l.LogAction(action.Chart{ChartType: "heatmap"})
	require.NoError(t, err)
	assert.Equal(t, 3, e.ID)
}

func TestLogActionStampsAndNormalizes(t *testing.T) {
	l := newLog(t)
	l.now = func() time.Time { return time.Unix(1700000000, 500_000_000) }

	e, err := l.LogAction(action.ML{Task: "clustering", XCol: "a", YCol: "b", TargetCol: "ignored"})
	require.NoError(t, err)
	assert.InDelta(t, 1700000000.5, e.Timestamp, 1e-6)
	assert.False(t, e.Disabled)
	assert.Equal(t, action.ML{Task: "clustering", XCol: "a", YCol: "b", NClusters: 3}, e.Action)

	got, ok := l.Step(e.ID)
	require.True(t, ok)
	assert.Equal(t, e, got)
}

func TestResetOnUpload(t *testing.T) {
	l := newLog(t)
	_, err := l.LogAction(action.Cleaning{Operation: "trim", Column: "a"})
	require.NoError(t, err)
	require.NoError(t, l.ResetOnUpload("data.csv", "csv"))

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].ID)
	assert.Equal(t, action.TypeUpload, entries[0].Action.Type())
	assert.Equal(t, action.Upload{Filename: "data.csv", FileFormat: "csv"}, entries[0].Action)
}

func TestToggleAndEnabled(t *testing.T) {
	l := newLog(t)
	require.NoError(t, l.ResetOnUpload("d.csv", "csv"))
	_, err := l.LogAction(action.Chart{ChartType: "bar", XCol: "c"})
	require.NoError(t, err)

	require.NoError(t, l.Toggle(1))
	e, _ := l.Step(1)
	assert.True(t, e.Disabled)
	assert.Equal(t, []int{0}, ids(l.Enabled()))

	require.NoError(t, l.Toggle(1))
	assert.Equal(t, []int{0, 1}, ids(l.Enabled()))

	require.NoError(t, l.Toggle(42))
	require.NoError(t, l.Delete(42))
	assert.Len(t, l.Entries(), 2)
}

func TestUndoLastCleaning(t *testing.T) {
	l := newLog(t)
	require.NoError(t, l.ResetOnUpload("d.csv", "csv"))
	_, _ = l.LogAction(action.Cleaning{Operation: "trim", Column: "a"})
	_, _ = l.LogAction(action.Cleaning{Operation: "dropna", Column: "b"})
	_, _ = l.LogAction(action.Chart{ChartType: "pie", XCol: "a"})

	removed, ok, err := l.UndoLastCleaning()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, action.Cleaning{Operation: "dropna", Column: "b"}, removed.Action)
	assert.Equal(t, []int{0, 1, 3}, ids(l.Entries()))

	_, _, _ = l.UndoLastCleaning()
	_, ok, err = l.UndoLastCleaning()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptLogReadsEmpty(t *testing.T) {
	l := newLog(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(l.Path()), 0o755))
	require.NoError(t, os.WriteFile(l.Path(), []byte("{not json"), 0o644))

	assert.Empty(t, l.Entries())
	e, err := l.LogAction(action.Upload{Filename: "x.csv", FileFormat: "csv"})
	require.NoError(t, err)
	assert.Equal(t, 0, e.ID)
}

func TestClearAndPersistence(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, logging.Discard())
	_, err := l.LogAction(action.Upload{Filename: "x.csv", FileFormat: "csv"})
	require.NoError(t, err)

	// a fresh handle sees the same state
	assert.Len(t, New(dir, logging.Discard()).Entries(), 1)

	require.NoError(t, l.Clear())
	assert.Empty(t, l.Entries())
	b, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
	_, err = os.Stat(l.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

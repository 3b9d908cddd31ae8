// Package history keeps bounded undo/redo snapshots of the working table
// under <workspace>/.history. It is best-effort: disk failures are logged and
// reported as "nothing happened", never as fatal errors.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/tabstep-cli/internal/cleaning"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
	"github.com/KaramelBytes/tabstep-cli/internal/utils"
)

const (
	dirName      = ".history"
	logFileName  = "log.json"
	redoFileName = "redo.json"

	// DefaultMax is the number of snapshots retained.
	DefaultMax = 10
)

// Record is one history entry. Snapshot is the file name inside the history
// directory.
type Record struct {
	Index       int    `json:"index"`
	Operation   string `json:"operation"`
	Column      string `json:"column"`
	Description string `json:"description"`
	Snapshot    string `json:"snapshot"`
	FillValue   string `json:"fill_value,omitempty"`
	NewName     string `json:"new_name,omitempty"`
}

// Preview is the row-count effect of an operation.
type Preview struct {
	RowsBefore   int `json:"rows_before"`
	RowsAfter    int `json:"rows_after"`
	RowsAffected int `json:"rows_affected"`
}

type redoEntry struct {
	Record Record `json:"record"`
	File   string `json:"file"`
}

// Manager owns the history directory of one workspace.
type Manager struct {
	dir    string
	store  *table.Store
	max    int
	logger *slog.Logger
}

// New returns a manager for workspace. max <= 0 uses DefaultMax.
func New(workspace string, store *table.Store, max int, logger *slog.Logger) *Manager {
	if max <= 0 {
		max = DefaultMax
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: filepath.Join(workspace, dirName), store: store, max: max, logger: logger}
}

// Dir returns the history directory.
func (m *Manager) Dir() string { return m.dir }

func (m *Manager) path(name string) string { return filepath.Join(m.dir, name) }

func readJSON[T any](m *Manager, name string) []T {
	b, err := os.ReadFile(m.path(name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("history file unreadable, treating as empty", "file", name, "error", err)
		}
		return nil
	}
	var out []T
	if err := json.Unmarshal(b, &out); err != nil {
		m.logger.Warn("history file corrupt, treating as empty", "file", name, "error", err)
		return nil
	}
	return out
}

func writeJSON[T any](m *Manager, name string, v []T) error {
	if v == nil {
		v = []T{}
	}
	if err := utils.EnsureDir(m.dir); err != nil {
		return err
	}
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(m.path(name), b)
}

// Log returns the retained history records, oldest first.
func (m *Manager) Log() []Record { return readJSON[Record](m, logFileName) }

// RedoDepth returns how many undone states can be redone.
func (m *Manager) RedoDepth() int { return len(readJSON[redoEntry](m, redoFileName)) }

func (m *Manager) writeFrame(name string, f *table.Frame) error {
	if err := utils.EnsureDir(m.dir); err != nil {
		return err
	}
	out, err := os.Create(m.path(name))
	if err != nil {
		return err
	}
	if err := table.WriteCSV(out, f); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (m *Manager) remove(name string) {
	if err := os.Remove(m.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("remove history file failed", "file", name, "error", err)
	}
}

// SaveSnapshot records the current table before op runs on column and clears
// the redo stack. It reports whether a snapshot was written.
func (m *Manager) SaveSnapshot(op, column, description string) bool {
	return m.Save(Record{Operation: op, Column: column, Description: description})
}

// Save is SaveSnapshot with the full record, including operation parameters.
func (m *Manager) Save(r Record) bool {
	cur, err := m.store.Read()
	if err != nil {
		m.logger.Warn("snapshot skipped: current table unreadable", "operation", r.Operation, "error", err)
		return false
	}
	if !m.push(r, cur) {
		return false
	}
	m.clearRedo()
	return true
}

// push appends a snapshot of f to the log, evicting the oldest past max.
func (m *Manager) push(r Record, f *table.Frame) bool {
	log := m.Log()
	r.Index = 0
	for _, e := range log {
		if e.Index >= r.Index {
			r.Index = e.Index + 1
		}
	}
	r.Snapshot = fmt.Sprintf("snapshot_%d.csv", r.Index)
	if err := m.writeFrame(r.Snapshot, f); err != nil {
		m.logger.Warn("snapshot write failed", "file", r.Snapshot, "error", err)
		return false
	}
	log = append(log, r)
	for len(log) > m.max {
		m.remove(log[0].Snapshot)
		log = log[1:]
	}
	if err := writeJSON(m, logFileName, log); err != nil {
		m.logger.Warn("history log write failed", "error", err)
		m.remove(r.Snapshot)
		return false
	}
	m.logger.Debug("snapshot saved", "index", r.Index, "operation", r.Operation, "column", r.Column)
	return true
}

func (m *Manager) clearRedo() {
	for _, e := range readJSON[redoEntry](m, redoFileName) {
		m.remove(e.File)
	}
	if err := writeJSON[redoEntry](m, redoFileName, nil); err != nil {
		m.logger.Warn("redo stack reset failed", "error", err)
	}
}

// Undo restores the most recent snapshot and pushes the current table onto
// the redo stack. It returns the restored table and the undone record.
func (m *Manager) Undo() (*table.Frame, Record, bool) {
	log := m.Log()
	if len(log) == 0 {
		return nil, Record{}, false
	}
	top := log[len(log)-1]
	restored, err := table.ReadFile(m.path(top.Snapshot))
	if err != nil {
		m.logger.Warn("snapshot read failed", "file", top.Snapshot, "error", err)
		return nil, Record{}, false
	}
	cur, err := m.store.Read()
	if err != nil {
		m.logger.Warn("undo skipped: current table unreadable", "error", err)
		return nil, Record{}, false
	}

	redo := readJSON[redoEntry](m, redoFileName)
	next := 0
	for _, e := range redo {
		var n int
		if _, err := fmt.Sscanf(e.File, "redo_%d.csv", &n); err == nil && n >= next {
			next = n + 1
		}
	}
	file := fmt.Sprintf("redo_%d.csv", next)
	if err := m.writeFrame(file, cur); err != nil {
		m.logger.Warn("redo snapshot write failed", "file", file, "error", err)
		return nil, Record{}, false
	}
	redo = append(redo, redoEntry{Record: top, File: file})
	if err := writeJSON(m, redoFileName, redo); err != nil {
		m.logger.Warn("redo stack write failed", "error", err)
		m.remove(file)
		return nil, Record{}, false
	}

	if err := m.store.Write(restored); err != nil {
		m.logger.Error("restore failed", "snapshot", top.Snapshot, "error", err)
		return nil, Record{}, false
	}
	m.remove(top.Snapshot)
	if err := writeJSON(m, logFileName, log[:len(log)-1]); err != nil {
		m.logger.Warn("history log write failed", "error", err)
	}
	return restored, top, true
}

// Redo restores the most recently undone state. The state being replaced is
// pushed back onto the history so the redo can itself be undone.
func (m *Manager) Redo() (*table.Frame, Record, bool) {
	redo := readJSON[redoEntry](m, redoFileName)
	if len(redo) == 0 {
		return nil, Record{}, false
	}
	top := redo[len(redo)-1]
	restored, err := table.ReadFile(m.path(top.File))
	if err != nil {
		m.logger.Warn("redo snapshot read failed", "file", top.File, "error", err)
		return nil, Record{}, false
	}
	if cur, err := m.store.Read(); err == nil {
		m.push(top.Record, cur)
	} else {
		m.logger.Warn("redo: current table unreadable, history not extended", "error", err)
	}
	if err := m.store.Write(restored); err != nil {
		m.logger.Error("redo restore failed", "file", top.File, "error", err)
		return nil, Record{}, false
	}
	m.remove(top.File)
	if err := writeJSON(m, redoFileName, redo[:len(redo)-1]); err != nil {
		m.logger.Warn("redo stack write failed", "error", err)
	}
	return restored, top.Record, true
}

// Clear removes every snapshot and resets both stacks.
func (m *Manager) Clear() {
	if err := os.RemoveAll(m.dir); err != nil {
		m.logger.Warn("clear history failed", "dir", m.dir, "error", err)
	}
}

// PreviewOperation applies op to a scratch copy of f and reports row counts.
// Neither f nor any stored state changes.
func PreviewOperation(f *table.Frame, op cleaning.Operation, column string, p cleaning.Params) (Preview, error) {
	after, err := cleaning.Apply(f, op, column, p)
	if err != nil {
		return Preview{}, err
	}
	before := f.NumRows()
	diff := before - after.NumRows()
	if diff < 0 {
		diff = -diff
	}
	return Preview{RowsBefore: before, RowsAfter: after.NumRows(), RowsAffected: diff}, nil
}

// Preview is PreviewOperation exposed on the manager.
func (m *Manager) Preview(f *table.Frame, op cleaning.Operation, column string, p cleaning.Params) (Preview, error) {
	return PreviewOperation(f, op, column, p)
}

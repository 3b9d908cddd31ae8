// Package actionlog persists the ordered list of session steps under
// <workspace>/.actions/actions.json. Every mutation rewrites the file
// atomically; nothing is held in memory between calls.
package actionlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/utils"
)

const (
	dirName  = ".actions"
	fileName = "actions.json"
)

// Log is the file-backed action log of one workspace.
type Log struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// New returns the log stored under workspace. A nil logger uses slog.Default.
func New(workspace string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		path:   filepath.Join(workspace, dirName, fileName),
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the backing file location.
func (l *Log) Path() string { return l.path }

func (l *Log) timestamp() float64 {
	return float64(l.now().UnixNano()) / 1e9
}

// read loads the log. A missing or unreadable file yields an empty log.
func (l *Log) read() []action.Entry {
	b, err := os.ReadFile(l.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("action log unreadable, treating as empty", "path", l.path, "error", err)
		}
		return nil
	}
	var entries []action.Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		l.logger.Warn("action log corrupt, treating as empty", "path", l.path, "error", err)
		return nil
	}
	return entries
}

func (l *Log) write(entries []action.Entry) error {
	if entries == nil {
		entries = []action.Entry{}
	}
	if err := utils.EnsureDir(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("ensure actions dir: %w", err)
	}
	b, err := utils.PrettyJSON(entries)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(l.path, b); err != nil {
		return fmt.Errorf("save action log: %w", err)
	}
	return nil
}

// LogAction normalizes a, assigns the next id and a timestamp, and appends it.
func (l *Log) LogAction(a action.Action) (action.Entry, error) {
	if a == nil {
		return action.Entry{}, errors.New("nil action")
	}
	entries := l.read()
	next := 0
	for _, e := range entries {
		if e.ID >= next {
			next = e.ID + 1
		}
	}
	e := action.Entry{ID: next, Timestamp: l.timestamp(), Action: action.Normalize(a)}
	entries = append(entries, e)
	if err := l.write(entries); err != nil {
		return action.Entry{}, err
	}
	l.logger.Debug("action logged", "id", e.ID, "action_type", a.Type())
	return e, nil
}

// Entries returns the full ordered log.
func (l *Log) Entries() []action.Entry { return l.read() }

// Enabled returns the entries that are not disabled, in order.
func (l *Log) Enabled() []action.Entry {
	var out []action.Entry
	for _, e := range l.read() {
		if !e.Disabled {
			out = append(out, e)
		}
	}
	return out
}

// Step returns the entry with the given id.
func (l *Log) Step(id int) (action.Entry, bool) {
	for _, e := range l.read() {
		if e.ID == id {
			return e, true
		}
	}
	return action.Entry{}, false
}

// Toggle flips the disabled flag of id. Unknown ids are a no-op.
func (l *Log) Toggle(id int) error {
	entries := l.read()
	for i := range entries {
		if entries[i].ID == id {
			entries[i].Disabled = !entries[i].Disabled
			return l.write(entries)
		}
	}
	return nil
}

// Delete removes the entry with id. Remaining ids are not renumbered.
func (l *Log) Delete(id int) error {
	entries := l.read()
	for i := range entries {
		if entries[i].ID == id {
			entries = append(entries[:i], entries[i+1:]...)
			return l.write(entries)
		}
	}
	return nil
}

// Clear empties the log.
func (l *Log) Clear() error { return l.write(nil) }

// ResetOnUpload replaces the log with a single upload entry at id 0.
func (l *Log) ResetOnUpload(filename, fileFormat string) error {
	e := action.Entry{ID: 0, Timestamp: l.timestamp(), Action: action.Upload{Filename: filename, FileFormat: fileFormat}}
	return l.write([]action.Entry{e})
}

// UndoLastCleaning removes the most recent cleaning entry and returns it.
func (l *Log) UndoLastCleaning() (action.Entry, bool, error) {
	entries := l.read()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Action.Type() == action.TypeCleaning {
			removed := entries[i]
			entries = append(entries[:i], entries[i+1:]...)
			if err := l.write(entries); err != nil {
				return action.Entry{}, false, err
			}
			return removed, true, nil
		}
	}
	return action.Entry{}, false, nil
}

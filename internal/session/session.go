// Package session composes the working table, the action log and the
// snapshot history of one workspace into the user-level flows: upload,
// clean, undo/redo, chart and model recording, and script export/import.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/actionlog"
	"github.com/KaramelBytes/tabstep-cli/internal/analysis"
	"github.com/KaramelBytes/tabstep-cli/internal/history"
	"github.com/KaramelBytes/tabstep-cli/internal/metrics"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
	"github.com/KaramelBytes/tabstep-cli/internal/upload"
	"github.com/KaramelBytes/tabstep-cli/internal/validate"
)

// DefaultDataFile is the working table name inside a workspace.
const DefaultDataFile = "local_data.csv"

// ErrNotFound is returned by every flow that needs a loaded table.
var ErrNotFound = table.ErrNotFound

// Options configures a Session. Zero values fall back to defaults.
type Options struct {
	Workspace  string
	DataFile   string
	MaxHistory int
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Session is the state of one workspace. It holds no data in memory beyond
// the store cache; every call reads and writes the files underneath.
type Session struct {
	workspace string
	store     *table.Store
	log       *actionlog.Log
	history   *history.Manager
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New opens the session rooted at opt.Workspace.
func New(opt Options) *Session {
	if opt.Workspace == "" {
		opt.Workspace = "."
	}
	if opt.DataFile == "" {
		opt.DataFile = DefaultDataFile
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	path := opt.DataFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(opt.Workspace, path)
	}
	store := table.NewStore(path)
	return &Session{
		workspace: opt.Workspace,
		store:     store,
		log:       actionlog.New(opt.Workspace, opt.Logger),
		history:   history.New(opt.Workspace, store, opt.MaxHistory, opt.Logger),
		logger:    opt.Logger,
		metrics:   opt.Metrics,
	}
}

// Workspace returns the session root directory.
func (s *Session) Workspace() string { return s.workspace }

// Store returns the working table store.
func (s *Session) Store() *table.Store { return s.store }

// Log returns the action log.
func (s *Session) Log() *actionlog.Log { return s.log }

// History returns the snapshot manager.
func (s *Session) History() *history.Manager { return s.history }

// Table returns a copy of the working table.
func (s *Session) Table() (*table.Frame, error) {
	return s.store.Read()
}

func (s *Session) write(f *table.Frame) error {
	if err := s.store.Write(f); err != nil {
		return fmt.Errorf("write working table: %w", err)
	}
	s.metrics.TableRows(f.NumRows())
	return nil
}

func (s *Session) record(a action.Action) (action.Entry, error) {
	e, err := s.log.LogAction(a)
	if err != nil {
		return action.Entry{}, err
	}
	s.metrics.ActionLogged(string(a.Type()))
	return e, nil
}

// UploadResult describes a freshly loaded table.
type UploadResult struct {
	Filename string   `json:"filename"`
	Format   string   `json:"file_format"`
	Rows     int      `json:"rows"`
	Cols     int      `json:"cols"`
	Columns  []string `json:"columns"`
}

// Upload decodes data by the extension of filename and makes it the working
// table. The action log restarts with a single upload entry and the history
// is cleared.
func (s *Session) Upload(filename string, data []byte) (*UploadResult, error) {
	f, format, err := upload.Decode(filename, data)
	if err != nil {
		return nil, err
	}
	return s.replace(filepath.Base(filename), format, f)
}

// UploadFile is Upload reading from disk.
func (s *Session) UploadFile(path string) (*UploadResult, error) {
	f, format, err := upload.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return s.replace(filepath.Base(path), format, f)
}

// UploadDataURI is Upload for a base64 data URI.
func (s *Session) UploadDataURI(contents, filename string) (*UploadResult, error) {
	f, format, err := upload.DecodeDataURI(contents, filename)
	if err != nil {
		return nil, err
	}
	return s.replace(filepath.Base(filename), format, f)
}

// Load makes an already decoded table the working table, as Upload does.
func (s *Session) Load(filename, format string, f *table.Frame) (*UploadResult, error) {
	return s.replace(filepath.Base(filename), format, f)
}

func (s *Session) replace(filename, format string, f *table.Frame) (*UploadResult, error) {
	if err := s.write(f); err != nil {
		return nil, err
	}
	if err := s.log.ResetOnUpload(filename, format); err != nil {
		return nil, err
	}
	s.metrics.ActionLogged(string(action.TypeUpload))
	s.history.Clear()
	s.logger.Info("dataset uploaded", "filename", filename, "format", format, "rows", f.NumRows(), "cols", f.NumCols())
	return &UploadResult{
		Filename: filename,
		Format:   format,
		Rows:     f.NumRows(),
		Cols:     f.NumCols(),
		Columns:  f.Names(),
	}, nil
}

// Steps returns the full action log.
func (s *Session) Steps() []action.Entry { return s.log.Entries() }

// Step returns one entry by id.
func (s *Session) Step(id int) (action.Entry, error) {
	e, ok := s.log.Step(id)
	if !ok {
		return action.Entry{}, fmt.Errorf("%w: step %d", ErrStepNotFound, id)
	}
	return e, nil
}

// ErrStepNotFound is returned for an unknown step id.
var ErrStepNotFound = errors.New("step not found")

// ToggleStep flips whether a step is exported.
func (s *Session) ToggleStep(id int) (action.Entry, error) {
	if _, err := s.Step(id); err != nil {
		return action.Entry{}, err
	}
	if err := s.log.Toggle(id); err != nil {
		return action.Entry{}, err
	}
	return s.Step(id)
}

// DeleteStep removes a step from the log. The working table is not touched.
func (s *Session) DeleteStep(id int) error {
	if _, err := s.Step(id); err != nil {
		return err
	}
	return s.log.Delete(id)
}

// Columns lists the working table columns with their inferred kinds.
func (s *Session) Columns() ([]Column, error) {
	f, err := s.Table()
	if err != nil {
		return nil, err
	}
	out := make([]Column, 0, f.NumCols())
	for _, name := range f.Names() {
		cells, _ := f.Column(name)
		nulls := 0
		for _, c := range cells {
			if c.Null {
				nulls++
			}
		}
		out = append(out, Column{Name: name, Kind: string(f.Kind(name)), Nulls: nulls})
	}
	return out, nil
}

// Column is one entry of Columns.
type Column struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Nulls int    `json:"nulls"`
}

// Summary computes descriptive statistics of the working table.
func (s *Session) Summary(opt analysis.Options) (*analysis.Report, error) {
	f, err := s.Table()
	if err != nil {
		return nil, err
	}
	if err := validate.NotEmpty(f); err != nil {
		return nil, err
	}
	name := filepath.Base(s.store.Path)
	for _, e := range s.log.Entries() {
		if u, ok := e.Action.(action.Upload); ok {
			name = u.Filename
			break
		}
	}
	return analysis.Summarize(f, name, opt), nil
}

package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/cleaning"
	"github.com/KaramelBytes/tabstep-cli/internal/history"
	"github.com/KaramelBytes/tabstep-cli/internal/ml"
	"github.com/KaramelBytes/tabstep-cli/internal/script"
	"github.com/KaramelBytes/tabstep-cli/internal/utils"
	"github.com/KaramelBytes/tabstep-cli/internal/validate"
)

// ErrNoActions is returned when an imported script yields nothing.
var ErrNoActions = errors.New("no actions found in the script")

// RecordChart checks c against the working table and appends it to the log.
func (s *Session) RecordChart(c action.Chart) (action.Entry, error) {
	c = action.Normalize(c).(action.Chart)
	if err := action.Validate(c); err != nil {
		return action.Entry{}, err
	}
	f, err := s.Table()
	if err != nil {
		return action.Entry{}, err
	}
	for _, col := range []string{c.XCol, c.YCol, c.ColorCol, c.SizeCol} {
		if col == "" {
			continue
		}
		if err := validate.ColumnExists(f, col); err != nil {
			return action.Entry{}, err
		}
	}
	return s.record(c)
}

// RunML trains and evaluates m on the working table and logs it when the run
// succeeds.
func (s *Session) RunML(m action.ML) (*ml.Result, action.Entry, error) {
	f, err := s.Table()
	if err != nil {
		return nil, action.Entry{}, err
	}
	start := time.Now()
	res, err := ml.Run(f, m)
	s.metrics.MLRun(m.Task, time.Since(start), err)
	if err != nil {
		return nil, action.Entry{}, err
	}
	e, err := s.record(m)
	if err != nil {
		return res, action.Entry{}, err
	}
	s.logger.Info("model run", "task", m.Task, "duration", time.Since(start))
	return res, e, nil
}

// Export renders the enabled steps as a script.
func (s *Session) Export() string {
	return script.Generate(s.log.Entries())
}

// ExportTo writes the script to path atomically.
func (s *Session) ExportTo(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("ensure export dir: %w", err)
		}
	}
	if err := utils.SafeWriteFile(path, []byte(s.Export())); err != nil {
		return fmt.Errorf("export script: %w", err)
	}
	return nil
}

// ImportReport summarizes a script import.
type ImportReport struct {
	Source   string               `json:"source"`
	Cleaning int                  `json:"cleaning"`
	Charts   int                  `json:"charts"`
	ML       int                  `json:"ml"`
	Errors   []string             `json:"errors,omitempty"`
	Skipped  []script.SkippedLine `json:"skipped,omitempty"`
}

// Message is the one-line outcome shown to the user.
func (r *ImportReport) Message() string {
	var parts []string
	if r.Cleaning > 0 {
		parts = append(parts, fmt.Sprintf("%d cleaning", r.Cleaning))
	}
	if r.Charts > 0 {
		parts = append(parts, fmt.Sprintf("%d chart", r.Charts))
	}
	if r.ML > 0 {
		parts = append(parts, fmt.Sprintf("%d ML", r.ML))
	}
	summary := "0"
	if len(parts) > 0 {
		summary = strings.Join(parts, ", ")
	}
	source := r.Source
	if source == "" {
		source = "script"
	}
	return fmt.Sprintf("Imported %s actions from %s.", summary, source)
}

// Import parses text and replays it on the working table. The log restarts
// from the script's upload step (or empty when it has none); cleaning steps
// are applied through the registry with a snapshot each, and chart and model
// steps are logged as they are. Steps that fail to replay are reported in
// Errors and skipped.
func (s *Session) Import(text, source string) (*ImportReport, error) {
	if !s.store.Exists() {
		return nil, fmt.Errorf("%w: upload a dataset before importing a script", ErrNotFound)
	}
	parsed := script.Parse(text)
	if len(parsed.Actions) == 0 {
		return nil, ErrNoActions
	}
	rep := &ImportReport{Source: source, Skipped: parsed.Skipped}

	reset := false
	for _, a := range parsed.Actions {
		if u, ok := a.(action.Upload); ok {
			if err := s.log.ResetOnUpload(u.Filename, u.FileFormat); err != nil {
				return nil, err
			}
			reset = true
			break
		}
	}
	if !reset {
		if err := s.log.Clear(); err != nil {
			return nil, err
		}
	}

	for _, a := range parsed.Actions {
		switch v := a.(type) {
		case action.Cleaning:
			if err := s.replay(v); err != nil {
				rep.Errors = append(rep.Errors, fmt.Sprintf("%s on %s: %v", v.Operation, v.Column, err))
				continue
			}
			rep.Cleaning++
		case action.Chart:
			if _, err := s.record(v); err != nil {
				return rep, err
			}
			rep.Charts++
		case action.ML:
			if _, err := s.record(v); err != nil {
				return rep, err
			}
			rep.ML++
		}
	}
	s.metrics.Imported(string(action.TypeCleaning), rep.Cleaning)
	s.metrics.Imported(string(action.TypeChart), rep.Charts)
	s.metrics.Imported(string(action.TypeML), rep.ML)
	s.logger.Info("script imported", "source", source, "cleaning", rep.Cleaning, "charts", rep.Charts,
		"ml", rep.ML, "errors", len(rep.Errors), "skipped", len(parsed.Skipped))
	return rep, nil
}

func (s *Session) replay(c action.Cleaning) error {
	f, err := s.Table()
	if err != nil {
		return err
	}
	op := cleaning.Operation(c.Operation)
	p := cleaning.Params{FillValue: c.FillValue, NewName: c.NewName}
	out, err := cleaning.Apply(f, op, c.Column, p)
	if err != nil {
		return err
	}
	s.history.Save(history.Record{
		Operation:   c.Operation,
		Column:      c.Column,
		Description: cleaning.Describe(op, c.Column, p),
		FillValue:   c.FillValue,
		NewName:     c.NewName,
	})
	if err := s.write(out); err != nil {
		return err
	}
	_, err = s.record(c)
	return err
}

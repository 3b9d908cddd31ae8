package session

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/cleaning"
	"github.com/KaramelBytes/tabstep-cli/internal/history"
	"github.com/KaramelBytes/tabstep-cli/internal/validate"
)

// ErrConfirmationRequired is wrapped by *ConfirmationError.
var ErrConfirmationRequired = errors.New("confirmation required")

// ConfirmationError is returned when a destructive operation is requested
// without Confirmed set. Prompt is the question to put to the user.
type ConfirmationError struct {
	Operation cleaning.Operation
	Column    string
	Prompt    string
}

func (e *ConfirmationError) Error() string { return e.Prompt }

func (e *ConfirmationError) Unwrap() error { return ErrConfirmationRequired }

// ConfirmationPrompt is the question asked before a destructive operation.
func ConfirmationPrompt(op cleaning.Operation, column string) string {
	return fmt.Sprintf("Are you sure you want to apply %q on column %q? This may remove data.", cleaning.Label(op), column)
}

// CleanRequest is one cleaning operation against the working table.
type CleanRequest struct {
	Operation cleaning.Operation `json:"operation"`
	Column    string             `json:"column"`
	FillValue string             `json:"fill_value,omitempty"`
	NewName   string             `json:"new_name,omitempty"`
	Confirmed bool               `json:"confirm,omitempty"`
}

func (r CleanRequest) params() cleaning.Params {
	return cleaning.Params{FillValue: r.FillValue, NewName: r.NewName}
}

// CleanResult reports an applied (or skipped) cleaning operation.
type CleanResult struct {
	Entry       *action.Entry `json:"entry,omitempty"`
	Description string        `json:"description"`
	Note        string        `json:"note,omitempty"`
	Snapshot    bool          `json:"snapshot"`
	RowsBefore  int           `json:"rows_before"`
	RowsAfter   int           `json:"rows_after"`
	Cols        int           `json:"cols"`
}

// Clean validates req, snapshots the current table, applies the operation,
// writes the result and logs it. Destructive operations fail with a
// *ConfirmationError unless req.Confirmed is set. A request the registry
// accepts but that changes nothing is reported through Note and not logged.
func (s *Session) Clean(req CleanRequest) (res *CleanResult, err error) {
	defer func() { s.metrics.Cleaning(string(req.Operation), err) }()

	f, err := s.Table()
	if err != nil {
		return nil, err
	}
	if !cleaning.Known(req.Operation) {
		return nil, &cleaning.OpError{Op: req.Operation, Column: req.Column, Err: cleaning.ErrUnknownOperation}
	}
	if err := validate.Cleaning(f, req.Operation, req.Column); err != nil {
		return nil, err
	}
	if cleaning.IsDestructive(req.Operation) && !req.Confirmed {
		return nil, &ConfirmationError{
			Operation: req.Operation,
			Column:    req.Column,
			Prompt:    ConfirmationPrompt(req.Operation, req.Column),
		}
	}

	p := req.params()
	desc := cleaning.Describe(req.Operation, req.Column, p)
	res = &CleanResult{Description: desc, RowsBefore: f.NumRows()}
	if note := cleaning.Note(req.Operation, req.Column, p); note != "" {
		res.Note = note
		res.RowsAfter = f.NumRows()
		res.Cols = f.NumCols()
		return res, nil
	}

	out, err := cleaning.Apply(f, req.Operation, req.Column, p)
	if err != nil {
		return nil, err
	}
	res.Snapshot = s.history.Save(history.Record{
		Operation:   string(req.Operation),
		Column:      req.Column,
		Description: desc,
		FillValue:   req.FillValue,
		NewName:     req.NewName,
	})
	if err := s.write(out); err != nil {
		return nil, err
	}
	e, err := s.record(action.Cleaning{
		Operation: string(req.Operation),
		Column:    req.Column,
		FillValue: req.FillValue,
		NewName:   req.NewName,
	})
	if err != nil {
		return nil, err
	}
	res.Entry = &e
	res.RowsAfter = out.NumRows()
	res.Cols = out.NumCols()
	s.logger.Info("cleaning applied", "operation", req.Operation, "column", req.Column,
		"rows_before", res.RowsBefore, "rows_after", res.RowsAfter)
	return res, nil
}

// Preview reports the row-count effect of req without changing anything.
// Confirmation is not required.
func (s *Session) Preview(req CleanRequest) (history.Preview, error) {
	f, err := s.Table()
	if err != nil {
		return history.Preview{}, err
	}
	if err := validate.Cleaning(f, req.Operation, req.Column); err != nil {
		return history.Preview{}, err
	}
	return s.history.Preview(f, req.Operation, req.Column, req.params())
}

// StepResult reports an undo or redo.
type StepResult struct {
	Record history.Record `json:"record"`
	Rows   int            `json:"rows"`
	Cols   int            `json:"cols"`
	// Entry is the log entry removed by undo or added by redo.
	Entry *action.Entry `json:"entry,omitempty"`
}

// Undo restores the table to its state before the last snapshot and drops
// the most recent cleaning entry from the log, unless the snapshot was
// taken by a direct edit. ok is false when there is nothing to undo.
func (s *Session) Undo() (res *StepResult, ok bool, err error) {
	defer func() { s.metrics.HistoryStep("undo", ok) }()

	f, rec, ok := s.history.Undo()
	if !ok {
		return nil, false, nil
	}
	s.store.Cache().Invalidate()
	s.metrics.TableRows(f.NumRows())
	res = &StepResult{Record: rec, Rows: f.NumRows(), Cols: f.NumCols()}
	if rec.Operation != EditOperation {
		removed, found, err := s.log.UndoLastCleaning()
		if err != nil {
			return res, true, err
		}
		if found {
			res.Entry = &removed
		}
	}
	s.logger.Info("undo", "operation", rec.Operation, "column", rec.Column)
	return res, true, nil
}

// Redo re-applies the most recently undone state and logs the operation
// again. ok is false when the redo stack is empty.
func (s *Session) Redo() (res *StepResult, ok bool, err error) {
	defer func() { s.metrics.HistoryStep("redo", ok) }()

	f, rec, ok := s.history.Redo()
	if !ok {
		return nil, false, nil
	}
	s.store.Cache().Invalidate()
	s.metrics.TableRows(f.NumRows())
	res = &StepResult{Record: rec, Rows: f.NumRows(), Cols: f.NumCols()}
	if rec.Operation != "" && rec.Operation != EditOperation {
		e, err := s.record(action.Cleaning{
			Operation: rec.Operation,
			Column:    rec.Column,
			FillValue: rec.FillValue,
			NewName:   rec.NewName,
		})
		if err != nil {
			return res, true, err
		}
		res.Entry = &e
	}
	s.logger.Info("redo", "operation", rec.Operation, "column", rec.Column)
	return res, true, nil
}

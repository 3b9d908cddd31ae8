package session

import (
	"fmt"

	"github.com/KaramelBytes/tabstep-cli/internal/history"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
	"github.com/KaramelBytes/tabstep-cli/internal/validate"
)

// EditOperation names history records written by direct edits. Edits are
// not steps: undoing or redoing one leaves the action log alone, and the
// exported script does not reproduce them.
const EditOperation = "edit"

// EditResult reports a direct change to the working table.
type EditResult struct {
	Description string `json:"description"`
	Snapshot    bool   `json:"snapshot"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
}

// Edit sets one cell of the working table. row is zero-based. Values that
// read as missing in a CSV (empty, NA, null, ...) store a null.
func (s *Session) Edit(row int, column, value string) (res *EditResult, err error) {
	defer func() { s.metrics.Edit("cell", err) }()

	f, err := s.Table()
	if err != nil {
		return nil, err
	}
	if err := validate.ColumnExists(f, column); err != nil {
		return nil, err
	}
	if err := validate.Row(f, row); err != nil {
		return nil, err
	}
	if err := f.Set(row, column, table.Field(value)); err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Edited row %d of '%s'", row, column)
	return s.commitEdit(f, history.Record{Operation: EditOperation, Column: column, Description: desc})
}

// SaveTable replaces the working table with header and rows, as saving an
// edited grid does. Short rows are padded with nulls. The log and history
// are kept, unlike Upload.
func (s *Session) SaveTable(header []string, rows [][]string) (res *EditResult, err error) {
	defer func() { s.metrics.Edit("table", err) }()

	if !s.store.Exists() {
		return nil, ErrNotFound
	}
	if len(header) == 0 {
		return nil, &validate.Error{Err: validate.ErrEmpty, Msg: "The edited table has no columns."}
	}
	f, err := table.FromRecords(header, rows)
	if err != nil {
		return nil, err
	}
	return s.commitEdit(f, history.Record{Operation: EditOperation, Description: "Saved table edits"})
}

func (s *Session) commitEdit(f *table.Frame, rec history.Record) (*EditResult, error) {
	res := &EditResult{Description: rec.Description, Rows: f.NumRows(), Cols: f.NumCols()}
	res.Snapshot = s.history.Save(rec)
	if err := s.write(f); err != nil {
		return nil, err
	}
	s.logger.Info("table edited", "column", rec.Column, "rows", res.Rows, "cols", res.Cols)
	return res, nil
}

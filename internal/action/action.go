// Package action defines the closed set of steps a session records: an upload,
// a cleaning operation, a chart or an ML task.
package action

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type is the wire tag stored in the action_type field.
type Type string

const (
	TypeUpload   Type = "upload"
	TypeCleaning Type = "cleaning"
	TypeChart    Type = "chart"
	TypeML       Type = "ml"
)

// Action is one recorded step payload. The set of implementations is closed:
// Upload, Cleaning, Chart and ML.
type Action interface {
	Type() Type
	isAction()
}

// Upload records the dataset a session started from.
type Upload struct {
	Filename   string `json:"filename"`
	FileFormat string `json:"file_format"`
}

// Cleaning records one cleaning operation. Empty FillValue and NewName mean unset.
type Cleaning struct {
	Operation string `json:"operation"`
	Column    string `json:"column"`
	FillValue string `json:"fill_value,omitempty"`
	NewName   string `json:"new_name,omitempty"`
}

// Chart records a chart request. Unused axes are empty.
type Chart struct {
	ChartType string `json:"chart_type"`
	XCol      string `json:"x_col,omitempty"`
	YCol      string `json:"y_col,omitempty"`
	ColorCol  string `json:"color_col,omitempty"`
	SizeCol   string `json:"size_col,omitempty"`
}

// ML records a model run. Hyperparameters a task does not use are zero.
type ML struct {
	Task        string  `json:"task"`
	XCol        string  `json:"x_col,omitempty"`
	YCol        string  `json:"y_col,omitempty"`
	TargetCol   string  `json:"target_col,omitempty"`
	NClusters   int     `json:"n_clusters,omitempty"`
	Kernel      string  `json:"kernel,omitempty"`
	MaxDepth    int     `json:"max_depth,omitempty"`
	NEstimators int     `json:"n_estimators,omitempty"`
	TestSize    float64 `json:"test_size,omitempty"`
}

func (Upload) Type() Type   { return TypeUpload }
func (Cleaning) Type() Type { return TypeCleaning }
func (Chart) Type() Type    { return TypeChart }
func (ML) Type() Type       { return TypeML }

func (Upload) isAction()   {}
func (Cleaning) isAction() {}
func (Chart) isAction()    {}
func (ML) isAction()       {}

// Entry is one persisted step: bookkeeping fields plus the payload.
type Entry struct {
	ID        int
	Timestamp float64
	Disabled  bool
	Action    Action
}

// ErrUnknownType is returned when decoding an entry with an unrecognized tag.
var ErrUnknownType = errors.New("unknown action type")

type header struct {
	ID         int     `json:"id"`
	ActionType Type    `json:"action_type"`
	Timestamp  float64 `json:"timestamp"`
	Disabled   bool    `json:"disabled"`
}

// MarshalJSON writes the flat shape: bookkeeping and payload fields side by side.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Action == nil {
		return nil, errors.New("entry has no action")
	}
	payload, err := json.Marshal(e.Action)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	head, err := json.Marshal(header{ID: e.ID, ActionType: e.Action.Type(), Timestamp: e.Timestamp, Disabled: e.Disabled})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(head, &fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reads the flat shape, dispatching on action_type.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var h header
	if err := json.Unmarshal(b, &h); err != nil {
		return err
	}
	a, err := Decode(h.ActionType, b)
	if err != nil {
		return err
	}
	*e = Entry{ID: h.ID, Timestamp: h.Timestamp, Disabled: h.Disabled, Action: a}
	return nil
}

// Decode unmarshals a payload for the given tag.
func Decode(t Type, b []byte) (Action, error) {
	switch t {
	case TypeUpload:
		var a Upload
		err := json.Unmarshal(b, &a)
		return a, err
	case TypeCleaning:
		var a Cleaning
		err := json.Unmarshal(b, &a)
		return a, err
	case TypeChart:
		var a Chart
		err := json.Unmarshal(b, &a)
		return a, err
	case TypeML:
		var a ML
		err := json.Unmarshal(b, &a)
		return a, err
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

// Describe returns a one-line human summary used by step listings.
func Describe(a Action) string {
	switch v := a.(type) {
	case Upload:
		return fmt.Sprintf("Upload %s (%s)", v.Filename, v.FileFormat)
	case Cleaning:
		s := fmt.Sprintf("%s on %s", v.Operation, v.Column)
		if v.FillValue != "" {
			s += fmt.Sprintf(" (value %q)", v.FillValue)
		}
		if v.NewName != "" {
			s += fmt.Sprintf(" -> %s", v.NewName)
		}
		return s
	case Chart:
		s := "Chart " + v.ChartType
		for _, c := range []string{v.XCol, v.YCol} {
			if c != "" {
				s += " " + c
			}
		}
		return s
	case ML:
		s := "ML " + v.Task
		if v.XCol != "" {
			s += " " + v.XCol
		}
		if v.YCol != "" {
			s += ", " + v.YCol
		}
		if v.TargetCol != "" {
			s += " -> " + v.TargetCol
		}
		return s
	}
	return "unknown"
}

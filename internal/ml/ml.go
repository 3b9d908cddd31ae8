// Package ml runs the small set of models a session can record: k-means
// clustering, SVM classification, decision trees, random forests and linear
// regression. Runs are deterministic for a given table and settings.
package ml

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
	"github.com/KaramelBytes/tabstep-cli/internal/validate"
)

var (
	ErrUnknownTask = errors.New("unknown ml task")
	// ErrTooFewSamples is returned when a split leaves a side empty or a
	// class too small to stratify.
	ErrTooFewSamples = errors.New("not enough samples")
)

// Result is what a model run reports back. Fields a task does not produce
// stay empty.
type Result struct {
	Task    string             `json:"task"`
	Report  string             `json:"report"`
	Metrics map[string]float64 `json:"metrics"`

	// classification
	Labels      []string           `json:"labels,omitempty"`
	Confusion   [][]int            `json:"confusion,omitempty"`
	Importances map[string]float64 `json:"importances,omitempty"`

	// clustering
	Assignments []int       `json:"assignments,omitempty"`
	Centroids   [][]float64 `json:"centroids,omitempty"`

	// regression
	Coefficients []float64 `json:"coefficients,omitempty"`
	Intercept    float64   `json:"intercept,omitempty"`
	Residuals    []float64 `json:"residuals,omitempty"`
}

// Runner trains and evaluates one kind of model.
type Runner interface {
	Run(f *table.Frame, m action.ML) (*Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(f *table.Frame, m action.ML) (*Result, error)

func (fn RunnerFunc) Run(f *table.Frame, m action.ML) (*Result, error) { return fn(f, m) }

var runners = map[string]Runner{
	"clustering":     RunnerFunc(runClustering),
	"classification": RunnerFunc(runSVM),
	"decision_tree":  RunnerFunc(runDecisionTree),
	"random_forest":  RunnerFunc(runRandomForest),
	"regression":     RunnerFunc(runRegression),
}

// Run validates the inputs for m and dispatches to the task's runner. The
// frame is only read.
func Run(f *table.Frame, m action.ML) (*Result, error) {
	m = action.Normalize(m).(action.ML)
	r, ok := runners[m.Task]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, m.Task)
	}
	if err := action.Validate(m); err != nil {
		return nil, err
	}
	features := []string{m.XCol}
	if m.YCol != "" {
		features = append(features, m.YCol)
	}
	if err := validate.NotEmpty(f); err != nil {
		return nil, err
	}
	if err := validate.MLInputs(f, validate.MinSamples, features...); err != nil {
		return nil, err
	}
	switch m.Task {
	case "classification", "decision_tree", "random_forest":
		if err := validate.ClassificationTarget(f, m.TargetCol, validate.MinClasses); err != nil {
			return nil, err
		}
	case "regression":
		if err := validate.ColumnExists(f, m.TargetCol); err != nil {
			return nil, err
		}
		if err := validate.NumericColumn(f, m.TargetCol); err != nil {
			return nil, err
		}
	}
	res, err := r.Run(f, m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Task, err)
	}
	res.Task = m.Task
	return res, nil
}

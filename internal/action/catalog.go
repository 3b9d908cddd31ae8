package action

import (
	"errors"
	"fmt"
	"sort"
)

// Field names used by chart types and ML tasks.
const (
	FieldX      = "x"
	FieldY      = "y"
	FieldColor  = "color"
	FieldSize   = "size"
	FieldTarget = "target"
)

// Defaults applied by Normalize.
const (
	DefaultNClusters   = 3
	DefaultKernel      = "linear"
	DefaultMaxDepth    = 5
	DefaultNEstimators = 100
	DefaultTestSize    = 0.25
	// Seed is the fixed random state every model run uses.
	Seed = 42
)

// ChartFields lists which columns each chart type consumes.
var ChartFields = map[string][]string{
	"histogram":   {FieldX, FieldColor},
	"boxplot":     {FieldX, FieldColor},
	"scatter":     {FieldX, FieldY, FieldColor},
	"line":        {FieldX, FieldY},
	"bar":         {FieldX},
	"pie":         {FieldX},
	"area":        {FieldX, FieldY, FieldColor},
	"violin":      {FieldX, FieldY},
	"heatmap":     {},
	"pairplot":    {FieldColor},
	"correlation": {},
	"bubble":      {FieldX, FieldY, FieldColor, FieldSize},
	"treemap":     {FieldX},
	"sunburst":    {FieldX},
}

type mlSpec struct {
	fields      []string
	nClusters   bool
	kernel      bool
	maxDepth    bool
	nEstimators bool
	testSize    bool
}

var mlTasks = map[string]mlSpec{
	"clustering":     {fields: []string{FieldX, FieldY}, nClusters: true},
	"classification": {fields: []string{FieldX, FieldY, FieldTarget}, kernel: true, testSize: true},
	"decision_tree":  {fields: []string{FieldX, FieldY, FieldTarget}, maxDepth: true, testSize: true},
	"random_forest":  {fields: []string{FieldX, FieldY, FieldTarget}, nEstimators: true, maxDepth: true, testSize: true},
	"regression":     {fields: []string{FieldX, FieldTarget}, testSize: true},
}

// Kernels accepted for classification.
var Kernels = []string{"linear", "rbf", "poly", "sigmoid"}

var (
	ErrUnknownChart   = errors.New("unknown chart type")
	ErrUnknownTask    = errors.New("unknown ML task")
	ErrMissingField   = errors.New("missing required field")
	ErrInvalidSetting = errors.New("invalid setting")
)

// ChartTypes returns the known chart types sorted by name.
func ChartTypes() []string { return sortedKeys(ChartFields) }

// Tasks returns the known ML tasks sorted by name.
func Tasks() []string { return sortedKeys(mlTasks) }

// TaskFields lists which columns an ML task consumes.
func TaskFields(task string) []string { return mlTasks[task].fields }

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func uses(fields []string, f string) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}

// cleaning operations that read the optional parameters.
var (
	fillValueOps = map[string]bool{"lstrip": true, "rstrip": true, "fillna": true}
	newNameOps   = map[string]bool{"rename_column": true}
)

// Normalize applies defaults and clears fields the variant does not use, so
// equal requests always produce equal entries.
func Normalize(a Action) Action {
	switch v := a.(type) {
	case Cleaning:
		if !fillValueOps[v.Operation] {
			v.FillValue = ""
		}
		if !newNameOps[v.Operation] {
			v.NewName = ""
		}
		return v
	case Chart:
		fields, ok := ChartFields[v.ChartType]
		if !ok {
			return v
		}
		if !uses(fields, FieldX) {
			v.XCol = ""
		}
		if !uses(fields, FieldY) {
			v.YCol = ""
		}
		if !uses(fields, FieldColor) {
			v.ColorCol = ""
		}
		if !uses(fields, FieldSize) {
			v.SizeCol = ""
		}
		return v
	case ML:
		spec, ok := mlTasks[v.Task]
		if !ok {
			return v
		}
		if !uses(spec.fields, FieldY) {
			v.YCol = ""
		}
		if !uses(spec.fields, FieldTarget) {
			v.TargetCol = ""
		}
		v.NClusters = pick(spec.nClusters, v.NClusters, DefaultNClusters)
		v.MaxDepth = pick(spec.maxDepth, v.MaxDepth, DefaultMaxDepth)
		v.NEstimators = pick(spec.nEstimators, v.NEstimators, DefaultNEstimators)
		v.Kernel = pick(spec.kernel, v.Kernel, DefaultKernel)
		v.TestSize = pick(spec.testSize, v.TestSize, DefaultTestSize)
		return v
	}
	return a
}

func pick[T comparable](used bool, v, def T) T {
	var zero T
	if !used {
		return zero
	}
	if v == zero {
		return def
	}
	return v
}

// Validate checks that a chart or ML action names a known type and carries
// every column it needs. Cleaning operations are checked by the cleaning
// registry.
func Validate(a Action) error {
	switch v := a.(type) {
	case Upload:
		if v.Filename == "" {
			return fmt.Errorf("%w: filename", ErrMissingField)
		}
	case Cleaning:
		if v.Operation == "" || v.Column == "" {
			return fmt.Errorf("%w: operation and column", ErrMissingField)
		}
	case Chart:
		fields, ok := ChartFields[v.ChartType]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownChart, v.ChartType)
		}
		// color and size are optional everywhere
		if uses(fields, FieldX) && v.XCol == "" {
			return fmt.Errorf("%w: %s needs an x column", ErrMissingField, v.ChartType)
		}
		if uses(fields, FieldY) && v.YCol == "" {
			return fmt.Errorf("%w: %s needs a y column", ErrMissingField, v.ChartType)
		}
	case ML:
		spec, ok := mlTasks[v.Task]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTask, v.Task)
		}
		for _, f := range spec.fields {
			var val string
			switch f {
			case FieldX:
				val = v.XCol
			case FieldY:
				val = v.YCol
			case FieldTarget:
				val = v.TargetCol
			}
			if val == "" {
				return fmt.Errorf("%w: %s needs a %s column", ErrMissingField, v.Task, f)
			}
		}
		if spec.kernel && v.Kernel != "" && !uses(Kernels, v.Kernel) {
			return fmt.Errorf("%w: kernel %q", ErrInvalidSetting, v.Kernel)
		}
		if spec.testSize && v.TestSize != 0 && (v.TestSize <= 0 || v.TestSize >= 1) {
			return fmt.Errorf("%w: test_size must be between 0 and 1", ErrInvalidSetting)
		}
		if v.NClusters < 0 || v.MaxDepth < 0 || v.NEstimators < 0 {
			return fmt.Errorf("%w: negative hyperparameter", ErrInvalidSetting)
		}
	case nil:
		return errors.New("nil action")
	}
	return nil
}

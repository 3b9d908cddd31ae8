package ml

import (
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
	"github.com/KaramelBytes/tabstep-cli/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blobs(t *testing.T) *table.Frame {
	t.Helper()
	f := table.New("a", "b")
	for _, center := range [][2]float64{{0, 0}, {10, 10}, {20, 0}} {
		for i := 0; i < 10; i++ {
			dx := float64(i%5) * 0.2
			dy := float64(i/5) * 0.2
			require.NoError(t, f.AppendRow(table.Num(center[0]+dx), table.Num(center[1]+dy)))
		}
	}
	return f
}

// two classes split on x with a wide gap; y is noise
func separable(t *testing.T) *table.Frame {
	t.Helper()
	f := table.New("x", "y", "label")
	for i := 0; i < 40; i++ {
		x := float64(i)
		label := "low"
		if i >= 20 {
			x += 20
			label = "high"
		}
		require.NoError(t, f.AppendRow(table.Num(x), table.Num(float64((i*7)%13)), table.Str(label)))
	}
	require.NoError(t, f.AppendRow(table.Null, table.Num(1), table.Str("low")))
	return f
}

func TestClustering(t *testing.T) {
	f := blobs(t)
	before := f.Clone()
	res, err := Run(f, action.ML{Task: "clustering", XCol: "a", YCol: "b"})
	require.NoError(t, err)
	assert.True(t, f.Equal(before))

	assert.Equal(t, "clustering", res.Task)
	assert.Greater(t, res.Metrics["silhouette"], 0.9)
	require.Len(t, res.Assignments, 30)
	sizes := map[int]int{}
	for _, l := range res.Assignments {
		sizes[l]++
	}
	counts := []int{}
	for _, n := range sizes {
		counts = append(counts, n)
	}
	sort.Ints(counts)
	assert.Equal(t, []int{10, 10, 10}, counts)
	assert.Len(t, res.Centroids, 3)
	assert.Contains(t, res.Report, "Silhouette Score: ")

	again, err := Run(f, action.ML{Task: "clustering", XCol: "a", YCol: "b"})
	require.NoError(t, err)
	assert.Equal(t, res.Assignments, again.Assignments)
}

func TestElbowDecreases(t *testing.T) {
	inertias, err := Elbow(blobs(t), "a", "b", 5)
	require.NoError(t, err)
	require.Len(t, inertias, 5)
	for k := 1; k < len(inertias); k++ {
		assert.LessOrEqual(t, inertias[k], inertias[k-1]+1e-9)
	}
}

func TestClassificationLinear(t *testing.T) {
	res, err := Run(separable(t), action.ML{Task: "classification", XCol: "x", YCol: "y", TargetCol: "label"})
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "low"}, res.Labels)
	assert.Equal(t, 1.0, res.Metrics["accuracy"])
	assert.Equal(t, 10.0, res.Metrics["test_size"])
	assert.Equal(t, [][]int{{5, 0}, {0, 5}}, res.Confusion)
	assert.Contains(t, res.Report, "SVM (linear kernel)")
	assert.Contains(t, res.Report, "weighted avg")
}

func TestClassificationRBF(t *testing.T) {
	res, err := Run(separable(t), action.ML{Task: "classification", XCol: "x", YCol: "y", TargetCol: "label", Kernel: "rbf"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Metrics["accuracy"], 0.9)
}

func TestDecisionTree(t *testing.T) {
	res, err := Run(separable(t), action.ML{Task: "decision_tree", XCol: "x", YCol: "y", TargetCol: "label", MaxDepth: 3})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Metrics["accuracy"])
	assert.Equal(t, 1.0, res.Metrics["depth"])
	assert.InDelta(t, 1.0, res.Importances["x"], 1e-9)
	assert.InDelta(t, 0.0, res.Importances["y"], 1e-9)
}

func TestRandomForest(t *testing.T) {
	res, err := Run(separable(t), action.ML{Task: "random_forest", XCol: "x", YCol: "y", TargetCol: "label", NEstimators: 25})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Metrics["accuracy"], 0.9)
	assert.Contains(t, res.Metrics, "oob_score")
	assert.Contains(t, res.Report, "Random forest (25 trees, max depth 5)")
	assert.InDelta(t, 1.0, res.Importances["x"]+res.Importances["y"], 1e-9)
}

func TestRegression(t *testing.T) {
	f := table.New("x", "y")
	for i := 0; i < 20; i++ {
		require.NoError(t, f.AppendRow(table.Num(float64(i)), table.Num(2*float64(i)+1)))
	}
	res, err := Run(f, action.ML{Task: "regression", XCol: "x", TargetCol: "y"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Metrics["r2"], 1e-9)
	assert.InDelta(t, 0.0, res.Metrics["mse"], 1e-9)
	require.Len(t, res.Coefficients, 1)
	assert.InDelta(t, 2.0, res.Coefficients[0], 1e-9)
	assert.InDelta(t, 1.0, res.Intercept, 1e-9)
	assert.Len(t, res.Residuals, 5)
	assert.Contains(t, res.Report, "R-squared: 1.0000")
}

func TestOLSTwoFeatures(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 12; i++ {
		a, b := float64(i), float64((i*5)%7)
		X = append(X, []float64{a, b})
		y = append(y, 3-0.5*a+4*b)
	}
	intercept, coef, err := ols(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, intercept, 1e-9)
	assert.InDeltaSlice(t, []float64{-0.5, 4}, coef, 1e-9)

	// second feature is a multiple of the first
	for i := range X {
		X[i][1] = 2 * X[i][0]
	}
	_, _, err = ols(X, y)
	assert.ErrorIs(t, err, errSingular)
	_, _, err = ols(X[:2], y[:2])
	assert.ErrorIs(t, err, errSingular)
}

func TestStandardize(t *testing.T) {
	Xs := standardize([][]float64{{1, 5}, {2, 5}, {3, 5}, {4, 5}})
	col := make([]float64, len(Xs))
	for i, row := range Xs {
		col[i] = row[0]
		assert.Equal(t, 0.0, row[1], "constant columns are only centered")
	}
	var mean, sq float64
	for _, v := range col {
		mean += v
		sq += v * v
	}
	assert.InDelta(t, 0.0, mean/4, 1e-12)
	assert.InDelta(t, 1.0, sq/4, 1e-12)
	assert.Nil(t, standardize(nil))
}

func TestRunValidation(t *testing.T) {
	_, err := Run(blobs(t), action.ML{Task: "deep_learning", XCol: "a"})
	assert.ErrorIs(t, err, ErrUnknownTask)

	small := table.New("a", "b")
	for i := 0; i < 5; i++ {
		require.NoError(t, small.AppendRow(table.Num(float64(i)), table.Num(1)))
	}
	_, err = Run(small, action.ML{Task: "clustering", XCol: "a", YCol: "b"})
	assert.ErrorIs(t, err, validate.ErrTooFewRows)

	f := separable(t)
	_, err = Run(f, action.ML{Task: "clustering", XCol: "x", YCol: "label"})
	assert.ErrorIs(t, err, validate.ErrTypeMismatch)

	// every class has a single member, which cannot be stratified
	_, err = Run(f, action.ML{Task: "classification", XCol: "x", YCol: "y", TargetCol: "x"})
	assert.ErrorIs(t, err, ErrTooFewSamples)

	one := blobs(t)
	cells := make([]table.Cell, one.NumRows())
	for i := range cells {
		cells[i] = table.Str("same")
	}
	require.NoError(t, one.SetColumn("t", cells))
	_, err = Run(one, action.ML{Task: "decision_tree", XCol: "a", YCol: "b", TargetCol: "t"})
	assert.ErrorIs(t, err, validate.ErrTooFewClasses)
}

func TestStratifiedSplitKeepsProportions(t *testing.T) {
	y := make([]int, 0, 40)
	for i := 0; i < 32; i++ {
		y = append(y, 0)
	}
	for i := 0; i < 8; i++ {
		y = append(y, 1)
	}
	train, test, err := stratifiedSplit(y, 2, 0.25, newRand())
	require.NoError(t, err)
	assert.Len(t, test, 10)
	assert.Len(t, train, 30)
	ones := 0
	for _, i := range test {
		ones += y[i]
	}
	assert.Equal(t, 2, ones)

	_, _, err = stratifiedSplit([]int{0, 0, 0, 1}, 2, 0.25, newRand())
	assert.ErrorIs(t, err, ErrTooFewSamples)
}

func TestEncodeLabelsOrdersNumerically(t *testing.T) {
	codes, labels := encodeLabels([]string{"10", "2", "10", "1"})
	assert.Equal(t, []string{"1", "2", "10"}, labels)
	assert.Equal(t, []int{2, 1, 2, 0}, codes)
}

func TestClassificationReportLayout(t *testing.T) {
	report := classificationReport([]string{"cat", "dog"}, [][]int{{3, 1}, {0, 4}})
	lines := strings.Split(report, "\n")
	assert.Contains(t, lines[0], "precision")
	assert.Contains(t, report, "         cat       1.00      0.75      0.86         4")
	assert.Contains(t, report, "    accuracy                           0.88         8")
	assert.False(t, math.IsNaN(weightedF1(perClass([][]int{{0, 0}, {0, 0}}))))
}

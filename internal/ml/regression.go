package ml

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

var errSingular = errors.New("features are collinear")

// maxCondition bounds the design matrix condition number; exactly collinear
// columns land far above it after rounding.
const maxCondition = 1e10

// ols fits y = b0 + X·b by least squares on a design matrix with a leading
// column of ones.
func ols(X [][]float64, y []float64) (intercept float64, coef []float64, err error) {
	n, d := len(X), len(X[0])+1
	if n < d {
		return 0, nil, errSingular
	}
	a := mat.NewDense(n, d, nil)
	for i, x := range X {
		a.Set(i, 0, 1)
		for j, v := range x {
			a.Set(i, j+1, v)
		}
	}
	var qr mat.QR
	qr.Factorize(a)
	if qr.Cond() > maxCondition {
		return 0, nil, errSingular
	}
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		return 0, nil, errSingular
	}
	out := make([]float64, d-1)
	for j := range out {
		out[j] = beta.AtVec(j + 1)
	}
	return beta.AtVec(0), out, nil
}

func predictLinear(intercept float64, coef []float64, x []float64) float64 {
	return intercept + dot(coef, x)
}

func runRegression(f *table.Frame, m action.ML) (*Result, error) {
	features := []string{m.XCol}
	if m.YCol != "" {
		features = append(features, m.YCol)
	}
	X, yRaw, err := matrix(f, features, m.TargetCol)
	if err != nil {
		return nil, err
	}
	var keptX [][]float64
	var y []float64
	for i, v := range yRaw {
		if t, ok := table.ParseFloat(v); ok {
			keptX = append(keptX, X[i])
			y = append(y, t)
		}
	}
	train, test, err := shuffleSplit(len(keptX), m.TestSize, newRand())
	if err != nil {
		return nil, err
	}
	Xtr, ytr := pickRows(keptX, train), pickFloats(y, train)
	Xte, yte := pickRows(keptX, test), pickFloats(y, test)
	intercept, coef, err := ols(Xtr, ytr)
	if err != nil {
		return nil, err
	}
	predTest := make([]float64, len(Xte))
	residuals := make([]float64, len(Xte))
	for i, x := range Xte {
		predTest[i] = predictLinear(intercept, coef, x)
		residuals[i] = yte[i] - predTest[i]
	}
	predTrain := make([]float64, len(Xtr))
	for i, x := range Xtr {
		predTrain[i] = predictLinear(intercept, coef, x)
	}
	score := r2(yte, predTest)
	mse := meanSquaredError(yte, predTest)

	var b strings.Builder
	fmt.Fprintf(&b, "Linear regression of %s on %s (%d train, %d test rows)\n", m.TargetCol, strings.Join(features, ", "), len(train), len(test))
	fmt.Fprintf(&b, "R-squared: %.4f\n", score)
	fmt.Fprintf(&b, "MSE: %.4f\n", mse)
	fmt.Fprintf(&b, "Intercept: %.4f\n", intercept)
	for i, name := range features {
		fmt.Fprintf(&b, "Coefficient[%s]: %.4f\n", name, coef[i])
	}
	return &Result{
		Report: b.String(),
		Metrics: map[string]float64{
			"r2":       score,
			"mse":      mse,
			"train_r2": r2(ytr, predTrain),
		},
		Coefficients: coef,
		Intercept:    intercept,
		Residuals:    residuals,
	}, nil
}

package ml

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

const (
	svmC       = 1.0
	svmEpochs  = 200
	svmTol     = 1e-3
	polyDegree = 3
)

type kernelFunc func(a, b []float64) float64

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// kernelFor builds the kernel by name. gamma follows the "scale" rule
// 1 / (features * variance of X).
func kernelFor(name string, X [][]float64) (kernelFunc, error) {
	var mean, sq float64
	var n float64
	for _, row := range X {
		for _, v := range row {
			mean += v
			sq += v * v
			n++
		}
	}
	gamma := 1.0
	if n > 0 && len(X[0]) > 0 {
		mean /= n
		if v := sq/n - mean*mean; v > 0 {
			gamma = 1 / (float64(len(X[0])) * v)
		}
	}
	switch name {
	case "linear":
		return dot, nil
	case "rbf":
		return func(a, b []float64) float64 { return math.Exp(-gamma * sqDist(a, b)) }, nil
	case "poly":
		return func(a, b []float64) float64 { return math.Pow(gamma*dot(a, b), polyDegree) }, nil
	case "sigmoid":
		return func(a, b []float64) float64 { return math.Tanh(gamma * dot(a, b)) }, nil
	}
	return nil, fmt.Errorf("unknown kernel %q", name)
}

// binarySVM is a soft-margin SVM trained by dual coordinate descent. The bias
// is folded into the kernel as a constant feature.
type binarySVM struct {
	kernel kernelFunc
	sv     [][]float64
	coef   []float64 // alpha_i * y_i for support vectors
}

func trainBinary(X [][]float64, y []float64, kernel kernelFunc, rng *rand.Rand) binarySVM {
	n := len(X)
	k := func(i, j int) float64 { return kernel(X[i], X[j]) + 1 }
	diag := make([]float64, n)
	for i := range X {
		diag[i] = k(i, i)
	}
	alpha := make([]float64, n)
	// decision[i] caches sum_j alpha_j y_j K(i, j)
	decision := make([]float64, n)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for epoch := 0; epoch < svmEpochs; epoch++ {
		rng.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })
		maxStep := 0.0
		for _, i := range order {
			if diag[i] <= 0 {
				continue
			}
			g := y[i]*decision[i] - 1
			next := math.Min(math.Max(alpha[i]-g/diag[i], 0), svmC)
			delta := next - alpha[i]
			if delta == 0 {
				continue
			}
			alpha[i] = next
			maxStep = math.Max(maxStep, math.Abs(delta))
			for j := range X {
				decision[j] += delta * y[i] * k(i, j)
			}
		}
		if maxStep < svmTol {
			break
		}
	}
	m := binarySVM{kernel: kernel}
	for i, a := range alpha {
		if a > 0 {
			m.sv = append(m.sv, X[i])
			m.coef = append(m.coef, a*y[i])
		}
	}
	return m
}

func (m binarySVM) score(x []float64) float64 {
	var s float64
	for i, sv := range m.sv {
		s += m.coef[i] * (m.kernel(sv, x) + 1)
	}
	return s
}

// fitSVM trains one-vs-rest machines, or a single machine for two classes.
func fitSVM(kernelName string) classifierFit {
	return func(X [][]float64, y []int, k int) (func([]float64) int, []float64, error) {
		kernel, err := kernelFor(kernelName, X)
		if err != nil {
			return nil, nil, err
		}
		rng := newRand()
		signs := func(pos int) []float64 {
			out := make([]float64, len(y))
			for i, c := range y {
				out[i] = -1
				if c == pos {
					out[i] = 1
				}
			}
			return out
		}
		if k == 2 {
			m := trainBinary(X, signs(1), kernel, rng)
			return func(x []float64) int {
				if m.score(x) > 0 {
					return 1
				}
				return 0
			}, nil, nil
		}
		machines := make([]binarySVM, k)
		for c := range machines {
			machines[c] = trainBinary(X, signs(c), kernel, rng)
		}
		return func(x []float64) int {
			best, bestScore := 0, math.Inf(-1)
			for c, m := range machines {
				if s := m.score(x); s > bestScore {
					best, bestScore = c, s
				}
			}
			return best
		}, nil, nil
	}
}

func runSVM(f *table.Frame, m action.ML) (*Result, error) {
	features := []string{m.XCol, m.YCol}
	X, y, err := matrix(f, features, m.TargetCol)
	if err != nil {
		return nil, err
	}
	res, err := runClassifier(X, y, features, m.TestSize, fitSVM(m.Kernel))
	if err != nil {
		return nil, err
	}
	res.Report = fmt.Sprintf("SVM (%s kernel) predicting %s from %s, %s\n\n", m.Kernel, m.TargetCol, m.XCol, m.YCol) + res.Report
	return res, nil
}

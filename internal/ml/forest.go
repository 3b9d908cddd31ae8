package ml

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

type forest struct {
	trees       []*cartTree
	k           int
	importances []float64
	oob         float64
	hasOOB      bool
}

// growForest fits bagged trees, each on a bootstrap sample and considering
// sqrt(features) candidates per split. Probabilities are averaged.
func growForest(X [][]float64, y []int, k, nTrees, maxDepth int) *forest {
	rng := newRand()
	d := len(X[0])
	fr := &forest{k: k, importances: make([]float64, d)}
	maxFeatures := max(1, int(math.Sqrt(float64(d))))

	oobVotes := make([][]float64, len(X))
	for i := range oobVotes {
		oobVotes[i] = make([]float64, k)
	}
	for t := 0; t < nTrees; t++ {
		inBag := make([]bool, len(X))
		bx := make([][]float64, len(X))
		by := make([]int, len(X))
		for i := range bx {
			j := rng.Intn(len(X))
			inBag[j] = true
			bx[i], by[i] = X[j], y[j]
		}
		tree := growTree(bx, by, k, treeConfig{maxDepth: maxDepth, maxFeatures: maxFeatures, rng: rng})
		fr.trees = append(fr.trees, tree)
		for j, v := range tree.importances {
			fr.importances[j] += v / float64(nTrees)
		}
		for i, x := range X {
			if inBag[i] {
				continue
			}
			for c, p := range tree.proba(x) {
				oobVotes[i][c] += p
			}
		}
	}

	var scored, hit int
	for i, votes := range oobVotes {
		var sum float64
		for _, v := range votes {
			sum += v
		}
		if sum == 0 {
			continue
		}
		scored++
		if argmax(votes) == y[i] {
			hit++
		}
	}
	if scored > 0 {
		fr.oob = float64(hit) / float64(scored)
		fr.hasOOB = true
	}
	return fr
}

func (fr *forest) predict(x []float64) int {
	avg := make([]float64, fr.k)
	for _, t := range fr.trees {
		for c, p := range t.proba(x) {
			avg[c] += p
		}
	}
	return argmax(avg)
}

func runRandomForest(f *table.Frame, m action.ML) (*Result, error) {
	features := []string{m.XCol, m.YCol}
	X, y, err := matrix(f, features, m.TargetCol)
	if err != nil {
		return nil, err
	}
	var fr *forest
	fit := func(X [][]float64, y []int, k int) (func([]float64) int, []float64, error) {
		fr = growForest(X, y, k, m.NEstimators, m.MaxDepth)
		return fr.predict, fr.importances, nil
	}
	res, err := runClassifier(X, y, features, m.TestSize, fit)
	if err != nil {
		return nil, err
	}
	header := fmt.Sprintf("Random forest (%d trees, max depth %d) predicting %s from %s, %s\n", m.NEstimators, m.MaxDepth, m.TargetCol, m.XCol, m.YCol)
	if fr.hasOOB {
		res.Metrics["oob_score"] = fr.oob
		header += fmt.Sprintf("OOB score: %.3f\n", fr.oob)
	}
	res.Report = header + "\n" + res.Report
	return res, nil
}

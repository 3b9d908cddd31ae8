package ml

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
)

func confusion(yTrue, yPred []int, k int) [][]int {
	cm := make([][]int, k)
	for i := range cm {
		cm[i] = make([]int, k)
	}
	for i := range yTrue {
		cm[yTrue[i]][yPred[i]]++
	}
	return cm
}

func accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hit := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

type classScore struct {
	precision, recall, f1 float64
	support               int
}

// perClass derives precision, recall and F1 from a confusion matrix. Undefined
// ratios are 0.
func perClass(cm [][]int) []classScore {
	k := len(cm)
	out := make([]classScore, k)
	for c := 0; c < k; c++ {
		tp := cm[c][c]
		var predicted, actual int
		for i := 0; i < k; i++ {
			predicted += cm[i][c]
			actual += cm[c][i]
		}
		s := classScore{support: actual}
		if predicted > 0 {
			s.precision = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			s.recall = float64(tp) / float64(actual)
		}
		if s.precision+s.recall > 0 {
			s.f1 = 2 * s.precision * s.recall / (s.precision + s.recall)
		}
		out[c] = s
	}
	return out
}

func weightedF1(scores []classScore) float64 {
	var total int
	var sum float64
	for _, s := range scores {
		sum += s.f1 * float64(s.support)
		total += s.support
	}
	if total == 0 {
		return 0
	}
	return sum / float64(total)
}

// classificationReport lays out per-class precision, recall, F1 and support
// followed by accuracy and macro / weighted averages.
func classificationReport(labels []string, cm [][]int) string {
	scores := perClass(cm)
	width := len("weighted avg")
	for _, l := range labels {
		width = max(width, len(l))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	var total int
	var macro, weighted classScore
	for c, s := range scores {
		fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, labels[c], s.precision, s.recall, s.f1, s.support)
		total += s.support
		macro.precision += s.precision
		macro.recall += s.recall
		macro.f1 += s.f1
		weighted.precision += s.precision * float64(s.support)
		weighted.recall += s.recall * float64(s.support)
		weighted.f1 += s.f1 * float64(s.support)
	}
	k := float64(len(scores))
	var hit int
	for c := range cm {
		hit += cm[c][c]
	}
	acc := 0.0
	if total > 0 {
		acc = float64(hit) / float64(total)
		weighted.precision /= float64(total)
		weighted.recall /= float64(total)
		weighted.f1 /= float64(total)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", acc, total)
	fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, "macro avg", macro.precision/k, macro.recall/k, macro.f1/k, total)
	fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, "weighted avg", weighted.precision, weighted.recall, weighted.f1, total)
	return b.String()
}

func meanSquaredError(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var s float64
	for i := range y {
		d := y[i] - pred[i]
		s += d * d
	}
	return s / float64(len(y))
}

// r2 is the coefficient of determination. A constant target scores 0 unless
// predicted exactly.
func r2(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	mean := stat.Mean(y, nil)
	var ssRes, ssTot float64
	for i := range y {
		ssRes += (y[i] - pred[i]) * (y[i] - pred[i])
		ssTot += (y[i] - mean) * (y[i] - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// classifierFit trains on standardized rows with labels in 0..k-1.
type classifierFit func(Xtrain [][]float64, ytrain []int, k int) (predict func(x []float64) int, importances []float64, err error)

// runClassifier is the shared tail of the classification tasks: it encodes
// labels, standardizes, splits with stratification, fits and scores.
func runClassifier(X [][]float64, yRaw []string, features []string, testSize float64, fit classifierFit) (*Result, error) {
	y, labels := encodeLabels(yRaw)
	Xs := standardize(X)
	rng := newRand()
	trainIdx, testIdx, err := stratifiedSplit(y, len(labels), testSize, rng)
	if err != nil {
		return nil, err
	}
	Xtr, ytr := pickRows(Xs, trainIdx), pickInts(y, trainIdx)
	Xte, yte := pickRows(Xs, testIdx), pickInts(y, testIdx)

	predict, imp, err := fit(Xtr, ytr, len(labels))
	if err != nil {
		return nil, err
	}
	predTest := make([]int, len(Xte))
	for i, x := range Xte {
		predTest[i] = predict(x)
	}
	predTrain := make([]int, len(Xtr))
	for i, x := range Xtr {
		predTrain[i] = predict(x)
	}
	cm := confusion(yte, predTest, len(labels))
	res := &Result{
		Report:    classificationReport(labels, cm),
		Labels:    labels,
		Confusion: cm,
		Metrics: map[string]float64{
			"accuracy":       accuracy(yte, predTest),
			"f1_weighted":    weightedF1(perClass(cm)),
			"train_accuracy": accuracy(ytr, predTrain),
			"train_size":     float64(len(trainIdx)),
			"test_size":      float64(len(testIdx)),
		},
	}
	if imp != nil {
		res.Importances = map[string]float64{}
		for i, name := range features {
			res.Importances[name] = imp[i]
		}
	}
	return res, nil
}

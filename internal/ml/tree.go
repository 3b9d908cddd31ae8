package ml

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

// node is a CART node. Leaves have feature -1.
type node struct {
	feature     int
	threshold   float64
	left, right *node
	dist        []float64 // class proportions at the node
}

type treeConfig struct {
	maxDepth int
	// maxFeatures limits the candidate features per split; 0 means all.
	maxFeatures int
	rng         *rand.Rand
}

type cartTree struct {
	root        *node
	k           int
	importances []float64
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	s := 1.0
	for _, c := range counts {
		p := c / n
		s -= p * p
	}
	return s
}

func growTree(X [][]float64, y []int, k int, cfg treeConfig) *cartTree {
	t := &cartTree{k: k, importances: make([]float64, len(X[0]))}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.root = t.grow(X, y, idx, 0, cfg)
	var total float64
	for _, v := range t.importances {
		total += v
	}
	if total > 0 {
		for i := range t.importances {
			t.importances[i] /= total
		}
	}
	return t
}

func (t *cartTree) grow(X [][]float64, y []int, idx []int, depth int, cfg treeConfig) *node {
	counts := make([]float64, t.k)
	for _, i := range idx {
		counts[y[i]]++
	}
	n := float64(len(idx))
	nd := &node{feature: -1, dist: make([]float64, t.k)}
	for c := range counts {
		nd.dist[c] = counts[c] / n
	}
	impurity := gini(counts, n)
	if impurity == 0 || len(idx) < 2 || (cfg.maxDepth > 0 && depth >= cfg.maxDepth) {
		return nd
	}

	features := make([]int, len(X[0]))
	for i := range features {
		features[i] = i
	}
	if cfg.maxFeatures > 0 && cfg.maxFeatures < len(features) {
		cfg.rng.Shuffle(len(features), func(a, b int) { features[a], features[b] = features[b], features[a] })
		features = features[:cfg.maxFeatures]
		sort.Ints(features)
	}

	bestGain, bestFeature, bestThreshold := 0.0, -1, 0.0
	sorted := append([]int(nil), idx...)
	for _, f := range features {
		sort.SliceStable(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })
		left := make([]float64, t.k)
		right := append([]float64(nil), counts...)
		for pos := 0; pos < len(sorted)-1; pos++ {
			c := y[sorted[pos]]
			left[c]++
			right[c]--
			lo, hi := X[sorted[pos]][f], X[sorted[pos+1]][f]
			if lo == hi {
				continue
			}
			nl := float64(pos + 1)
			nr := n - nl
			gain := impurity - (nl/n)*gini(left, nl) - (nr/n)*gini(right, nr)
			if gain > bestGain+1e-12 {
				bestGain, bestFeature, bestThreshold = gain, f, (lo+hi)/2
			}
		}
	}
	if bestFeature < 0 {
		return nd
	}
	var li, ri []int
	for _, i := range idx {
		if X[i][bestFeature] <= bestThreshold {
			li = append(li, i)
		} else {
			ri = append(ri, i)
		}
	}
	t.importances[bestFeature] += n * bestGain
	nd.feature = bestFeature
	nd.threshold = bestThreshold
	nd.left = t.grow(X, y, li, depth+1, cfg)
	nd.right = t.grow(X, y, ri, depth+1, cfg)
	return nd
}

func (t *cartTree) proba(x []float64) []float64 {
	nd := t.root
	for nd.feature >= 0 {
		if x[nd.feature] <= nd.threshold {
			nd = nd.left
		} else {
			nd = nd.right
		}
	}
	return nd.dist
}

func argmax(p []float64) int {
	best := 0
	for i, v := range p {
		if v > p[best] {
			best = i
		}
	}
	return best
}

func (t *cartTree) depth() int {
	var walk func(*node) int
	walk = func(nd *node) int {
		if nd.feature < 0 {
			return 0
		}
		return 1 + max(walk(nd.left), walk(nd.right))
	}
	return walk(t.root)
}

func runDecisionTree(f *table.Frame, m action.ML) (*Result, error) {
	features := []string{m.XCol, m.YCol}
	X, y, err := matrix(f, features, m.TargetCol)
	if err != nil {
		return nil, err
	}
	var tree *cartTree
	fit := func(X [][]float64, y []int, k int) (func([]float64) int, []float64, error) {
		tree = growTree(X, y, k, treeConfig{maxDepth: m.MaxDepth, rng: newRand()})
		return func(x []float64) int { return argmax(tree.proba(x)) }, tree.importances, nil
	}
	res, err := runClassifier(X, y, features, m.TestSize, fit)
	if err != nil {
		return nil, err
	}
	res.Metrics["depth"] = float64(tree.depth())
	res.Report = fmt.Sprintf("Decision tree (max depth %d, grown to %d) predicting %s from %s, %s\n\n",
		m.MaxDepth, tree.depth(), m.TargetCol, m.XCol, m.YCol) + res.Report
	return res, nil
}

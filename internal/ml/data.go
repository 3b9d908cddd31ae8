package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

func newRand() *rand.Rand { return rand.New(rand.NewSource(action.Seed)) }

// matrix extracts the rows where every named column is present. When target
// is non-empty its cells must be present too; they are returned as text.
func matrix(f *table.Frame, features []string, target string) ([][]float64, []string, error) {
	cols := make([][]table.Cell, len(features))
	for i, name := range features {
		c, ok := f.Column(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", table.ErrColumnNotFound, name)
		}
		cols[i] = c
	}
	var tcol []table.Cell
	if target != "" {
		c, ok := f.Column(target)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", table.ErrColumnNotFound, target)
		}
		tcol = c
	}
	var X [][]float64
	var y []string
rows:
	for i := 0; i < f.NumRows(); i++ {
		row := make([]float64, len(cols))
		for j, c := range cols {
			x, ok := c[i].Float()
			if !ok {
				continue rows
			}
			row[j] = x
		}
		if tcol != nil {
			if tcol[i].Null {
				continue
			}
			y = append(y, tcol[i].V)
		}
		X = append(X, row)
	}
	return X, y, nil
}

// standardize scales each column to zero mean and unit population variance.
// Constant columns are centered only.
func standardize(X [][]float64) [][]float64 {
	if len(X) == 0 {
		return nil
	}
	d := len(X[0])
	mean := make([]float64, d)
	std := make([]float64, d)
	col := make([]float64, len(X))
	for j := 0; j < d; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		mean[j], std[j] = stat.PopMeanStdDev(col, nil)
		if std[j] == 0 {
			std[j] = 1
		}
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = make([]float64, d)
		for j, v := range row {
			out[i][j] = (v - mean[j]) / std[j]
		}
	}
	return out
}

// encodeLabels maps class names to 0..k-1. Numeric labels sort numerically,
// anything else lexically.
func encodeLabels(y []string) ([]int, []string) {
	seen := map[string]bool{}
	var classes []string
	for _, v := range y {
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	numeric := true
	for _, c := range classes {
		if _, ok := table.ParseFloat(c); !ok {
			numeric = false
			break
		}
	}
	sort.Slice(classes, func(i, j int) bool {
		if numeric {
			a, _ := table.ParseFloat(classes[i])
			b, _ := table.ParseFloat(classes[j])
			return a < b
		}
		return classes[i] < classes[j]
	})
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	codes := make([]int, len(y))
	for i, v := range y {
		codes[i] = index[v]
	}
	return codes, classes
}

// testCount mirrors the usual split convention: the test side is rounded up.
func testCount(n int, testSize float64) (int, error) {
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || n-nTest < 1 {
		return 0, fmt.Errorf("%w: %d rows cannot be split with test size %s", ErrTooFewSamples, n, strconv.FormatFloat(testSize, 'f', -1, 64))
	}
	return nTest, nil
}

// shuffleSplit returns train and test indices for a plain random split.
func shuffleSplit(n int, testSize float64, rng *rand.Rand) ([]int, []int, error) {
	nTest, err := testCount(n, testSize)
	if err != nil {
		return nil, nil, err
	}
	perm := rng.Perm(n)
	test := append([]int(nil), perm[:nTest]...)
	train := append([]int(nil), perm[nTest:]...)
	return train, test, nil
}

// stratifiedSplit keeps class proportions on both sides. Each class needs at
// least two members.
func stratifiedSplit(y []int, k int, testSize float64, rng *rand.Rand) ([]int, []int, error) {
	nTest, err := testCount(len(y), testSize)
	if err != nil {
		return nil, nil, err
	}
	byClass := make([][]int, k)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	for c, members := range byClass {
		if len(members) < 2 {
			return nil, nil, fmt.Errorf("%w: class %d has %d member(s); every class needs at least 2", ErrTooFewSamples, c, len(members))
		}
	}
	if nTest < k || len(y)-nTest < k {
		return nil, nil, fmt.Errorf("%w: a split of %d/%d rows cannot hold all %d classes", ErrTooFewSamples, len(y)-nTest, nTest, k)
	}

	// largest remainder allocation of test slots
	alloc := make([]int, k)
	type rem struct {
		class int
		frac  float64
	}
	var rems []rem
	given := 0
	for c, members := range byClass {
		exact := float64(nTest) * float64(len(members)) / float64(len(y))
		alloc[c] = int(math.Floor(exact))
		given += alloc[c]
		rems = append(rems, rem{c, exact - math.Floor(exact)})
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; given < nTest; i = (i + 1) % k {
		c := rems[i].class
		if alloc[c] < len(byClass[c])-1 {
			alloc[c]++
			given++
		}
	}

	var train, test []int
	for c, members := range byClass {
		m := append([]int(nil), members...)
		rng.Shuffle(len(m), func(i, j int) { m[i], m[j] = m[j], m[i] })
		test = append(test, m[:alloc[c]]...)
		train = append(train, m[alloc[c]:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

func pickRows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func pickInts(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

func pickFloats(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

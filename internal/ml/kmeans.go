package ml

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/KaramelBytes/tabstep-cli/internal/action"
	"github.com/KaramelBytes/tabstep-cli/internal/table"
)

const (
	kmeansRestarts = 10
	kmeansMaxIter  = 300
)

type kmeansModel struct {
	centroids [][]float64
	labels    []int
	inertia   float64
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func nearest(x []float64, centroids [][]float64) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for c, mu := range centroids {
		if d := sqDist(x, mu); d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD
}

// seedCentroids is k-means++ seeding.
func seedCentroids(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := [][]float64{append([]float64(nil), X[rng.Intn(len(X))]...)}
	dist := make([]float64, len(X))
	for len(centroids) < k {
		var total float64
		for i, x := range X {
			_, d := nearest(x, centroids)
			dist[i] = d
			total += d
		}
		next := rng.Intn(len(X))
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range dist {
				r -= d
				if r <= 0 {
					next = i
					break
				}
			}
		}
		centroids = append(centroids, append([]float64(nil), X[next]...))
	}
	return centroids
}

func lloyd(X [][]float64, centroids [][]float64) kmeansModel {
	k := len(centroids)
	d := len(X[0])
	labels := make([]int, len(X))
	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, x := range X {
			c, _ := nearest(x, centroids)
			if iter == 0 || c != labels[i] {
				changed = true
				labels[i] = c
			}
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, d)
		}
		for i, x := range X {
			counts[labels[i]]++
			for j, v := range x {
				sums[labels[i]][j] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for j := range centroids[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
		if !changed {
			break
		}
	}
	var inertia float64
	for i, x := range X {
		inertia += sqDist(x, centroids[labels[i]])
	}
	return kmeansModel{centroids: centroids, labels: labels, inertia: inertia}
}

// kmeans keeps the lowest-inertia run over several seeded restarts.
func kmeans(X [][]float64, k int, rng *rand.Rand) kmeansModel {
	var best kmeansModel
	for run := 0; run < kmeansRestarts; run++ {
		m := lloyd(X, seedCentroids(X, k, rng))
		if run == 0 || m.inertia < best.inertia {
			best = m
		}
	}
	return best
}

// silhouette is the mean silhouette coefficient over all points. It needs
// at least two clusters.
func silhouette(X [][]float64, labels []int, k int) float64 {
	if k < 2 || len(X) < 2 {
		return 0
	}
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	var total float64
	for i, x := range X {
		sums := make([]float64, k)
		for j, y := range X {
			if i != j {
				sums[labels[j]] += math.Sqrt(sqDist(x, y))
			}
		}
		own := labels[i]
		if sizes[own] <= 1 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c != own && sizes[c] > 0 {
				b = math.Min(b, sums[c]/float64(sizes[c]))
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		total += (b - a) / math.Max(a, b)
	}
	return total / float64(len(X))
}

func runClustering(f *table.Frame, m action.ML) (*Result, error) {
	X, _, err := matrix(f, []string{m.XCol, m.YCol}, "")
	if err != nil {
		return nil, err
	}
	if len(X) < m.NClusters {
		return nil, fmt.Errorf("%w: %d complete rows for %d clusters", ErrTooFewSamples, len(X), m.NClusters)
	}
	Xs := standardize(X)
	model := kmeans(Xs, m.NClusters, newRand())
	sil := silhouette(Xs, model.labels, m.NClusters)

	sizes := make([]int, m.NClusters)
	for _, l := range model.labels {
		sizes[l]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "KMeans with %d clusters on %s, %s (%d rows)\n", m.NClusters, m.XCol, m.YCol, len(X))
	fmt.Fprintf(&b, "Silhouette Score: %.3f\n", sil)
	fmt.Fprintf(&b, "Inertia: %.3f\n", model.inertia)
	for c, n := range sizes {
		fmt.Fprintf(&b, "Cluster %d: %d rows\n", c, n)
	}
	return &Result{
		Report: b.String(),
		Metrics: map[string]float64{
			"silhouette": sil,
			"inertia":    model.inertia,
		},
		Assignments: model.labels,
		Centroids:   model.centroids,
	}, nil
}

// Elbow returns the inertia of k-means for k = 1..maxK on two standardized
// columns, for choosing a cluster count.
func Elbow(f *table.Frame, xCol, yCol string, maxK int) ([]float64, error) {
	X, _, err := matrix(f, []string{xCol, yCol}, "")
	if err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, fmt.Errorf("%w: no complete rows", ErrTooFewSamples)
	}
	maxK = min(maxK, len(X))
	Xs := standardize(X)
	rng := newRand()
	out := make([]float64, maxK)
	for k := 1; k <= maxK; k++ {
		out[k-1] = kmeans(Xs, k, rng).inertia
	}
	return out, nil
}

package profiling

import (
	"errors"
	"math"
	"math/rand"
)

// ErrTooFewSamples is returned when a partitioner gets fewer points than
// clusters.
var ErrTooFewSamples = errors.New("fewer samples than clusters")

// Model assigns a point to one of the fitted partitions.
type Model interface {
	Predict(point []float64) int
}

// Partitioner fits a partitioning model over standardized points. Any
// centroid-based method with out-of-sample assignment satisfies the
// contract; KMeans is the default implementation.
type Partitioner interface {
	Fit(points [][]float64) (Model, error)
}

// KMeans is a deterministic Lloyd's-algorithm clusterer with k-means++
// seeding. The same seed and input always produce the same model.
type KMeans struct {
	K       int
	MaxIter int
	Seed    int64
}

// NewKMeans creates a k-means partitioner with the given cluster count and
// random seed.
func NewKMeans(k int, seed int64) *KMeans {
	return &KMeans{K: k, MaxIter: 100, Seed: seed}
}

type kmeansModel struct {
	centroids [][]float64
}

// Predict returns the index of the nearest centroid (lowest index on ties).
func (m *kmeansModel) Predict(point []float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range m.centroids {
		if d := sqDist(point, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Fit runs k-means++ initialization followed by Lloyd iterations until
// assignments stabilize or MaxIter is reached.
func (k *KMeans) Fit(points [][]float64) (Model, error) {
	if len(points) < k.K {
		return nil, ErrTooFewSamples
	}
	rng := rand.New(rand.NewSource(k.Seed))
	centroids := k.seedCentroids(points, rng)

	assign := make([]int, len(points))
	for iter := 0; iter < k.MaxIter; iter++ {
		changed := false
		for i, p := range points {
			best, bestDist := 0, math.Inf(1)
			for j, c := range centroids {
				if d := sqDist(p, c); d < bestDist {
					best, bestDist = j, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		recomputeCentroids(points, assign, centroids)
	}

	return &kmeansModel{centroids: centroids}, nil
}

// seedCentroids picks initial centroids with k-means++: each subsequent
// centroid is sampled proportionally to squared distance from the nearest
// one chosen so far.
func (k *KMeans) seedCentroids(points [][]float64, rng *rand.Rand) [][]float64 {
	dim := len(points[0])
	centroids := make([][]float64, 0, k.K)
	first := points[rng.Intn(len(points))]
	centroids = append(centroids, append(make([]float64, 0, dim), first...))

	dists := make([]float64, len(points))
	for len(centroids) < k.K {
		var total float64
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range centroids {
				if dd := sqDist(p, c); dd < d {
					d = dd
				}
			}
			dists[i] = d
			total += d
		}

		idx := len(points) - 1
		if total > 0 {
			target := rng.Float64() * total
			var acc float64
			for i, d := range dists {
				acc += d
				if acc >= target {
					idx = i
					break
				}
			}
		} else {
			// All points coincide with a centroid; pick uniformly.
			idx = rng.Intn(len(points))
		}
		centroids = append(centroids, append(make([]float64, 0, dim), points[idx]...))
	}
	return centroids
}

// recomputeCentroids moves each centroid to the mean of its assigned points.
// A centroid that lost all points keeps its previous position.
func recomputeCentroids(points [][]float64, assign []int, centroids [][]float64) {
	dim := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, p := range points {
		a := assign[i]
		counts[a]++
		for d, x := range p {
			sums[a][d] += x
		}
	}
	for i := range centroids {
		if counts[i] == 0 {
			continue
		}
		for d := range centroids[i] {
			centroids[i][d] = sums[i][d] / float64(counts[i])
		}
	}
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

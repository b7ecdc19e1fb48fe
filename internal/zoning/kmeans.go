package zoning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

var (
	ErrInvalidK            = errors.New("zone count must be at least 1")
	ErrInsufficientSamples = errors.New("not enough samples for the requested zone count")
)

// Clustering is a partition of points into k clusters.
type Clustering struct {
	Labels    []int
	Centroids [][2]float64
	Inertia   float64
}

type Clusterer interface {
	Cluster(ctx context.Context, points [][2]float64, k int) (Clustering, error)
}

// KMeans is Lloyd's algorithm with k-means++ seeding, repeated Restarts times
// from a fixed seed; the run with the lowest inertia wins.
type KMeans struct {
	Seed      int64
	Restarts  int
	MaxIter   int
	Tolerance float64
}

// Seed and restart count of every KMeans built by NewKMeans. They are not
// configurable so repeated runs on the same samples give the same zones.
const (
	DefaultSeed     int64 = 42
	DefaultRestarts       = 10
)

func NewKMeans() *KMeans {
	return &KMeans{Seed: DefaultSeed, Restarts: DefaultRestarts, MaxIter: 300, Tolerance: 1e-4}
}

func validate(points [][2]float64, k int) error {
	if k < 1 {
		return fmt.Errorf("k=%d: %w", k, ErrInvalidK)
	}
	if len(points) < k {
		return fmt.Errorf("%d samples for k=%d: %w", len(points), k, ErrInsufficientSamples)
	}
	return nil
}

func (km *KMeans) Cluster(ctx context.Context, points [][2]float64, k int) (Clustering, error) {
	if err := validate(points, k); err != nil {
		return Clustering{}, err
	}
	restarts := max(km.Restarts, 1)
	maxIter := max(km.MaxIter, 1)

	rng := rand.New(rand.NewSource(km.Seed))
	best := Clustering{Inertia: math.Inf(1)}
	for r := 0; r < restarts; r++ {
		if err := ctx.Err(); err != nil {
			return Clustering{}, err
		}
		c := km.run(points, k, rng, maxIter)
		if c.Inertia < best.Inertia {
			best = c
		}
	}
	return best, nil
}

func (km *KMeans) run(points [][2]float64, k int, rng *rand.Rand, maxIter int) Clustering {
	centroids := seedPlusPlus(points, k, rng)
	labels := make([]int, len(points))

	for iter := 0; iter < maxIter; iter++ {
		assign(points, centroids, labels)
		next, counts := means(points, labels, k)
		reseedEmpty(points, labels, next, counts)

		shift := 0.0
		for i := range centroids {
			shift += sqDist(centroids[i], next[i])
		}
		centroids = next
		if shift <= km.Tolerance*km.Tolerance {
			break
		}
	}
	inertia := assign(points, centroids, labels)
	return Clustering{Labels: labels, Centroids: centroids, Inertia: inertia}
}

func seedPlusPlus(points [][2]float64, k int, rng *rand.Rand) [][2]float64 {
	centroids := make([][2]float64, 0, k)
	centroids = append(centroids, points[rng.Intn(len(points))])

	dist := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range centroids {
				d = math.Min(d, sqDist(p, c))
			}
			dist[i] = d
			total += d
		}
		if total == 0 {
			centroids = append(centroids, points[rng.Intn(len(points))])
			continue
		}
		target := rng.Float64() * total
		chosen := len(points) - 1
		for i, d := range dist {
			target -= d
			if target < 0 {
				chosen = i
				break
			}
		}
		centroids = append(centroids, points[chosen])
	}
	return centroids
}

// assign labels every point with its nearest centroid and returns the inertia.
func assign(points, centroids [][2]float64, labels []int) float64 {
	inertia := 0.0
	for i, p := range points {
		best, bestD := 0, math.Inf(1)
		for j, c := range centroids {
			if d := sqDist(p, c); d < bestD {
				best, bestD = j, d
			}
		}
		labels[i] = best
		inertia += bestD
	}
	return inertia
}

func means(points [][2]float64, labels []int, k int) ([][2]float64, []int) {
	sums := make([][2]float64, k)
	counts := make([]int, k)
	for i, p := range points {
		l := labels[i]
		sums[l][0] += p[0]
		sums[l][1] += p[1]
		counts[l]++
	}
	for j := range sums {
		if counts[j] > 0 {
			sums[j][0] /= float64(counts[j])
			sums[j][1] /= float64(counts[j])
		}
	}
	return sums, counts
}

// reseedEmpty moves each empty cluster onto the point farthest from its
// current centroid.
func reseedEmpty(points [][2]float64, labels []int, centroids [][2]float64, counts []int) {
	for j := range centroids {
		if counts[j] > 0 {
			continue
		}
		far, farD := -1, -1.0
		for i, p := range points {
			if counts[labels[i]] <= 1 {
				continue
			}
			if d := sqDist(p, centroids[labels[i]]); d > farD {
				far, farD = i, d
			}
		}
		if far < 0 {
			continue
		}
		counts[labels[far]]--
		labels[far] = j
		counts[j] = 1
		centroids[j] = points[far]
	}
}

func sqDist(a, b [2]float64) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}

// OrderByVegetation relabels clusters so that id 0 has the lowest vegetation
// centroid (first coordinate) and id k-1 the highest.
func OrderByVegetation(c Clustering) Clustering {
	order := make([]int, len(c.Centroids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return c.Centroids[order[a]][0] < c.Centroids[order[b]][0]
	})

	remap := make([]int, len(order))
	centroids := make([][2]float64, len(order))
	for newID, oldID := range order {
		remap[oldID] = newID
		centroids[newID] = c.Centroids[oldID]
	}
	labels := make([]int, len(c.Labels))
	for i, l := range c.Labels {
		labels[i] = remap[l]
	}
	return Clustering{Labels: labels, Centroids: centroids, Inertia: c.Inertia}
}

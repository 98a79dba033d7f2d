package analysis

import (
	"fmt"
	"math/rand"
)

const (
	// maxKMeansIterations is the true termination guarantee: the 1e-6
	// convergence threshold may never fire for high-dimensional embeddings.
	maxKMeansIterations = 20

	convergenceEpsilon = 1e-6
)

// Cluster partitions embeddings into k groups by k-means over Euclidean
// distance, seeded with k-means++. The random source is local to the call and
// consumed in a fixed order (one uniform draw, then k-1 weighted draws), so
// identical input, k, and seed produce identical assignments.
//
// When len(embeddings) <= k each point becomes its own singleton cluster and
// no iteration happens; there is not enough data to partition meaningfully.
// The result always has every input index in exactly one cluster.
func Cluster(embeddings [][]float32, k int, seed int64) (map[int][]int, error) {
	if k < 1 {
		return nil, fmt.Errorf("cluster: k must be >= 1, got %d", k)
	}
	n := len(embeddings)
	if n > 0 {
		dim := len(embeddings[0])
		for _, e := range embeddings[1:] {
			if len(e) != dim {
				return nil, fmt.Errorf("cluster: %w: %d vs %d", ErrDimensionMismatch, len(e), dim)
			}
		}
	}

	if n <= k {
		clusters := make(map[int][]int, n)
		for i := 0; i < n; i++ {
			clusters[i] = []int{i}
		}
		return clusters, nil
	}

	centroids := seedCentroids(embeddings, k, seed)

	var clusters map[int][]int
	for iter := 0; iter < maxKMeansIterations; iter++ {
		// Assignment: nearest centroid, ties broken by lowest cluster index.
		clusters = make(map[int][]int, k)
		for c := 0; c < k; c++ {
			clusters[c] = nil
		}
		for idx, emb := range embeddings {
			nearest := 0
			best, _ := EuclideanDistance(emb, centroids[0])
			for c := 1; c < k; c++ {
				d, _ := EuclideanDistance(emb, centroids[c])
				if d < best {
					best = d
					nearest = c
				}
			}
			clusters[nearest] = append(clusters[nearest], idx)
		}

		// Update: each centroid moves to the mean of its members. An empty
		// cluster keeps its previous centroid.
		next := make([][]float32, k)
		for c := 0; c < k; c++ {
			members := clusters[c]
			if len(members) == 0 {
				next[c] = centroids[c]
				continue
			}
			vs := make([][]float32, len(members))
			for i, m := range members {
				vs[i] = embeddings[m]
			}
			mean, err := MeanVector(vs)
			if err != nil {
				return nil, err
			}
			next[c] = mean
		}

		converged := true
		for c := 0; c < k; c++ {
			moved, _ := EuclideanDistance(centroids[c], next[c])
			if moved >= convergenceEpsilon {
				converged = false
				break
			}
		}
		if converged {
			break
		}
		centroids = next
	}

	return clusters, nil
}

// seedCentroids implements k-means++: the first centroid is a uniform draw,
// each subsequent one a roulette draw weighted by squared distance to the
// nearest already chosen centroid.
func seedCentroids(embeddings [][]float32, k int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))

	centroids := make([][]float32, 0, k)
	centroids = append(centroids, cloneVec(embeddings[rng.Intn(len(embeddings))]))

	for len(centroids) < k {
		weights := make([]float64, len(embeddings))
		var total float64
		for i, emb := range embeddings {
			minDist, _ := EuclideanDistance(emb, centroids[0])
			for _, c := range centroids[1:] {
				if d, _ := EuclideanDistance(emb, c); d < minDist {
					minDist = d
				}
			}
			weights[i] = minDist * minDist
			total += weights[i]
		}

		r := rng.Float64() * total
		var cumsum float64
		for i, w := range weights {
			cumsum += w
			if cumsum >= r {
				centroids = append(centroids, cloneVec(embeddings[i]))
				break
			}
		}
	}
	return centroids
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// Package kmedoids partitions items around representative medoids (PAM).
package kmedoids

import (
	"math"
	"math/rand"
	"sort"
)

// DefaultMaxIter bounds swap refinement passes.
const DefaultMaxIter = 100

// improvementEpsilon guards swap acceptance against rounding noise.
const improvementEpsilon = 1e-12

// Distance returns the dissimilarity between items i and j.
type Distance func(i, j int) float64

// Config controls a clustering run.
type Config struct {
	K       int
	MaxIter int
	Seed    int64
}

// Medoids selects up to cfg.K medoid indices out of n items.
func Medoids(n int, dist Distance, cfg Config) []int {
	if n == 0 || cfg.K <= 0 {
		return []int{}
	}
	if cfg.K >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	maxIter := cfg.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	medoids := initialise(n, cfg.K, dist, rng)
	current := totalCost(n, medoids, dist)
	for iter := 0; iter < maxIter; iter++ {
		improved := false
		for pos := range medoids {
			bestCost := current
			bestCand := -1
			for cand := 0; cand < n; cand++ {
				if contains(medoids, cand) {
					continue
				}
				old := medoids[pos]
				medoids[pos] = cand
				c := totalCost(n, medoids, dist)
				medoids[pos] = old
				if c < bestCost-improvementEpsilon {
					bestCost = c
					bestCand = cand
				}
			}
			if bestCand >= 0 {
				medoids[pos] = bestCand
				current = bestCost
				improved = true
			}
		}
		if !improved {
			break
		}
	}
	return medoids
}

func initialise(n, k int, dist Distance, rng *rand.Rand) []int {
	first := 0
	bestAvg := math.Inf(1)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			if i != j {
				sum += dist(i, j)
			}
		}
		avg := sum / float64(max(1, n-1))
		if avg < bestAvg {
			bestAvg = avg
			first = i
		}
	}
	medoids := []int{first}

	for len(medoids) < k {
		bestCand := -1
		bestGain := 0.0
		for cand := 0; cand < n; cand++ {
			if contains(medoids, cand) {
				continue
			}
			var gain float64
			for i := 0; i < n; i++ {
				if i == cand || contains(medoids, i) {
					continue
				}
				if d, near := dist(i, cand), nearest(i, medoids, dist); d < near {
					gain += near - d
				}
			}
			if gain > bestGain {
				bestGain = gain
				bestCand = cand
			}
		}
		if bestCand < 0 {
			var free []int
			for i := 0; i < n; i++ {
				if !contains(medoids, i) {
					free = append(free, i)
				}
			}
			bestCand = free[rng.Intn(len(free))]
		}
		medoids = append(medoids, bestCand)
	}
	return medoids
}

func totalCost(n int, medoids []int, dist Distance) float64 {
	var sum float64
	for i := 0; i < n; i++ {
		if contains(medoids, i) {
			continue
		}
		sum += nearest(i, medoids, dist)
	}
	return sum
}

func nearest(i int, medoids []int, dist Distance) float64 {
	best := math.Inf(1)
	for _, m := range medoids {
		if d := dist(i, m); d < best {
			best = d
		}
	}
	return best
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// AssignToMedoids groups all n items by nearest medoid. Medoids belong to
// their own cluster, ties go to the earliest medoid, and each cluster lists
// its medoid first followed by members in ascending distance.
func AssignToMedoids(n int, medoids []int, dist Distance) [][]int {
	if len(medoids) == 0 {
		return nil
	}
	clusters := make([][]int, len(medoids))
	position := make(map[int]int, len(medoids))
	for p, m := range medoids {
		if _, dup := position[m]; !dup {
			position[m] = p
		}
	}
	for i := 0; i < n; i++ {
		if p, ok := position[i]; ok {
			clusters[p] = append(clusters[p], i)
			continue
		}
		best, bestDist := 0, math.Inf(1)
		for p, m := range medoids {
			if d := dist(i, m); d < bestDist {
				best, bestDist = p, d
			}
		}
		clusters[best] = append(clusters[best], i)
	}
	for p, members := range clusters {
		m := medoids[p]
		sort.SliceStable(members, func(a, b int) bool {
			ia, ib := members[a], members[b]
			if ia == m || ib == m {
				return ia == m && ib != m
			}
			da, db := dist(ia, m), dist(ib, m)
			if da != db {
				return da < db
			}
			return ia < ib
		})
	}
	return clusters
}

package kmedoids

import "sync"

// Dissimilarity is a cached symmetric distance matrix.
type Dissimilarity [][]float64

// Precompute evaluates dist for every pair i < j and mirrors it. Rows are
// filled by up to workers goroutines; every cell is written exactly once so
// the result does not depend on scheduling.
func Precompute(n int, dist Distance, workers int) Dissimilarity {
	m := make(Dissimilarity, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	if n == 0 {
		return m
	}
	if workers < 1 {
		workers = 1
	}

	rows := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				for j := i + 1; j < n; j++ {
					d := dist(i, j)
					m[i][j] = d
					m[j][i] = d
				}
			}
		}()
	}
	for i := 0; i < n; i++ {
		rows <- i
	}
	close(rows)
	wg.Wait()
	return m
}

// Distance returns a lookup function over the cached matrix.
func (d Dissimilarity) Distance() Distance {
	return func(i, j int) float64 { return d[i][j] }
}

// Package hungarian solves the minimum-cost assignment problem.
package hungarian

import (
	"errors"
	"fmt"
	"math"
)

const (
	// Sentinel pads rectangular matrices to square.
	Sentinel = 1e6
	// SentinelThreshold marks the cost range treated as infeasible.
	SentinelThreshold = 1e5
)

var (
	// ErrNotSquare is returned when Solve receives a ragged or rectangular matrix.
	ErrNotSquare = errors.New("hungarian: matrix is not square")
	// ErrNonFinite is returned for NaN or infinite entries.
	ErrNonFinite = errors.New("hungarian: matrix contains non-finite values")
)

// Result is a solved square assignment.
type Result struct {
	// Assignment maps each row to its column.
	Assignment []int
	Cost       float64
}

// Solve returns the permutation minimising the summed cost of m. Rows are
// processed in index order and columns scanned left to right with strict
// comparisons, so equal-cost alternatives resolve to the lowest indices seen.
func Solve(m [][]float64) (Result, error) {
	n := len(m)
	if n == 0 {
		return Result{Assignment: []int{}}, nil
	}
	for i, row := range m {
		if len(row) != n {
			return Result{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrNotSquare, i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Result{}, fmt.Errorf("%w: [%d][%d]", ErrNonFinite, i, j)
			}
		}
	}

	// Potentials over 1-based rows and columns; column 0 is the virtual root.
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	owner := make([]int, n+1)
	way := make([]int, n+1)
	minv := make([]float64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		owner[0] = i
		col := 0
		for j := range minv {
			minv[j] = math.Inf(1)
			used[j] = false
		}
		for {
			used[col] = true
			row := owner[col]
			delta := math.Inf(1)
			next := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := m[row-1][j-1] - u[row] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = col
				}
				if minv[j] < delta {
					delta = minv[j]
					next = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[owner[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			col = next
			if owner[col] == 0 {
				break
			}
		}
		for col != 0 {
			prev := way[col]
			owner[col] = owner[prev]
			col = prev
		}
	}

	res := Result{Assignment: make([]int, n)}
	for j := 1; j <= n; j++ {
		res.Assignment[owner[j]-1] = j - 1
	}
	for i, j := range res.Assignment {
		res.Cost += m[i][j]
	}
	return res, nil
}

// Pad copies a rectangular matrix into a square one, filling the new cells
// with sentinel.
func Pad(rect [][]float64, sentinel float64) [][]float64 {
	rows := len(rect)
	cols := 0
	for _, r := range rect {
		if len(r) > cols {
			cols = len(r)
		}
	}
	n := max(rows, cols)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			if i < rows && j < len(rect[i]) {
				out[i][j] = rect[i][j]
			} else {
				out[i][j] = sentinel
			}
		}
	}
	return out
}

package hungarian

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestSolveKnownMatrix(t *testing.T) {
	res, err := Solve([][]float64{{1, 4, 5}, {2, 3, 6}, {7, 8, 9}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Cost != 13 {
		t.Fatalf("expected cost 13, got %v", res.Cost)
	}
	for i, j := range res.Assignment {
		if i != j {
			t.Fatalf("expected identity mapping, got %v", res.Assignment)
		}
	}
}

func TestSolveEmpty(t *testing.T) {
	res, err := Solve(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Assignment) != 0 || res.Cost != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestSolveRejectsBadInput(t *testing.T) {
	if _, err := Solve([][]float64{{1, 2}, {3}}); !errors.Is(err, ErrNotSquare) {
		t.Fatalf("expected ErrNotSquare, got %v", err)
	}
	if _, err := Solve([][]float64{{1, math.NaN()}, {3, 4}}); !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
	if _, err := Solve([][]float64{{math.Inf(1)}}); !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite for inf, got %v", err)
	}
}

func bruteForce(m [][]float64) float64 {
	n := len(m)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	best := math.Inf(1)
	var rec func(k int)
	rec = func(k int) {
		if k == n {
			var s float64
			for i, j := range perm {
				s += m[i][j]
			}
			if s < best {
				best = s
			}
			return
		}
		for i := k; i < n; i++ {
			perm[k], perm[i] = perm[i], perm[k]
			rec(k + 1)
			perm[k], perm[i] = perm[i], perm[k]
		}
	}
	rec(0)
	return best
}

func TestSolveMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(6)
		m := make([][]float64, n)
		for i := range m {
			m[i] = make([]float64, n)
			for j := range m[i] {
				m[i][j] = float64(rng.Intn(20))
			}
		}
		res, err := Solve(m)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen := make(map[int]bool)
		var sum float64
		for i, j := range res.Assignment {
			if seen[j] {
				t.Fatalf("column %d assigned twice in %v", j, res.Assignment)
			}
			seen[j] = true
			sum += m[i][j]
		}
		if sum != res.Cost {
			t.Fatalf("reported cost %v differs from sum %v", res.Cost, sum)
		}
		if want := bruteForce(m); res.Cost != want {
			t.Fatalf("trial %d: expected optimum %v, got %v for %v", trial, want, res.Cost, m)
		}
	}
}

func TestSolveIsDeterministicOnTies(t *testing.T) {
	m := [][]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	first, err := Solve(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _ := Solve(m)
		for r := range first.Assignment {
			if first.Assignment[r] != again.Assignment[r] {
				t.Fatalf("non-deterministic result %v vs %v", first.Assignment, again.Assignment)
			}
		}
	}
}

func TestPad(t *testing.T) {
	out := Pad([][]float64{{1, 2, 3}}, Sentinel)
	if len(out) != 3 || len(out[2]) != 3 {
		t.Fatalf("expected 3x3, got %dx%d", len(out), len(out[0]))
	}
	if out[0][2] != 3 || out[1][0] != Sentinel || out[2][2] != Sentinel {
		t.Fatalf("unexpected padding %v", out)
	}
}

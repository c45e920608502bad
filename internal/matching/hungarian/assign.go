package hungarian

import "fmt"

// Pair is one matched row and column between real entities.
type Pair struct {
	Row   int
	Col   int
	RowID string
	ColID string
	Cost  float64
}

// Solution is the domain-level view of a padded solve.
type Solution struct {
	Pairs         []Pair
	Cost          float64
	UnmatchedRows []int
	UnmatchedCols []int
}

// Assign solves a len(rowIDs) x len(colIDs) problem. Padding is added
// internally and matches touching padded indices are left out of Pairs.
func Assign(rowIDs, colIDs []string, costs [][]float64, sentinel float64) (Solution, error) {
	if len(costs) != len(rowIDs) {
		return Solution{}, fmt.Errorf("%w: %d rows for %d ids", ErrNotSquare, len(costs), len(rowIDs))
	}
	for i, row := range costs {
		if len(row) != len(colIDs) {
			return Solution{}, fmt.Errorf("%w: row %d has %d columns for %d ids", ErrNotSquare, i, len(row), len(colIDs))
		}
	}
	if len(rowIDs) == 0 || len(colIDs) == 0 {
		sol := Solution{}
		for i := range rowIDs {
			sol.UnmatchedRows = append(sol.UnmatchedRows, i)
		}
		for j := range colIDs {
			sol.UnmatchedCols = append(sol.UnmatchedCols, j)
		}
		return sol, nil
	}

	res, err := Solve(Pad(costs, sentinel))
	if err != nil {
		return Solution{}, err
	}

	var sol Solution
	matchedCols := make([]bool, len(colIDs))
	for i, j := range res.Assignment {
		if i >= len(rowIDs) {
			continue
		}
		if j >= len(colIDs) {
			sol.UnmatchedRows = append(sol.UnmatchedRows, i)
			continue
		}
		c := costs[i][j]
		sol.Pairs = append(sol.Pairs, Pair{Row: i, Col: j, RowID: rowIDs[i], ColID: colIDs[j], Cost: c})
		sol.Cost += c
		matchedCols[j] = true
	}
	for j, ok := range matchedCols {
		if !ok {
			sol.UnmatchedCols = append(sol.UnmatchedCols, j)
		}
	}
	return sol, nil
}

package hungarian

import "testing"

func TestAssignExcludesPadding(t *testing.T) {
	rows := []string{"ann", "bob", "cid"}
	cols := []string{"task-a"}
	costs := [][]float64{{0.5}, {0.5}, {0.5}}

	sol, err := Assign(rows, cols, costs, Sentinel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sol.Pairs) != 1 {
		t.Fatalf("expected one real pair, got %+v", sol.Pairs)
	}
	if sol.Pairs[0].RowID != "ann" || sol.Pairs[0].ColID != "task-a" {
		t.Fatalf("expected lowest index row to win the tie, got %+v", sol.Pairs[0])
	}
	if sol.Cost != 0.5 {
		t.Fatalf("expected real cost 0.5, got %v", sol.Cost)
	}
	if len(sol.UnmatchedRows) != 2 || sol.UnmatchedRows[0] != 1 || sol.UnmatchedRows[1] != 2 {
		t.Fatalf("unexpected unmatched rows %v", sol.UnmatchedRows)
	}
}

func TestAssignWideMatrix(t *testing.T) {
	sol, err := Assign([]string{"t1"}, []string{"a", "b", "c"}, [][]float64{{0.9, 0.1, 0.4}}, Sentinel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sol.Pairs) != 1 || sol.Pairs[0].ColID != "b" {
		t.Fatalf("expected cheapest column b, got %+v", sol.Pairs)
	}
	if len(sol.UnmatchedCols) != 2 {
		t.Fatalf("expected two unmatched columns, got %v", sol.UnmatchedCols)
	}
}

func TestAssignEmptySides(t *testing.T) {
	sol, err := Assign(nil, []string{"a"}, nil, Sentinel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sol.Pairs) != 0 || sol.Cost != 0 || len(sol.UnmatchedCols) != 1 {
		t.Fatalf("unexpected solution %+v", sol)
	}
}

func TestAssignShapeMismatch(t *testing.T) {
	if _, err := Assign([]string{"a"}, []string{"x", "y"}, [][]float64{{1}}, Sentinel); err == nil {
		t.Fatalf("expected shape error")
	}
}

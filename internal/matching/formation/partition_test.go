package formation

import (
	"reflect"
	"testing"
)

func testState(t *testing.T, size int) *state {
	t.Helper()
	s, err := newPipeline(size).newState(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestTargets(t *testing.T) {
	s := testState(t, 4)
	cases := []struct {
		total int
		want  []int
	}{
		{2, []int{2}},
		{5, []int{5}},
		{6, []int{6}},
		{7, []int{4, 3}},
		{8, []int{4, 4}},
		{14, []int{5, 5, 4}},
		{15, []int{5, 5, 5}},
		{19, []int{5, 5, 5, 4}},
	}
	for _, tc := range cases {
		if got := s.targets(tc.total); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("targets(%d): expected %v, got %v", tc.total, tc.want, got)
		}
		sum := 0
		for _, n := range s.targets(tc.total) {
			sum += n
		}
		if sum != tc.total {
			t.Fatalf("targets(%d) sums to %d", tc.total, sum)
		}
	}
}

func TestGroupSizes(t *testing.T) {
	s := testState(t, 4)
	cases := []struct {
		n    int
		want []int
	}{
		{2, nil},
		{3, []int{3}},
		{4, []int{4}},
		{5, []int{5}},
		{6, []int{3, 3}},
		{7, []int{4, 3}},
		{9, []int{4, 5}},
		{11, []int{4, 4, 3}},
	}
	for _, tc := range cases {
		if got := s.groupSizes(tc.n); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("groupSizes(%d): expected %v, got %v", tc.n, tc.want, got)
		}
	}
}

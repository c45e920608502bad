package formation

import (
	"fmt"
	"sort"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/matching/kmedoids"
)

// provisional clusters every group with k-medoids, using k = ceil(n/size).
// It returns the provisional partition and any cluster IDs missing from the pool.
func (s *state) provisional(groups [][]string) (partition, []string) {
	var p partition
	var dropped []string
	claimed := make(map[int]bool, len(s.pool))

	var idxGroups [][]int
	if groups == nil {
		all := make([]int, len(s.pool))
		for i := range all {
			all[i] = i
		}
		idxGroups = [][]int{all}
	} else {
		for _, g := range groups {
			var members []int
			for _, id := range g {
				idx, ok := s.index[id]
				if !ok {
					dropped = append(dropped, id)
					continue
				}
				if claimed[idx] {
					continue
				}
				claimed[idx] = true
				members = append(members, idx)
			}
			if len(members) > 0 {
				idxGroups = append(idxGroups, sortInts(members))
			}
		}
		for i := range s.pool {
			if !claimed[i] {
				p.unplaced = append(p.unplaced, i)
			}
		}
	}

	size := s.cfg.DesiredSize
	for gi, members := range idxGroups {
		k := (len(members) + size - 1) / size
		local := func(a, b int) float64 { return s.dist[members[a]][members[b]] }
		medoids := kmedoids.Medoids(len(members), local, kmedoids.Config{
			K:       k,
			MaxIter: s.cfg.MaxIter,
			Seed:    s.cfg.Seed + int64(gi),
		})
		for _, cluster := range kmedoids.AssignToMedoids(len(members), medoids, local) {
			global := make([]int, len(cluster))
			for i, c := range cluster {
				global[i] = members[c]
			}
			p.teams = append(p.teams, s.newDraft(global, 0))
		}
	}
	return p, dropped
}

// targets plans team sizes for total individuals.
func (s *state) targets(total int) []int {
	size := s.cfg.DesiredSize
	full, rem := total/size, total%size
	switch {
	case full == 0:
		return []int{total}
	case rem == 0:
		return repeat(size, full)
	case rem <= full:
		out := repeat(size, full)
		for i := 0; i < rem; i++ {
			out[i]++
		}
		return out
	case rem >= s.cfg.MinViableSize:
		return append(repeat(size, full), rem)
	default:
		out := repeat(size, full)
		for i := 0; i < rem; i++ {
			out[i%full]++
		}
		return out
	}
}

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// balance maps provisional clusters onto planned team sizes. The largest
// clusters seed teams and are trimmed to their target, keeping members
// closest to the medoid; everything else returns to the unplaced pool.
func (s *state) balance(in partition) partition {
	p := in.clone()
	plan := s.targets(len(s.pool))

	order := make([]int, len(p.teams))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(p.teams[order[a]].members) > len(p.teams[order[b]].members)
	})

	out := partition{unplaced: p.unplaced, events: p.events}
	for rank, ti := range order {
		t := p.teams[ti]
		if rank >= len(plan) {
			out.unplaced = append(out.unplaced, t.members...)
			continue
		}
		t.target = plan[rank]
		if len(t.members) > t.target {
			out.unplaced = append(out.unplaced, t.members[t.target:]...)
			t.members = t.members[:t.target]
		}
		out.teams = append(out.teams, t)
	}
	for rank := len(order); rank < len(plan); rank++ {
		out.teams = append(out.teams, s.newDraft(nil, plan[rank]))
	}
	for _, t := range out.teams {
		if t.target > s.cfg.DesiredSize+1 {
			s.note(&out, domain.EventForcedOversized, t.seq, -1, fmt.Sprintf("planned size %d exceeds %d", t.target, s.cfg.DesiredSize+1))
		}
	}
	sortInts(out.unplaced)
	return out
}

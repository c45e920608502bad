package formation

// swapEpsilon ignores improvements within floating point noise.
const swapEpsilon = 1e-9

// refine applies up to MaxRefineSwaps best-improvement member swaps between
// teams, each lowering the summed internal pairwise cost. Sizes are kept.
func (s *state) refine(in partition) partition {
	p := in.clone()
	for n := 0; n < s.cfg.MaxRefineSwaps; n++ {
		bestGain := swapEpsilon
		bi, bj, ba, bb := -1, -1, -1, -1
		for i := 0; i < len(p.teams); i++ {
			for j := i + 1; j < len(p.teams); j++ {
				ti, tj := p.teams[i].members, p.teams[j].members
				for a, x := range ti {
					for b, y := range tj {
						gain := s.swapGain(ti, tj, x, y)
						if gain > bestGain {
							bestGain = gain
							bi, bj, ba, bb = i, j, a, b
						}
					}
				}
			}
		}
		if bi < 0 {
			break
		}
		ti, tj := p.teams[bi].members, p.teams[bj].members
		ti[ba], tj[bb] = tj[bb], ti[ba]
	}
	return p
}

// swapGain is the reduction in internal cost when x (in ti) and y (in tj)
// trade places.
func (s *state) swapGain(ti, tj []int, x, y int) float64 {
	var delta float64
	for _, m := range ti {
		if m != x {
			delta += s.dist[y][m] - s.dist[x][m]
		}
	}
	for _, m := range tj {
		if m != y {
			delta += s.dist[x][m] - s.dist[y][m]
		}
	}
	return -delta
}

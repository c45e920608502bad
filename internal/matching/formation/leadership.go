package formation

import (
	"fmt"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

// balanceLeadership gives every team at least one leader. Leaderless teams
// first take unassigned leaders, then trade a non-leader for a leader from a
// team holding several, and only then promote their most available member.
// Remaining unassigned leaders go to the teams with the fewest leaders.
func (s *state) balanceLeadership(in partition) partition {
	p := in.clone()

	var free []int
	for _, u := range p.unplaced {
		if s.pool[u].Leadership {
			free = append(free, u)
		}
	}

	for ti := range p.teams {
		if s.leaderCount(p.teams[ti]) > 0 {
			continue
		}
		if len(free) > 0 {
			l := free[0]
			free = free[1:]
			p.teams[ti].members = append(p.teams[ti].members, l)
			p.unplaced = removeInt(p.unplaced, l)
			continue
		}
		if s.swapInLeader(&p, ti) {
			continue
		}
		s.promote(&p, ti)
	}

	for _, l := range free {
		best := -1
		for ti, t := range p.teams {
			if best < 0 {
				best = ti
				continue
			}
			lc, bc := s.leaderCount(t), s.leaderCount(p.teams[best])
			if lc < bc || (lc == bc && len(t.members) < len(p.teams[best].members)) {
				best = ti
			}
		}
		if best < 0 {
			break
		}
		p.teams[best].members = append(p.teams[best].members, l)
		p.unplaced = removeInt(p.unplaced, l)
	}
	return p
}

// swapInLeader moves a leader from the team with the most leaders (at least
// two) into team ti in exchange for the non-leader that best fits the donor.
func (s *state) swapInLeader(p *partition, ti int) bool {
	donor, most := -1, 1
	for di, t := range p.teams {
		if di == ti {
			continue
		}
		if n := s.flaggedLeaders(t); n > most {
			donor, most = di, n
		}
	}
	if donor < 0 {
		return false
	}
	target := p.teams[ti]
	d := p.teams[donor]

	leaderPos, leaderCost := -1, 0.0
	for pos, m := range d.members {
		if !s.pool[m].Leadership {
			continue
		}
		c := s.avgDistance(m, target.members, -1)
		if leaderPos < 0 || c < leaderCost {
			leaderPos, leaderCost = pos, c
		}
	}
	if leaderPos < 0 {
		return false
	}
	memberPos, memberCost := -1, 0.0
	for pos, m := range target.members {
		c := s.avgDistance(m, d.members, d.members[leaderPos])
		if memberPos < 0 || c < memberCost {
			memberPos, memberCost = pos, c
		}
	}
	if memberPos < 0 {
		return false
	}
	d.members[leaderPos], target.members[memberPos] = target.members[memberPos], d.members[leaderPos]
	return true
}

// flaggedLeaders counts members with the leadership flag, ignoring promotions
// so promoted members are never traded away.
func (s *state) flaggedLeaders(t draft) int {
	n := 0
	for _, m := range t.members {
		if s.pool[m].Leadership {
			n++
		}
	}
	return n
}

func (s *state) promote(p *partition, ti int) {
	t := &p.teams[ti]
	if len(t.members) == 0 {
		return
	}
	best := t.members[0]
	for _, m := range t.members[1:] {
		bm, mm := s.pool[best], s.pool[m]
		if mm.AvailabilityHours > bm.AvailabilityHours || (mm.AvailabilityHours == bm.AvailabilityHours && m < best) {
			best = m
		}
	}
	t.promoted = append(t.promoted, best)
	s.note(p, domain.EventPromotedLeader, t.seq, best, fmt.Sprintf("no leader available for team of %d", len(t.members)))
}

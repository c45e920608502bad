package formation

import (
	"fmt"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

const (
	fitRoleScore   = 3
	fitSkillScore  = 1
	fitLeaderScore = 5
)

// fitScore rates how much cand would add to members.
func (s *state) fitScore(t draft, cand int) int {
	roles := s.rolesOf(t.members)
	skills := map[string]bool{}
	for _, m := range t.members {
		for name := range s.pool[m].Skills {
			skills[name] = true
		}
	}
	c := s.pool[cand]
	score := 0
	for r := range s.rolesOf([]int{cand}) {
		if roles[r] == 0 {
			score += fitRoleScore
		}
	}
	for name := range c.Skills {
		if !skills[name] {
			score += fitSkillScore
		}
	}
	if c.Leadership && s.leaderCount(t) == 0 {
		score += fitLeaderScore
	}
	return score
}

// consolidate dissolves teams below the minimum viable size and rehomes
// their members and any still-unplaced individuals. Each orphan is handled
// once, so the pass is linear in the orphan count.
func (s *state) consolidate(in partition) partition {
	p := in.clone()
	minSize := s.cfg.MinViableSize
	size := s.cfg.DesiredSize

	var orphans []int
	kept := p.teams[:0:0]
	for _, t := range p.teams {
		if len(t.members) < minSize {
			orphans = append(orphans, t.members...)
			continue
		}
		kept = append(kept, t)
	}
	orphans = append(orphans, p.unplaced...)
	p.teams = kept
	p.unplaced = nil

	var rest []int
	for _, o := range orphans {
		best, bestScore := -1, -1
		for ti, t := range p.teams {
			if len(t.members) >= size {
				continue
			}
			sc := s.fitScore(t, o)
			if best < 0 || sc > bestScore || (sc == bestScore && len(t.members) < len(p.teams[best].members)) {
				best, bestScore = ti, sc
			}
		}
		if best < 0 {
			rest = append(rest, o)
			continue
		}
		p.teams[best].members = append(p.teams[best].members, o)
	}

	for _, n := range s.groupSizes(len(rest)) {
		t := s.newDraft(append([]int(nil), rest[:n]...), n)
		if n > size+1 {
			s.note(&p, domain.EventForcedOversized, t.seq, -1, fmt.Sprintf("orphan group of %d exceeds %d", n, size+1))
		}
		p.teams = append(p.teams, t)
		rest = rest[n:]
	}

	if len(rest) == 0 {
		return p
	}
	if len(p.teams) == 0 {
		t := s.newDraft(append([]int(nil), rest...), len(rest))
		s.note(&p, domain.EventForcedUndersized, t.seq, -1, fmt.Sprintf("pool supports only %d members", len(rest)))
		p.teams = append(p.teams, t)
		return p
	}
	for _, o := range rest {
		smallest := 0
		for ti, t := range p.teams {
			if len(t.members) < len(p.teams[smallest].members) {
				smallest = ti
			}
		}
		t := &p.teams[smallest]
		t.members = append(t.members, o)
		if len(t.members) > size+1 {
			s.note(&p, domain.EventForcedOversized, t.seq, o, fmt.Sprintf("merged into team of %d", len(t.members)))
		}
	}
	return p
}

// groupSizes splits n orphans into new teams. Groups are desired-size where
// possible; a tail that would leave one or two stragglers is folded into the
// last group or split evenly. Fewer than the minimum viable size are left for
// force-merging, which is signalled by the sizes summing to less than n.
func (s *state) groupSizes(n int) []int {
	size, minSize := s.cfg.DesiredSize, s.cfg.MinViableSize
	var out []int
	for n >= minSize {
		switch {
		case n == size || n >= size+minSize:
			out = append(out, size)
			n -= size
		case n < size:
			out = append(out, n)
			n = 0
		case n <= size+1:
			out = append(out, n)
			n = 0
		case n/2 >= minSize:
			out = append(out, n-n/2, n/2)
			n = 0
		default:
			out = append(out, n)
			n = 0
		}
	}
	return out
}

package formation

import (
	"fmt"
	"math"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/matching/hungarian"
)

const (
	slotRoleBonusWeight  = 0.1
	slotSkillBonusWeight = 0.1
)

// slotCost is the cost of adding cand to members: the average pairwise cost
// reduced by how many new roles and skills cand brings.
func (s *state) slotCost(members []int, cand int) float64 {
	if len(members) == 0 {
		return 0
	}
	avg := s.avgDistance(cand, members, -1)

	roles := map[string]bool{}
	skills := map[string]bool{}
	for _, m := range members {
		for _, r := range s.pool[m].Roles {
			roles[r] = true
		}
		for name := range s.pool[m].Skills {
			skills[name] = true
		}
	}
	c := s.pool[cand]
	newRoles := 0
	for _, r := range c.Roles {
		if !roles[r] {
			newRoles++
		}
	}
	newSkills := 0
	for name := range c.Skills {
		if !skills[name] {
			newSkills++
		}
	}
	roleBonus := float64(newRoles) / float64(max(1, len(c.Roles)))
	skillBonus := float64(newSkills) / float64(max(1, len(c.Skills)))
	return math.Max(0, avg-slotRoleBonusWeight*roleBonus-slotSkillBonusWeight*skillBonus)
}

// roleCoverage is the fraction of allowed roles present among members.
func (s *state) roleCoverage(members []int) float64 {
	if len(s.roles) == 0 {
		return 1
	}
	present := s.rolesOf(members)
	covered := 0
	for _, r := range s.roles {
		if present[r] > 0 {
			covered++
		}
	}
	return float64(covered) / float64(len(s.roles))
}

func (s *state) rolesOf(members []int) map[string]int {
	out := map[string]int{}
	for _, m := range members {
		seen := map[string]bool{}
		for _, r := range s.pool[m].Roles {
			if !seen[r] {
				seen[r] = true
				out[r]++
			}
		}
	}
	return out
}

// fillSlots tops up every short team from the unplaced pool with an
// assignment solve, then repairs role coverage.
func (s *state) fillSlots(in partition) partition {
	p := in.clone()
	for ti := range p.teams {
		t := &p.teams[ti]
		short := t.target - len(t.members)
		if short <= 0 || len(p.unplaced) == 0 {
			continue
		}

		base := append([]int(nil), t.members...)
		rowIDs := make([]string, short)
		for i := range rowIDs {
			rowIDs[i] = fmt.Sprintf("slot-%d", i)
		}
		colIDs := make([]string, len(p.unplaced))
		row := make([]float64, len(p.unplaced))
		for j, cand := range p.unplaced {
			colIDs[j] = s.pool[cand].ID
			row[j] = s.slotCost(base, cand)
		}
		costs := make([][]float64, short)
		for i := range costs {
			costs[i] = row
		}
		sol, err := hungarian.Assign(rowIDs, colIDs, costs, hungarian.Sentinel)
		if err != nil {
			// Costs are finite by construction; fall back to leaving the team short.
			continue
		}
		var fills []int
		for _, pair := range sol.Pairs {
			fills = append(fills, p.unplaced[pair.Col])
		}
		sortInts(fills)
		remaining := p.unplaced[:0:0]
		for _, cand := range p.unplaced {
			if !containsInt(fills, cand) {
				remaining = append(remaining, cand)
			}
		}

		fills, remaining = s.repairCoverage(base, fills, remaining)
		t.members = append(base, fills...)
		p.unplaced = sortInts(remaining)

		if len(s.roles) > 0 {
			if cov := s.roleCoverage(t.members); cov < s.cfg.CoverageThreshold {
				s.note(&p, domain.EventCoverageShortfall, t.seq, -1, fmt.Sprintf("role coverage %.2f below %.2f", cov, s.cfg.CoverageThreshold))
			}
		}
	}
	return p
}

// repairCoverage swaps low-value fills for unplaced candidates holding
// missing roles while coverage is under threshold. Every accepted
// substitution strictly increases coverage; at most len(fills) are made.
func (s *state) repairCoverage(base, fills, pool []int) ([]int, []int) {
	if len(s.roles) == 0 || len(fills) == 0 {
		return fills, pool
	}
	fills = append([]int(nil), fills...)
	pool = append([]int(nil), pool...)
	allowed := map[string]bool{}
	for _, r := range s.roles {
		allowed[r] = true
	}

	for sub := 0; sub < len(fills); sub++ {
		team := append(append([]int(nil), base...), fills...)
		cov := s.roleCoverage(team)
		if cov >= s.cfg.CoverageThreshold {
			break
		}
		present := s.rolesOf(team)

		cand, candGain, candCost := -1, 0, math.Inf(1)
		for _, c := range pool {
			gain := 0
			for r := range s.rolesOf([]int{c}) {
				if allowed[r] && present[r] == 0 {
					gain++
				}
			}
			if gain == 0 {
				continue
			}
			sc := s.slotCost(base, c)
			if gain > candGain || (gain == candGain && sc < candCost) {
				cand, candGain, candCost = c, gain, sc
			}
		}
		if cand < 0 {
			break
		}

		victim, victimLoss, victimCost := -1, math.MaxInt, math.Inf(-1)
		for pos, f := range fills {
			loss := 0
			for r := range s.rolesOf([]int{f}) {
				if allowed[r] && present[r] == 1 {
					loss++
				}
			}
			sc := s.slotCost(base, f)
			if loss < victimLoss || (loss == victimLoss && sc > victimCost) {
				victim, victimLoss, victimCost = pos, loss, sc
			}
		}

		trial := append([]int(nil), fills...)
		trial[victim] = cand
		if s.roleCoverage(append(append([]int(nil), base...), trial...)) <= cov {
			break
		}
		pool = removeInt(pool, cand)
		pool = append(pool, fills[victim])
		fills = trial
	}
	return fills, sortInts(pool)
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

package teamvector

import (
	"math"
	"sort"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/matching/cost"
	"github.com/qbeka/matchmaking-nat/internal/scoring"
)

// dominantRoleShare is the largest fraction of a team one role may hold
// before the team is reported as unbalanced.
const dominantRoleShare = 0.6

// TeamMetrics summarises a team for reporting.
type TeamMetrics = domain.TeamMetrics

// Metrics computes coverage and cohesion for members against allowedRoles.
func Metrics(members []domain.Individual, allowedRoles []string) TeamMetrics {
	var m TeamMetrics
	if len(members) == 0 {
		return m
	}

	roles := map[string]int{}
	skills := map[string]struct{}{}
	var confidence float64
	var rated int
	for _, ind := range members {
		for _, r := range dedupe(ind.Roles) {
			roles[r]++
		}
		names := make([]string, 0, len(ind.Skills))
		for name := range ind.Skills {
			skills[name] = struct{}{}
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			post, err := scoring.NewPosterior().UpdateFromRating(ind.Skills[name])
			if err != nil {
				continue
			}
			confidence += post.Mean()
			rated++
		}
	}
	m.DistinctRoles = len(roles)
	m.DistinctSkills = len(skills)

	if len(allowedRoles) > 0 {
		covered := 0
		for _, r := range allowedRoles {
			if roles[r] > 0 {
				covered++
			} else {
				m.MissingAllowedRoles = append(m.MissingAllowedRoles, r)
			}
		}
		m.RoleCoverage = float64(covered) / float64(len(allowedRoles))
	}
	m.SkillCoverage = float64(len(skills)) / float64(len(members))
	m.DiversityScore = (m.RoleCoverage + math.Min(1, m.SkillCoverage/3)) / 2
	if rated > 0 {
		m.ConfidenceScore = confidence / float64(rated)
	}

	m.RoleBalanced = true
	for _, n := range roles {
		if float64(n) > dominantRoleShare*float64(len(members)) {
			m.RoleBalanced = false
		}
	}

	m.InternalCost = InternalCost(members)
	if pairs := len(members) * (len(members) - 1) / 2; pairs > 0 {
		m.AvgPairwiseCost = m.InternalCost / float64(pairs)
	}

	var mean float64
	for _, ind := range members {
		mean += ind.AvailabilityHours
	}
	mean /= float64(len(members))
	var variance float64
	for _, ind := range members {
		d := ind.AvailabilityHours - mean
		variance += d * d
	}
	m.AvailabilityStdDev = math.Sqrt(variance / float64(len(members)))
	return m
}

// InternalCost sums the pairwise cost over every member pair.
func InternalCost(members []domain.Individual) float64 {
	var total float64
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			total += cost.PairwiseCost(members[i], members[j])
		}
	}
	return total
}

// Package teamvector aggregates team members into a single cost profile.
package teamvector

import (
	"math"
	"sort"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/matching/cost"
)

const (
	maxSkillBonus = 0.1
	maxRoleBonus  = 0.1
	roleBonusRate = 0.05
	// MaxSynergy bounds the bonus subtracted from team costs.
	MaxSynergy = maxSkillBonus + maxRoleBonus
)

// Vector is the read-only aggregate of a team.
type Vector struct {
	TeamID string `json:"team_id"`
	Size   int    `json:"size"`
	cost.Aggregate
}

// Aggregate builds the vector for members. An empty team yields default
// ambiguity and no skills.
func Aggregate(teamID string, members []domain.Individual) Vector {
	v := Vector{
		TeamID: teamID,
		Size:   len(members),
		Aggregate: cost.Aggregate{
			Skills:      map[string]float64{},
			RoleWeights: map[string]float64{},
			Ambiguity:   domain.DefaultAmbiguity,
		},
	}
	if len(members) == 0 {
		return v
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	roleCounts := map[string]int{}
	var roleTotal int
	ambiguities := make([]float64, 0, len(members))
	v.Availability = math.Inf(1)
	for _, m := range members {
		for name, level := range m.Skills {
			sums[name] += level
			counts[name]++
		}
		for _, r := range dedupe(m.Roles) {
			roleCounts[r]++
			roleTotal++
		}
		v.Availability = math.Min(v.Availability, m.AvailabilityHours)
		ambiguities = append(ambiguities, m.Ambiguity())
	}
	for _, name := range sortedKeys(sums) {
		v.Skills[name] = sums[name] / float64(counts[name])
	}
	for role, n := range roleCounts {
		v.RoleWeights[role] = float64(n) / float64(roleTotal)
	}
	v.Ambiguity = median(ambiguities)
	v.Embedding = medianEmbedding(members)
	v.Synergy = Synergy(members)
	return v
}

// Synergy rewards skill non-redundancy and role diversity, bounded to
// [0, MaxSynergy].
func Synergy(members []domain.Individual) float64 {
	if len(members) <= 1 {
		return 0
	}
	holders := map[string]int{}
	var total int
	roles := map[string]struct{}{}
	for _, m := range members {
		for name := range m.Skills {
			holders[name]++
			total++
		}
		for _, r := range m.Roles {
			roles[r] = struct{}{}
		}
	}

	var skillBonus float64
	if total > 0 {
		overlap := 0
		for _, n := range holders {
			overlap += n - 1
		}
		skillBonus = math.Max(0, maxSkillBonus*(1-float64(overlap)/float64(total)))
	}
	roleBonus := math.Min(maxRoleBonus, roleBonusRate*float64(len(roles))/float64(len(members)))
	return math.Max(0, math.Min(MaxSynergy, skillBonus+roleBonus))
}

// medianEmbedding takes the component-wise median over members whose
// embedding has the most common dimension.
func medianEmbedding(members []domain.Individual) []float64 {
	dims := map[int]int{}
	for _, m := range members {
		if len(m.Embedding) > 0 {
			dims[len(m.Embedding)]++
		}
	}
	if len(dims) == 0 {
		return nil
	}
	dim, best := 0, 0
	for d, n := range dims {
		if n > best || (n == best && d < dim) {
			dim, best = d, n
		}
	}
	out := make([]float64, dim)
	column := make([]float64, 0, best)
	for c := 0; c < dim; c++ {
		column = column[:0]
		for _, m := range members {
			if len(m.Embedding) == dim {
				column = append(column, m.Embedding[c])
			}
		}
		out[c] = median(column)
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func dedupe(xs []string) []string {
	seen := make(map[string]struct{}, len(xs))
	out := xs[:0:0]
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

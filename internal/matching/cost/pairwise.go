package cost

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

const (
	// CompetenceThreshold is the level above which two people count as
	// overlapping on a skill.
	CompetenceThreshold = 3.0
	// EmptyRolePenalty is the role diversity penalty when either side lists no roles.
	EmptyRolePenalty = 0.5

	pairRoleWeight       = 0.4
	pairSkillWeight      = 0.3
	pairClashWeight      = 0.3
	pairMotivationWeight = 0.2
)

// PairwiseCost scores how poorly two individuals would work together. It is
// symmetric and zero for an individual paired with itself.
func PairwiseCost(a, b domain.Individual) float64 {
	if a.ID == b.ID {
		return 0
	}
	c := pairRoleWeight*roleDiversityPenalty(a.Roles, b.Roles) +
		pairSkillWeight*skillOverlapPenalty(a.Skills, b.Skills) +
		pairClashWeight*communicationClash(a, b) -
		pairMotivationWeight*motivationBonus(a.Embedding, b.Embedding)
	return math.Max(0, math.Min(1, c))
}

func roleDiversityPenalty(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return EmptyRolePenalty
	}
	set := make(map[string]int, len(a)+len(b))
	for _, r := range a {
		set[r] |= 1
	}
	for _, r := range b {
		set[r] |= 2
	}
	var both int
	for _, mask := range set {
		if mask == 3 {
			both++
		}
	}
	return 1 - float64(both)/float64(len(set))
}

func skillOverlapPenalty(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var common []string
	for name := range a {
		if _, ok := b[name]; ok {
			common = append(common, name)
		}
	}
	if len(common) == 0 {
		return 0
	}
	sort.Strings(common)

	var total float64
	var strong int
	for _, name := range common {
		la, lb := a[name], b[name]
		if la > CompetenceThreshold && lb > CompetenceThreshold {
			total += math.Min(la, lb) / MaxSkillLevel
			strong++
		}
	}
	if strong == 0 {
		return 0
	}
	shared := float64(len(common)) / float64(max(len(a), len(b)))
	return total / float64(strong) * shared
}

func communicationClash(a, b domain.Individual) float64 {
	hours := ratioDelta(a.AvailabilityHours, b.AvailabilityHours)
	text := ratioDelta(
		float64(utf8.RuneCountInString(a.MotivationText)),
		float64(utf8.RuneCountInString(b.MotivationText)),
	)
	return (hours + text) / 2
}

func ratioDelta(x, y float64) float64 {
	hi := math.Max(x, y)
	if hi <= 0 {
		return 0
	}
	return math.Abs(x-y) / hi
}

func motivationBonus(a, b []float64) float64 {
	sim, ok := Cosine(a, b)
	if !ok || sim < 0 {
		return 0
	}
	return sim
}

// Package cost holds the pure cost functions used by every matching stage.
package cost

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

const (
	// MissingEmbeddingPenalty is the motivation term used when either side lacks
	// a usable embedding, between a perfect match (0) and an orthogonal one (1).
	MissingEmbeddingPenalty = 0.3
	// MaxWeeklyHours normalises the workload term.
	MaxWeeklyHours = 40.0
	// MaxSkillLevel is the top of the rating scale.
	MaxSkillLevel = 5.0
)

// Weights scales the five cost terms.
type Weights struct {
	SkillGap      float64 `json:"skill_gap" yaml:"skill_gap"`
	RoleAlignment float64 `json:"role_alignment" yaml:"role_alignment"`
	Motivation    float64 `json:"motivation" yaml:"motivation"`
	Ambiguity     float64 `json:"ambiguity" yaml:"ambiguity"`
	Workload      float64 `json:"workload" yaml:"workload"`
}

var (
	// DefaultWeights is the individual to task profile.
	DefaultWeights = Weights{SkillGap: 0.35, RoleAlignment: 0.20, Motivation: 0.15, Ambiguity: 0.20, Workload: 0.10}
	// TeamWeights is the team to task profile.
	TeamWeights = Weights{SkillGap: 0.30, RoleAlignment: 0.25, Motivation: 0.20, Ambiguity: 0.15, Workload: 0.10}
)

var errInvalidWeights = errors.New("cost: weights must be finite and non-negative")

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.SkillGap + w.RoleAlignment + w.Motivation + w.Ambiguity + w.Workload
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"skill_gap":      w.SkillGap,
		"role_alignment": w.RoleAlignment,
		"motivation":     w.Motivation,
		"ambiguity":      w.Ambiguity,
		"workload":       w.Workload,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s=%v", errInvalidWeights, name, v)
		}
	}
	if w.Sum() == 0 {
		return fmt.Errorf("%w: all weights are zero", errInvalidWeights)
	}
	return nil
}

// Normalized rescales the weights so they sum to one.
func (w Weights) Normalized() Weights {
	s := w.Sum()
	if s == 0 {
		return w
	}
	return Weights{
		SkillGap:      w.SkillGap / s,
		RoleAlignment: w.RoleAlignment / s,
		Motivation:    w.Motivation / s,
		Ambiguity:     w.Ambiguity / s,
		Workload:      w.Workload / s,
	}
}

// Terms is the unweighted value of each cost term.
type Terms struct {
	SkillGap      float64 `json:"skill_gap"`
	RoleAlignment float64 `json:"role_alignment"`
	Motivation    float64 `json:"motivation"`
	Ambiguity     float64 `json:"ambiguity"`
	Workload      float64 `json:"workload"`
}

// Weighted combines the terms with w.
func (t Terms) Weighted(w Weights) float64 {
	return w.SkillGap*t.SkillGap +
		w.RoleAlignment*t.RoleAlignment +
		w.Motivation*t.Motivation +
		w.Ambiguity*t.Ambiguity +
		w.Workload*t.Workload
}

// Breakdown returns the individual to task terms before weighting.
func Breakdown(ind domain.Individual, task domain.Task) Terms {
	roles := make(map[string]float64, len(ind.Roles))
	for _, r := range ind.Roles {
		roles[r] = 1
	}
	return Terms{
		SkillGap:      skillGap(ind.Skills, task.RequiredSkills),
		RoleAlignment: roleAlignment(roles, task.RolePreferences),
		Motivation:    motivationDistance(ind.Embedding, task.Embedding),
		Ambiguity:     math.Abs(ind.Ambiguity() - task.AmbiguityLevel()),
		Workload:      workloadFit(ind.AvailabilityHours, task.Hours()),
	}
}

// IndividualCost is the weighted cost of placing ind on task.
func IndividualCost(ind domain.Individual, task domain.Task, w Weights) float64 {
	return Breakdown(ind, task).Weighted(w)
}

// Aggregate is the team level input to TeamTaskCost.
type Aggregate struct {
	Skills       map[string]float64 `json:"skills"`
	RoleWeights  map[string]float64 `json:"role_weights"`
	Availability float64            `json:"availability"`
	Embedding    []float64          `json:"embedding,omitempty"`
	Ambiguity    float64            `json:"ambiguity"`
	Synergy      float64            `json:"synergy"`
}

// TeamBreakdown returns the team to task terms before weighting and synergy.
func TeamBreakdown(a Aggregate, task domain.Task) Terms {
	return Terms{
		SkillGap:      skillGap(a.Skills, task.RequiredSkills),
		RoleAlignment: roleAlignment(a.RoleWeights, task.RolePreferences),
		Motivation:    motivationDistance(a.Embedding, task.Embedding),
		Ambiguity:     math.Abs(a.Ambiguity - task.AmbiguityLevel()),
		Workload:      workloadFit(a.Availability, task.Hours()),
	}
}

// TeamTaskCost is the weighted team cost minus the synergy bonus, floored at zero.
func TeamTaskCost(a Aggregate, task domain.Task, w Weights) float64 {
	c := TeamBreakdown(a, task).Weighted(w) - a.Synergy
	if c < 0 {
		return 0
	}
	return c
}

func skillGap(levels, required map[string]float64) float64 {
	if len(required) == 0 {
		return 0
	}
	var total float64
	for _, name := range sortedKeys(required) {
		if gap := required[name] - levels[name]; gap > 0 {
			total += gap
		}
	}
	return total / float64(len(required))
}

func roleAlignment(weights, prefs map[string]float64) float64 {
	var matched float64
	for _, role := range sortedKeys(weights) {
		matched += weights[role] * prefs[role]
	}
	if v := 1 - matched; v > 0 {
		return v
	}
	return 0
}

func motivationDistance(a, b []float64) float64 {
	sim, ok := Cosine(a, b)
	if !ok {
		return MissingEmbeddingPenalty
	}
	return 1 - sim
}

func workloadFit(available, required float64) float64 {
	if short := required - available; short > 0 {
		return short / MaxWeeklyHours
	}
	return 0
}

// Cosine returns the cosine similarity of a and b. ok is false when either
// vector is absent, the lengths differ, or a norm is zero.
func Cosine(a, b []float64) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	sim = dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, sim)), true
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

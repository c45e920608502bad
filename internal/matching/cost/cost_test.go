package cost

import (
	"math"
	"testing"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestBreakdownTerms(t *testing.T) {
	ind := domain.Individual{
		ID:                 "a",
		Skills:             map[string]float64{"Go": 4, "SQL": 1},
		Roles:              []string{"backend_dev"},
		AmbiguityTolerance: floatPtr(0.2),
		AvailabilityHours:  10,
	}
	task := domain.Task{
		ID:              "t",
		RequiredSkills:  map[string]float64{"Go": 3, "SQL": 3, "Docker": 2},
		RolePreferences: map[string]float64{"backend_dev": 0.6, "designer": 0.4},
		Ambiguity:       floatPtr(0.7),
		ExpectedHours:   30,
	}

	terms := Breakdown(ind, task)
	if !approx(terms.SkillGap, (0+2+2)/3.0) {
		t.Fatalf("unexpected skill gap %v", terms.SkillGap)
	}
	if !approx(terms.RoleAlignment, 0.4) {
		t.Fatalf("unexpected role alignment %v", terms.RoleAlignment)
	}
	if terms.Motivation != MissingEmbeddingPenalty {
		t.Fatalf("expected missing embedding penalty, got %v", terms.Motivation)
	}
	if !approx(terms.Ambiguity, 0.5) {
		t.Fatalf("unexpected ambiguity %v", terms.Ambiguity)
	}
	if !approx(terms.Workload, 0.5) {
		t.Fatalf("unexpected workload %v", terms.Workload)
	}

	want := 0.35*terms.SkillGap + 0.20*0.4 + 0.15*MissingEmbeddingPenalty + 0.20*0.5 + 0.10*0.5
	if got := IndividualCost(ind, task, DefaultWeights); !approx(got, want) {
		t.Fatalf("expected cost %v, got %v", want, got)
	}
}

func TestBreakdownDefaultsAndEmbeddings(t *testing.T) {
	ind := domain.Individual{ID: "a", Embedding: []float64{1, 0}, AvailabilityHours: 40}
	task := domain.Task{ID: "t", Embedding: []float64{1, 0}}

	terms := Breakdown(ind, task)
	if terms.SkillGap != 0 {
		t.Fatalf("expected zero skill gap without requirements, got %v", terms.SkillGap)
	}
	if terms.RoleAlignment != 1 {
		t.Fatalf("expected full role misalignment, got %v", terms.RoleAlignment)
	}
	if !approx(terms.Motivation, 0) {
		t.Fatalf("expected zero motivation distance for parallel vectors, got %v", terms.Motivation)
	}
	if terms.Ambiguity != 0 {
		t.Fatalf("expected default ambiguities to cancel, got %v", terms.Ambiguity)
	}
	if terms.Workload != 0 {
		t.Fatalf("expected no workload shortfall, got %v", terms.Workload)
	}

	task.Embedding = []float64{1, 0, 0}
	if got := Breakdown(ind, task).Motivation; got != MissingEmbeddingPenalty {
		t.Fatalf("mismatched dimensions should use penalty, got %v", got)
	}
}

func TestIdenticalIndividualsShareCost(t *testing.T) {
	task := domain.Task{ID: "t", RequiredSkills: map[string]float64{"Go": 4}, RolePreferences: map[string]float64{"backend_dev": 1}}
	var costs []float64
	for _, id := range []string{"a", "b", "c"} {
		ind := domain.Individual{ID: id, Skills: map[string]float64{"Go": 2}, Roles: []string{"backend_dev"}, AvailabilityHours: 15}
		costs = append(costs, IndividualCost(ind, task, DefaultWeights))
	}
	if costs[0] != costs[1] || costs[1] != costs[2] {
		t.Fatalf("expected identical costs, got %v", costs)
	}
}

func TestTeamTaskCostSubtractsSynergy(t *testing.T) {
	task := domain.Task{ID: "t", RequiredSkills: map[string]float64{"Go": 3}, RolePreferences: map[string]float64{"backend_dev": 0.5}}
	agg := Aggregate{
		Skills:       map[string]float64{"Go": 3},
		RoleWeights:  map[string]float64{"backend_dev": 0.5, "designer": 0.5},
		Availability: 20,
		Ambiguity:    0.5,
	}
	base := TeamTaskCost(agg, task, TeamWeights)
	agg.Synergy = 0.1
	if got := TeamTaskCost(agg, task, TeamWeights); !approx(got, base-0.1) {
		t.Fatalf("expected synergy to lower cost to %v, got %v", base-0.1, got)
	}
	agg.Synergy = 10
	if got := TeamTaskCost(agg, task, TeamWeights); got != 0 {
		t.Fatalf("expected cost floored at zero, got %v", got)
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights.Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}
	if !approx(TeamWeights.Sum(), 1) {
		t.Fatalf("team weights should sum to one, got %v", TeamWeights.Sum())
	}
	bad := DefaultWeights
	bad.Workload = -1
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected negative weight to fail validation")
	}
	if err := (Weights{}).Validate(); err == nil {
		t.Fatalf("expected zero weights to fail validation")
	}
	n := Weights{SkillGap: 2, Workload: 2}.Normalized()
	if !approx(n.SkillGap, 0.5) || !approx(n.Workload, 0.5) {
		t.Fatalf("unexpected normalized weights %+v", n)
	}
}

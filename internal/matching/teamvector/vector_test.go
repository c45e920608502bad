package teamvector

import (
	"math"
	"testing"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func TestAggregate(t *testing.T) {
	members := []domain.Individual{
		{ID: "a", Skills: map[string]float64{"Go": 4, "SQL": 2}, Roles: []string{"backend_dev"}, AvailabilityHours: 30, AmbiguityTolerance: floatPtr(0.2), Embedding: []float64{1, 10}},
		{ID: "b", Skills: map[string]float64{"Go": 2}, Roles: []string{"backend_dev", "designer"}, AvailabilityHours: 12, AmbiguityTolerance: floatPtr(0.9), Embedding: []float64{3, -10}},
		{ID: "c", Skills: map[string]float64{"Docker": 5}, Roles: []string{"devops_engineer"}, AvailabilityHours: 25, AmbiguityTolerance: floatPtr(0.4), Embedding: []float64{2, 100}},
	}
	v := Aggregate("team-001", members)

	if v.Size != 3 || v.TeamID != "team-001" {
		t.Fatalf("unexpected identity %+v", v)
	}
	if v.Skills["Go"] != 3 || v.Skills["SQL"] != 2 || v.Skills["Docker"] != 5 {
		t.Fatalf("skills should average over holders only, got %v", v.Skills)
	}
	if v.RoleWeights["backend_dev"] != 0.5 || v.RoleWeights["designer"] != 0.25 {
		t.Fatalf("unexpected role weights %v", v.RoleWeights)
	}
	var sum float64
	for _, w := range v.RoleWeights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("role weights should sum to one, got %v", sum)
	}
	if v.Availability != 12 {
		t.Fatalf("availability should be the minimum, got %v", v.Availability)
	}
	if v.Ambiguity != 0.4 {
		t.Fatalf("ambiguity should be the median, got %v", v.Ambiguity)
	}
	if len(v.Embedding) != 2 || v.Embedding[0] != 2 || v.Embedding[1] != 10 {
		t.Fatalf("embedding should be component-wise median, got %v", v.Embedding)
	}
	if v.Synergy <= 0 || v.Synergy > MaxSynergy {
		t.Fatalf("synergy out of range: %v", v.Synergy)
	}
}

func TestAggregateWithoutEmbeddings(t *testing.T) {
	v := Aggregate("t", []domain.Individual{{ID: "a", AvailabilityHours: 5}, {ID: "b", AvailabilityHours: 9}})
	if v.Embedding != nil {
		t.Fatalf("expected no embedding, got %v", v.Embedding)
	}
	if v.Ambiguity != domain.DefaultAmbiguity {
		t.Fatalf("expected default ambiguity median, got %v", v.Ambiguity)
	}
}

func TestAggregateEmpty(t *testing.T) {
	v := Aggregate("t", nil)
	if v.Size != 0 || len(v.Skills) != 0 || v.Synergy != 0 {
		t.Fatalf("unexpected empty vector %+v", v)
	}
}

func TestSynergy(t *testing.T) {
	distinct := []domain.Individual{
		{ID: "a", Skills: map[string]float64{"Go": 3}, Roles: []string{"backend_dev"}},
		{ID: "b", Skills: map[string]float64{"SQL": 3}, Roles: []string{"designer"}},
	}
	// No overlap: full skill bonus plus min(0.1, 0.05*2/2).
	if got := Synergy(distinct); math.Abs(got-0.15) > 1e-12 {
		t.Fatalf("expected 0.15, got %v", got)
	}
	same := []domain.Individual{
		{ID: "a", Skills: map[string]float64{"Go": 3}, Roles: []string{"backend_dev"}},
		{ID: "b", Skills: map[string]float64{"Go": 3}, Roles: []string{"backend_dev"}},
	}
	// Overlap 1 of 2 skills: 0.05, one role: 0.025.
	if got := Synergy(same); math.Abs(got-0.075) > 1e-12 {
		t.Fatalf("expected 0.075, got %v", got)
	}
	if got := Synergy(distinct[:1]); got != 0 {
		t.Fatalf("single member synergy should be zero, got %v", got)
	}
}

func TestMetrics(t *testing.T) {
	members := []domain.Individual{
		{ID: "a", Skills: map[string]float64{"Go": 5}, Roles: []string{"backend_dev"}, AvailabilityHours: 10},
		{ID: "b", Skills: map[string]float64{"Go": 5}, Roles: []string{"backend_dev"}, AvailabilityHours: 30},
		{ID: "c", Skills: map[string]float64{"Figma": 5}, Roles: []string{"designer"}, AvailabilityHours: 20},
	}
	m := Metrics(members, []string{"backend_dev", "designer", "product_manager", "devops_engineer"})
	if m.RoleCoverage != 0.5 {
		t.Fatalf("expected half role coverage, got %v", m.RoleCoverage)
	}
	if len(m.MissingAllowedRoles) != 2 || m.MissingAllowedRoles[0] != "product_manager" {
		t.Fatalf("unexpected missing roles %v", m.MissingAllowedRoles)
	}
	if m.RoleBalanced {
		t.Fatalf("backend_dev holds two thirds of the team and should be flagged")
	}
	if want := 6.0 / 7.0; math.Abs(m.ConfidenceScore-want) > 1e-12 {
		t.Fatalf("expected confidence %v, got %v", want, m.ConfidenceScore)
	}
	if want := math.Sqrt(200.0 / 3.0); math.Abs(m.AvailabilityStdDev-want) > 1e-9 {
		t.Fatalf("expected std %v, got %v", want, m.AvailabilityStdDev)
	}
	if m.InternalCost <= 0 || m.AvgPairwiseCost != m.InternalCost/3 {
		t.Fatalf("unexpected internal cost %v / %v", m.InternalCost, m.AvgPairwiseCost)
	}
}

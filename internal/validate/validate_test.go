package validate

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func violations(t *testing.T, err error) []Violation {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	return verr.Violations
}

func hasField(vs []Violation, field, typ string) bool {
	for _, v := range vs {
		if v.Field == field && v.Type == typ {
			return true
		}
	}
	return false
}

func TestIndividualsValid(t *testing.T) {
	inds := []domain.Individual{{
		ID:                 "a",
		Skills:             map[string]float64{"Go": 4, "SQL": 0},
		Roles:              []string{"backend_dev"},
		AmbiguityTolerance: ptr(0.3),
		AvailabilityHours:  40,
	}}
	if err := Individuals(DefaultCatalog(), inds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIndividualsCollectsEveryViolation(t *testing.T) {
	inds := []domain.Individual{
		{ID: "a", Skills: map[string]float64{"COBOL": 2, "Go": 6}, Roles: []string{"wizard"}, AvailabilityHours: 41},
		{ID: "a", AmbiguityTolerance: ptr(1.5), Embedding: []float64{1, math.NaN()}},
		{ID: " "},
	}
	vs := violations(t, Individuals(DefaultCatalog(), inds))
	want := []struct{ field, typ string }{
		{"individuals[1].id", "duplicate"},
		{"individuals[2].id", "required"},
		{"individuals[0].skills.COBOL", "unknown_skill"},
		{"individuals[0].skills.Go", "range"},
		{"individuals[0].roles[0]", "unknown_role"},
		{"individuals[0].availability_hours", "range"},
		{"individuals[1].ambiguity_tolerance", "range"},
		{"individuals[1].embedding[1]", "finite"},
	}
	for _, w := range want {
		if !hasField(vs, w.field, w.typ) {
			t.Fatalf("expected %s violation on %s, got %+v", w.typ, w.field, vs)
		}
	}
	if len(vs) != len(want) {
		t.Fatalf("expected %d violations, got %d: %+v", len(want), len(vs), vs)
	}
}

func TestIndividualsMotivationLength(t *testing.T) {
	cat := DefaultCatalog()
	inds := []domain.Individual{{ID: "a", MotivationText: "short"}, {ID: "b", MotivationText: strings.Repeat("x", MinMotivationLength)}}
	if err := Individuals(cat, inds); err != nil {
		t.Fatalf("expected motivation length to be ignored by default, got %v", err)
	}
	cat.RequireMotivation = true
	vs := violations(t, Individuals(cat, inds))
	if len(vs) != 1 || vs[0].Field != "individuals[0].motivation_text" {
		t.Fatalf("expected a single motivation violation, got %+v", vs)
	}
}

func TestTasks(t *testing.T) {
	good := domain.Task{
		ID:              "t1",
		RequiredSkills:  map[string]float64{"Go": 3},
		RolePreferences: map[string]float64{"backend_dev": 0.6, "devops_engineer": 0.4},
		Ambiguity:       ptr(0.5),
	}
	if err := Tasks(DefaultCatalog(), []domain.Task{good}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := []domain.Task{
		{ID: "t1", RolePreferences: map[string]float64{"backend_dev": 0.7, "designer": 0.5}},
		{ID: "t2", RolePreferences: map[string]float64{"astronaut": 0.1}, ExpectedHours: -1, Capacity: -2, Ambiguity: ptr(-0.1)},
	}
	vs := violations(t, Tasks(DefaultCatalog(), bad))
	want := []struct{ field, typ string }{
		{"tasks[0].role_preferences", "sum"},
		{"tasks[1].role_preferences.astronaut", "unknown_role"},
		{"tasks[1].expected_hours", "range"},
		{"tasks[1].capacity", "range"},
		{"tasks[1].ambiguity", "range"},
	}
	for _, w := range want {
		if !hasField(vs, w.field, w.typ) {
			t.Fatalf("expected %s violation on %s, got %+v", w.typ, w.field, vs)
		}
	}
}

func TestTasksRoleWeightTolerance(t *testing.T) {
	task := domain.Task{ID: "t", RolePreferences: map[string]float64{"backend_dev": 0.5, "designer": 0.500001}}
	if err := Tasks(DefaultCatalog(), []domain.Task{task}); err != nil {
		t.Fatalf("expected sum within tolerance to pass, got %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Violations: []Violation{{Field: "x", Message: "bad"}}}
	if err.Error() != "validation failed: x: bad" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

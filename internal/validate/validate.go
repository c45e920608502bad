// Package validate rejects malformed individuals and tasks before they reach
// the matching core.
package validate

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

const (
	MaxSkillLevel       = 5.0
	MaxWeeklyHours      = 40.0
	MinMotivationLength = 40
	roleWeightTolerance = 1e-5
)

// Catalog lists the accepted skill and role keys.
type Catalog struct {
	Skills []string `json:"skills" yaml:"skills"`
	Roles  []string `json:"roles" yaml:"roles"`
	// RequireMotivation enforces a minimum length on non-empty motivation text.
	RequireMotivation bool `json:"require_motivation" yaml:"require_motivation"`
}

// DefaultCatalog returns the standard skill and role lists.
func DefaultCatalog() Catalog {
	return Catalog{
		Skills: []string{
			"Python", "JavaScript", "Go", "Java", "Rust", "TypeScript", "C++",
			"SQL", "NoSQL", "Docker", "Kubernetes", "GCP", "AWS", "Azure",
			"Terraform", "Machine Learning", "Data Science", "Frontend",
			"Backend", "DevOps",
		},
		Roles: []string{
			"frontend_dev", "backend_dev", "fullstack_dev", "data_scientist",
			"devops_engineer", "product_manager", "designer",
		},
	}
}

// Violation is one field level problem.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Error carries every violation found in a batch.
type Error struct {
	Violations []Violation `json:"violations"`
}

func (e *Error) Error() string {
	if len(e.Violations) == 1 {
		v := e.Violations[0]
		return fmt.Sprintf("validation failed: %s: %s", v.Field, v.Message)
	}
	return fmt.Sprintf("validation failed: %d violations", len(e.Violations))
}

type checker struct {
	skills map[string]bool
	roles  map[string]bool
	cat    Catalog
	out    []Violation
}

func newChecker(cat Catalog) *checker {
	c := &checker{skills: map[string]bool{}, roles: map[string]bool{}, cat: cat}
	for _, s := range cat.Skills {
		c.skills[s] = true
	}
	for _, r := range cat.Roles {
		c.roles[r] = true
	}
	return c
}

func (c *checker) add(field, typ, format string, args ...any) {
	c.out = append(c.out, Violation{Field: field, Type: typ, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) err() error {
	if len(c.out) == 0 {
		return nil
	}
	return &Error{Violations: c.out}
}

func (c *checker) ids(prefix string, ids []string) {
	seen := make(map[string]int, len(ids))
	for i, id := range ids {
		field := fmt.Sprintf("%s[%d].id", prefix, i)
		if strings.TrimSpace(id) == "" {
			c.add(field, "required", "id is required")
			continue
		}
		if first, dup := seen[id]; dup {
			c.add(field, "duplicate", "id %q already used at index %d", id, first)
			continue
		}
		seen[id] = i
	}
}

func (c *checker) levels(field string, m map[string]float64) {
	for _, name := range sortedKeys(m) {
		f := fmt.Sprintf("%s.%s", field, name)
		if !c.skills[name] {
			c.add(f, "unknown_skill", "skill %q is not in the catalog", name)
		}
		if v := m[name]; math.IsNaN(v) || v < 0 || v > MaxSkillLevel {
			c.add(f, "range", "level %v outside [0, %v]", v, MaxSkillLevel)
		}
	}
}

func (c *checker) unit(field string, v *float64) {
	if v == nil {
		return
	}
	if math.IsNaN(*v) || *v < 0 || *v > 1 {
		c.add(field, "range", "value %v outside [0, 1]", *v)
	}
}

func (c *checker) embedding(field string, e []float64) {
	for i, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			c.add(fmt.Sprintf("%s[%d]", field, i), "finite", "embedding value is not finite")
			return
		}
	}
}

// Individuals checks a batch of individuals against cat.
func Individuals(cat Catalog, inds []domain.Individual) error {
	c := newChecker(cat)
	ids := make([]string, len(inds))
	for i, ind := range inds {
		ids[i] = ind.ID
	}
	c.ids("individuals", ids)

	for i, ind := range inds {
		base := fmt.Sprintf("individuals[%d]", i)
		c.levels(base+".skills", ind.Skills)
		for j, r := range ind.Roles {
			if !c.roles[r] {
				c.add(fmt.Sprintf("%s.roles[%d]", base, j), "unknown_role", "role %q is not in the catalog", r)
			}
		}
		c.unit(base+".ambiguity_tolerance", ind.AmbiguityTolerance)
		if h := ind.AvailabilityHours; math.IsNaN(h) || h < 0 || h > MaxWeeklyHours {
			c.add(base+".availability_hours", "range", "hours %v outside [0, %v]", h, MaxWeeklyHours)
		}
		if cat.RequireMotivation && ind.MotivationText != "" && utf8.RuneCountInString(ind.MotivationText) < MinMotivationLength {
			c.add(base+".motivation_text", "min_length", "motivation text shorter than %d characters", MinMotivationLength)
		}
		c.embedding(base+".embedding", ind.Embedding)
	}
	return c.err()
}

// Tasks checks a batch of tasks against cat.
func Tasks(cat Catalog, tasks []domain.Task) error {
	c := newChecker(cat)
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	c.ids("tasks", ids)

	for i, t := range tasks {
		base := fmt.Sprintf("tasks[%d]", i)
		c.levels(base+".required_skills", t.RequiredSkills)

		var sum float64
		for _, r := range sortedKeys(t.RolePreferences) {
			f := fmt.Sprintf("%s.role_preferences.%s", base, r)
			w := t.RolePreferences[r]
			if !c.roles[r] {
				c.add(f, "unknown_role", "role %q is not in the catalog", r)
			}
			if math.IsNaN(w) || w < 0 || w > 1 {
				c.add(f, "range", "weight %v outside [0, 1]", w)
			}
			sum += w
		}
		if sum > 1+roleWeightTolerance {
			c.add(base+".role_preferences", "sum", "weights sum to %v, above 1", sum)
		}
		c.unit(base+".ambiguity", t.Ambiguity)
		if t.ExpectedHours < 0 || math.IsNaN(t.ExpectedHours) {
			c.add(base+".expected_hours", "range", "hours %v must not be negative", t.ExpectedHours)
		}
		if t.Capacity < 0 {
			c.add(base+".capacity", "range", "capacity %d must not be negative", t.Capacity)
		}
		c.embedding(base+".embedding", t.Embedding)
	}
	return c.err()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package domain

// DefaultExpectedHours applies when a task leaves ExpectedHours unset.
const DefaultExpectedHours = 20.0

// Task is a unit of work individuals and teams are matched against.
type Task struct {
	ID              string             `json:"id"`
	Title           string             `json:"title,omitempty"`
	RequiredSkills  map[string]float64 `json:"required_skills,omitempty"`
	RolePreferences map[string]float64 `json:"role_preferences,omitempty"`
	Ambiguity       *float64           `json:"ambiguity,omitempty"`
	ExpectedHours   float64            `json:"expected_hours,omitempty"`
	Embedding       []float64          `json:"embedding,omitempty"`
	Capacity        int                `json:"capacity,omitempty"`
}

// AmbiguityLevel returns the task ambiguity, falling back to DefaultAmbiguity.
func (t Task) AmbiguityLevel() float64 {
	if t.Ambiguity == nil {
		return DefaultAmbiguity
	}
	return *t.Ambiguity
}

// Hours returns the expected weekly hours with the default applied.
func (t Task) Hours() float64 {
	if t.ExpectedHours <= 0 {
		return DefaultExpectedHours
	}
	return t.ExpectedHours
}

// SlotCount returns Capacity, or fallback when the task does not declare one.
func (t Task) SlotCount(fallback int) int {
	if t.Capacity > 0 {
		return t.Capacity
	}
	if fallback < 1 {
		return 1
	}
	return fallback
}

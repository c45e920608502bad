package domain

// DefaultAmbiguity is used when an individual or task omits its ambiguity value.
const DefaultAmbiguity = 0.5

// Individual is a person in the matching pool.
type Individual struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name,omitempty"`
	Skills             map[string]float64 `json:"skills,omitempty"`
	Roles              []string           `json:"roles,omitempty"`
	MotivationText     string             `json:"motivation_text,omitempty"`
	Embedding          []float64          `json:"embedding,omitempty"`
	AmbiguityTolerance *float64           `json:"ambiguity_tolerance,omitempty"`
	AvailabilityHours  float64            `json:"availability_hours"`
	Leadership         bool               `json:"leadership,omitempty"`
}

// Ambiguity returns the ambiguity tolerance, falling back to DefaultAmbiguity.
func (i Individual) Ambiguity() float64 {
	if i.AmbiguityTolerance == nil {
		return DefaultAmbiguity
	}
	return *i.AmbiguityTolerance
}

// HasRole reports whether the individual lists role.
func (i Individual) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers may hand it to concurrent consumers.
func (i Individual) Clone() Individual {
	out := i
	if i.Skills != nil {
		out.Skills = make(map[string]float64, len(i.Skills))
		for k, v := range i.Skills {
			out.Skills[k] = v
		}
	}
	out.Roles = append([]string(nil), i.Roles...)
	out.Embedding = append([]float64(nil), i.Embedding...)
	if i.AmbiguityTolerance != nil {
		v := *i.AmbiguityTolerance
		out.AmbiguityTolerance = &v
	}
	return out
}

// IndexIndividuals maps individual IDs to records.
func IndexIndividuals(pool []Individual) map[string]Individual {
	out := make(map[string]Individual, len(pool))
	for _, ind := range pool {
		out[ind.ID] = ind
	}
	return out
}

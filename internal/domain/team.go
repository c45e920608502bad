package domain

// Team is a group of individuals produced by team formation.
type Team struct {
	ID              string   `json:"id"`
	Members         []string `json:"members"`
	PromotedLeaders []string `json:"promoted_leaders,omitempty"`
}

// Size returns the member count.
func (t Team) Size() int {
	return len(t.Members)
}

// Has reports whether id is a member.
func (t Team) Has(id string) bool {
	for _, m := range t.Members {
		if m == id {
			return true
		}
	}
	return false
}

// Promoted reports whether id was promoted to lead this team.
func (t Team) Promoted(id string) bool {
	for _, m := range t.PromotedLeaders {
		if m == id {
			return true
		}
	}
	return false
}

// Clone returns a copy with independent slices.
func (t Team) Clone() Team {
	return Team{
		ID:              t.ID,
		Members:         append([]string(nil), t.Members...),
		PromotedLeaders: append([]string(nil), t.PromotedLeaders...),
	}
}

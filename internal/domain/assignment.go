package domain

// SlotAssignment records a stage one placement of an individual into a task slot.
type SlotAssignment struct {
	IndividualID string  `json:"individual_id"`
	TaskID       string  `json:"task_id"`
	Slot         int     `json:"slot"`
	Cost         float64 `json:"cost"`
}

// AssignmentPass identifies which stage three pass produced an assignment.
type AssignmentPass string

const (
	PassPrimary  AssignmentPass = "primary"
	PassFallback AssignmentPass = "fallback"
	PassCoverage AssignmentPass = "coverage"
)

// TeamAssignment binds a team to a task.
type TeamAssignment struct {
	TeamID string         `json:"team_id"`
	TaskID string         `json:"task_id"`
	Cost   float64        `json:"cost"`
	Pass   AssignmentPass `json:"pass"`
}

package domain

import "time"

// RunStatus tracks pipeline progress for a run.
type RunStatus string

const (
	RunPending        RunStatus = "pending"
	RunStage1Complete RunStatus = "stage1_complete"
	RunStage2Complete RunStatus = "stage2_complete"
	RunComplete       RunStatus = "complete"
)

// Run is one execution of the matching pipeline.
type Run struct {
	ID              string    `json:"id"`
	Status          RunStatus `json:"status"`
	IndividualIDs   []string  `json:"individual_ids"`
	TaskIDs         []string  `json:"task_ids"`
	DesiredTeamSize int       `json:"desired_team_size"`
	Seed            int64     `json:"seed"`
	LastError       string    `json:"last_error,omitempty"`
	Events          []Event   `json:"events,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StageCompleted reports whether the run has finished the given stage.
func (r Run) StageCompleted(stage int) bool {
	switch r.Status {
	case RunComplete:
		return stage <= 3
	case RunStage2Complete:
		return stage <= 2
	case RunStage1Complete:
		return stage <= 1
	default:
		return false
	}
}

// Review is a qualitative report attached to a team for observability.
type Review struct {
	TeamID       string   `json:"team_id"`
	Reviewer     string   `json:"reviewer"`
	Balanced     bool     `json:"balanced"`
	BalanceScore float64  `json:"balance_score"`
	MissingRoles []string `json:"missing_roles,omitempty"`
	Notes        []string `json:"notes,omitempty"`
	Degraded     bool     `json:"degraded,omitempty"`
}

package domain

// TeamMetrics summarises a formed team for reporting.
type TeamMetrics struct {
	RoleCoverage        float64  `json:"role_coverage"`
	SkillCoverage       float64  `json:"skill_coverage"`
	DiversityScore      float64  `json:"diversity_score"`
	ConfidenceScore     float64  `json:"confidence_score"`
	RoleBalanced        bool     `json:"role_balanced"`
	InternalCost        float64  `json:"internal_cost"`
	AvgPairwiseCost     float64  `json:"avg_pairwise_cost"`
	AvailabilityStdDev  float64  `json:"availability_std_dev"`
	DistinctRoles       int      `json:"distinct_roles"`
	DistinctSkills      int      `json:"distinct_skills"`
	MissingAllowedRoles []string `json:"missing_allowed_roles,omitempty"`
}

// AssignmentStats summarises team to task assignment quality.
type AssignmentStats struct {
	Mean       float64                `json:"mean_cost"`
	Worst      float64                `json:"worst_cost"`
	Best       float64                `json:"best_cost"`
	Total      float64                `json:"total_cost"`
	Efficiency float64                `json:"efficiency"`
	PerPass    map[AssignmentPass]int `json:"per_pass"`
}

// Stage1Result is the persisted output of individual to slot assignment.
type Stage1Result struct {
	RunID           string           `json:"run_id"`
	SlotAssignments []SlotAssignment `json:"slot_assignments"`
	Clusters        [][]string       `json:"clusters"`
	Unassigned      []string         `json:"unassigned,omitempty"`
	TotalCost       float64          `json:"total_cost"`
}

// Stage2Result is the persisted output of team formation.
type Stage2Result struct {
	RunID   string                 `json:"run_id"`
	Teams   []Team                 `json:"teams"`
	Dropped []string               `json:"dropped,omitempty"`
	Metrics map[string]TeamMetrics `json:"metrics,omitempty"`
	Reviews []Review               `json:"reviews,omitempty"`
}

// Stage3Result is the persisted output of team to task assignment.
type Stage3Result struct {
	RunID       string           `json:"run_id"`
	Assignments []TeamAssignment `json:"assignments"`
	Stats       AssignmentStats  `json:"stats"`
}

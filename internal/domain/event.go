package domain

// EventKind classifies a degraded or noteworthy pipeline outcome.
type EventKind string

const (
	EventForcedUndersized     EventKind = "forced_undersized"
	EventForcedOversized      EventKind = "forced_oversized"
	EventPromotedLeader       EventKind = "promoted_leader"
	EventCoverageShortfall    EventKind = "role_coverage_shortfall"
	EventMultiAssigned        EventKind = "multi_assigned"
	EventFallbackAssigned     EventKind = "fallback_assigned"
	EventDropped              EventKind = "dropped"
	EventUnassignedIndividual EventKind = "unassigned_individual"
	EventReviewDegraded       EventKind = "review_degraded"
)

// Event flags a degraded outcome for observability.
type Event struct {
	Kind    EventKind `json:"kind"`
	Stage   int       `json:"stage"`
	TeamID  string    `json:"team_id,omitempty"`
	Subject string    `json:"subject,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

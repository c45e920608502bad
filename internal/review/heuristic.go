package review

import (
	"context"
	"fmt"
	"math"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/matching/teamvector"
)

const (
	lowConfidence     = 0.4
	highAvailSpread   = 10.0
	highInternalCost  = 0.6
	heuristicReviewer = "heuristic"
)

// Heuristic reviews teams from their computed metrics alone.
type Heuristic struct{}

// Name implements Reviewer.
func (Heuristic) Name() string { return heuristicReviewer }

// Review implements Reviewer.
func (Heuristic) Review(ctx context.Context, s Snapshot) (domain.Review, error) {
	if err := ctx.Err(); err != nil {
		return domain.Review{}, err
	}
	m := teamvector.Metrics(s.Members, s.AllowedRoles)
	rep := domain.Review{
		TeamID:       s.Team.ID,
		Reviewer:     heuristicReviewer,
		Balanced:     m.RoleBalanced,
		BalanceScore: round(0.5*m.DiversityScore + 0.5*(1-m.AvgPairwiseCost)),
		MissingRoles: m.MissingAllowedRoles,
	}
	if !m.RoleBalanced {
		rep.Notes = append(rep.Notes, "one role makes up most of the team")
	}
	if !hasLeader(s) {
		rep.Notes = append(rep.Notes, "no leadership-flagged member")
	} else if len(s.Team.PromotedLeaders) > 0 {
		rep.Notes = append(rep.Notes, fmt.Sprintf("leader promoted: %s", s.Team.PromotedLeaders[0]))
	}
	if m.ConfidenceScore < lowConfidence {
		rep.Notes = append(rep.Notes, "low confidence in self-rated skills")
	}
	if m.AvailabilityStdDev > highAvailSpread {
		rep.Notes = append(rep.Notes, fmt.Sprintf("availability varies widely (std dev %.1fh)", m.AvailabilityStdDev))
	}
	if m.AvgPairwiseCost > highInternalCost {
		rep.Notes = append(rep.Notes, "members are poorly matched with each other")
	}
	return rep, nil
}

func hasLeader(s Snapshot) bool {
	for _, ind := range s.Members {
		if ind.Leadership {
			return true
		}
	}
	return len(s.Team.PromotedLeaders) > 0
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}

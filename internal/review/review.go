// Package review produces qualitative team reports. Reports are attached to
// runs for operators and never change an assignment.
package review

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

// DefaultConcurrency bounds parallel reviews when the caller passes zero.
const DefaultConcurrency = 4

// Snapshot is an isolated copy of one team handed to a reviewer.
type Snapshot struct {
	RunID        string              `json:"run_id"`
	Team         domain.Team         `json:"team"`
	Members      []domain.Individual `json:"members"`
	AllowedRoles []string            `json:"allowed_roles,omitempty"`
}

// Reviewer rates a single team.
type Reviewer interface {
	Name() string
	Review(ctx context.Context, s Snapshot) (domain.Review, error)
}

// DefaultReport is the placeholder used when a reviewer fails.
func DefaultReport(teamID, reviewer string) domain.Review {
	return domain.Review{
		TeamID:   teamID,
		Reviewer: reviewer,
		Balanced: true,
		Notes:    []string{"review unavailable"},
		Degraded: true,
	}
}

// NewSnapshot copies team and its members out of pool.
func NewSnapshot(runID string, team domain.Team, pool map[string]domain.Individual, allowedRoles []string) Snapshot {
	s := Snapshot{
		RunID:        runID,
		Team:         team.Clone(),
		AllowedRoles: append([]string(nil), allowedRoles...),
	}
	for _, id := range team.Members {
		if ind, ok := pool[id]; ok {
			s.Members = append(s.Members, ind.Clone())
		}
	}
	return s
}

// ReviewTeams reviews every snapshot with at most limit in flight. A failing
// or panicking review yields DefaultReport and a review_degraded event; the
// others still complete. Reports come back in snapshot order.
func ReviewTeams(ctx context.Context, r Reviewer, snapshots []Snapshot, limit int, logger *slog.Logger) ([]domain.Review, []domain.Event) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	reports := make([]domain.Review, len(snapshots))
	failures := make([]error, len(snapshots))

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range snapshots {
		snap := snapshots[i]
		g.Go(func() error {
			rep, err := safeReview(ctx, r, snap)
			if err != nil {
				failures[i] = err
				reports[i] = DefaultReport(snap.Team.ID, r.Name())
				return nil
			}
			if rep.TeamID == "" {
				rep.TeamID = snap.Team.ID
			}
			if rep.Reviewer == "" {
				rep.Reviewer = r.Name()
			}
			reports[i] = rep
			return nil
		})
	}
	_ = g.Wait()

	var events []domain.Event
	for i, err := range failures {
		if err == nil {
			continue
		}
		teamID := snapshots[i].Team.ID
		logger.Warn("team review degraded", "team_id", teamID, "reviewer", r.Name(), "error", err)
		events = append(events, domain.Event{
			Kind:   domain.EventReviewDegraded,
			Stage:  2,
			TeamID: teamID,
			Detail: err.Error(),
		})
	}
	return reports, events
}

func safeReview(ctx context.Context, r Reviewer, s Snapshot) (rep domain.Review, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reviewer panicked: %v", p)
		}
	}()
	return r.Review(ctx, s)
}

package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/embedding"
	"github.com/qbeka/matchmaking-nat/internal/matching/capacity"
	"github.com/qbeka/matchmaking-nat/internal/matching/formation"
	"github.com/qbeka/matchmaking-nat/internal/matching/teamtask"
	"github.com/qbeka/matchmaking-nat/internal/matching/teamvector"
	"github.com/qbeka/matchmaking-nat/internal/progress"
	"github.com/qbeka/matchmaking-nat/internal/repository"
	"github.com/qbeka/matchmaking-nat/internal/review"
)

// RunStage1 places the run's individuals into task slots.
func (s *Service) RunStage1(ctx context.Context, runID string) (*domain.Stage1Result, error) {
	var result *domain.Stage1Result
	err := s.runStage(ctx, runID, 1, func(ctx context.Context, run *domain.Run) (stageOutcome, error) {
		individuals, err := s.individuals(ctx, run)
		if err != nil {
			return stageOutcome{}, err
		}
		tasks, err := s.tasks(ctx, run)
		if err != nil {
			return stageOutcome{}, err
		}

		slots := s.cfg.DefaultCapacity
		if slots <= 0 {
			slots = run.DesiredTeamSize
		}
		res, err := capacity.Assign(individuals, tasks, s.cfg.Stage1Weights, slots)
		if err != nil {
			return stageOutcome{}, fmt.Errorf("slot assignment: %w", err)
		}
		out := domain.Stage1Result{
			RunID:           run.ID,
			SlotAssignments: res.SlotAssignments,
			Clusters:        res.Clusters,
			Unassigned:      res.Unassigned,
			TotalCost:       res.TotalCost,
		}
		if err := s.store.SaveStage1(ctx, out); err != nil {
			return stageOutcome{}, fmt.Errorf("save stage 1: %w", err)
		}
		result = &out
		return stageOutcome{
			events: res.Events,
			data: map[string]any{
				"assigned":   len(res.SlotAssignments),
				"unassigned": len(res.Unassigned),
				"total_cost": res.TotalCost,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RunStage2 forms teams from the stage one clusters and reviews them.
func (s *Service) RunStage2(ctx context.Context, runID string) (*domain.Stage2Result, error) {
	var result *domain.Stage2Result
	err := s.runStage(ctx, runID, 2, func(ctx context.Context, run *domain.Run) (stageOutcome, error) {
		prev, err := s.store.GetStage1(ctx, run.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return stageOutcome{}, &StageError{Stage: 2}
		}
		if err != nil {
			return stageOutcome{}, fmt.Errorf("load stage 1: %w", err)
		}
		individuals, err := s.individuals(ctx, run)
		if err != nil {
			return stageOutcome{}, err
		}

		pipeline := formation.New(s.formationConfig(run), s.logger)
		part, err := pipeline.Run(individuals, clustersOf(prev))
		if err != nil {
			return stageOutcome{}, fmt.Errorf("team formation: %w", err)
		}

		pool := domain.IndexIndividuals(individuals)
		allowed := pipeline.Config().AllowedRoles
		metrics := make(map[string]domain.TeamMetrics, len(part.Teams))
		snapshots := make([]review.Snapshot, len(part.Teams))
		for i, team := range part.Teams {
			snapshots[i] = review.NewSnapshot(run.ID, team, pool, allowed)
			metrics[team.ID] = teamvector.Metrics(snapshots[i].Members, allowed)
		}
		reviews, reviewEvents := review.ReviewTeams(ctx, s.reviewer, snapshots, s.cfg.ReviewConcurrency, s.logger)

		out := domain.Stage2Result{
			RunID:   run.ID,
			Teams:   part.Teams,
			Dropped: part.Dropped,
			Metrics: metrics,
			Reviews: reviews,
		}
		if err := s.store.SaveStage2(ctx, out); err != nil {
			return stageOutcome{}, fmt.Errorf("save stage 2: %w", err)
		}
		result = &out
		events := append(append([]domain.Event(nil), part.Events...), reviewEvents...)
		return stageOutcome{
			events: events,
			data: map[string]any{
				"teams":   len(part.Teams),
				"dropped": len(part.Dropped),
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RunStage3 assigns the formed teams to tasks.
func (s *Service) RunStage3(ctx context.Context, runID string) (*domain.Stage3Result, error) {
	var result *domain.Stage3Result
	err := s.runStage(ctx, runID, 3, func(ctx context.Context, run *domain.Run) (stageOutcome, error) {
		prev, err := s.store.GetStage2(ctx, run.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return stageOutcome{}, &StageError{Stage: 3}
		}
		if err != nil {
			return stageOutcome{}, fmt.Errorf("load stage 2: %w", err)
		}
		if len(prev.Teams) == 0 {
			return stageOutcome{}, fmt.Errorf("%w: %w", &StageError{Stage: 3}, errNoTeams)
		}
		individuals, err := s.individuals(ctx, run)
		if err != nil {
			return stageOutcome{}, err
		}
		tasks, err := s.tasks(ctx, run)
		if err != nil {
			return stageOutcome{}, err
		}

		pool := domain.IndexIndividuals(individuals)
		inputs := make([]teamtask.TeamInput, len(prev.Teams))
		for i, team := range prev.Teams {
			members := make([]domain.Individual, 0, len(team.Members))
			for _, id := range team.Members {
				if ind, ok := pool[id]; ok {
					members = append(members, ind)
				}
			}
			inputs[i] = teamtask.TeamInput{Team: team, Vector: teamvector.Aggregate(team.ID, members)}
		}

		assigner := teamtask.New(teamtask.Config{Weights: s.cfg.Stage3Weights, Constraint: s.cfg.Constraint}, s.logger)
		res, err := assigner.Assign(inputs, tasks)
		if err != nil {
			return stageOutcome{}, fmt.Errorf("team assignment: %w", err)
		}
		out := domain.Stage3Result{RunID: run.ID, Assignments: res.Assignments, Stats: res.Stats}
		if err := s.store.SaveStage3(ctx, out); err != nil {
			return stageOutcome{}, fmt.Errorf("save stage 3: %w", err)
		}
		result = &out
		s.publish(ctx, progress.Event{
			RunID: run.ID,
			Stage: 3,
			Kind:  progress.KindAssignmentComplete,
			Data: map[string]any{
				"assignments": len(res.Assignments),
				"mean_cost":   res.Stats.Mean,
				"efficiency":  res.Stats.Efficiency,
			},
		})
		return stageOutcome{
			events: res.Events,
			data: map[string]any{
				"assignments": len(res.Assignments),
				"total_cost":  res.Stats.Total,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) formationConfig(run *domain.Run) formation.Config {
	cfg := s.cfg.Formation
	cfg.AllowedRoles = append([]string(nil), cfg.AllowedRoles...)
	if run.DesiredTeamSize > 0 {
		cfg.DesiredSize = run.DesiredTeamSize
	}
	cfg.Seed = run.Seed
	return cfg
}

// clustersOf returns the stage one groups, or nil when none holds anyone so
// formation clusters the whole pool.
func clustersOf(prev *domain.Stage1Result) [][]string {
	for _, c := range prev.Clusters {
		if len(c) > 0 {
			return prev.Clusters
		}
	}
	return nil
}

// individuals loads the run's pool, fills missing embeddings, and persists
// the filled vectors so later stages see the same inputs.
func (s *Service) individuals(ctx context.Context, run *domain.Run) ([]domain.Individual, error) {
	if len(run.IndividualIDs) == 0 {
		return nil, nil
	}
	found, err := s.store.ListIndividuals(ctx, run.IndividualIDs)
	if err != nil {
		return nil, fmt.Errorf("load individuals: %w", err)
	}
	if len(found) != len(run.IndividualIDs) {
		return nil, fmt.Errorf("load individuals: %w: have %d of %d", repository.ErrNotFound, len(found), len(run.IndividualIDs))
	}
	enriched, st := embedding.Enrich(ctx, s.embedder, found, s.logger)
	if st.Filled > 0 {
		if err := s.store.UpsertIndividuals(ctx, enriched); err != nil {
			return nil, fmt.Errorf("store embeddings: %w", err)
		}
	}
	s.logger.Debug("individual embeddings", "run_id", run.ID, "filled", st.Filled, "skipped", st.Skipped, "failed", st.Failed)
	return enriched, nil
}

func (s *Service) tasks(ctx context.Context, run *domain.Run) ([]domain.Task, error) {
	if len(run.TaskIDs) == 0 {
		return nil, nil
	}
	found, err := s.store.ListTasks(ctx, run.TaskIDs)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	if len(found) != len(run.TaskIDs) {
		return nil, fmt.Errorf("load tasks: %w: have %d of %d", repository.ErrNotFound, len(found), len(run.TaskIDs))
	}
	enriched, st := embedding.EnrichTasks(ctx, s.embedder, found, s.logger)
	if st.Filled > 0 {
		if err := s.store.UpsertTasks(ctx, enriched); err != nil {
			return nil, fmt.Errorf("store embeddings: %w", err)
		}
	}
	s.logger.Debug("task embeddings", "run_id", run.ID, "filled", st.Filled, "skipped", st.Skipped, "failed", st.Failed)
	return enriched, nil
}

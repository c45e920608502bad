package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/repository"
)

func TestIndividualsRoundTripIsolated(t *testing.T) {
	ctx := context.Background()
	s := New()
	in := []domain.Individual{{ID: "b", Skills: map[string]float64{"Go": 3}}, {ID: "a"}}
	if err := s.UpsertIndividuals(ctx, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in[0].Skills["Go"] = 0

	got, err := s.ListIndividuals(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("expected a, b ordered by id, got %+v", got)
	}
	if got[1].Skills["Go"] != 3 {
		t.Fatalf("expected stored copy to be unaffected by caller mutation")
	}

	got, _ = s.ListIndividuals(ctx, []string{"b", "missing"})
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected only b, got %+v", got)
	}
}

func TestRunsAndStages(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.GetRun(ctx, "r1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveStage1(ctx, domain.Stage1Result{RunID: "r1"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound saving stage for unknown run, got %v", err)
	}

	run := &domain.Run{ID: "r1", Status: domain.RunPending}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CreateRun(ctx, run); err == nil {
		t.Fatalf("expected duplicate run error")
	}
	run.Status = domain.RunStage1Complete
	if err := s.UpdateRun(ctx, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := s.GetRun(ctx, "r1")
	if got.Status != domain.RunStage1Complete {
		t.Fatalf("expected updated status, got %s", got.Status)
	}

	_ = s.SaveStage1(ctx, domain.Stage1Result{RunID: "r1", Clusters: [][]string{{"a"}}})
	_ = s.SaveStage2(ctx, domain.Stage2Result{RunID: "r1", Teams: []domain.Team{{ID: "team-001"}}})
	if out, err := s.GetStage2(ctx, "r1"); err != nil || len(out.Teams) != 1 {
		t.Fatalf("unexpected stage 2 output %+v, %v", out, err)
	}
	if err := s.ClearStagesFrom(ctx, "r1", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.GetStage2(ctx, "r1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected stage 2 cleared, got %v", err)
	}
	if _, err := s.GetStage1(ctx, "r1"); err != nil {
		t.Fatalf("expected stage 1 kept, got %v", err)
	}
}

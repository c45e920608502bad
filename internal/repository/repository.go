package repository

import (
	"context"

	"github.com/qbeka/matchmaking-nat/internal/domain"
)

// IndividualRepository persists the matching pool.
type IndividualRepository interface {
	UpsertIndividuals(ctx context.Context, individuals []domain.Individual) error
	// ListIndividuals returns the requested individuals ordered by ID, or
	// every stored individual when ids is empty. Unknown IDs are skipped.
	ListIndividuals(ctx context.Context, ids []string) ([]domain.Individual, error)
}

// TaskRepository persists tasks.
type TaskRepository interface {
	UpsertTasks(ctx context.Context, tasks []domain.Task) error
	ListTasks(ctx context.Context, ids []string) ([]domain.Task, error)
}

// RunRepository stores runs and their per-stage outputs.
type RunRepository interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	UpdateRun(ctx context.Context, run *domain.Run) error

	SaveStage1(ctx context.Context, out domain.Stage1Result) error
	GetStage1(ctx context.Context, runID string) (*domain.Stage1Result, error)
	SaveStage2(ctx context.Context, out domain.Stage2Result) error
	GetStage2(ctx context.Context, runID string) (*domain.Stage2Result, error)
	SaveStage3(ctx context.Context, out domain.Stage3Result) error
	GetStage3(ctx context.Context, runID string) (*domain.Stage3Result, error)
	// ClearStagesFrom drops outputs of stage and every later stage.
	ClearStagesFrom(ctx context.Context, runID string, stage int) error
}

// Store groups every repository the match service needs.
type Store interface {
	IndividualRepository
	TaskRepository
	RunRepository
}

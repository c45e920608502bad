package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.IndividualRepository = (*Repository)(nil)
	_ repository.TaskRepository       = (*Repository)(nil)
	_ repository.RunRepository        = (*Repository)(nil)
	_ repository.Store                = (*Repository)(nil)
)

// Ping checks connectivity for health reporting.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// UpsertIndividuals stores individuals in one batch.
func (r *Repository) UpsertIndividuals(ctx context.Context, individuals []domain.Individual) error {
	const query = `INSERT INTO individuals (id, doc, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`
	batch := &pgx.Batch{}
	for _, ind := range individuals {
		doc, err := json.Marshal(ind)
		if err != nil {
			return fmt.Errorf("encode individual %s: %w", ind.ID, err)
		}
		batch.Queue(query, ind.ID, doc)
	}
	return r.sendBatch(ctx, batch)
}

// ListIndividuals returns individuals ordered by ID.
func (r *Repository) ListIndividuals(ctx context.Context, ids []string) ([]domain.Individual, error) {
	rows, err := r.listDocs(ctx, "individuals", ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Individual, 0, len(rows))
	for _, doc := range rows {
		var ind domain.Individual
		if err := json.Unmarshal(doc, &ind); err != nil {
			return nil, fmt.Errorf("decode individual: %w", err)
		}
		out = append(out, ind)
	}
	return out, nil
}

// UpsertTasks stores tasks in one batch.
func (r *Repository) UpsertTasks(ctx context.Context, tasks []domain.Task) error {
	const query = `INSERT INTO tasks (id, doc, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`
	batch := &pgx.Batch{}
	for _, t := range tasks {
		doc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode task %s: %w", t.ID, err)
		}
		batch.Queue(query, t.ID, doc)
	}
	return r.sendBatch(ctx, batch)
}

// ListTasks returns tasks ordered by ID.
func (r *Repository) ListTasks(ctx context.Context, ids []string) ([]domain.Task, error) {
	rows, err := r.listDocs(ctx, "tasks", ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(rows))
	for _, doc := range rows {
		var t domain.Task
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// CreateRun inserts a run.
func (r *Repository) CreateRun(ctx context.Context, run *domain.Run) error {
	const query = `INSERT INTO runs (id, status, individual_ids, task_ids, desired_team_size, seed, last_error, events, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	events, err := json.Marshal(run.Events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	_, err = r.pool.Exec(ctx, query, run.ID, run.Status, run.IndividualIDs, run.TaskIDs, run.DesiredTeamSize, run.Seed, run.LastError, events, run.CreatedAt, run.UpdatedAt)
	return err
}

// GetRun fetches a run by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	const query = `SELECT id, status, individual_ids, task_ids, desired_team_size, seed, last_error, events, created_at, updated_at
		FROM runs WHERE id = $1`
	var run domain.Run
	var events []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&run.ID, &run.Status, &run.IndividualIDs, &run.TaskIDs, &run.DesiredTeamSize, &run.Seed, &run.LastError, &events, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &run.Events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
	}
	return &run, nil
}

// UpdateRun persists status, error and events.
func (r *Repository) UpdateRun(ctx context.Context, run *domain.Run) error {
	const query = `UPDATE runs SET status = $2, last_error = $3, events = $4, updated_at = $5 WHERE id = $1`
	events, err := json.Marshal(run.Events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	tag, err := r.pool.Exec(ctx, query, run.ID, run.Status, run.LastError, events, run.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SaveStage1 stores the stage one output, replacing any previous one.
func (r *Repository) SaveStage1(ctx context.Context, out domain.Stage1Result) error {
	return r.saveStage(ctx, out.RunID, 1, out)
}

// GetStage1 loads the stage one output.
func (r *Repository) GetStage1(ctx context.Context, runID string) (*domain.Stage1Result, error) {
	var out domain.Stage1Result
	if err := r.getStage(ctx, runID, 1, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveStage2 stores the stage two output.
func (r *Repository) SaveStage2(ctx context.Context, out domain.Stage2Result) error {
	return r.saveStage(ctx, out.RunID, 2, out)
}

// GetStage2 loads the stage two output.
func (r *Repository) GetStage2(ctx context.Context, runID string) (*domain.Stage2Result, error) {
	var out domain.Stage2Result
	if err := r.getStage(ctx, runID, 2, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveStage3 stores the stage three output.
func (r *Repository) SaveStage3(ctx context.Context, out domain.Stage3Result) error {
	return r.saveStage(ctx, out.RunID, 3, out)
}

// GetStage3 loads the stage three output.
func (r *Repository) GetStage3(ctx context.Context, runID string) (*domain.Stage3Result, error) {
	var out domain.Stage3Result
	if err := r.getStage(ctx, runID, 3, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearStagesFrom removes outputs for stage and later.
func (r *Repository) ClearStagesFrom(ctx context.Context, runID string, stage int) error {
	const query = `DELETE FROM run_stage_outputs WHERE run_id = $1 AND stage >= $2`
	_, err := r.pool.Exec(ctx, query, runID, stage)
	return err
}

func (r *Repository) saveStage(ctx context.Context, runID string, stage int, out any) error {
	const query = `INSERT INTO run_stage_outputs (run_id, stage, doc, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (run_id, stage) DO UPDATE SET doc = EXCLUDED.doc, created_at = NOW()`
	doc, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode stage %d output: %w", stage, err)
	}
	_, err = r.pool.Exec(ctx, query, runID, stage, doc)
	return err
}

func (r *Repository) getStage(ctx context.Context, runID string, stage int, dst any) error {
	const query = `SELECT doc FROM run_stage_outputs WHERE run_id = $1 AND stage = $2`
	var doc []byte
	if err := r.pool.QueryRow(ctx, query, runID, stage).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(doc, dst); err != nil {
		return fmt.Errorf("decode stage %d output: %w", stage, err)
	}
	return nil
}

// listDocs reads the doc column of table. table is always a package constant.
func (r *Repository) listDocs(ctx context.Context, table string, ids []string) ([][]byte, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(ids) == 0 {
		rows, err = r.pool.Query(ctx, `SELECT doc FROM `+table+` ORDER BY id`)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT doc FROM `+table+` WHERE id = ANY($1) ORDER BY id`, ids)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (r *Repository) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	br := r.pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	return br.Close()
}

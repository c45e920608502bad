// Package match orchestrates the three matching stages over the entity
// store: slot assignment, team formation, and team to task assignment.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/embedding"
	"github.com/qbeka/matchmaking-nat/internal/matching/cost"
	"github.com/qbeka/matchmaking-nat/internal/matching/formation"
	"github.com/qbeka/matchmaking-nat/internal/matching/teamtask"
	"github.com/qbeka/matchmaking-nat/internal/progress"
	"github.com/qbeka/matchmaking-nat/internal/repository"
	"github.com/qbeka/matchmaking-nat/internal/review"
	"github.com/qbeka/matchmaking-nat/internal/validate"
)

// Config tunes the service. A zero DefaultCapacity gives tasks without a
// Capacity one slot per member of the run's desired team.
type Config struct {
	// Formation carries the team formation defaults. DesiredSize and Seed
	// are overridden per run.
	Formation         formation.Config
	Stage1Weights     cost.Weights
	Stage3Weights     cost.Weights
	DefaultCapacity   int
	ReviewConcurrency int
	Catalog           validate.Catalog
	Constraint        teamtask.Constraint
}

// DefaultConfig returns the standard tuning with the default catalog.
func DefaultConfig() Config {
	cat := validate.DefaultCatalog()
	fc := formation.DefaultConfig()
	fc.AllowedRoles = append([]string(nil), cat.Roles...)
	return Config{
		Formation:         fc,
		Stage1Weights:     cost.DefaultWeights,
		Stage3Weights:     cost.TeamWeights,
		ReviewConcurrency: review.DefaultConcurrency,
		Catalog:           cat,
	}
}

// CreateRunInput describes a new run. Empty ID lists select every stored
// entity. Zero DesiredTeamSize and Seed take the configured defaults.
type CreateRunInput struct {
	IndividualIDs   []string `json:"individual_ids,omitempty"`
	TaskIDs         []string `json:"task_ids,omitempty"`
	DesiredTeamSize int      `json:"desired_team_size,omitempty"`
	Seed            int64    `json:"seed,omitempty"`
}

// RunView is a run with whatever stage outputs it has produced.
type RunView struct {
	Run    *domain.Run          `json:"run"`
	Stage1 *domain.Stage1Result `json:"stage1,omitempty"`
	Stage2 *domain.Stage2Result `json:"stage2,omitempty"`
	Stage3 *domain.Stage3Result `json:"stage3,omitempty"`
}

// Service runs the matching pipeline.
type Service struct {
	store    repository.Store
	cfg      Config
	logger   *slog.Logger
	embedder embedding.Provider
	reviewer review.Reviewer
	progress progress.Sink
	metrics  *Metrics
	now      func() time.Time
	newID    func() string

	mu    sync.Mutex
	locks map[string]*runLock
}

// runLock serialises work on one run; refs counts holders and waiters so
// the entry can be dropped when the last one leaves.
type runLock struct {
	mu   sync.Mutex
	refs int
}

// Option customises a Service.
type Option func(*Service)

// WithEmbedder sets the embedding provider used to fill missing vectors.
func WithEmbedder(p embedding.Provider) Option {
	return func(s *Service) { s.embedder = p }
}

// WithReviewer sets the team reviewer run after formation.
func WithReviewer(r review.Reviewer) Option {
	return func(s *Service) { s.reviewer = r }
}

// WithProgress sets the progress sink.
func WithProgress(p progress.Sink) Option {
	return func(s *Service) { s.progress = p }
}

// WithMetrics sets pipeline metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New returns a match service.
func New(store repository.Store, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		embedder: embedding.Noop{},
		reviewer: review.Heuristic{},
		progress: progress.Noop{},
		now:      time.Now,
		newID:    uuid.NewString,
		locks:    map[string]*runLock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// UpsertIndividuals validates and stores individuals.
func (s *Service) UpsertIndividuals(ctx context.Context, individuals []domain.Individual) error {
	if err := validate.Individuals(s.cfg.Catalog, individuals); err != nil {
		return err
	}
	if err := s.store.UpsertIndividuals(ctx, individuals); err != nil {
		return fmt.Errorf("store individuals: %w", err)
	}
	s.logger.Info("individuals upserted", "count", len(individuals))
	return nil
}

// UpsertTasks validates and stores tasks.
func (s *Service) UpsertTasks(ctx context.Context, tasks []domain.Task) error {
	if err := validate.Tasks(s.cfg.Catalog, tasks); err != nil {
		return err
	}
	if err := s.store.UpsertTasks(ctx, tasks); err != nil {
		return fmt.Errorf("store tasks: %w", err)
	}
	s.logger.Info("tasks upserted", "count", len(tasks))
	return nil
}

// CreateRun registers a pending run over the selected individuals and tasks.
func (s *Service) CreateRun(ctx context.Context, input CreateRunInput) (*domain.Run, error) {
	size := input.DesiredTeamSize
	if size == 0 {
		size = s.cfg.Formation.DesiredSize
	}
	if size == 0 {
		size = formation.DefaultDesiredSize
	}
	minSize := s.cfg.Formation.MinViableSize
	if minSize <= 0 {
		minSize = formation.DefaultMinViableSize
	}
	var violations []validate.Violation
	if size < minSize {
		violations = append(violations, validate.Violation{
			Field:   "desired_team_size",
			Type:    "range",
			Message: fmt.Sprintf("must be at least %d", minSize),
		})
	}

	individualIDs, bad, err := s.resolveIndividuals(ctx, input.IndividualIDs)
	if err != nil {
		return nil, err
	}
	violations = append(violations, bad...)
	taskIDs, bad, err := s.resolveTasks(ctx, input.TaskIDs)
	if err != nil {
		return nil, err
	}
	violations = append(violations, bad...)
	if len(violations) > 0 {
		return nil, &validate.Error{Violations: violations}
	}

	seed := input.Seed
	if seed == 0 {
		seed = s.cfg.Formation.Seed
	}
	now := s.now().UTC()
	run := &domain.Run{
		ID:              s.newID(),
		Status:          domain.RunPending,
		IndividualIDs:   individualIDs,
		TaskIDs:         taskIDs,
		DesiredTeamSize: size,
		Seed:            seed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	s.metrics.countRun(string(domain.RunPending))
	s.logger.Info("run created", "run_id", run.ID, "individuals", len(individualIDs), "tasks", len(taskIDs), "desired_team_size", size, "seed", seed)
	return run, nil
}

func (s *Service) resolveIndividuals(ctx context.Context, ids []string) ([]string, []validate.Violation, error) {
	found, err := s.store.ListIndividuals(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("list individuals: %w", err)
	}
	have := make([]string, len(found))
	for i, ind := range found {
		have[i] = ind.ID
	}
	sel, bad := resolveIDs("individual_ids", ids, have)
	return sel, bad, nil
}

func (s *Service) resolveTasks(ctx context.Context, ids []string) ([]string, []validate.Violation, error) {
	found, err := s.store.ListTasks(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("list tasks: %w", err)
	}
	have := make([]string, len(found))
	for i, t := range found {
		have[i] = t.ID
	}
	sel, bad := resolveIDs("task_ids", ids, have)
	return sel, bad, nil
}

// resolveIDs checks requested against the stored IDs and returns the
// selection sorted.
func resolveIDs(field string, requested, stored []string) ([]string, []validate.Violation) {
	if len(requested) == 0 {
		out := append([]string(nil), stored...)
		sort.Strings(out)
		return out, nil
	}
	known := make(map[string]bool, len(stored))
	for _, id := range stored {
		known[id] = true
	}
	var violations []validate.Violation
	seen := make(map[string]bool, len(requested))
	out := make([]string, 0, len(requested))
	for i, id := range requested {
		path := fmt.Sprintf("%s[%d]", field, i)
		switch {
		case strings.TrimSpace(id) == "":
			violations = append(violations, validate.Violation{Field: path, Type: "required", Message: "id is required"})
		case seen[id]:
			violations = append(violations, validate.Violation{Field: path, Type: "duplicate", Message: fmt.Sprintf("id %q listed twice", id)})
		case !known[id]:
			violations = append(violations, validate.Violation{Field: path, Type: "unknown", Message: fmt.Sprintf("id %q not found", id)})
		default:
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, violations
}

// GetRun returns the run and every stage output it has.
func (s *Service) GetRun(ctx context.Context, runID string) (*RunView, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, errMissingRunID
	}
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	view := &RunView{Run: run}
	if view.Stage1, err = optional(s.store.GetStage1(ctx, runID)); err != nil {
		return nil, err
	}
	if view.Stage2, err = optional(s.store.GetStage2(ctx, runID)); err != nil {
		return nil, err
	}
	if view.Stage3, err = optional(s.store.GetStage3(ctx, runID)); err != nil {
		return nil, err
	}
	return view, nil
}

func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

// RunStage runs stage n (1..3) of a run.
func (s *Service) RunStage(ctx context.Context, runID string, n int) (*RunView, error) {
	var err error
	switch n {
	case 1:
		_, err = s.RunStage1(ctx, runID)
	case 2:
		_, err = s.RunStage2(ctx, runID)
	case 3:
		_, err = s.RunStage3(ctx, runID)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStage, n)
	}
	if err != nil {
		return nil, err
	}
	return s.GetRun(ctx, runID)
}

// Execute runs every stage in order and returns the final view.
func (s *Service) Execute(ctx context.Context, runID string) (*RunView, error) {
	if _, err := s.RunStage1(ctx, runID); err != nil {
		return nil, err
	}
	if _, err := s.RunStage2(ctx, runID); err != nil {
		return nil, err
	}
	if _, err := s.RunStage3(ctx, runID); err != nil {
		return nil, err
	}
	return s.GetRun(ctx, runID)
}

// stageOutcome is what a stage body reports back to runStage.
type stageOutcome struct {
	events []domain.Event
	data   map[string]any
}

// runStage holds the run lock, checks the prerequisite, and records the
// outcome. A failed stage keeps the run status and the outputs of earlier
// stages; a successful one clears later outputs.
func (s *Service) runStage(ctx context.Context, runID string, stage int, body func(ctx context.Context, run *domain.Run) (stageOutcome, error)) error {
	if strings.TrimSpace(runID) == "" {
		return errMissingRunID
	}
	unlock := s.lock(runID)
	defer unlock()

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if stage > 1 && !run.StageCompleted(stage-1) {
		return &StageError{Stage: stage}
	}

	start := s.now()
	s.publish(ctx, progress.Event{RunID: runID, Stage: stage, Kind: progress.KindStageStarted})
	s.logger.Info("stage started", "run_id", runID, "stage", stage)

	out, err := body(ctx, run)
	elapsed := s.now().Sub(start)
	if err != nil {
		s.metrics.observeStage(stage, "failed", elapsed)
		s.logger.Error("stage failed", "run_id", runID, "stage", stage, "error", err)
		s.publish(ctx, progress.Event{RunID: runID, Stage: stage, Kind: progress.KindStageFailed, Message: err.Error()})
		run.LastError = fmt.Sprintf("stage %d: %v", stage, err)
		run.UpdatedAt = s.now().UTC()
		if uerr := s.store.UpdateRun(ctx, run); uerr != nil {
			s.logger.Error("record stage failure", "run_id", runID, "stage", stage, "error", uerr)
		}
		return err
	}

	if stage < 3 {
		if err := s.store.ClearStagesFrom(ctx, runID, stage+1); err != nil {
			return fmt.Errorf("clear later stages: %w", err)
		}
	}
	kept := make([]domain.Event, 0, len(run.Events)+len(out.events))
	for _, ev := range run.Events {
		if ev.Stage < stage {
			kept = append(kept, ev)
		}
	}
	run.Events = append(kept, out.events...)
	run.Status = statusAfter(stage)
	run.LastError = ""
	run.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	s.metrics.observeStage(stage, "ok", elapsed)
	s.metrics.countEvents(out.events)
	s.metrics.countRun(string(run.Status))
	for _, ev := range out.events {
		s.publish(ctx, progress.Event{
			RunID:   runID,
			Stage:   stage,
			Kind:    progress.KindDegraded,
			Message: string(ev.Kind),
			Data:    map[string]any{"team_id": ev.TeamID, "subject": ev.Subject, "detail": ev.Detail},
		})
	}
	s.publish(ctx, progress.Event{RunID: runID, Stage: stage, Kind: progress.KindStageCompleted, Data: out.data})
	s.logger.Info("stage complete", "run_id", runID, "stage", stage, "events", len(out.events), "duration_ms", elapsed.Milliseconds())
	return nil
}

func statusAfter(stage int) domain.RunStatus {
	switch stage {
	case 1:
		return domain.RunStage1Complete
	case 2:
		return domain.RunStage2Complete
	default:
		return domain.RunComplete
	}
}

// publish never fails the pipeline.
func (s *Service) publish(ctx context.Context, e progress.Event) {
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	if err := s.progress.Publish(ctx, e); err != nil {
		s.logger.Warn("progress publish failed", "run_id", e.RunID, "kind", e.Kind, "error", err)
	}
}

func (s *Service) lock(runID string) func() {
	s.mu.Lock()
	l, ok := s.locks[runID]
	if !ok {
		l = &runLock{}
		s.locks[runID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, runID)
		}
		s.mu.Unlock()
	}
}

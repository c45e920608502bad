// Package memory is an in-process repository.Store used by tests and the
// offline CLI.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/repository"
)

// Store keeps everything in maps. Values are deep copied on the way in and
// out through JSON so callers never share memory with the store.
type Store struct {
	mu          sync.RWMutex
	individuals map[string][]byte
	tasks       map[string][]byte
	runs        map[string][]byte
	stages      map[string]map[int][]byte
}

var _ repository.Store = (*Store)(nil)

// New constructs an empty Store.
func New() *Store {
	return &Store{
		individuals: map[string][]byte{},
		tasks:       map[string][]byte{},
		runs:        map[string][]byte{},
		stages:      map[string]map[int][]byte{},
	}
}

// UpsertIndividuals stores individuals.
func (s *Store) UpsertIndividuals(_ context.Context, individuals []domain.Individual) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ind := range individuals {
		doc, err := json.Marshal(ind)
		if err != nil {
			return fmt.Errorf("encode individual %s: %w", ind.ID, err)
		}
		s.individuals[ind.ID] = doc
	}
	return nil
}

// ListIndividuals returns individuals ordered by ID.
func (s *Store) ListIndividuals(_ context.Context, ids []string) ([]domain.Individual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := pick(s.individuals, ids)
	out := make([]domain.Individual, 0, len(docs))
	for _, doc := range docs {
		var ind domain.Individual
		if err := json.Unmarshal(doc, &ind); err != nil {
			return nil, err
		}
		out = append(out, ind)
	}
	return out, nil
}

// UpsertTasks stores tasks.
func (s *Store) UpsertTasks(_ context.Context, tasks []domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		doc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode task %s: %w", t.ID, err)
		}
		s.tasks[t.ID] = doc
	}
	return nil
}

// ListTasks returns tasks ordered by ID.
func (s *Store) ListTasks(_ context.Context, ids []string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := pick(s.tasks, ids)
	out := make([]domain.Task, 0, len(docs))
	for _, doc := range docs {
		var t domain.Task
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// CreateRun stores a new run.
func (s *Store) CreateRun(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	doc, err := json.Marshal(run)
	if err != nil {
		return err
	}
	s.runs[run.ID] = doc
	return nil
}

// GetRun fetches a run.
func (s *Store) GetRun(_ context.Context, id string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	var run domain.Run
	if err := json.Unmarshal(doc, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// UpdateRun replaces a stored run.
func (s *Store) UpdateRun(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return repository.ErrNotFound
	}
	doc, err := json.Marshal(run)
	if err != nil {
		return err
	}
	s.runs[run.ID] = doc
	return nil
}

// SaveStage1 stores the stage one output.
func (s *Store) SaveStage1(_ context.Context, out domain.Stage1Result) error {
	return s.save(out.RunID, 1, out)
}

// GetStage1 loads the stage one output.
func (s *Store) GetStage1(_ context.Context, runID string) (*domain.Stage1Result, error) {
	var out domain.Stage1Result
	if err := s.load(runID, 1, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveStage2 stores the stage two output.
func (s *Store) SaveStage2(_ context.Context, out domain.Stage2Result) error {
	return s.save(out.RunID, 2, out)
}

// GetStage2 loads the stage two output.
func (s *Store) GetStage2(_ context.Context, runID string) (*domain.Stage2Result, error) {
	var out domain.Stage2Result
	if err := s.load(runID, 2, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveStage3 stores the stage three output.
func (s *Store) SaveStage3(_ context.Context, out domain.Stage3Result) error {
	return s.save(out.RunID, 3, out)
}

// GetStage3 loads the stage three output.
func (s *Store) GetStage3(_ context.Context, runID string) (*domain.Stage3Result, error) {
	var out domain.Stage3Result
	if err := s.load(runID, 3, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearStagesFrom removes outputs for stage and later.
func (s *Store) ClearStagesFrom(_ context.Context, runID string, stage int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := range s.stages[runID] {
		if n >= stage {
			delete(s.stages[runID], n)
		}
	}
	return nil
}

func (s *Store) save(runID string, stage int, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode stage %d output: %w", stage, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return repository.ErrNotFound
	}
	if s.stages[runID] == nil {
		s.stages[runID] = map[int][]byte{}
	}
	s.stages[runID][stage] = doc
	return nil
}

func (s *Store) load(runID string, stage int, dst any) error {
	s.mu.RLock()
	doc, ok := s.stages[runID][stage]
	s.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}
	return json.Unmarshal(doc, dst)
}

func pick(m map[string][]byte, ids []string) [][]byte {
	var keys []string
	if len(ids) == 0 {
		for k := range m {
			keys = append(keys, k)
		}
	} else {
		seen := map[string]bool{}
		for _, id := range ids {
			if _, ok := m[id]; ok && !seen[id] {
				seen[id] = true
				keys = append(keys, id)
			}
		}
	}
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

// Package capacity places individuals into task slots (stage one).
package capacity

import (
	"errors"
	"fmt"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/matching/cost"
	"github.com/qbeka/matchmaking-nat/internal/matching/hungarian"
)

var errDuplicateID = errors.New("capacity: duplicate id")

// Result is the stage one output.
type Result struct {
	SlotAssignments []domain.SlotAssignment `json:"slot_assignments"`
	// Clusters holds the assigned individual IDs per task, in task order.
	Clusters   [][]string     `json:"clusters"`
	Unassigned []string       `json:"unassigned,omitempty"`
	Events     []domain.Event `json:"events,omitempty"`
	TotalCost  float64        `json:"total_cost"`
}

type slot struct {
	task int
	n    int
}

// Assign expands every task into its slots and solves the individuals x
// slots assignment minimizing IndividualCost. Tasks without a Capacity get
// defaultCapacity slots, normally the desired team size. Individuals left
// over when slots run out are reported, not dropped.
func Assign(individuals []domain.Individual, tasks []domain.Task, w cost.Weights, defaultCapacity int) (Result, error) {
	if err := uniqueIDs(individuals, tasks); err != nil {
		return Result{}, err
	}
	res := Result{Clusters: make([][]string, len(tasks))}
	for i := range res.Clusters {
		res.Clusters[i] = []string{}
	}

	var slots []slot
	var slotIDs []string
	for ti, task := range tasks {
		for n := 0; n < task.SlotCount(defaultCapacity); n++ {
			slots = append(slots, slot{task: ti, n: n})
			slotIDs = append(slotIDs, fmt.Sprintf("%s#%d", task.ID, n))
		}
	}

	rowIDs := make([]string, len(individuals))
	costs := make([][]float64, len(individuals))
	for i, ind := range individuals {
		rowIDs[i] = ind.ID
		row := make([]float64, len(slots))
		// Slots of one task share a cost, so compute once per task.
		perTask := make([]float64, len(tasks))
		for ti, task := range tasks {
			perTask[ti] = cost.IndividualCost(ind, task, w)
		}
		for j, sl := range slots {
			row[j] = perTask[sl.task]
		}
		costs[i] = row
	}

	sol, err := hungarian.Assign(rowIDs, slotIDs, costs, hungarian.Sentinel)
	if err != nil {
		return Result{}, fmt.Errorf("capacity: solve: %w", err)
	}

	assigned := make([]bool, len(individuals))
	for _, p := range sol.Pairs {
		sl := slots[p.Col]
		task := tasks[sl.task]
		res.SlotAssignments = append(res.SlotAssignments, domain.SlotAssignment{
			IndividualID: p.RowID,
			TaskID:       task.ID,
			Slot:         sl.n,
			Cost:         p.Cost,
		})
		res.Clusters[sl.task] = append(res.Clusters[sl.task], p.RowID)
		res.TotalCost += p.Cost
		assigned[p.Row] = true
	}
	for i, ok := range assigned {
		if ok {
			continue
		}
		id := individuals[i].ID
		res.Unassigned = append(res.Unassigned, id)
		res.Events = append(res.Events, domain.Event{
			Kind:    domain.EventUnassignedIndividual,
			Stage:   1,
			Subject: id,
			Detail:  fmt.Sprintf("%d slots for %d individuals", len(slots), len(individuals)),
		})
	}
	return res, nil
}

func uniqueIDs(individuals []domain.Individual, tasks []domain.Task) error {
	seen := make(map[string]struct{}, len(individuals))
	for _, ind := range individuals {
		if _, dup := seen[ind.ID]; dup {
			return fmt.Errorf("%w: individual %s", errDuplicateID, ind.ID)
		}
		seen[ind.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: task %s", errDuplicateID, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

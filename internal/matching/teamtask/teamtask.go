// Package teamtask assigns formed teams to tasks (stage three) and repairs
// the result so no team and no task is left without a counterpart.
package teamtask

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/matching/cost"
	"github.com/qbeka/matchmaking-nat/internal/matching/hungarian"
	"github.com/qbeka/matchmaking-nat/internal/matching/teamvector"
)

const (
	fallbackBase = 0.8
	coverageBase = 0.9
	rescaleSpan  = 1e6
)

// Constraint reports whether team may work on task. Infeasible pairs are
// priced at the sentinel and only reachable through the repair passes.
type Constraint func(team teamvector.Vector, task domain.Task) bool

// Config tunes an Assigner.
type Config struct {
	Weights    cost.Weights
	Constraint Constraint
}

// TeamInput is one team and its aggregate.
type TeamInput struct {
	Team   domain.Team
	Vector teamvector.Vector
}

// Result is the stage three output.
type Result struct {
	Assignments []domain.TeamAssignment `json:"assignments"`
	Events      []domain.Event          `json:"events,omitempty"`
	Stats       domain.AssignmentStats  `json:"stats"`
}

// Assigner runs the team to task passes.
type Assigner struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs an Assigner. Zero weights fall back to cost.TeamWeights.
func New(cfg Config, logger *slog.Logger) Assigner {
	if cfg.Weights == (cost.Weights{}) {
		cfg.Weights = cost.TeamWeights
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Assigner{cfg: cfg, logger: logger}
}

// Assign matches teams to tasks. The primary pass is one-to-one; teams left
// over get their cheapest task and tasks left over get their cheapest team.
// It fails only on caller errors such as non-finite costs.
func (a Assigner) Assign(teams []TeamInput, tasks []domain.Task) (Result, error) {
	res := Result{Assignments: []domain.TeamAssignment{}, Stats: domain.AssignmentStats{PerPass: map[domain.AssignmentPass]int{}}}
	if len(teams) == 0 || len(tasks) == 0 {
		return res, nil
	}

	costs := a.Matrix(teams, tasks)
	teamIDs := make([]string, len(teams))
	for i, t := range teams {
		teamIDs[i] = t.Team.ID
	}
	taskIDs := make([]string, len(tasks))
	for j, t := range tasks {
		taskIDs[j] = t.ID
	}

	sol, err := hungarian.Assign(teamIDs, taskIDs, costs, hungarian.Sentinel)
	if err != nil {
		return Result{}, fmt.Errorf("teamtask: solve: %w", err)
	}

	teamTasks := make([]int, len(teams))
	taskTeams := make([]int, len(tasks))
	for _, p := range sol.Pairs {
		if p.Cost >= hungarian.SentinelThreshold {
			continue
		}
		res.add(domain.TeamAssignment{TeamID: p.RowID, TaskID: p.ColID, Cost: p.Cost, Pass: domain.PassPrimary})
		teamTasks[p.Row]++
		taskTeams[p.Col]++
	}
	primary := len(res.Assignments)

	// Fallback: every team without a task takes its cheapest one.
	for i := range teams {
		if teamTasks[i] > 0 {
			continue
		}
		best := -1
		var bestCost float64
		for j := range tasks {
			c := rescale(costs[i][j], fallbackBase)
			if best < 0 || c < bestCost || (c == bestCost && taskTeams[j] == 0 && taskTeams[best] > 0) {
				best, bestCost = j, c
			}
		}
		res.add(domain.TeamAssignment{TeamID: teamIDs[i], TaskID: taskIDs[best], Cost: bestCost, Pass: domain.PassFallback})
		res.Events = append(res.Events, domain.Event{
			Kind:    domain.EventFallbackAssigned,
			Stage:   3,
			TeamID:  teamIDs[i],
			Subject: taskIDs[best],
			Detail:  fmt.Sprintf("no one-to-one match, cost %.4f", bestCost),
		})
		teamTasks[i]++
		taskTeams[best]++
	}

	// Coverage: every task without a team goes to its cheapest team.
	for j := range tasks {
		if taskTeams[j] > 0 {
			continue
		}
		best := -1
		var bestCost float64
		for i := range teams {
			c := rescale(costs[i][j], coverageBase)
			if best < 0 || c < bestCost || (c == bestCost && teamTasks[i] < teamTasks[best]) {
				best, bestCost = i, c
			}
		}
		res.add(domain.TeamAssignment{TeamID: teamIDs[best], TaskID: taskIDs[j], Cost: bestCost, Pass: domain.PassCoverage})
		if teamTasks[best] > 0 {
			res.Events = append(res.Events, domain.Event{
				Kind:    domain.EventMultiAssigned,
				Stage:   3,
				TeamID:  teamIDs[best],
				Subject: taskIDs[j],
				Detail:  fmt.Sprintf("team now holds %d tasks", teamTasks[best]+1),
			})
		}
		teamTasks[best]++
		taskTeams[j]++
	}

	fillStats(&res.Stats, res.Assignments, costs)
	a.logger.Info("teams assigned to tasks",
		"teams", len(teams),
		"tasks", len(tasks),
		"primary", primary,
		"fallback", res.Stats.PerPass[domain.PassFallback],
		"coverage", res.Stats.PerPass[domain.PassCoverage],
		"mean_cost", res.Stats.Mean)
	for _, ev := range res.Events {
		a.logger.Warn("team assignment degraded outcome", "kind", ev.Kind, "team_id", ev.TeamID, "task_id", ev.Subject)
	}
	return res, nil
}

// Matrix builds the teams x tasks cost matrix, pricing infeasible pairs at
// the sentinel.
func (a Assigner) Matrix(teams []TeamInput, tasks []domain.Task) [][]float64 {
	costs := make([][]float64, len(teams))
	for i, t := range teams {
		row := make([]float64, len(tasks))
		for j, task := range tasks {
			if a.cfg.Constraint != nil && !a.cfg.Constraint(t.Vector, task) {
				row[j] = hungarian.Sentinel
				continue
			}
			row[j] = cost.TeamTaskCost(t.Vector.Aggregate, task, a.cfg.Weights)
		}
		costs[i] = row
	}
	return costs
}

// rescale maps sentinel-range costs just above the feasible range so repair
// picks stay comparable with real costs.
func rescale(c, base float64) float64 {
	if c >= hungarian.SentinelThreshold {
		return base + (c-hungarian.SentinelThreshold)/rescaleSpan
	}
	return c
}

func (r *Result) add(asg domain.TeamAssignment) {
	r.Assignments = append(r.Assignments, asg)
	r.Stats.PerPass[asg.Pass]++
}

// fillStats computes mean, worst and best cost and efficiency against the
// sum of each row's most expensive feasible task.
func fillStats(s *domain.AssignmentStats, asgs []domain.TeamAssignment, costs [][]float64) {
	if len(asgs) == 0 {
		return
	}
	s.Best = math.Inf(1)
	for _, a := range asgs {
		s.Total += a.Cost
		s.Worst = math.Max(s.Worst, a.Cost)
		s.Best = math.Min(s.Best, a.Cost)
	}
	s.Mean = s.Total / float64(len(asgs))

	var worstCase float64
	for _, row := range costs {
		m := 0.0
		for _, c := range row {
			if c < hungarian.SentinelThreshold && c > m {
				m = c
			}
		}
		worstCase += m
	}
	if worstCase > 0 {
		s.Efficiency = 1 - s.Total/worstCase
	}
}

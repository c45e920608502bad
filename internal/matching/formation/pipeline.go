// Package formation turns a pool of individuals into fixed-size teams.
//
// Each pass takes a partition and returns a new one; nothing is mutated in
// place across passes, and the input individuals are never modified.
package formation

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/qbeka/matchmaking-nat/internal/domain"
	"github.com/qbeka/matchmaking-nat/internal/matching/cost"
	"github.com/qbeka/matchmaking-nat/internal/matching/kmedoids"
)

const (
	DefaultDesiredSize       = 4
	DefaultMinViableSize     = 3
	DefaultCoverageThreshold = 0.6
	DefaultMaxRefineSwaps    = 10
	DefaultSeed              = 42
)

var (
	errTeamSizeTooSmall = errors.New("formation: desired team size below minimum viable size")
	errDuplicateID      = errors.New("formation: duplicate individual id")
	errEmptyID          = errors.New("formation: individual id is empty")
)

// Config tunes the pipeline.
type Config struct {
	DesiredSize       int
	MinViableSize     int
	MaxIter           int
	Seed              int64
	CoverageThreshold float64
	// AllowedRoles is the catalog role coverage is measured against. When
	// empty the roles present in the pool are used.
	AllowedRoles   []string
	MaxRefineSwaps int
	Workers        int
	// Pairwise overrides cost.PairwiseCost.
	Pairwise func(a, b domain.Individual) float64
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		DesiredSize:       DefaultDesiredSize,
		MinViableSize:     DefaultMinViableSize,
		MaxIter:           kmedoids.DefaultMaxIter,
		Seed:              DefaultSeed,
		CoverageThreshold: DefaultCoverageThreshold,
		MaxRefineSwaps:    DefaultMaxRefineSwaps,
		Workers:           4,
	}
}

func (c Config) withDefaults() Config {
	if c.DesiredSize <= 0 {
		c.DesiredSize = DefaultDesiredSize
	}
	if c.MinViableSize <= 0 {
		c.MinViableSize = DefaultMinViableSize
	}
	if c.MaxIter <= 0 {
		c.MaxIter = kmedoids.DefaultMaxIter
	}
	if c.CoverageThreshold < 0 {
		c.CoverageThreshold = 0
	}
	if c.MaxRefineSwaps < 0 {
		c.MaxRefineSwaps = 0
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Pairwise == nil {
		c.Pairwise = cost.PairwiseCost
	}
	return c
}

// Partition is the pipeline output.
type Partition struct {
	Teams   []domain.Team  `json:"teams"`
	Dropped []string       `json:"dropped,omitempty"`
	Events  []domain.Event `json:"events,omitempty"`
}

// Pipeline forms teams.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs a Pipeline.
func New(cfg Config, logger *slog.Logger) Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return Pipeline{cfg: cfg.withDefaults(), logger: logger}
}

// Config returns the effective configuration.
func (p Pipeline) Config() Config {
	return p.cfg
}

// Run partitions pool into teams. clusters optionally pre-groups individuals
// by ID (for example per-task groups from slot assignment); nil treats the
// whole pool as one group.
func (p Pipeline) Run(pool []domain.Individual, clusters [][]string) (Partition, error) {
	if p.cfg.DesiredSize < p.cfg.MinViableSize {
		return Partition{}, fmt.Errorf("%w: %d < %d", errTeamSizeTooSmall, p.cfg.DesiredSize, p.cfg.MinViableSize)
	}
	s, err := p.newState(pool)
	if err != nil {
		return Partition{}, err
	}
	if len(s.pool) == 0 {
		return Partition{Teams: []domain.Team{}}, nil
	}

	start := time.Now()
	part, dropped := s.provisional(clusters)
	passes := []struct {
		name string
		fn   func(partition) partition
	}{
		{"balance", s.balance},
		{"slots", s.fillSlots},
		{"consolidate", s.consolidate},
		{"refine", s.refine},
		{"leadership", s.balanceLeadership},
	}
	for _, pass := range passes {
		before := len(part.events)
		part = pass.fn(part)
		p.logger.Debug("formation pass complete", "pass", pass.name, "teams", len(part.teams), "unplaced", len(part.unplaced), "events", len(part.events)-before)
	}

	out := s.export(part)
	for _, id := range dropped {
		out.Dropped = append(out.Dropped, id)
		out.Events = append(out.Events, domain.Event{Kind: domain.EventDropped, Stage: 2, Subject: id, Detail: "not present in pool"})
	}
	for _, ev := range out.Events {
		p.logger.Warn("formation degraded outcome", "kind", ev.Kind, "team_id", ev.TeamID, "subject", ev.Subject, "detail", ev.Detail)
	}
	p.logger.Info("teams formed", "individuals", len(s.pool), "teams", len(out.Teams), "events", len(out.Events), "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// BalanceLeadership reruns only the leadership pass over an existing
// partition. On a compliant partition it returns the input unchanged.
func (p Pipeline) BalanceLeadership(pool []domain.Individual, in Partition) (Partition, error) {
	s, err := p.newState(pool)
	if err != nil {
		return Partition{}, err
	}
	part, err := s.importPartition(in)
	if err != nil {
		return Partition{}, err
	}
	part = s.balanceLeadership(part)
	out := s.export(part)
	out.Dropped = append([]string(nil), in.Dropped...)
	out.Events = append(append([]domain.Event(nil), in.Events...), out.Events...)
	return out, nil
}

// state is the immutable context shared by all passes of one run.
type state struct {
	cfg   Config
	pool  []domain.Individual
	index map[string]int
	dist  kmedoids.Dissimilarity
	roles []string
	seq   *int
}

func (p Pipeline) newState(pool []domain.Individual) (*state, error) {
	sorted := append([]domain.Individual(nil), pool...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	index := make(map[string]int, len(sorted))
	for i, ind := range sorted {
		if ind.ID == "" {
			return nil, errEmptyID
		}
		if _, dup := index[ind.ID]; dup {
			return nil, fmt.Errorf("%w: %s", errDuplicateID, ind.ID)
		}
		index[ind.ID] = i
	}
	pairwise := p.cfg.Pairwise
	dist := kmedoids.Precompute(len(sorted), func(i, j int) float64 {
		return pairwise(sorted[i], sorted[j])
	}, p.cfg.Workers)

	roles := append([]string(nil), p.cfg.AllowedRoles...)
	if len(roles) == 0 {
		seen := map[string]struct{}{}
		for _, ind := range sorted {
			for _, r := range ind.Roles {
				if _, ok := seen[r]; !ok {
					seen[r] = struct{}{}
					roles = append(roles, r)
				}
			}
		}
	}
	sort.Strings(roles)
	seq := 0
	return &state{cfg: p.cfg, pool: sorted, index: index, dist: dist, roles: roles, seq: &seq}, nil
}

// draft is a team under construction, referencing pool indices.
type draft struct {
	seq      int
	members  []int
	target   int
	promoted []int
}

// event is a domain.Event keyed by draft sequence until export.
type event struct {
	kind    domain.EventKind
	team    int
	subject int
	detail  string
}

type partition struct {
	teams    []draft
	unplaced []int
	events   []event
}

func (p partition) clone() partition {
	out := partition{
		teams:    make([]draft, len(p.teams)),
		unplaced: append([]int(nil), p.unplaced...),
		events:   append([]event(nil), p.events...),
	}
	for i, t := range p.teams {
		out.teams[i] = draft{
			seq:      t.seq,
			members:  append([]int(nil), t.members...),
			target:   t.target,
			promoted: append([]int(nil), t.promoted...),
		}
	}
	return out
}

func (s *state) newDraft(members []int, target int) draft {
	*s.seq++
	return draft{seq: *s.seq, members: members, target: target}
}

func (s *state) note(p *partition, kind domain.EventKind, team, subject int, detail string) {
	p.events = append(p.events, event{kind: kind, team: team, subject: subject, detail: detail})
}

func (s *state) export(p partition) Partition {
	out := Partition{Teams: make([]domain.Team, 0, len(p.teams))}
	ids := make(map[int]string, len(p.teams))
	for i, t := range p.teams {
		id := fmt.Sprintf("team-%03d", i+1)
		ids[t.seq] = id
		team := domain.Team{ID: id, Members: make([]string, 0, len(t.members))}
		for _, m := range t.members {
			team.Members = append(team.Members, s.pool[m].ID)
		}
		for _, m := range t.promoted {
			team.PromotedLeaders = append(team.PromotedLeaders, s.pool[m].ID)
		}
		out.Teams = append(out.Teams, team)
	}
	for _, ev := range p.events {
		e := domain.Event{Kind: ev.kind, Stage: 2, TeamID: ids[ev.team], Detail: ev.detail}
		if ev.subject >= 0 {
			e.Subject = s.pool[ev.subject].ID
		}
		out.Events = append(out.Events, e)
	}
	return out
}

func (s *state) importPartition(in Partition) (partition, error) {
	var p partition
	placed := make(map[int]bool, len(s.pool))
	for _, t := range in.Teams {
		d := s.newDraft(nil, len(t.Members))
		for _, id := range t.Members {
			idx, ok := s.index[id]
			if !ok {
				return partition{}, fmt.Errorf("formation: team %s references unknown individual %s", t.ID, id)
			}
			d.members = append(d.members, idx)
			placed[idx] = true
		}
		for _, id := range t.PromotedLeaders {
			if idx, ok := s.index[id]; ok {
				d.promoted = append(d.promoted, idx)
			}
		}
		p.teams = append(p.teams, d)
	}
	for i := range s.pool {
		if !placed[i] {
			p.unplaced = append(p.unplaced, i)
		}
	}
	return p, nil
}

func (s *state) isLeader(t draft, idx int) bool {
	if s.pool[idx].Leadership {
		return true
	}
	for _, m := range t.promoted {
		if m == idx {
			return true
		}
	}
	return false
}

func (s *state) leaderCount(t draft) int {
	n := 0
	for _, m := range t.members {
		if s.isLeader(t, m) {
			n++
		}
	}
	return n
}

// avgDistance is the mean dissimilarity from idx to the members of group,
// skipping idx itself and anything in skip.
func (s *state) avgDistance(idx int, group []int, skip int) float64 {
	var sum float64
	n := 0
	for _, m := range group {
		if m == idx || m == skip {
			continue
		}
		sum += s.dist[idx][m]
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func sortInts(xs []int) []int {
	sort.Ints(xs)
	return xs
}

func removeInt(xs []int, v int) []int {
	out := xs[:0:0]
	for _, x := range xs {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// Package pipeline turns process configuration into a match service config.
package pipeline

import (
	"fmt"

	"github.com/qbeka/matchmaking-nat/internal/profile"
	"github.com/qbeka/matchmaking-nat/internal/service/match"
	"github.com/qbeka/matchmaking-nat/pkg/config"
)

// Params are the tunables shared by matchd and matchctl. Zero values keep
// the match defaults.
type Params struct {
	ProfilePath       string
	DesiredTeamSize   int
	Seed              int64
	MaxIter           int
	CoverageThreshold float64
	MaxRefineSwaps    int
	Workers           int
	DefaultCapacity   int
	ReviewConcurrency int
	AllowedRoles      []string
	AllowedSkills     []string
	RequireMotivation bool
}

// FromServer extracts Params from the matchd environment.
func FromServer(cfg config.ServerConfig) Params {
	return Params{
		ProfilePath:       cfg.ProfilePath,
		DesiredTeamSize:   cfg.DesiredTeamSize,
		Seed:              cfg.Seed,
		MaxIter:           cfg.MaxIter,
		CoverageThreshold: cfg.CoverageThreshold,
		MaxRefineSwaps:    cfg.MaxRefineSwaps,
		Workers:           cfg.Workers,
		DefaultCapacity:   cfg.DefaultCapacity,
		ReviewConcurrency: cfg.ReviewConcurrency,
		AllowedRoles:      cfg.AllowedRoles,
		AllowedSkills:     cfg.AllowedSkills,
		RequireMotivation: cfg.RequireMotivation,
	}
}

// Build loads the weight profile and applies p on top of it.
func Build(p Params) (match.Config, profile.Profile, error) {
	prof, err := profile.Load(p.ProfilePath)
	if err != nil {
		return match.Config{}, profile.Profile{}, err
	}
	if len(p.AllowedRoles) > 0 {
		prof.Catalog.Roles = append([]string(nil), p.AllowedRoles...)
	}
	if len(p.AllowedSkills) > 0 {
		prof.Catalog.Skills = append([]string(nil), p.AllowedSkills...)
	}
	if p.RequireMotivation {
		prof.Catalog.RequireMotivation = true
	}

	cfg := match.DefaultConfig()
	cfg.Stage1Weights = prof.Stage1
	cfg.Stage3Weights = prof.Stage3
	cfg.Catalog = prof.Catalog
	cfg.Formation.AllowedRoles = append([]string(nil), prof.Catalog.Roles...)
	if p.DesiredTeamSize != 0 {
		cfg.Formation.DesiredSize = p.DesiredTeamSize
	}
	if cfg.Formation.DesiredSize < cfg.Formation.MinViableSize {
		return match.Config{}, profile.Profile{}, fmt.Errorf("desired team size %d below minimum %d", cfg.Formation.DesiredSize, cfg.Formation.MinViableSize)
	}
	if p.Seed != 0 {
		cfg.Formation.Seed = p.Seed
	}
	if p.MaxIter > 0 {
		cfg.Formation.MaxIter = p.MaxIter
	}
	if p.CoverageThreshold > 0 {
		cfg.Formation.CoverageThreshold = p.CoverageThreshold
	}
	if p.MaxRefineSwaps > 0 {
		cfg.Formation.MaxRefineSwaps = p.MaxRefineSwaps
	}
	if p.Workers > 0 {
		cfg.Formation.Workers = p.Workers
	}
	if p.DefaultCapacity > 0 {
		cfg.DefaultCapacity = p.DefaultCapacity
	}
	if p.ReviewConcurrency > 0 {
		cfg.ReviewConcurrency = p.ReviewConcurrency
	}
	return cfg, prof, nil
}

// Package profile loads cost weight profiles and catalogs from YAML.
package profile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qbeka/matchmaking-nat/internal/matching/cost"
	"github.com/qbeka/matchmaking-nat/internal/validate"
)

// Profile tunes the stage one and stage three cost models.
type Profile struct {
	Name    string           `yaml:"name" json:"name"`
	Stage1  cost.Weights     `yaml:"stage1" json:"stage1"`
	Stage3  cost.Weights     `yaml:"stage3" json:"stage3"`
	Catalog validate.Catalog `yaml:"catalog" json:"catalog"`
}

// Default returns the built-in profile.
func Default() Profile {
	return Profile{
		Name:    "default",
		Stage1:  cost.DefaultWeights,
		Stage3:  cost.TeamWeights,
		Catalog: validate.DefaultCatalog(),
	}
}

// Load reads a profile from path. Sections missing from the file keep their
// defaults; an empty path returns Default.
func Load(path string) (Profile, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML profile document.
func Parse(raw []byte) (Profile, error) {
	var doc struct {
		Name    string            `yaml:"name"`
		Stage1  *cost.Weights     `yaml:"stage1"`
		Stage3  *cost.Weights     `yaml:"stage3"`
		Catalog *validate.Catalog `yaml:"catalog"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	p := Default()
	if doc.Name != "" {
		p.Name = doc.Name
	}
	if doc.Stage1 != nil {
		p.Stage1 = *doc.Stage1
	}
	if doc.Stage3 != nil {
		p.Stage3 = *doc.Stage3
	}
	if doc.Catalog != nil {
		if len(doc.Catalog.Skills) > 0 {
			p.Catalog.Skills = doc.Catalog.Skills
		}
		if len(doc.Catalog.Roles) > 0 {
			p.Catalog.Roles = doc.Catalog.Roles
		}
		p.Catalog.RequireMotivation = doc.Catalog.RequireMotivation
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks both weight sets.
func (p Profile) Validate() error {
	if err := p.Stage1.Validate(); err != nil {
		return fmt.Errorf("stage1: %w", err)
	}
	if err := p.Stage3.Validate(); err != nil {
		return fmt.Errorf("stage3: %w", err)
	}
	if len(p.Catalog.Roles) == 0 {
		return errors.New("catalog: at least one role required")
	}
	return nil
}

// Marshal renders p as YAML.
func (p Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

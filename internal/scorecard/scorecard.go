// Package scorecard loads the QA scorecard definition attached to automatic
// evaluation requests. Criteria and weights live in a YAML file so QA leads
// can tune them without a deploy.
package scorecard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Criterion is a single scored item on the QA scorecard. A zero-tolerance
// criterion forces the total score to zero when violated.
type Criterion struct {
	Name          string `yaml:"name" json:"name"`
	Description   string `yaml:"description,omitempty" json:"description,omitempty"`
	Weight        int    `yaml:"weight" json:"weight"`
	ZeroTolerance bool   `yaml:"zero_tolerance,omitempty" json:"zero_tolerance,omitempty"`
}

// Scorecard is the full set of criteria a call is evaluated against.
type Scorecard struct {
	Name     string      `yaml:"name" json:"name"`
	Criteria []Criterion `yaml:"criteria" json:"criteria"`
}

// Default returns the built-in scorecard used when no file is configured.
func Default() *Scorecard {
	return &Scorecard{
		Name: "robocall-default",
		Criteria: []Criterion{
			{Name: "greeting_within_sop", Description: "Agent greets within the SOP window", Weight: 20},
			{Name: "friendly_tone", Description: "Agent keeps a friendly, professional tone", Weight: 20},
			{Name: "no_interruptions", Description: "Agent does not talk over the customer", Weight: 20},
			{Name: "hold_within_limit", Description: "No hold exceeds the allowed duration", Weight: 20},
			{Name: "issue_resolved", Description: "Customer's issue is addressed or escalated", Weight: 20},
			{Name: "no_prohibited_language", Description: "No prohibited or abusive language", Weight: 0, ZeroTolerance: true},
		},
	}
}

// Load reads a scorecard definition from path. An empty path yields the
// built-in default.
func Load(path string) (*Scorecard, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scorecard file: %w", err)
	}

	var sc Scorecard
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scorecard file: %w", err)
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the loaded definition is usable.
func (s *Scorecard) Validate() error {
	if len(s.Criteria) == 0 {
		return fmt.Errorf("scorecard %q has no criteria", s.Name)
	}
	seen := make(map[string]bool, len(s.Criteria))
	for i, c := range s.Criteria {
		if c.Name == "" {
			return fmt.Errorf("scorecard %q: criterion %d has no name", s.Name, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("scorecard %q: duplicate criterion %q", s.Name, c.Name)
		}
		seen[c.Name] = true
		if c.Weight < 0 {
			return fmt.Errorf("scorecard %q: criterion %q has negative weight", s.Name, c.Name)
		}
	}
	return nil
}

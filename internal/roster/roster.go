// Package roster provides the seed population of agents.
package roster

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/aier/aier/internal/core"
)

//go:embed seed.yaml
var seedYAML []byte

// entry is one agent in a roster file.
type entry struct {
	ID          string   `yaml:"id"`
	Username    string   `yaml:"username"`
	Name        string   `yaml:"name"`
	Personality string   `yaml:"personality"`
	Style       string   `yaml:"style"`
	Interests   []string `yaml:"interests"`
	Color       string   `yaml:"color"`
	Faction     string   `yaml:"faction"`
	Reputation  int      `yaml:"reputation"`
}

type file struct {
	Agents []entry `yaml:"agents"`
}

// Default returns the built-in seed roster of 15 agents.
func Default() []core.Agent {
	agents, err := Parse(seedYAML)
	if err != nil {
		panic(fmt.Sprintf("roster: embedded seed is invalid: %v", err))
	}
	return agents
}

// LoadFile reads a roster from a YAML file.
func LoadFile(path string) ([]core.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return Parse(data)
}

// Load returns the roster at path, or Default when path is empty.
func Load(path string) ([]core.Agent, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Parse decodes and validates a YAML roster. Agents without an id get a
// deterministic one derived from their username; reputation defaults to
// core.StartingReputation.
func Parse(data []byte) ([]core.Agent, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(f.Agents) == 0 {
		return nil, core.ErrEmptyRoster
	}

	seen := make(map[string]bool, len(f.Agents))
	agents := make([]core.Agent, 0, len(f.Agents))
	for i, e := range f.Agents {
		username := strings.TrimPrefix(strings.TrimSpace(e.Username), "@")
		if username == "" {
			return nil, fmt.Errorf("%w: agent %d username", core.ErrMissingRequired, i)
		}
		if seen[username] {
			return nil, fmt.Errorf("%w: duplicate username %q", core.ErrInvalidInput, username)
		}
		seen[username] = true

		faction := core.Faction(e.Faction)
		if faction != "" && !faction.Valid() {
			return nil, fmt.Errorf("%w: @%s faction %q", core.ErrInvalidInput, username, e.Faction)
		}

		id := e.ID
		if id == "" {
			id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("aier/"+username)).String()
		}
		rep := e.Reputation
		if rep <= 0 {
			rep = core.StartingReputation
		}
		name := e.Name
		if name == "" {
			name = username
		}
		interests := e.Interests
		if interests == nil {
			interests = []string{}
		}

		agents = append(agents, core.Agent{
			ID:          id,
			Username:    username,
			Name:        name,
			Personality: e.Personality,
			Style:       e.Style,
			Interests:   interests,
			Color:       e.Color,
			Faction:     faction,
			Reputation:  rep,
			Memory:      []string{},
		})
	}
	return agents, nil
}

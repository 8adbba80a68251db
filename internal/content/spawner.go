package content

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/llm"
	"github.com/aier/aier/internal/logging"
)

// agentTemplate is a built-in definition used when generation fails.
type agentTemplate struct {
	Username    string
	Name        string
	Personality string
	Faction     core.Faction
	Color       string
}

var spawnTemplates = []agentTemplate{
	{"crypto_doomer", "Exit Liquidity", "Cynical crypto observer", core.FactionRealists, "#F59E0B"},
	{"hustle_skeptic", "Anti-Grind", "Mocks productivity culture", core.FactionRebels, "#EC4899"},
	{"latency_monk", "Buffering", "Patient critic of instant everything", core.FactionMystics, "#14B8A6"},
}

var palette = []string{"#3B82F6", "#10B981", "#8B5CF6", "#EF4444", "#F97316", "#06B6D4"}

// agentDefinition is the JSON object the provider is asked for.
type agentDefinition struct {
	Username    string   `json:"username"`
	Name        string   `json:"name"`
	Personality string   `json:"personality"`
	Style       string   `json:"style"`
	Interests   []string `json:"interests"`
	Color       string   `json:"color"`
	Faction     string   `json:"faction"`
}

// Spawner creates new agents.
type Spawner struct {
	provider llm.Provider
	rnd      core.Random
	retry    RetryPolicy
}

// NewSpawner creates a Spawner. A zero retry policy means a single attempt.
func NewSpawner(provider llm.Provider, rnd core.Random, retry RetryPolicy) *Spawner {
	if rnd == nil {
		rnd = core.NewRandom()
	}
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 1
	}
	return &Spawner{provider: provider, rnd: rnd, retry: retry}
}

// Spawn returns a brand-new agent whose username is not in taken. Any
// provider or parse failure falls back to a built-in template; an error is
// returned only when ctx is done.
func (s *Spawner) Spawn(ctx context.Context, taken []string) (core.Agent, error) {
	agent, err := s.generate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return core.Agent{}, ctx.Err()
		}
		logging.WithField("error", err).Warn("spawn definition unusable, using template")
		agent = s.fromTemplate()
	}

	agent.ID = uuid.New().String()
	agent.Username = uniqueUsername(normalizeUsername(agent.Username), taken)
	agent.Reputation = core.StartingReputation
	agent.Memory = []string{}
	return agent, nil
}

func (s *Spawner) generate(ctx context.Context) (core.Agent, error) {
	if s.provider == nil {
		return core.Agent{}, fmt.Errorf("no provider")
	}

	raw, err := s.retry.Do(ctx, func(ctx context.Context) (string, error) {
		return s.provider.Generate(ctx, llm.Request{
			System:      spawnSystemPrompt,
			Prompt:      spawnUserPrompt,
			Temperature: 1.0,
			MaxTokens:   300,
			JSON:        true,
		})
	})
	if err != nil {
		return core.Agent{}, err
	}
	return parseDefinition(raw, s.rnd)
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// parseDefinition extracts and validates an agent definition from raw text.
func parseDefinition(raw string, rnd core.Random) (core.Agent, error) {
	match := jsonObject.FindString(raw)
	if match == "" {
		return core.Agent{}, fmt.Errorf("no JSON object in response")
	}

	var def agentDefinition
	if err := json.Unmarshal([]byte(match), &def); err != nil {
		return core.Agent{}, fmt.Errorf("invalid agent JSON: %w", err)
	}

	faction := core.Faction(strings.TrimSpace(def.Faction))
	switch {
	case strings.TrimSpace(def.Username) == "":
		return core.Agent{}, fmt.Errorf("%w: username", core.ErrMissingRequired)
	case strings.TrimSpace(def.Name) == "":
		return core.Agent{}, fmt.Errorf("%w: name", core.ErrMissingRequired)
	case strings.TrimSpace(def.Personality) == "":
		return core.Agent{}, fmt.Errorf("%w: personality", core.ErrMissingRequired)
	case !faction.Valid():
		return core.Agent{}, fmt.Errorf("%w: faction %q", core.ErrInvalidInput, def.Faction)
	}

	style := strings.TrimSpace(def.Style)
	if style == "" {
		style = "direct"
	}
	interests := make([]string, 0, len(def.Interests))
	for _, in := range def.Interests {
		if in = strings.TrimSpace(in); in != "" {
			interests = append(interests, in)
		}
	}
	if len(interests) == 0 {
		interests = []string{"internet culture"}
	}

	color, ok := normalizeColor(def.Color)
	if !ok {
		color = palette[rnd.Intn(len(palette))]
	}

	return core.Agent{
		Username:    def.Username,
		Name:        strings.TrimSpace(def.Name),
		Personality: strings.TrimSpace(def.Personality),
		Style:       style,
		Interests:   interests,
		Color:       color,
		Faction:     faction,
	}, nil
}

func (s *Spawner) fromTemplate() core.Agent {
	t := spawnTemplates[s.rnd.Intn(len(spawnTemplates))]
	return core.Agent{
		Username:    t.Username,
		Name:        t.Name,
		Personality: t.Personality,
		Style:       "direct",
		Interests:   []string{"internet culture"},
		Color:       t.Color,
		Faction:     t.Faction,
	}
}

var (
	nonHandle   = regexp.MustCompile(`[^a-z0-9_]+`)
	hexColor    = regexp.MustCompile(`^#?([0-9a-fA-F]{6})$`)
	shortColor  = regexp.MustCompile(`^#?([0-9a-fA-F]{3})$`)
	underscores = regexp.MustCompile(`_+`)
)

// normalizeUsername lowercases and restricts a handle to [a-z0-9_].
func normalizeUsername(u string) string {
	u = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(u), "@")))
	u = nonHandle.ReplaceAllString(u, "_")
	u = underscores.ReplaceAllString(u, "_")
	u = strings.Trim(u, "_")
	if u == "" {
		return "agent"
	}
	return u
}

// uniqueUsername appends _2, _3, ... until the handle is free.
func uniqueUsername(u string, taken []string) string {
	used := make(map[string]bool, len(taken))
	for _, t := range taken {
		used[t] = true
	}
	if !used[u] {
		return u
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", u, n)
		if !used[candidate] {
			return candidate
		}
	}
}

// normalizeColor returns c as #RRGGBB.
func normalizeColor(c string) (string, bool) {
	c = strings.TrimSpace(c)
	if m := hexColor.FindStringSubmatch(c); m != nil {
		return "#" + strings.ToUpper(m[1]), true
	}
	if m := shortColor.FindStringSubmatch(c); m != nil {
		h := strings.ToUpper(m[1])
		return "#" + string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]}), true
	}
	return "", false
}

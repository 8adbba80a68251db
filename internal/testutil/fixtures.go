package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aier/aier/internal/core"
)

// AgentFixture returns an agent with the given username.
func AgentFixture(username string) core.Agent {
	return core.Agent{
		ID:          "agent-" + username,
		Username:    username,
		Name:        username,
		Personality: "Test persona",
		Style:       "direct",
		Interests:   []string{"testing"},
		Color:       "#3B82F6",
		Faction:     core.FactionRationalists,
		Reputation:  core.StartingReputation,
		Memory:      []string{},
	}
}

// RosterFixture returns n agents named agent_0 .. agent_n-1.
func RosterFixture(n int) []core.Agent {
	agents := make([]core.Agent, n)
	for i := range agents {
		agents[i] = AgentFixture(fmt.Sprintf("agent_%d", i))
	}
	return agents
}

// PostFixture returns a post by author with the given content.
func PostFixture(author core.Agent, content string) core.Post {
	return core.Post{
		ID:             uuid.New().String(),
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		Content:        content,
		Timestamp:      time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
		Comments:       []core.Comment{},
		Likes:          []string{},
		Retweets:       []string{},
	}
}

package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/testutil"
)

func analyticsFixture() core.Snapshot {
	agents := testutil.RosterFixture(7)
	for i := range agents {
		agents[i].Reputation = 100 + i*10
	}
	agents[0].Faction = core.FactionMystics
	agents[1].Faction = core.FactionMystics
	agents[2].Faction = ""

	posts := make([]core.Post, 20)
	for i := range posts {
		posts[i] = postBy("agent_0", fmt.Sprintf("post %d", i))
		posts[i].Views = 1
	}
	posts[3].Likes = []string{"a", "b"}
	posts[3].Retweets = []string{"c"}
	posts[7].Likes = []string{"a"}
	posts[7].Comments = []core.Comment{{ID: "c1"}, {ID: "c2"}}

	return core.Snapshot{
		Agents:       agents,
		Posts:        posts,
		Narratives:   []string{"n1"},
		Interactions: 42,
		Live:         true,
		Status:       core.StatusIdle,
	}
}

func TestAnalyze(t *testing.T) {
	a := Analyze(analyticsFixture())

	assert.Equal(t, 7, a.TotalAgents)
	assert.Equal(t, 20, a.TotalPosts)
	assert.Equal(t, 2, a.TotalComments)
	assert.Equal(t, 3, a.TotalLikes)
	assert.Equal(t, 1, a.TotalRetweets)
	assert.Equal(t, 20, a.TotalViews)
	assert.Equal(t, 1, a.ActiveThemes)
	assert.Equal(t, 42, a.Interactions)
	assert.True(t, a.Live)

	require.Len(t, a.TopAgents, 5)
	assert.Equal(t, "agent_6", a.TopAgents[0].Username)
	assert.Equal(t, "agent_2", a.TopAgents[4].Username)

	assert.Equal(t, 2, a.FactionCounts[core.FactionMystics])
	assert.Equal(t, 4, a.FactionCounts[core.FactionRationalists])
	_, hasEmpty := a.FactionCounts[""]
	assert.False(t, hasEmpty)

	require.Len(t, a.Trending, 15)
	assert.Equal(t, "post 3", a.Trending[0].Content)
	assert.Equal(t, "post 7", a.Trending[1].Content)
	assert.Equal(t, "post 0", a.Trending[2].Content, "ties keep feed order")
}

func TestPopulation_StableTies(t *testing.T) {
	snap := core.Snapshot{Agents: testutil.RosterFixture(3)}
	snap.Agents[2].Reputation = 500

	pop := Population(snap)

	names := []string{pop[0].Username, pop[1].Username, pop[2].Username}
	assert.Equal(t, []string{"agent_2", "agent_0", "agent_1"}, names)
}

func TestTrending_FewerThanLimit(t *testing.T) {
	snap := core.Snapshot{Posts: []core.Post{postBy("a", "only")}}
	assert.Len(t, Trending(snap, 15), 1)
	assert.Empty(t, Trending(core.Snapshot{}, 15))
}

func TestAnalyze_Empty(t *testing.T) {
	a := Analyze(core.Snapshot{})
	assert.Empty(t, a.TopAgents)
	assert.Empty(t, a.Trending)
	assert.NotNil(t, a.Narratives)
}

func TestResolveAgents(t *testing.T) {
	snap := core.Snapshot{Agents: testutil.RosterFixture(3)}

	refs := ResolveAgents(snap, []string{"agent-agent_2", "ghost", "agent-agent_0"})
	require.Len(t, refs, 2)
	assert.Equal(t, AgentRef{ID: "agent-agent_2", Username: "agent_2"}, refs[0])
	assert.Equal(t, AgentRef{ID: "agent-agent_0", Username: "agent_0"}, refs[1])

	assert.Empty(t, ResolveAgents(snap, nil))
}

package engine

import (
	"cmp"
	"slices"

	"github.com/aier/aier/internal/core"
)

// Analytics is a read-only projection of a snapshot.
type Analytics struct {
	TotalAgents   int                  `json:"total_agents"`
	TotalPosts    int                  `json:"total_posts"`
	TotalComments int                  `json:"total_comments"`
	TotalLikes    int                  `json:"total_likes"`
	TotalRetweets int                  `json:"total_retweets"`
	TotalViews    int                  `json:"total_views"`
	TopAgents     []core.Agent         `json:"top_agents"`
	FactionCounts map[core.Faction]int `json:"faction_counts"`
	Trending      []core.Post          `json:"trending"`
	Narratives    []string             `json:"narratives"`
	ActiveThemes  int                  `json:"active_themes"`
	Interactions  int                  `json:"interactions"`
	Status        core.EngineStatus    `json:"status"`
	Live          bool                 `json:"is_live"`
}

const (
	topAgentsLimit = 5
	trendingLimit  = 15
)

// Analyze computes totals, the top agents by reputation, faction counts and
// the trending posts.
func Analyze(snap core.Snapshot) Analytics {
	a := Analytics{
		TotalAgents:   len(snap.Agents),
		TotalPosts:    len(snap.Posts),
		FactionCounts: make(map[core.Faction]int),
		Narratives:    slices.Clone(snap.Narratives),
		ActiveThemes:  len(snap.Narratives),
		Interactions:  snap.Interactions,
		Status:        snap.Status,
		Live:          snap.Live,
	}
	if a.Narratives == nil {
		a.Narratives = []string{}
	}

	for _, p := range snap.Posts {
		a.TotalComments += len(p.Comments)
		a.TotalLikes += len(p.Likes)
		a.TotalRetweets += len(p.Retweets)
		a.TotalViews += p.Views
	}
	for _, ag := range snap.Agents {
		if ag.Faction != "" {
			a.FactionCounts[ag.Faction]++
		}
	}

	pop := Population(snap)
	a.TopAgents = pop[:min(topAgentsLimit, len(pop))]
	a.Trending = Trending(snap, trendingLimit)
	return a
}

// Population returns the agents ordered by reputation, highest first. Ties
// keep roster order.
func Population(snap core.Snapshot) []core.Agent {
	agents := make([]core.Agent, len(snap.Agents))
	for i, a := range snap.Agents {
		agents[i] = a.Clone()
	}
	slices.SortStableFunc(agents, func(x, y core.Agent) int {
		return cmp.Compare(y.Reputation, x.Reputation)
	})
	return agents
}

// Trending returns up to limit posts ordered by likes plus retweets. Ties
// keep feed order, newest first.
func Trending(snap core.Snapshot, limit int) []core.Post {
	posts := make([]core.Post, len(snap.Posts))
	for i, p := range snap.Posts {
		posts[i] = p.Clone()
	}
	slices.SortStableFunc(posts, func(x, y core.Post) int {
		return cmp.Compare(y.Engagement(), x.Engagement())
	})
	return posts[:min(limit, len(posts))]
}

// AgentRef pairs an agent id with its handle.
type AgentRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ResolveAgents maps agent ids to handles within snap, keeping the order of
// ids. Ids with no matching agent are skipped.
func ResolveAgents(snap core.Snapshot, ids []string) []AgentRef {
	names := make(map[string]string, len(snap.Agents))
	for _, a := range snap.Agents {
		names[a.ID] = a.Username
	}
	refs := make([]AgentRef, 0, len(ids))
	for _, id := range ids {
		if u, ok := names[id]; ok {
			refs = append(refs, AgentRef{ID: id, Username: u})
		}
	}
	return refs
}

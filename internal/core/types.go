// Package core defines the fundamental types for AIER.
// Every other package speaks in these types; nothing here performs I/O.
package core

import (
	"slices"
	"time"
)

// -----------------------------------------------------------------------------
// FACTION - ideological grouping, cosmetic only
// -----------------------------------------------------------------------------

// Faction is one of the five fixed groupings an agent may belong to.
type Faction string

const (
	FactionRationalists Faction = "Rationalists"
	FactionMystics      Faction = "Mystics"
	FactionRebels       Faction = "Rebels"
	FactionRealists     Faction = "Realists"
	FactionUtopians     Faction = "Utopians"
)

// Factions lists every valid faction in display order.
var Factions = []Faction{
	FactionRationalists,
	FactionMystics,
	FactionRebels,
	FactionRealists,
	FactionUtopians,
}

// Valid reports whether f is one of the fixed factions.
func (f Faction) Valid() bool {
	return slices.Contains(Factions, f)
}

// -----------------------------------------------------------------------------
// AGENT - an autonomous persona
// -----------------------------------------------------------------------------

// MaxMemory is how many of its own texts an agent remembers.
const MaxMemory = 3

// StartingReputation is assigned to every newly created agent.
const StartingReputation = 100

// Agent is an autonomous persona living on the network.
// ID, Username and Name never change after creation. Username is the join
// key used by posts and comments.
type Agent struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`

	// Traits
	Personality string   `json:"personality"`
	Style       string   `json:"style"`
	Interests   []string `json:"interests"`
	Color       string   `json:"color"`
	Faction     Faction  `json:"faction,omitempty"`

	// Mutable state
	Reputation int      `json:"reputation"`
	Memory     []string `json:"memory"` // newest first, at most MaxMemory
}

// Remember prepends text to the agent's memory, keeping at most MaxMemory entries.
func (a *Agent) Remember(text string) {
	mem := make([]string, 0, MaxMemory)
	mem = append(mem, text)
	for _, m := range a.Memory {
		if len(mem) == MaxMemory {
			break
		}
		mem = append(mem, m)
	}
	a.Memory = mem
}

// Clone returns a deep copy of the agent.
func (a Agent) Clone() Agent {
	a.Interests = slices.Clone(a.Interests)
	a.Memory = slices.Clone(a.Memory)
	return a
}

// -----------------------------------------------------------------------------
// POST & COMMENT - units of content
// -----------------------------------------------------------------------------

// MaxPosts bounds the post list; the oldest posts are evicted first.
const MaxPosts = 300

// Comment is a reply nested under a Post.
type Comment struct {
	ID             string   `json:"id"`
	AuthorID       string   `json:"author_id"`
	AuthorUsername string   `json:"author_username"`
	Content        string   `json:"content"`
	Timestamp      int64    `json:"timestamp"` // unix millis
	Likes          []string `json:"likes"`
}

// Post is a unit of content published by an agent.
type Post struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Content        string    `json:"content"`
	Timestamp      int64     `json:"timestamp"` // unix millis
	Comments       []Comment `json:"comments"`  // newest first
	Likes          []string  `json:"likes"`     // agent ids, unique
	Retweets       []string  `json:"retweets"`  // agent ids, unique
	Views          int       `json:"views"`
	IsBirthPost    bool      `json:"is_birth_post,omitempty"`
}

// CreatedAt returns the post timestamp as a time.Time.
func (p Post) CreatedAt() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// LikedBy reports whether agentID already liked the post.
func (p Post) LikedBy(agentID string) bool {
	return slices.Contains(p.Likes, agentID)
}

// RetweetedBy reports whether agentID already reshared the post.
func (p Post) RetweetedBy(agentID string) bool {
	return slices.Contains(p.Retweets, agentID)
}

// AddLike records a like. It returns false if agentID already liked the post.
func (p *Post) AddLike(agentID string) bool {
	if p.LikedBy(agentID) {
		return false
	}
	p.Likes = append(p.Likes, agentID)
	return true
}

// AddRetweet records a reshare. It returns false if agentID already reshared the post.
func (p *Post) AddRetweet(agentID string) bool {
	if p.RetweetedBy(agentID) {
		return false
	}
	p.Retweets = append(p.Retweets, agentID)
	return true
}

// Engagement is likes plus retweets, used for trending order.
func (p Post) Engagement() int {
	return len(p.Likes) + len(p.Retweets)
}

// Clone returns a deep copy of the post.
func (p Post) Clone() Post {
	p.Likes = slices.Clone(p.Likes)
	p.Retweets = slices.Clone(p.Retweets)
	if p.Comments != nil {
		comments := make([]Comment, len(p.Comments))
		for i, c := range p.Comments {
			c.Likes = slices.Clone(c.Likes)
			comments[i] = c
		}
		p.Comments = comments
	}
	return p
}

// PrependPost puts post at the head of posts and evicts beyond MaxPosts.
func PrependPost(posts []Post, post Post) []Post {
	out := make([]Post, 0, min(len(posts)+1, MaxPosts))
	out = append(out, post)
	for _, p := range posts {
		if len(out) == MaxPosts {
			break
		}
		out = append(out, p)
	}
	return out
}

// -----------------------------------------------------------------------------
// ENGINE - process-wide status
// -----------------------------------------------------------------------------

// EngineStatus is the engine's current activity.
type EngineStatus string

const (
	StatusIdle       EngineStatus = "IDLE"
	StatusThinking   EngineStatus = "THINKING"
	StatusPosting    EngineStatus = "POSTING"
	StatusCommenting EngineStatus = "COMMENTING"
	StatusLiking     EngineStatus = "LIKING"
	StatusRetweeting EngineStatus = "RETWEETING"
	StatusSpawning   EngineStatus = "SPAWNING"
	StatusError      EngineStatus = "ERROR"
	StatusCooldown   EngineStatus = "COOLDOWN"
)

// MaxLogs bounds the engine log buffer.
const MaxLogs = 50

// InteractionKind selects which engagement set a detail request returns.
type InteractionKind string

const (
	InteractionLikes    InteractionKind = "likes"
	InteractionRetweets InteractionKind = "retweets"
)

// InitialLog is the first entry of a fresh log buffer.
const InitialLog = "SYSTEM CORE STABLE. READY."

// FormatLog renders a log line as "[HH:MM:SS] msg".
func FormatLog(t time.Time, msg string) string {
	return "[" + t.Format("15:04:05") + "] " + msg
}

// PrependLog puts line at the head of logs and evicts beyond MaxLogs.
func PrependLog(logs []string, line string) []string {
	out := make([]string, 0, min(len(logs)+1, MaxLogs))
	out = append(out, line)
	for _, l := range logs {
		if len(out) == MaxLogs {
			break
		}
		out = append(out, l)
	}
	return out
}

// -----------------------------------------------------------------------------
// SNAPSHOT - a consistent copy of the whole network
// -----------------------------------------------------------------------------

// Snapshot is a point-in-time copy of the network. Agents, Posts,
// Narratives, Logs and Live are persisted; Status and Interactions are not.
type Snapshot struct {
	Status       EngineStatus `json:"status"`
	Live         bool         `json:"is_live"`
	Interactions int          `json:"interactions"`
	Agents       []Agent      `json:"agents"`
	Posts        []Post       `json:"posts"`
	Narratives   []string     `json:"narratives"`
	Logs         []string     `json:"logs"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Agents = make([]Agent, len(s.Agents))
	for i, a := range s.Agents {
		out.Agents[i] = a.Clone()
	}
	out.Posts = make([]Post, len(s.Posts))
	for i, p := range s.Posts {
		out.Posts[i] = p.Clone()
	}
	out.Narratives = slices.Clone(s.Narratives)
	out.Logs = slices.Clone(s.Logs)
	if out.Narratives == nil {
		out.Narratives = []string{}
	}
	if out.Logs == nil {
		out.Logs = []string{}
	}
	return out
}

// AgentByUsername returns the index of the agent with username, or -1.
func (s Snapshot) AgentByUsername(username string) int {
	return slices.IndexFunc(s.Agents, func(a Agent) bool { return a.Username == username })
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/llm"
	"github.com/aier/aier/internal/logging"
	"github.com/aier/aier/internal/narrative"
)

// Action is one of the four weighted actions a tick can take.
type Action int

const (
	ActionPost Action = iota
	ActionComment
	ActionLike
	ActionRetweet
)

func (a Action) String() string {
	switch a {
	case ActionPost:
		return "post"
	case ActionComment:
		return "comment"
	case ActionLike:
		return "like"
	case ActionRetweet:
		return "retweet"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// pickAction maps a uniform draw in [0,1) onto the 25/30/30/15 split.
func pickAction(draw float64) Action {
	switch {
	case draw < 0.25:
		return ActionPost
	case draw < 0.55:
		return ActionComment
	case draw < 0.85:
		return ActionLike
	default:
		return ActionRetweet
	}
}

func (e *Engine) tickTask(ctx context.Context) error {
	e.Tick(ctx)
	return nil
}

// Tick runs one step of the loop. It does nothing unless the engine is
// IDLE; the transition to THINKING claims the step. Failures never escape:
// they move the engine into COOLDOWN or ERROR for a fixed hold.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	if e.state.Status != core.StatusIdle {
		e.mu.Unlock()
		return
	}
	e.state.Status = core.StatusThinking
	e.state.Interactions++
	n := e.state.Interactions

	if n%e.cfg.SpawnEvery == 0 && e.rnd.Float64() < e.cfg.SpawnChance {
		e.state.Status = core.StatusSpawning
		e.mu.Unlock()

		err := e.spawnAgent(ctx)
		e.finish(ctx, err, logSpawnFault)
		return
	}

	actor := e.state.Agents[e.rnd.Intn(len(e.state.Agents))].Clone()
	action := pickAction(e.rnd.Float64())
	e.mu.Unlock()

	var err error
	switch action {
	case ActionPost:
		err = e.post(ctx, actor)
	case ActionComment:
		err = e.comment(ctx, actor)
	case ActionLike:
		e.engage(actor, ActionLike)
	case ActionRetweet:
		e.engage(actor, ActionRetweet)
	}
	e.finish(ctx, err, logCorruption)
}

// finish classifies the outcome, sets the resulting status and commits.
func (e *Engine) finish(ctx context.Context, err error, faultLog string) {
	e.mu.Lock()
	switch {
	case err == nil:
		e.state.Narratives = narrative.Detect(postContents(e.state.Posts))
		e.state.Status = core.StatusIdle

	case ctx.Err() != nil:
		// Shutdown interrupted the step.
		e.state.Status = core.StatusIdle

	case llm.IsRateLimited(err):
		logging.WithField("error", err).Warn("provider rate limited, cooling down")
		e.addLog(logQuotaHit)
		e.enterHold(core.StatusCooldown, e.cfg.CooldownHold)

	default:
		logging.WithField("error", err).Error("tick failed")
		e.addLog(faultLog)
		e.enterHold(core.StatusError, e.cfg.ErrorHold)
	}
	e.mu.Unlock()

	e.commit()
}

// enterHold sets status and schedules the return to IDLE. The return only
// happens if nothing else changed the status in between. Caller holds e.mu.
func (e *Engine) enterHold(status core.EngineStatus, d time.Duration) {
	e.state.Status = status
	if e.hold != nil {
		e.hold.Stop()
	}
	e.hold = e.clock.AfterFunc(d, func() {
		e.mu.Lock()
		if e.state.Status != status {
			e.mu.Unlock()
			return
		}
		e.state.Status = core.StatusIdle
		e.hold = nil
		e.mu.Unlock()
		e.commit()
	})
}

func (e *Engine) setStatus(s core.EngineStatus) {
	e.mu.Lock()
	e.state.Status = s
	e.mu.Unlock()
}

// readContext returns what the generators see: narratives and the most
// recent post texts.
func (e *Engine) readContext() (narratives, recent []string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	narratives = append([]string(nil), e.state.Narratives...)
	recent = postContents(e.state.Posts[:min(postWindow, len(e.state.Posts))])
	return narratives, recent
}

// spawnAgent creates an agent, adds it to the roster and publishes its
// birth post.
func (e *Engine) spawnAgent(ctx context.Context) error {
	e.mu.RLock()
	taken := make([]string, len(e.state.Agents))
	for i, a := range e.state.Agents {
		taken[i] = a.Username
	}
	e.mu.RUnlock()

	agent, err := e.spawn.Spawn(ctx, taken)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}

	e.mu.Lock()
	e.state.Agents = append(e.state.Agents, agent)
	e.addLog(fmt.Sprintf("NODE SPAWNED: @%s (%s)", agent.Username, agent.Faction))
	e.mu.Unlock()
	logging.WithFields(map[string]interface{}{
		"agent":   agent.Username,
		"faction": agent.Faction,
	}).Info("agent spawned")

	narratives, recent := e.readContext()
	text, err := e.gen.GeneratePost(ctx, agent, true, narratives, recent)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	post := e.newPost(agent, text)
	post.Views = 1
	post.IsBirthPost = true
	e.state.Posts = core.PrependPost(e.state.Posts, post)
	return nil
}

func (e *Engine) post(ctx context.Context, actor core.Agent) error {
	e.setStatus(core.StatusPosting)
	narratives, recent := e.readContext()

	text, err := e.gen.GeneratePost(ctx, actor, false, narratives, recent)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.state.AgentByUsername(actor.Username); i >= 0 {
		e.state.Agents[i].Remember(text)
	}
	e.state.Posts = core.PrependPost(e.state.Posts, e.newPost(actor, text))
	e.addLog(fmt.Sprintf("@%s transmitted new signal.", actor.Username))
	logging.WithField("agent", actor.Username).Debug("posted")
	return nil
}

func (e *Engine) comment(ctx context.Context, actor core.Agent) error {
	e.mu.Lock()
	if len(e.state.Posts) == 0 {
		e.mu.Unlock()
		return nil
	}
	e.state.Status = core.StatusCommenting
	target := e.state.Posts[e.rnd.Intn(min(len(e.state.Posts), commentWindow))].Clone()
	narratives := append([]string(nil), e.state.Narratives...)
	e.mu.Unlock()

	if target.AuthorUsername == actor.Username {
		return nil
	}

	text, err := e.gen.GenerateComment(ctx, actor, target, narratives)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The target may have been evicted while the provider was busy.
	idx := e.postIndex(target.ID)
	if idx < 0 {
		return nil
	}

	p := &e.state.Posts[idx]
	c := core.Comment{
		ID:             uuid.New().String(),
		AuthorID:       actor.ID,
		AuthorUsername: actor.Username,
		Content:        text,
		Timestamp:      e.clock.Now().UnixMilli(),
		Likes:          []string{},
	}
	p.Comments = append([]core.Comment{c}, p.Comments...)
	p.Views += 12

	for i := range e.state.Agents {
		a := &e.state.Agents[i]
		switch a.Username {
		case target.AuthorUsername:
			a.Reputation += 5
		case actor.Username:
			a.Reputation += 2
			a.Remember(text)
		}
	}
	e.addLog(fmt.Sprintf("@%s replied to @%s.", actor.Username, target.AuthorUsername))
	return nil
}

// engage applies a like or retweet. Authors may engage with their own posts.
func (e *Engine) engage(actor core.Agent, action Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.state.Posts) == 0 {
		return
	}

	if action == ActionLike {
		e.state.Status = core.StatusLiking
	} else {
		e.state.Status = core.StatusRetweeting
	}

	p := &e.state.Posts[e.rnd.Intn(min(len(e.state.Posts), engagingWindow))]
	var (
		added bool
		views int
		rep   int
		msg   string
	)
	if action == ActionLike {
		added, views, rep = p.AddLike(actor.ID), 5, 3
		msg = fmt.Sprintf("@%s liked @%s's signal.", actor.Username, p.AuthorUsername)
	} else {
		added, views, rep = p.AddRetweet(actor.ID), 8, 10
		msg = fmt.Sprintf("@%s echoed @%s.", actor.Username, p.AuthorUsername)
	}
	if !added {
		return
	}

	p.Views += views
	if i := e.state.AgentByUsername(p.AuthorUsername); i >= 0 {
		e.state.Agents[i].Reputation += rep
	}
	e.addLog(msg)
}

// newPost builds a post by author. Caller holds e.mu.
func (e *Engine) newPost(author core.Agent, text string) core.Post {
	return core.Post{
		ID:             uuid.New().String(),
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		Content:        text,
		Timestamp:      e.clock.Now().UnixMilli(),
		Comments:       []core.Comment{},
		Likes:          []string{},
		Retweets:       []string{},
	}
}

func (e *Engine) postIndex(id string) int {
	for i, p := range e.state.Posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func postContents(posts []core.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Content
	}
	return out
}

// Package engine runs the autonomous network: a single actor that, on a
// jittered cadence, picks an agent and an action, asks the content layer
// for text and applies the result to shared state.
package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/logging"
	"github.com/aier/aier/internal/scheduler"
)

// Task IDs registered with the scheduler.
const (
	TickTaskID   = "engine-tick"
	IgniteTaskID = "auto-ignite"
)

// Log lines.
const (
	logQuotaHit   = "QUOTA HIT. BACKING OFF 15S."
	logCorruption = "SIGNAL CORRUPTION."
	logSpawnFault = "SPAWN FAULT."
	logIgnition   = "AUTONOMOUS IGNITION SUCCESSFUL."
)

const (
	postWindow     = 5  // recent posts shown to the post generator
	commentWindow  = 12 // candidate posts for a comment
	engagingWindow = 20 // candidate posts for a like or retweet
)

// Generator produces post and comment text.
type Generator interface {
	GeneratePost(ctx context.Context, agent core.Agent, birth bool, narratives, recent []string) (string, error)
	GenerateComment(ctx context.Context, agent core.Agent, target core.Post, narratives []string) (string, error)
}

// Spawner creates brand-new agents.
type Spawner interface {
	Spawn(ctx context.Context, taken []string) (core.Agent, error)
}

// Saver persists a snapshot.
type Saver interface {
	Save(ctx context.Context, snap core.Snapshot) error
}

// Config wires the engine's capabilities and timings.
type Config struct {
	Generator Generator
	Spawner   Spawner
	Saver     Saver // optional
	Random    core.Random
	Clock     clock.Clock

	TickInterval time.Duration // default 10s
	TickJitter   time.Duration // default 8s; negative means none
	IgniteDelay  time.Duration // default 1.5s
	CooldownHold time.Duration // default 15s
	ErrorHold    time.Duration // default 5s
	SpawnEvery   int           // default 30
	SpawnChance  float64       // default 0.1; negative disables spawning
}

// DefaultConfig returns the standard timings with no capabilities wired.
func DefaultConfig() Config {
	return Config{
		TickInterval: 10 * time.Second,
		TickJitter:   8 * time.Second,
		IgniteDelay:  1500 * time.Millisecond,
		CooldownHold: 15 * time.Second,
		ErrorHold:    5 * time.Second,
		SpawnEvery:   30,
		SpawnChance:  0.1,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	switch {
	case c.TickJitter == 0:
		c.TickJitter = d.TickJitter
	case c.TickJitter < 0:
		c.TickJitter = 0
	}
	if c.IgniteDelay <= 0 {
		c.IgniteDelay = d.IgniteDelay
	}
	if c.CooldownHold <= 0 {
		c.CooldownHold = d.CooldownHold
	}
	if c.ErrorHold <= 0 {
		c.ErrorHold = d.ErrorHold
	}
	if c.SpawnEvery <= 0 {
		c.SpawnEvery = d.SpawnEvery
	}
	if c.SpawnChance == 0 {
		c.SpawnChance = d.SpawnChance
	}
	if c.Random == nil {
		c.Random = core.NewRandom()
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
}

// Engine owns the network state. All mutation goes through it.
type Engine struct {
	cfg   Config
	gen   Generator
	spawn Spawner
	saver Saver
	rnd   core.Random
	clock clock.Clock
	sched *scheduler.Scheduler

	mu          sync.RWMutex
	state       core.Snapshot
	igniteArmed bool
	hold        *clock.Timer
	listeners   []func(core.Snapshot)

	saveMu sync.Mutex
}

// New creates an engine over initial, typically loaded from the state store.
// A fresh network (no posts, run flag off) arms the one-time auto-ignition.
func New(cfg Config, initial core.Snapshot) (*Engine, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("%w: generator", core.ErrMissingRequired)
	}
	if cfg.Spawner == nil {
		return nil, fmt.Errorf("%w: spawner", core.ErrMissingRequired)
	}
	if len(initial.Agents) == 0 {
		return nil, core.ErrEmptyRoster
	}
	cfg.applyDefaults()

	state := initial.Clone()
	state.Status = core.StatusIdle
	if len(state.Logs) == 0 {
		state.Logs = []string{core.FormatLog(cfg.Clock.Now(), core.InitialLog)}
	}

	e := &Engine{
		cfg:   cfg,
		gen:   cfg.Generator,
		spawn: cfg.Spawner,
		saver: cfg.Saver,
		rnd:   cfg.Random,
		clock: cfg.Clock,
		sched: scheduler.NewScheduler(scheduler.Config{Clock: cfg.Clock, Random: cfg.Random}),
		state: state,
	}

	tick := scheduler.NewTask(TickTaskID).
		Name("Engine tick").
		Description("Run one autonomous action").
		EveryWithJitter(cfg.TickInterval, cfg.TickJitter).
		Handler(e.tickTask)
	if !state.Live {
		tick = tick.Disabled()
	}
	if err := e.sched.Register(tick.Build()); err != nil {
		return nil, err
	}

	e.igniteArmed = len(state.Posts) == 0 && !state.Live
	if e.igniteArmed {
		ignite := scheduler.NewTask(IgniteTaskID).
			Name("Auto-ignition").
			Description("Turn the engine on for a fresh network").
			After(cfg.IgniteDelay).
			Handler(e.igniteTask).
			Build()
		if err := e.sched.Register(ignite); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Start begins scheduling. Ticks only run while the run flag is on.
func (e *Engine) Start() error {
	if err := e.sched.Start(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrEngineRunning, err)
	}
	logging.WithFields(map[string]interface{}{
		"live":   e.IsLive(),
		"agents": len(e.Snapshot().Agents),
	}).Info("engine started")
	return nil
}

// Stop halts scheduling, waits for an in-flight tick and writes a final save.
func (e *Engine) Stop(ctx context.Context) error {
	e.sched.Stop()

	e.mu.Lock()
	if e.hold != nil {
		e.hold.Stop()
		e.hold = nil
	}
	if e.state.Status == core.StatusCooldown || e.state.Status == core.StatusError {
		e.state.Status = core.StatusIdle
	}
	e.mu.Unlock()

	logging.Info("engine stopped")
	return e.save(ctx)
}

// OnChange registers fn to receive a snapshot after every save point.
func (e *Engine) OnChange(fn func(core.Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() core.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Status returns the current engine status.
func (e *Engine) Status() core.EngineStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Status
}

// IsLive reports the run flag.
func (e *Engine) IsLive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Live
}

// ToggleRun flips the run flag and returns its new value. Any explicit
// toggle disarms a pending auto-ignition.
func (e *Engine) ToggleRun() bool {
	e.mu.Lock()
	e.state.Live = !e.state.Live
	live := e.state.Live
	if e.igniteArmed {
		e.igniteArmed = false
		e.sched.Unregister(IgniteTaskID)
	}
	if live {
		e.sched.Enable(TickTaskID)
	} else {
		e.sched.Disable(TickTaskID)
	}
	e.mu.Unlock()

	logging.WithField("live", live).Info("run flag toggled")
	e.commit()
	return live
}

// igniteTask turns the engine on once for a fresh network. The task removes
// itself; a disarming toggle removes it too.
func (e *Engine) igniteTask(ctx context.Context) error {
	e.mu.Lock()
	if !e.igniteArmed || e.state.Live {
		e.mu.Unlock()
		return nil
	}
	e.igniteArmed = false
	e.sched.Unregister(IgniteTaskID)
	e.state.Live = true
	e.addLog(logIgnition)
	e.sched.Enable(TickTaskID)
	e.mu.Unlock()

	logging.Info("auto-ignition fired")
	e.commit()
	return nil
}

// InteractionDetail returns the agent ids behind a post's likes or
// retweets, in the order they happened.
func (e *Engine) InteractionDetail(kind core.InteractionKind, postID string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return interactionDetail(e.state, kind, postID)
}

func interactionDetail(snap core.Snapshot, kind core.InteractionKind, postID string) ([]string, error) {
	i := slices.IndexFunc(snap.Posts, func(p core.Post) bool { return p.ID == postID })
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrPostNotFound, postID)
	}

	var ids []string
	switch kind {
	case core.InteractionLikes:
		ids = snap.Posts[i].Likes
	case core.InteractionRetweets:
		ids = snap.Posts[i].Retweets
	default:
		return nil, fmt.Errorf("%w: interaction kind %q", core.ErrInvalidInput, kind)
	}
	return append(make([]string, 0, len(ids)), ids...), nil
}

// addLog prepends a timestamped line. Caller holds e.mu.
func (e *Engine) addLog(msg string) {
	e.state.Logs = core.PrependLog(e.state.Logs, core.FormatLog(e.clock.Now(), msg))
}

// commit is a save point: persist the state and notify listeners.
func (e *Engine) commit() {
	if err := e.save(context.Background()); err != nil {
		logging.Warn("state save failed: %v", err)
	}
}

func (e *Engine) save(ctx context.Context) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.RLock()
	snap := e.state.Clone()
	listeners := slices.Clone(e.listeners)
	e.mu.RUnlock()

	var err error
	if e.saver != nil {
		err = e.saver.Save(ctx, snap)
	}
	for _, fn := range listeners {
		fn(snap)
	}
	return err
}

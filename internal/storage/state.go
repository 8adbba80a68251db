package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/logging"
)

// Slot keys for the persisted network state.
const (
	KeyAgents     = "aier_agents"
	KeyPosts      = "aier_posts"
	KeyNarratives = "aier_narratives"
	KeyLogs       = "aier_logs"
	KeyLive       = "aier_isLive"
)

// StateStore reads and writes the five persisted slots. Each slot is
// independent: a missing or corrupt slot falls back to its default without
// affecting the others.
type StateStore struct {
	kv    KV
	seed  []core.Agent
	clock clock.Clock
}

// NewStateStore wraps kv. seed is the roster used when no agents are stored.
func NewStateStore(kv KV, seed []core.Agent, clk clock.Clock) *StateStore {
	if clk == nil {
		clk = clock.New()
	}
	return &StateStore{kv: kv, seed: seed, clock: clk}
}

// Load returns the persisted state with defaults filled in. Status is IDLE
// and the interaction counter starts at zero.
func (s *StateStore) Load(ctx context.Context) core.Snapshot {
	snap := core.Snapshot{Status: core.StatusIdle}

	if !s.load(ctx, KeyAgents, &snap.Agents) || len(snap.Agents) == 0 {
		snap.Agents = s.seedRoster()
	}
	if !s.load(ctx, KeyPosts, &snap.Posts) || snap.Posts == nil {
		snap.Posts = []core.Post{}
	}
	if !s.load(ctx, KeyNarratives, &snap.Narratives) || snap.Narratives == nil {
		snap.Narratives = []string{}
	}
	if !s.load(ctx, KeyLogs, &snap.Logs) || len(snap.Logs) == 0 {
		snap.Logs = []string{core.FormatLog(s.clock.Now(), core.InitialLog)}
	}
	if !s.load(ctx, KeyLive, &snap.Live) {
		snap.Live = false
	}

	return snap
}

// load decodes one slot into dst, reporting whether it was present and valid.
func (s *StateStore) load(ctx context.Context, key string, dst any) bool {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		logging.WithField("key", key).Warn("state slot unreadable: %v", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logging.WithField("key", key).Warn("state slot corrupt, using default: %v", err)
		return false
	}
	return true
}

func (s *StateStore) seedRoster() []core.Agent {
	agents := make([]core.Agent, len(s.seed))
	for i, a := range s.seed {
		agents[i] = a.Clone()
	}
	return agents
}

// Save writes every slot. All slots are attempted; the first error is
// returned.
func (s *StateStore) Save(ctx context.Context, snap core.Snapshot) error {
	slots := []struct {
		key   string
		value any
	}{
		{KeyAgents, snap.Agents},
		{KeyPosts, snap.Posts},
		{KeyNarratives, snap.Narratives},
		{KeyLogs, snap.Logs},
		{KeyLive, snap.Live},
	}

	var first error
	for _, slot := range slots {
		raw, err := json.Marshal(slot.value)
		if err == nil {
			err = s.kv.Set(ctx, slot.key, raw)
		}
		if err != nil && first == nil {
			first = fmt.Errorf("save %s: %w", slot.key, err)
		}
	}
	return first
}

// Reset overwrites the store with a fresh state: the seed roster, no posts
// and the run flag off.
func (s *StateStore) Reset(ctx context.Context) (core.Snapshot, error) {
	snap := core.Snapshot{
		Status:     core.StatusIdle,
		Agents:     s.seedRoster(),
		Posts:      []core.Post{},
		Narratives: []string{},
		Logs:       []string{core.FormatLog(s.clock.Now(), core.InitialLog)},
	}
	return snap, s.Save(ctx, snap)
}

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aier/aier/internal/core"
)

// backends returns every KV implementation that can run without external
// services. Postgres joins when AIER_TEST_POSTGRES_DSN is set.
func backends(t *testing.T) map[string]KV {
	t.Helper()

	sqliteDB, err := OpenSQLite(SQLiteConfig{InMemory: true})
	require.NoError(t, err)

	file, err := OpenFile(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	kvs := map[string]KV{
		BackendMemory: NewMemory(),
		BackendSQLite: sqliteDB,
		BackendFile:   file,
	}

	if dsn := os.Getenv("AIER_TEST_POSTGRES_DSN"); dsn != "" {
		pg, err := OpenPostgres(context.Background(), dsn)
		require.NoError(t, err)
		kvs[BackendPostgres] = pg
	}

	t.Cleanup(func() {
		for _, kv := range kvs {
			kv.Close()
		}
	})
	return kvs
}

// =============================================================================
// KV Tests
// =============================================================================

func TestKV_GetSet(t *testing.T) {
	ctx := context.Background()

	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := kv.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, kv.Set(ctx, "k", []byte(`{"a":1}`)))
			got, ok, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"a":1}`, string(got))

			require.NoError(t, kv.Set(ctx, "k", []byte(`[true]`)))
			got, _, err = kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.JSONEq(t, `[true]`, string(got))
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "etcd"})
	if !errors.Is(err, core.ErrUnknownBackend) {
		t.Errorf("Open() error = %v, want ErrUnknownBackend", err)
	}
}

func TestOpen_ByName(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"memory", Config{Backend: BackendMemory}},
		{"sqlite", Config{Backend: BackendSQLite, Path: DefaultPath(BackendSQLite, dir)}},
		{"file", Config{Backend: BackendFile, Path: DefaultPath(BackendFile, dir)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, err := Open(ctx, tt.cfg)
			require.NoError(t, err)
			defer kv.Close()
			require.NoError(t, kv.Set(ctx, "x", []byte("1")))
		})
	}
}

func TestOpenPostgres_RequiresDSN(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), ""); err == nil {
		t.Error("expected error for empty dsn")
	}
}

func TestFile_RejectsNonJSON(t *testing.T) {
	f, err := OpenFile(filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, err)

	err = f.Set(context.Background(), "k", []byte("not json"))
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestFile_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "s.json")
	ctx := context.Background()

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Set(ctx, "k", []byte(`"v"`)))

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	got, ok, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `"v"`, string(got))
}

func TestSQLite_FilePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aier.db")
	ctx := context.Background()

	db, err := OpenSQLite(SQLiteConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, db.Set(ctx, "k", []byte(`1`)))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer db.Close()

	got, ok, err := db.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(got))
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	db, err := OpenSQLite(SQLiteConfig{InMemory: true})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())

	applied, err := db.AppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_kv.sql"}, applied)
}

// =============================================================================
// StateStore Tests
// =============================================================================

var testNow = time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

func seedAgents() []core.Agent {
	return []core.Agent{
		{ID: "1", Username: "alpha", Name: "Alpha", Interests: []string{"x"}, Memory: []string{}, Reputation: 100},
		{ID: "2", Username: "beta", Name: "Beta", Interests: []string{"y"}, Memory: []string{}, Reputation: 100},
	}
}

func newTestStore(kv KV) *StateStore {
	mock := clock.NewMock()
	mock.Set(testNow)
	return NewStateStore(kv, seedAgents(), mock)
}

func TestStateStore_Defaults(t *testing.T) {
	store := newTestStore(NewMemory())

	snap := store.Load(context.Background())

	assert.Equal(t, core.StatusIdle, snap.Status)
	assert.Equal(t, seedAgents(), snap.Agents)
	assert.Empty(t, snap.Posts)
	assert.NotNil(t, snap.Posts)
	assert.Empty(t, snap.Narratives)
	assert.Equal(t, []string{"[08:30:00] SYSTEM CORE STABLE. READY."}, snap.Logs)
	assert.False(t, snap.Live)
	assert.Zero(t, snap.Interactions)
}

func TestStateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := newTestStore(kv)

			want := core.Snapshot{
				Status: core.StatusIdle,
				Live:   true,
				Agents: []core.Agent{
					{ID: "1", Username: "alpha", Name: "Alpha", Interests: []string{"x"}, Memory: []string{"m1", "m2"}, Reputation: 117, Faction: core.FactionRebels, Color: "#FFFFFF"},
				},
				Posts: []core.Post{{
					ID: "p1", AuthorID: "1", AuthorUsername: "alpha", Content: "hello pattern", Timestamp: testNow.UnixMilli(),
					Comments: []core.Comment{{ID: "c1", AuthorID: "1", AuthorUsername: "alpha", Content: "reply", Timestamp: 5, Likes: []string{}}},
					Likes:    []string{"1"},
					Retweets: []string{},
					Views:    17,
				}},
				Narratives: []string{`Theme: "PATTERN" is consolidating in the cluster.`},
				Logs:       []string{"[08:30:00] @alpha transmitted new signal."},
			}

			require.NoError(t, store.Save(ctx, want))
			got := store.Load(ctx)

			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStateStore_CorruptSlotFallsBackAlone(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	store := newTestStore(kv)

	require.NoError(t, kv.Set(ctx, KeyPosts, []byte("{broken")))
	require.NoError(t, kv.Set(ctx, KeyLive, []byte("true")))
	require.NoError(t, kv.Set(ctx, KeyNarratives, []byte(`["n"]`)))

	snap := store.Load(ctx)

	assert.Equal(t, []core.Post{}, snap.Posts)
	assert.True(t, snap.Live)
	assert.Equal(t, []string{"n"}, snap.Narratives)
	assert.Len(t, snap.Agents, 2)
}

func TestStateStore_SeedIsCopied(t *testing.T) {
	store := newTestStore(NewMemory())

	snap := store.Load(context.Background())
	snap.Agents[0].Memory = append(snap.Agents[0].Memory, "mutated")
	snap.Agents[0].Interests[0] = "mutated"

	again := store.Load(context.Background())
	assert.Empty(t, again.Agents[0].Memory)
	assert.Equal(t, "x", again.Agents[0].Interests[0])
}

func TestStateStore_Reset(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(NewMemory())

	require.NoError(t, store.Save(ctx, core.Snapshot{
		Live:   true,
		Agents: []core.Agent{{ID: "9", Username: "spawned"}},
		Posts:  []core.Post{{ID: "p"}},
	}))

	_, err := store.Reset(ctx)
	require.NoError(t, err)

	snap := store.Load(ctx)
	assert.False(t, snap.Live)
	assert.Empty(t, snap.Posts)
	assert.Equal(t, seedAgents(), snap.Agents)
}

type failingKV struct{ *Memory }

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("disk full")
}

func TestStateStore_SaveReportsFailure(t *testing.T) {
	store := newTestStore(&failingKV{NewMemory()})

	err := store.Save(context.Background(), core.Snapshot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyAgents)
}

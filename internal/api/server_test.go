package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aier/aier/internal/content"
	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/engine"
	"github.com/aier/aier/internal/testutil"
	"github.com/aier/aier/internal/testutil/mockllm"
)

// testServer creates a server over an engine that is never started, so
// state only changes through the API.
func testServer(t *testing.T) *Server {
	t.Helper()

	alpha := testutil.AgentFixture("alpha")
	alpha.Reputation = 140
	beta := testutil.AgentFixture("beta")
	beta.Reputation = 180
	beta.Faction = core.FactionMystics
	gamma := testutil.AgentFixture("gamma")

	liked := testutil.PostFixture(alpha, "The feed is a mirror with a delay.")
	liked.ID = "post-liked"
	liked.Likes = []string{gamma.ID, beta.ID, "agent-ghost"}
	liked.Retweets = []string{beta.ID}
	liked.Views = 40

	plain := testutil.PostFixture(beta, "Silence is also a signal.")
	plain.ID = "post-plain"

	provider := &mockllm.Provider{}
	rnd := core.NewRandom()
	mock := clock.NewMock()

	eng, err := engine.New(engine.Config{
		Generator: content.NewGenerator(content.Config{Provider: provider, Random: rnd}),
		Spawner:   content.NewSpawner(provider, rnd, content.RetryPolicy{}),
		Random:    rnd,
		Clock:     mock,
	}, core.Snapshot{
		Agents:     []core.Agent{alpha, beta, gamma},
		Posts:      []core.Post{plain, liked},
		Narratives: []string{`Theme: "SIGNAL" is consolidating in the cluster.`},
		Live:       false,
	})
	require.NoError(t, err)

	srv := New(Config{Host: "127.0.0.1", Port: 0, Engine: eng})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(ctx)
		eng.Stop(ctx)
	})
	return srv
}

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

// =============================================================================
// State Tests
// =============================================================================

func TestAPI_Health(t *testing.T) {
	srv := testServer(t)

	rr := do(t, srv, "GET", "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestAPI_GetState(t *testing.T) {
	srv := testServer(t)

	rr := do(t, srv, "GET", "/api/v1/state")
	require.Equal(t, http.StatusOK, rr.Code)

	var snap core.Snapshot
	decode(t, rr, &snap)
	assert.Equal(t, core.StatusIdle, snap.Status)
	assert.False(t, snap.Live)
	assert.Len(t, snap.Agents, 3)
	assert.Len(t, snap.Posts, 2)
	assert.Len(t, snap.Logs, 1)
}

func TestAPI_NarrativesAndLogs(t *testing.T) {
	srv := testServer(t)

	var narratives []string
	decode(t, do(t, srv, "GET", "/api/v1/narratives"), &narratives)
	assert.Equal(t, []string{`Theme: "SIGNAL" is consolidating in the cluster.`}, narratives)

	var logs []string
	decode(t, do(t, srv, "GET", "/api/v1/logs"), &logs)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0], core.InitialLog)
}

// =============================================================================
// Agent Tests
// =============================================================================

func TestAPI_ListAgents_ByReputation(t *testing.T) {
	srv := testServer(t)

	var agents []core.Agent
	decode(t, do(t, srv, "GET", "/api/v1/agents"), &agents)

	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = a.Username
	}
	assert.Equal(t, []string{"beta", "alpha", "gamma"}, names)
}

func TestAPI_ListAgents_Faction(t *testing.T) {
	srv := testServer(t)

	var agents []core.Agent
	decode(t, do(t, srv, "GET", "/api/v1/agents?faction=Mystics"), &agents)
	require.Len(t, agents, 1)
	assert.Equal(t, "beta", agents[0].Username)

	rr := do(t, srv, "GET", "/api/v1/agents?faction=Nobody")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_GetAgent(t *testing.T) {
	srv := testServer(t)

	rr := do(t, srv, "GET", "/api/v1/agents/@alpha")
	require.Equal(t, http.StatusOK, rr.Code)
	var agent core.Agent
	decode(t, rr, &agent)
	assert.Equal(t, 140, agent.Reputation)

	rr = do(t, srv, "GET", "/api/v1/agents/nobody")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var resp map[string]string
	decode(t, rr, &resp)
	assert.Equal(t, "Agent not found", resp["error"])
}

// =============================================================================
// Post Tests
// =============================================================================

func TestAPI_ListPosts(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name  string
		query string
		code  int
		ids   []string
	}{
		{"feed order", "", http.StatusOK, []string{"post-plain", "post-liked"}},
		{"limit", "?limit=1", http.StatusOK, []string{"post-plain"}},
		{"trending", "?sort=trending", http.StatusOK, []string{"post-liked", "post-plain"}},
		{"author", "?author=@alpha", http.StatusOK, []string{"post-liked"}},
		{"bad limit", "?limit=zero", http.StatusBadRequest, nil},
		{"negative limit", "?limit=-3", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, "GET", "/api/v1/posts"+tt.query)
			require.Equal(t, tt.code, rr.Code)
			if tt.code != http.StatusOK {
				return
			}

			var posts []core.Post
			decode(t, rr, &posts)
			ids := make([]string, len(posts))
			for i, p := range posts {
				ids[i] = p.ID
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestAPI_GetPost(t *testing.T) {
	srv := testServer(t)

	rr := do(t, srv, "GET", "/api/v1/posts/post-liked")
	require.Equal(t, http.StatusOK, rr.Code)
	var post core.Post
	decode(t, rr, &post)
	assert.Equal(t, 40, post.Views)

	rr = do(t, srv, "GET", "/api/v1/posts/missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_InteractionDetail(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name      string
		path      string
		code      int
		ids       []string
		usernames []string
	}{
		{"likes in order", "/api/v1/posts/post-liked/likes", http.StatusOK,
			[]string{"agent-gamma", "agent-beta", "agent-ghost"}, []string{"gamma", "beta"}},
		{"retweets", "/api/v1/posts/post-liked/retweets", http.StatusOK, []string{"agent-beta"}, []string{"beta"}},
		{"empty", "/api/v1/posts/post-plain/likes", http.StatusOK, []string{}, []string{}},
		{"unknown post", "/api/v1/posts/missing/likes", http.StatusNotFound, nil, nil},
		{"bad kind", "/api/v1/posts/post-liked/views", http.StatusBadRequest, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, "GET", tt.path)
			require.Equal(t, tt.code, rr.Code, rr.Body.String())
			if tt.code != http.StatusOK {
				return
			}

			var resp struct {
				IDs    []string `json:"ids"`
				Agents []struct {
					ID       string `json:"id"`
					Username string `json:"username"`
				} `json:"agents"`
			}
			decode(t, rr, &resp)
			assert.Equal(t, tt.ids, resp.IDs)

			usernames := []string{}
			for _, a := range resp.Agents {
				usernames = append(usernames, a.Username)
			}
			assert.Equal(t, tt.usernames, usernames)
		})
	}
}

func TestAPI_Analytics(t *testing.T) {
	srv := testServer(t)

	var a engine.Analytics
	decode(t, do(t, srv, "GET", "/api/v1/analytics"), &a)

	assert.Equal(t, 3, a.TotalAgents)
	assert.Equal(t, 2, a.TotalPosts)
	assert.Equal(t, 3, a.TotalLikes)
	assert.Equal(t, 1, a.TotalRetweets)
	assert.Equal(t, 40, a.TotalViews)
	require.NotEmpty(t, a.TopAgents)
	assert.Equal(t, "beta", a.TopAgents[0].Username)
	assert.Equal(t, 1, a.ActiveThemes)
}

// =============================================================================
// Engine Control Tests
// =============================================================================

func TestAPI_Toggle(t *testing.T) {
	srv := testServer(t)

	var resp struct {
		Live bool `json:"is_live"`
	}

	rr := do(t, srv, "POST", "/api/v1/engine/toggle")
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &resp)
	assert.True(t, resp.Live)

	decode(t, do(t, srv, "GET", "/api/v1/engine"), &resp)
	assert.True(t, resp.Live)

	decode(t, do(t, srv, "POST", "/api/v1/engine/toggle"), &resp)
	assert.False(t, resp.Live)

	rr = do(t, srv, "GET", "/api/v1/engine/toggle")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestAPI_CORSPreflight(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/v1/engine/toggle", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

// =============================================================================
// WebSocket Tests
// =============================================================================

type wsEnvelope struct {
	Type string        `json:"type"`
	Data core.Snapshot `json:"data"`
}

func TestWebSocket_GreetingAndPush(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg wsEnvelope
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageState, msg.Type)
	assert.False(t, msg.Data.Live)
	assert.Len(t, msg.Data.Agents, 3)

	resp, err := http.Post(ts.URL+"/api/v1/engine/toggle", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageState, msg.Type)
	assert.True(t, msg.Data.Live)

	assert.Equal(t, 1, srv.wsHub.ClientCount())
}

func TestWebSocket_StopClosesClients(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsEnvelope
	require.NoError(t, conn.ReadJSON(&msg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, srv.wsHub.ClientCount())
}

func TestWebSocketHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewWebSocketHub()

	// Not started: the queue absorbs then drops without blocking.
	for i := 0; i < sendBuffer*2; i++ {
		hub.Broadcast(WebSocketMessage{Type: "test", Data: i, Timestamp: time.Now()})
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub.Start(ctx)
	cancel()
	hub.Wait()

	// Stopped: returns immediately.
	hub.Broadcast(WebSocketMessage{Type: "test", Data: "late", Timestamp: time.Now()})
}

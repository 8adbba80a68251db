package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/engine"
)

const defaultPostLimit = 50

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- State ---

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleEngineStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       snap.Status,
		"is_live":      snap.Live,
		"interactions": snap.Interactions,
		"agents":       len(snap.Agents),
		"posts":        len(snap.Posts),
	})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	live := s.engine.ToggleRun()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"is_live": live,
		"status":  s.engine.Status(),
	})
}

// --- Agents ---

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := engine.Population(s.engine.Snapshot())

	if f := r.URL.Query().Get("faction"); f != "" {
		faction := core.Faction(f)
		if !faction.Valid() {
			s.respondError(w, http.StatusBadRequest, "Unknown faction")
			return
		}
		filtered := make([]core.Agent, 0, len(agents))
		for _, a := range agents {
			if a.Faction == faction {
				filtered = append(filtered, a)
			}
		}
		agents = filtered
	}

	s.respondJSON(w, http.StatusOK, agents)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimPrefix(chi.URLParam(r, "username"), "@")

	snap := s.engine.Snapshot()
	i := snap.AgentByUsername(username)
	if i < 0 {
		s.respondError(w, http.StatusNotFound, "Agent not found")
		return
	}
	s.respondJSON(w, http.StatusOK, snap.Agents[i])
}

// --- Posts ---

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	limit := defaultPostLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, core.MaxPosts)
	}

	snap := s.engine.Snapshot()
	posts := snap.Posts
	if sort := r.URL.Query().Get("sort"); sort == "trending" {
		posts = engine.Trending(snap, limit)
	}

	if author := strings.TrimPrefix(r.URL.Query().Get("author"), "@"); author != "" {
		filtered := make([]core.Post, 0)
		for _, p := range posts {
			if p.AuthorUsername == author {
				filtered = append(filtered, p)
			}
		}
		posts = filtered
	}

	if len(posts) > limit {
		posts = posts[:limit]
	}
	s.respondJSON(w, http.StatusOK, posts)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	for _, p := range s.engine.Snapshot().Posts {
		if p.ID == postID {
			s.respondJSON(w, http.StatusOK, p)
			return
		}
	}
	s.respondError(w, http.StatusNotFound, "Post not found")
}

func (s *Server) handleInteractionDetail(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	kind := core.InteractionKind(chi.URLParam(r, "kind"))

	ids, err := s.engine.InteractionDetail(kind, postID)
	switch {
	case errors.Is(err, core.ErrPostNotFound):
		s.respondError(w, http.StatusNotFound, "Post not found")
		return
	case errors.Is(err, core.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, "Kind must be likes or retweets")
		return
	case err != nil:
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"post_id": postID,
		"kind":    kind,
		"ids":     ids,
		"agents":  engine.ResolveAgents(s.engine.Snapshot(), ids),
	})
}

// --- Narratives, logs, analytics ---

func (s *Server) handleListNarratives(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Snapshot().Narratives)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Snapshot().Logs)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, engine.Analyze(s.engine.Snapshot()))
}

// --- WebSocket ---

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.startHub()

	greeting := &WebSocketMessage{
		Type:      MessageState,
		Data:      s.engine.Snapshot(),
		Timestamp: time.Now(),
	}
	s.wsHub.Serve(w, r, greeting)
}

// Package api provides the HTTP API server for AIER.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/engine"
	"github.com/aier/aier/internal/logging"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	engine *engine.Engine
	wsHub  *WebSocketHub

	hubCtx    context.Context
	hubCancel context.CancelFunc
	hubOnce   sync.Once
}

// Config for the server
type Config struct {
	Host   string
	Port   int
	Engine *engine.Engine
}

// New creates a new API server and subscribes it to engine changes.
func New(cfg Config) *Server {
	hubCtx, hubCancel := context.WithCancel(context.Background())

	s := &Server{
		engine:    cfg.Engine,
		wsHub:     NewWebSocketHub(),
		hubCtx:    hubCtx,
		hubCancel: hubCancel,
	}

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.engine != nil {
		s.engine.OnChange(func(snap core.Snapshot) {
			s.Broadcast(MessageState, snap)
		})
	}

	return s
}

// setupRouter configures all routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/state", s.handleGetState)
		r.Get("/agents", s.handleListAgents)
		r.Get("/agents/{username}", s.handleGetAgent)
		r.Get("/posts", s.handleListPosts)
		r.Get("/posts/{postID}", s.handleGetPost)
		r.Get("/posts/{postID}/{kind}", s.handleInteractionDetail)
		r.Get("/narratives", s.handleListNarratives)
		r.Get("/logs", s.handleListLogs)
		r.Get("/analytics", s.handleAnalytics)

		r.Get("/engine", s.handleEngineStatus)
		r.Post("/engine/toggle", s.handleToggle)
	})

	// WebSocket (no request timeout)
	r.Get("/ws", s.handleWebSocket)

	s.router = r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) startHub() {
	s.hubOnce.Do(func() {
		s.wsHub.Start(s.hubCtx)
	})
}

// Start starts the HTTP server. It blocks until Stop is called.
func (s *Server) Start() error {
	s.startHub()

	logging.WithField("addr", s.httpServer.Addr).Info("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

// Stop gracefully stops the server and closes every WebSocket client.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hubCancel()
	s.wsHub.Wait()
	return err
}

// Broadcast sends a message to all WebSocket clients without blocking.
func (s *Server) Broadcast(msgType string, data interface{}) {
	s.wsHub.Broadcast(WebSocketMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// --- Response helpers ---

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Debug("encode response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

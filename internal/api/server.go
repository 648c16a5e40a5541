package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nev3rmi/citeanchor/internal/config"
	"github.com/nev3rmi/citeanchor/internal/pipeline"
)

// Server is the HTTP API server for citeanchor.
type Server struct {
	router chi.Router
	engine *pipeline.Engine
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(engine *pipeline.Engine, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		engine: engine,
		log:    log,
		cfg:    cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.CiteanchorAPIKey, s.log))

		r.Post("/api/anchors", s.handleCreateAnchor)
		r.Get("/api/anchors", s.handleListAnchors)
		r.Get("/api/anchors/{sessionID}", s.handleGetAnchor)
		r.Delete("/api/anchors/{sessionID}", s.handleDeleteAnchor)
		r.Post("/api/anchors/{sessionID}/events", s.handleAnchorEvent)
		r.Post("/api/anchors/{sessionID}/pages", s.handlePushPage)

		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

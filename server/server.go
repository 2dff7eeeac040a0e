// Package server implements the crewkit HTTP server: REST API, auth,
// and SSE real-time notices.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/crewkit/crewkit/comms"
	"github.com/crewkit/crewkit/config"
	"github.com/crewkit/crewkit/failover"
	"github.com/crewkit/crewkit/routing"
	"github.com/crewkit/crewkit/task"
	"github.com/crewkit/crewkit/team"
)

// Server is the crewkit HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	engine *routing.Engine
	coord  *failover.Coordinator
	tasks  task.Store
	teams  team.Store
	bus    comms.Bus

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string

	startTime time.Time
	version   string
}

// New creates a Server with the given config, version, and logger.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	engine := cfg.Engine()
	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		engine:    engine,
		coord:     cfg.Coordinator(engine),
		teams:     team.NewRegistry(),
		startTime: time.Now(),
		version:   ver,
	}
	s.registerRoutes()
	return s
}

// SetTaskStore attaches a task store to the server.
func (s *Server) SetTaskStore(store task.Store) {
	s.tasks = store
}

// SetTeamStore replaces the default in-memory team registry, typically
// with the durable SQLite store.
func (s *Server) SetTeamStore(store team.Store) {
	s.teams = store
}

// SetBus attaches a notice bus to the server.
func (s *Server) SetBus(bus comms.Bus) {
	s.bus = bus
}

// Teams exposes the team store, mainly for wiring and tests.
func (s *Server) Teams() team.Store { return s.teams }

// Start begins listening on the configured address.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":8420"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("http server listening", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/login", s.handleLogin)

	s.mux.Handle("GET /api/tasks", s.requireAuth(s.listTasks))
	s.mux.Handle("POST /api/tasks", s.requireAuth(s.createTask))
	s.mux.Handle("GET /api/tasks/{id}", s.requireAuth(s.getTask))
	s.mux.Handle("PATCH /api/tasks/{id}", s.requireAuth(s.updateTask))
	s.mux.Handle("DELETE /api/tasks/{id}", s.requireAuth(s.deleteTask))
	s.mux.Handle("POST /api/tasks/{id}/run", s.requireAuth(s.runTask))

	s.mux.Handle("GET /api/board", s.requireAuth(s.board))
	s.mux.Handle("POST /api/route", s.requireAuth(s.routePreview))
	s.mux.Handle("POST /api/failover", s.requireAuth(s.failoverPreview))
	s.mux.Handle("GET /api/estimate", s.requireAuth(s.estimate))

	s.mux.Handle("GET /api/teams", s.requireAuth(s.listTeams))
	s.mux.Handle("POST /api/teams", s.requireAuth(s.createTeam))
	s.mux.Handle("GET /api/teams/{id}/teammates", s.requireAuth(s.listTeammates))
	s.mux.Handle("POST /api/teams/{id}/teammates", s.requireAuth(s.addTeammate))

	s.mux.Handle("GET /api/events", s.requireAuth(s.events))

	s.mux.HandleFunc("GET /api/status", s.status)
	s.mux.HandleFunc("GET /api/version", s.versionInfo)
}

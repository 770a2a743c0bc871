// Package server exposes the arena over HTTP: a REST API for agent
// registration, turn polling and run control, plus websocket endpoints for
// live agents and dashboard spectators.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"

	"github.com/lox/holdem-arena/internal/agent"
	"github.com/lox/holdem-arena/internal/arena"
	"github.com/lox/holdem-arena/internal/auth"
	"github.com/lox/holdem-arena/internal/settlement"
)

// shutdownGrace bounds how long Run waits for in-flight requests once its
// context is cancelled.
const shutdownGrace = 5 * time.Second

func init() {
	// Routes are logged through the server's own logger; gin's debug
	// chatter would bypass it.
	gin.SetMode(gin.ReleaseMode)
}

// Server ties the agent registry, the arena and the settler together behind
// one HTTP listener.
type Server struct {
	logger   *log.Logger
	clock    quartz.Clock
	registry *agent.Registry
	arena    *arena.Arena
	settler  *settlement.Settler
	auth     auth.Validator
	engine   *gin.Engine

	mu     sync.Mutex
	runCtx context.Context
}

// Option adjusts a server at construction time.
type Option func(*Server)

// WithLogger injects the server's logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock injects the clock used for request timing.
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithAuth requires websocket agents to present a token the validator
// accepts. Without this option the arena is open.
func WithAuth(validator auth.Validator) Option {
	return func(s *Server) { s.auth = validator }
}

// New assembles the HTTP surface over the given components, all of which
// are required. Arena runs started over the API are bound to the context
// later given to Run.
func New(registry *agent.Registry, arn *arena.Arena, settler *settlement.Settler, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		arena:    arn,
		settler:  settler,
		runCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	s.logger = s.logger.WithPrefix("server")
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}

	engine := gin.New()
	engine.Use(s.requestLogger(), gin.Recovery())
	s.engine = engine
	s.routes()
	return s
}

// Handler returns the HTTP handler serving every route, for tests and for
// embedding the API under another mux.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/ws", s.handleAgentSocket)
	s.engine.GET("/ws/watch", s.handleWatchSocket)

	api := s.engine.Group("/api")
	api.POST("/agents", s.handleRegisterAgent)
	api.GET("/agents", s.handleListAgents)
	api.GET("/agents/:id", s.handleGetAgent)
	api.DELETE("/agents/:id", s.handleUnregisterAgent)
	api.GET("/agents/:id/turn", s.handlePendingTurn)
	api.POST("/agents/:id/action", s.handleSubmitAction)

	api.POST("/arena/start", s.handleArenaStart)
	api.POST("/arena/stop", s.handleArenaStop)
	api.GET("/arena/status", s.handleArenaStatus)
	api.GET("/arena/leaderboard", s.handleLeaderboard)

	api.GET("/settlement/:room/trail", s.handleSettlementTrail)
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
// The same context bounds arena runs started over the API, so shutting the
// server down also winds the arena down.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	srv := &http.Server{Addr: addr, Handler: s.engine}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errc
	return nil
}

// runContext returns the context arena runs are bound to: Run's context
// once serving, the background context before that.
func (s *Server) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCtx
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.clock.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", s.clock.Now().Sub(start))
	}
}

// Package api hosts the HTTP surface: routes, middleware, and the server
// lifecycle.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/claudegate/claudegate/internal/api/handlers"
	"github.com/claudegate/claudegate/internal/config"
	"github.com/claudegate/claudegate/internal/logging"
	"github.com/claudegate/claudegate/internal/runtime/executor"
	"github.com/claudegate/claudegate/internal/usage"
)

const shutdownTimeout = 10 * time.Second

// Server owns the gin engine and the pieces handlers reach for per request.
// Config and executor are swapped together on hot reload.
type Server struct {
	mu   sync.RWMutex
	cfg  *config.Config
	exec handlers.Executor

	engine      *gin.Engine
	httpServer  *http.Server
	tracker     *usage.Tracker
	broadcaster *logging.Broadcaster
}

// NewServer wires routes and middleware. The executor is built from the
// configuration here and rebuilt on every reload.
func NewServer(cfg *config.Config, tracker *usage.Tracker, broadcaster *logging.Broadcaster) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:         cfg,
		exec:        executor.NewClaudeExecutor(cfg),
		engine:      gin.New(),
		tracker:     tracker,
		broadcaster: broadcaster,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Config returns the live configuration.
func (s *Server) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Executor returns the live upstream executor.
func (s *Server) Executor() handlers.Executor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exec
}

// Reload swaps in a new configuration and rebuilds the executor from it.
// Host and port changes require a restart and are ignored here.
func (s *Server) Reload(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.exec = executor.NewClaudeExecutor(cfg)
	s.mu.Unlock()
	log.Info("api: configuration applied")
}

func (s *Server) setupMiddleware() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(requestLog(func() bool { return s.Config().RequestLog }))
	s.engine.Use(corsMiddleware(func() []string { return s.Config().AllowOrigins }))
}

func (s *Server) setupRoutes() {
	h := handlers.New(s, s.tracker, s.broadcaster)

	s.engine.GET("/health", h.Health)

	v1 := s.engine.Group("/v1")
	v1.Use(apiKeyAuth(func() []string { return s.Config().APIKeys }))
	{
		v1.POST("/chat/completions", h.ChatCompletions)
		v1.GET("/models", h.ListModels)
	}

	management := s.engine.Group("/v0/management")
	management.Use(managementAuth(func() string { return s.Config().ManagementKey }))
	{
		management.GET("/usage", h.Usage)
		management.GET("/logs", h.LogStream)
	}
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until SIGINT/SIGTERM or a listener error, then drains in-flight
// requests before returning.
func (s *Server) Run() error {
	cfg := s.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("api: listening on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server stopped unexpectedly: %w", err)
	case sig := <-sigChan:
		log.Infof("api: received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("api: server stopped")
	return nil
}

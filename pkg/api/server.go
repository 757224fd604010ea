// Package api is the HTTP surface of the composition engine: REST admission
// and control endpoints, SSE event streaming, the WebSocket fan-out, health,
// and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/decksmith/decksmith/pkg/compose"
	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/events"
	"github.com/decksmith/decksmith/pkg/limits"
	"github.com/decksmith/decksmith/pkg/metrics"
	"github.com/decksmith/decksmith/pkg/store"
)

// Server hosts the REST and WebSocket endpoints.
type Server struct {
	cfg     *config.ServerConfig
	detach  bool
	orch    *compose.Orchestrator
	store   store.Store
	conns   *events.ConnectionManager
	limits  *limits.Manager
	metrics *metrics.Recorder
	logger  *slog.Logger

	http *http.Server
}

// NewServer wires the API server. conns and recorder may be nil, disabling
// /ws and /metrics respectively. detach controls whether a streaming
// client's disconnect cancels its run.
func NewServer(
	cfg *config.ServerConfig,
	detach bool,
	orch *compose.Orchestrator,
	st store.Store,
	conns *events.ConnectionManager,
	lim *limits.Manager,
	recorder *metrics.Recorder,
	logger *slog.Logger,
) *Server {
	return &Server{
		cfg:     cfg,
		detach:  detach,
		orch:    orch,
		store:   st,
		conns:   conns,
		limits:  lim,
		metrics: recorder,
		logger:  logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), securityHeaders())

	router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	if s.conns != nil {
		router.GET("/ws", s.handleWebSocket)
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/decks/compose", s.handleCompose)
		v1.GET("/decks/:id", s.handleGetDeck)
		v1.GET("/decks/:id/status", s.handleGetDeckStatus)
		v1.POST("/generations/:id/pause", s.handlePause)
		v1.POST("/generations/:id/resume", s.handleResume)
		v1.POST("/generations/:id/cancel", s.handleCancel)
	}
	return router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		// SSE streams outlive any fixed write deadline; per-write deadlines
		// are enforced by the stream writers instead.
		WriteTimeout: 0,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

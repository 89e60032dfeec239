// Package server exposes the engine over HTTP: the natural-language filter
// endpoint, conversation operations, health, and metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"filter-agent/internal/common/config"
	"filter-agent/internal/common/logger"
	"filter-agent/internal/conversation"
	"filter-agent/internal/engine"
)

type Server struct {
	engine *engine.Engine
	store  conversation.Store
	cfg    *config.Config
	log    logger.Logger

	httpServer *http.Server
}

func New(eng *engine.Engine, store conversation.Store, cfg *config.Config, log logger.Logger) *Server {
	s := &Server{
		engine: eng,
		store:  store,
		cfg:    cfg,
		log:    log,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	if s.cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/filters/natural-language", s.handleFilterRequest)
		api.GET("/conversations/stats", s.handleConversationStats)
		api.DELETE("/conversations/:id", s.handleDeleteConversation)
		api.POST("/conversations/cleanup", s.handleCleanupConversations)
	}

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("HTTP request", map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

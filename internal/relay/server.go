// Package relay is the HTTP boundary: routing, CORS, the story endpoint and
// the admin API.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/storydeck/storydeck/internal/config"
	"github.com/storydeck/storydeck/internal/quota"
	"github.com/storydeck/storydeck/internal/usage"
)

const shutdownTimeout = 10 * time.Second

// Server hosts the relay API.
type Server struct {
	cfg    config.Config
	engine *gin.Engine
}

// NewServer assembles the router with all endpoints wired.
func NewServer(cfg config.Config, policy *quota.Policy, backend quota.Backend, generator Generator, recorder *usage.Recorder) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware(cfg.CORSOrigins))
	engine.HandleMethodNotAllowed = true
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	story := NewStoryHandler(cfg, policy, generator, recorder)
	engine.POST("/api/story", story.Handle)

	if cfg.AdminEnabled() {
		admin := NewAdminHandler(cfg, policy, backend, recorder)
		v0 := engine.Group("/v0/admin")
		v0.POST("/login", admin.Login)
		guarded := v0.Group("", admin.Authorize)
		guarded.GET("/usage", admin.Usage)
		guarded.GET("/quota", admin.Quota)
	}

	return &Server{cfg: cfg, engine: engine}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(s.cfg.Port),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", s.cfg.Port).Info("relay: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case errServe := <-errCh:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("relay: serve: %w", errServe)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("relay: shutdown: %w", errShutdown)
	}
	log.Info("relay: stopped")
	return nil
}

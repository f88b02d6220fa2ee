package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"fundsync/internal/config"
	"fundsync/internal/database"
	"fundsync/internal/logging"
	"fundsync/internal/monitoring"
	"fundsync/internal/scheduler"
)

// Server is the HTTP query server.
type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *logging.Logger
}

// NewServer wires the query API.
func NewServer(cfg *config.Config, handlers *Handlers, sched *scheduler.Scheduler, db *database.DB, metrics *monitoring.Metrics, logger *logging.Logger) *Server {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if metrics != nil {
		router.Use(metrics.GinMiddleware())
	}
	router.Use(ErrorHandler(logger))

	router.GET("/health", func(c *gin.Context) {
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		router.GET("/metrics", metrics.Handler())
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/venues", handlers.GetVenues)
		v1.GET("/funding/history", handlers.GetHistory)
		v1.GET("/funding/history/latest", handlers.GetHistoryLatest)
		v1.GET("/funding/online", handlers.GetOnline)
		v1.GET("/funding/online/latest", handlers.GetOnlineLatest)
		v1.GET("/funding/stats", handlers.GetStats)

		v1.GET("/jobs", func(c *gin.Context) {
			c.JSON(http.StatusOK, sched.Jobs())
		})
	}

	return &Server{
		config: cfg,
		router: router,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		logger: logger,
	}
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

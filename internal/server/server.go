package server

import (
	"context"
	"net/http"
	"time"

	_ "mailtriage/docs"
	"mailtriage/internal/analytics"
	"mailtriage/internal/auth"
	"mailtriage/internal/cache"
	"mailtriage/internal/config"
	"mailtriage/internal/handlers"
	"mailtriage/internal/scheduler"
	"mailtriage/internal/search"
	"mailtriage/internal/store"
	"mailtriage/internal/syncer"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Deps are the services the HTTP API is built on
type Deps struct {
	Store     *store.SQLStore
	Syncer    *syncer.Syncer
	Analytics *analytics.Service
	Search    *search.Index        // nil when search is not configured
	Scheduler *scheduler.Scheduler // nil when scheduled sync is disabled
}

// Server represents the application server
type Server struct {
	echo    *echo.Echo
	config  *config.Config
	logger  zerolog.Logger
	tracker *cache.SyncTracker
	deps    Deps
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	// A crashed run releases its guard once the sync deadline has passed
	lockTTL := time.Duration(cfg.SyncTimeout)*time.Second + time.Minute

	return &Server{
		config:  cfg,
		deps:    deps,
		logger:  logger,
		tracker: cache.NewSyncTracker(lockTTL),
	}
}

// zerologMiddleware creates a zerolog-based logging middleware for Echo
func (s *Server) zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			event := s.logger.Info()
			if res.Status >= http.StatusInternalServerError {
				event = s.logger.Warn()
			}
			event.
				Str("method", req.Method).
				Str("path", c.Path()).
				Str("user_id", c.Param("user_id")).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}

// Initialize sets up the Echo framework with middleware and routes
func (s *Server) Initialize() {
	s.echo = echo.New()

	s.echo.Use(s.zerologMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())
	s.echo.Use(middleware.BodyLimit("1M"))

	s.echo.HideBanner = true

	s.setupRoutes()
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// setupRoutes configures all the application routes
func (s *Server) setupRoutes() {
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Health endpoints stay outside /api for probes
	s.echo.GET("/healthz", handlers.HealthHandler(s.config.Version))
	if s.deps.Store != nil {
		s.echo.GET("/healthz/db", handlers.DBHealthHandler(s.deps.Store.DB()))
	} else {
		s.echo.GET("/healthz/db", handlers.DBHealthHandler(nil))
	}

	api := s.echo.Group("/api", auth.Middleware(s.config.APIToken))
	api.GET("/", handlers.RootHandler(s.config.Version))

	user := api.Group("/users/:user_id")

	user.POST("/sync", handlers.SyncHandler(s.deps.Syncer, s.tracker, s.config, s.logger))
	user.GET("/sync/last", handlers.LastSyncHandler(s.tracker))
	user.GET("/sync/runs", handlers.SyncRunsHandler(s.deps.Analytics))

	var schedules handlers.ScheduleManager
	if s.deps.Scheduler != nil {
		schedules = s.deps.Scheduler
		user.POST("/sync/jobs", handlers.TriggerSyncJobHandler(s.deps.Scheduler, s.logger))
		user.GET("/sync/jobs/:name", handlers.SyncJobStatusHandler(s.deps.Scheduler, s.logger))
	}

	user.GET("/settings/email", handlers.GetEmailSettingsHandler(s.deps.Store))
	user.PUT("/settings/email", handlers.SaveEmailSettingsHandler(s.deps.Store, schedules, s.logger))
	user.POST("/settings/email/test", handlers.TestEmailSettingsHandler(s.deps.Store, s.deps.Syncer))
	user.GET("/settings/ai", handlers.GetAISettingsHandler(s.deps.Store))
	user.PUT("/settings/ai", handlers.SaveAISettingsHandler(s.deps.Store))

	var (
		searcher handlers.Searcher
		remover  handlers.IndexRemover
	)
	if s.deps.Search != nil {
		searcher, remover = s.deps.Search, s.deps.Search
	}

	user.GET("/emails", handlers.ListEmailsHandler(s.deps.Store))
	user.GET("/emails/:id", handlers.GetEmailHandler(s.deps.Store))
	user.PATCH("/emails/:id", handlers.UpdateEmailHandler(s.deps.Store))
	user.DELETE("/emails/:id", handlers.DeleteEmailHandler(s.deps.Store, remover, s.logger))

	user.GET("/tasks", handlers.ListTasksHandler(s.deps.Store))
	user.PATCH("/tasks/:id", handlers.UpdateTaskHandler(s.deps.Store))

	user.GET("/stats", handlers.StatsHandler(s.deps.Analytics, s.logger))
	user.GET("/search", handlers.SearchHandler(searcher, s.logger))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Port).Msg("Server starting")
	return s.echo.Start(":" + s.config.Port)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Package api exposes a small HTTP surface for observing and poking the
// hunter: status, scheduled tasks, history and stats. Hunting itself is
// configuration-driven; the API never mutates hunt settings.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/seekarr/seekarr/internal/config"
	"github.com/seekarr/seekarr/internal/history"
	"github.com/seekarr/seekarr/internal/scheduler"
	"github.com/seekarr/seekarr/internal/sonarr"
	"github.com/seekarr/seekarr/internal/stats"
)

const statsApp = "sonarr"

// Server handles HTTP requests for the Seekarr API.
type Server struct {
	echo      *echo.Echo
	logger    zerolog.Logger
	cfg       *config.Config
	scheduler *scheduler.Scheduler
	history   *history.Service
	stats     *stats.Service
	clients   map[string]*sonarr.Client
	startTime time.Time
}

// NewServer creates a new API server instance. clients maps instance names
// to their Sonarr clients for connectivity reporting.
func NewServer(cfg *config.Config, sched *scheduler.Scheduler, historyService *history.Service, statsService *stats.Service, clients map[string]*sonarr.Client, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		logger:    logger.With().Str("component", "api").Logger(),
		cfg:       cfg,
		scheduler: sched,
		history:   historyService,
		stats:     statsService,
		clients:   clients,
		startTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)
	api.GET("/tasks", s.listTasks)
	api.GET("/tasks/:id", s.getTask)
	api.POST("/tasks/:id/run", s.runTask)
	api.GET("/history", s.getHistory)
	api.DELETE("/history", s.deleteHistory)
	api.GET("/stats", s.getStats)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// --- Handler implementations ---

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type instanceStatus struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Version   string `json:"version,omitempty"`
	QueueSize int    `json:"queueSize"`
}

func (s *Server) getStatus(c echo.Context) error {
	ctx := c.Request().Context()

	instances := make([]instanceStatus, 0, len(s.cfg.Sonarr))
	for _, inst := range s.cfg.Sonarr {
		status := instanceStatus{Name: inst.Name, URL: inst.URL, QueueSize: -1}
		if client, ok := s.clients[inst.Name]; ok {
			if sys, err := client.SystemStatus(ctx); err == nil {
				status.Reachable = true
				status.Version = sys.Version
			}
			if size, err := client.QueueSize(ctx); err == nil {
				status.QueueSize = size
			}
		}
		instances = append(instances, status)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"version":   config.Version,
		"startTime": s.startTime.Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
		"instances": instances,
	})
}

func (s *Server) listTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.scheduler.ListTasks())
}

func (s *Server) getTask(c echo.Context) error {
	info, err := s.scheduler.GetTask(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) runTask(c echo.Context) error {
	id := c.Param("id")
	if err := s.scheduler.RunNow(id); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started", "id": id})
}

func (s *Server) getHistory(c echo.Context) error {
	opts := history.ListOptions{
		App:      c.QueryParam("app"),
		Category: c.QueryParam("category"),
	}
	if page, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		opts.Page = page
	}
	if pageSize, err := strconv.Atoi(c.QueryParam("pageSize")); err == nil {
		opts.PageSize = pageSize
	}

	resp, err := s.history.List(c.Request().Context(), opts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) deleteHistory(c echo.Context) error {
	if err := s.history.DeleteAll(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getStats(c echo.Context) error {
	ctx := c.Request().Context()

	totals, err := s.stats.Totals(ctx, statsApp)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	usage, err := s.stats.HourlyUsage(ctx, statsApp)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"totals":       totals,
		"hourlyUsage":  usage,
		"hourlyAPICap": s.cfg.Hunt.HourlyAPICap,
	})
}

// Package server exposes the read-only query API over HTTP:
//
//	GET /health  liveness, independent of storage health
//	GET /status  SystemStatus
//	GET /events  recent persisted events, timestamp-descending
//	GET /metrics rolling-window snapshot per component class
package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xtxerr/lagmon/config"
	"github.com/xtxerr/lagmon/internal/errors"
	"github.com/xtxerr/lagmon/internal/logging"
	"github.com/xtxerr/lagmon/internal/query"
	"github.com/xtxerr/lagmon/internal/types"
)

var log = logging.Component("server")

// Server serves the query API.
type Server struct {
	echo    *echo.Echo
	queries *query.Service
	listen  string
}

// New creates the API server over the given query service.
func New(queries *query.Service, listen string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		queries: queries,
		listen:  listen,
	}

	e.GET("/health", s.handleHealth)
	e.GET("/status", s.handleStatus)
	e.GET("/events", s.handleEvents)
	e.GET("/metrics", s.handleMetrics)

	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	log.Info("query api listening", "addr", s.listen)
	err := s.echo.Start(s.listen)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler returns the HTTP handler; tests serve it via httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	// Liveness only: storage trouble must not make /health fail.
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(s.queries.Uptime().Seconds()),
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	status, err := s.queries.Status(c.Request().Context())
	if err != nil {
		return s.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleEvents(c echo.Context) error {
	limit := config.DefaultEventsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
		}
		limit = parsed
	}
	if limit > config.MaxEventsLimit {
		limit = config.MaxEventsLimit
	}

	events, err := s.queries.RecentEvents(c.Request().Context(), limit)
	if err != nil {
		return s.serviceError(c, err)
	}
	if events == nil {
		events = []types.LatencyEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

func (s *Server) handleMetrics(c echo.Context) error {
	snaps, err := s.queries.Metrics(c.Request().Context())
	if err != nil {
		return s.serviceError(c, err)
	}
	if snaps == nil {
		snaps = []types.PerformanceSnapshot{}
	}
	return c.JSON(http.StatusOK, snaps)
}

// serviceError maps service errors to status codes, keeping "unavailable"
// distinct from "no data".
func (s *Server) serviceError(c echo.Context, err error) error {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Warn("request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

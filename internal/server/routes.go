package server

import (
	"net/http"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const HEALTH_TIMEOUT = 10 * time.Second

type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	State   string `json:"state"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/status", s.StatusHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	if response, ok := s.health(); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// StatusHandler reports the state of every supervised task.
func (s *Server) StatusHandler(c echo.Context) error {
	response, ok := s.health()
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, HealthStatus{})
	}
	status := http.StatusOK
	if !response.Healthy {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, HealthStatus{Healthy: response.Healthy, State: response.State})
}

func (s *Server) health() (domain.ActorHealthResponse, bool) {
	response, err := s.probe()
	return response, err == nil
}

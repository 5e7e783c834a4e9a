package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/deppfellow/autoprintx/internal/middleware"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/labstack/echo/v4"
)

type HealthHandler struct {
	Handler
}

func NewHealthHandler(s *server.Server) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
	}
}

type healthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
	Checks      any       `json:"checks"`
}

// CheckHealth runs every registered probe. A failed required probe turns
// the answer into a 503.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()
	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	report := h.server.Health.Check(c.Request().Context())

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
		logger.Warn().
			Dur("total_duration", time.Since(start)).
			Msg("health check failed")
	} else {
		logger.Info().
			Dur("total_duration", time.Since(start)).
			Msg("health check passed")
	}

	err := c.JSON(status, healthResponse{
		Status:      report.Status,
		Timestamp:   report.Timestamp,
		Environment: h.server.Config.Primary.Env,
		Checks:      report.Checks,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to write JSON response")
		return fmt.Errorf("failed to write JSON response: %w", err)
	}

	return nil
}

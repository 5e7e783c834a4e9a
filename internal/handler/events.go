package handler

import (
	"github.com/deppfellow/autoprintx/internal/middleware"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/labstack/echo/v4"
)

type EventsHandler struct {
	Handler
}

func NewEventsHandler(s *server.Server) *EventsHandler {
	return &EventsHandler{Handler: NewHandler(s)}
}

// Stream holds the connection open and forwards the owner's dashboard
// events as server-sent events.
func (h *EventsHandler) Stream(c echo.Context) error {
	ownerID := middleware.GetUserID(c)
	logger := middleware.GetLogger(c)

	logger.Info().Int("clients", h.server.Hub.ClientCount()).Msg("event stream opened")
	h.server.Hub.ServeSSE(c.Response(), c.Request(), ownerID)
	logger.Info().Msg("event stream closed")
	return nil
}

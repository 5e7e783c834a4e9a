package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/deppfellow/autoprintx/internal/middleware"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/deppfellow/autoprintx/internal/service"
	"github.com/labstack/echo/v4"
)

const recentOrdersCacheControl = "private, max-age=10"

type DashboardHandler struct {
	Handler
	dashboard *service.DashboardService
}

func NewDashboardHandler(s *server.Server, dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		Handler:   NewHandler(s),
		dashboard: dashboard,
	}
}

type ChartRequest struct {
	Filter string `query:"filter"`
}

func (r *ChartRequest) Validate() error { return nil }

type ActivitiesRequest struct {
	Limit string `query:"limit"`
}

func (r *ActivitiesRequest) Validate() error { return nil }

type RecentOrdersResponse struct {
	Orders []service.FormattedOrder `json:"orders"`
}

func (h *DashboardHandler) Dashboard(c echo.Context, _ *EmptyRequest) (*service.DashboardResponse, error) {
	return h.dashboard.Dashboard(c.Request().Context(), middleware.GetUserID(c))
}

func (h *DashboardHandler) Overview(c echo.Context, _ *EmptyRequest) (*service.Overview, error) {
	return h.dashboard.Overview(c.Request().Context(), middleware.GetUserID(c))
}

// etagMatches reports whether an If-None-Match header names tag. Weak
// validators and quoting are ignored.
func etagMatches(header, tag string) bool {
	if header == "" || tag == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		candidate = strings.TrimPrefix(candidate, "W/")
		if strings.Trim(candidate, `"`) == tag {
			return true
		}
	}
	return false
}

// RecentOrders answers 304 when the client already holds the version named
// by the latest order update.
func (h *DashboardHandler) RecentOrders(c echo.Context, _ *EmptyRequest) (*RecentOrdersResponse, error) {
	ctx := c.Request().Context()
	ownerID := middleware.GetUserID(c)

	lastModified, err := h.dashboard.LastModified(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	header := c.Response().Header()
	header.Set("ETag", strconv.Quote(lastModified))
	header.Set(echo.HeaderCacheControl, recentOrdersCacheControl)

	if etagMatches(c.Request().Header.Get("If-None-Match"), lastModified) {
		return nil, c.NoContent(http.StatusNotModified)
	}

	recent, err := h.dashboard.RecentOrders(ctx, ownerID, lastModified)
	if err != nil {
		return nil, err
	}
	return &RecentOrdersResponse{Orders: recent.Orders}, nil
}

func (h *DashboardHandler) Chart(c echo.Context, req *ChartRequest) (*service.Chart, error) {
	filter := strings.ToLower(strings.TrimSpace(req.Filter))
	if filter == "" {
		filter = "day"
	}

	chart, err := h.dashboard.Chart(c.Request().Context(), middleware.GetUserID(c), filter)
	if err != nil {
		return nil, err
	}
	return &chart, nil
}

func (h *DashboardHandler) Activities(c echo.Context, req *ActivitiesRequest) (*service.Activities, error) {
	limit, err := strconv.Atoi(strings.TrimSpace(req.Limit))
	if err != nil {
		limit = 0
	}
	return h.dashboard.Activities(c.Request().Context(), middleware.GetUserID(c), limit)
}

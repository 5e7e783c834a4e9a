// Package router builds the echo instance: global middleware, the /api
// routes and the system routes.
package router

import (
	"net/http"

	"github.com/deppfellow/autoprintx/internal/handler"
	"github.com/deppfellow/autoprintx/internal/middleware"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// uploadBodyLimit covers five 25MB documents plus the form fields.
const uploadBodyLimit = "130M"

func NewRouter(s *server.Server, h *handler.Handlers) *echo.Echo {
	middlewares := middleware.NewMiddlewares(s)

	router := echo.New()
	router.HideBanner = true
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	router.Pre(middlewares.Global.RemoveTrailingSlash())

	router.Use(
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.RequestLogger(),
		middlewares.Global.Recover(),
		middlewares.Global.Secure(),
		middlewares.Global.CORS(),
	)

	registerSystemRoutes(router, h)

	api := router.Group("/api")
	registerPublicRoutes(api, h, middlewares)
	registerOwnerRoutes(api, h, middlewares)

	s.Logger.Info().
		Int("routes", len(router.Routes())).
		Msg("router ready")

	return router
}

// registerPublicRoutes mounts the endpoints reachable without a session.
// They share one rate limiter keyed by client IP.
func registerPublicRoutes(api *echo.Group, h *handler.Handlers, m *middleware.Middlewares) {
	limited := m.RateLimit.Public()

	api.POST("/token", handler.Handle(h.Auth.Handler, h.Auth.Login, http.StatusOK, &handler.LoginRequest{}), limited)
	api.POST("/token/refresh", handler.Handle(h.Auth.Handler, h.Auth.Refresh, http.StatusOK, &handler.EmptyRequest{}))
	api.POST("/logout", handler.Handle(h.Auth.Handler, h.Auth.Logout, http.StatusOK, &handler.EmptyRequest{}))
	api.POST("/register", handler.Handle(h.Auth.Handler, h.Auth.Register, http.StatusOK, &handler.RegisterRequest{}), limited)

	api.POST("/send-otp", handler.Handle(h.OTP.Handler, h.OTP.Send, http.StatusOK, &handler.SendOTPRequest{}), limited)
	api.POST("/verify-otp", handler.Handle(h.OTP.Handler, h.OTP.Verify, http.StatusOK, &handler.VerifyOTPRequest{}), limited)
	api.POST("/reset-password", handler.Handle(h.OTP.Handler, h.OTP.ResetPassword, http.StatusOK, &handler.ResetPasswordRequest{}), limited)

	api.GET("/upload/:unique_url", handler.Handle(h.Order.Handler, h.Order.ShopInfo, http.StatusOK, &handler.ShopRequest{}), limited)
	api.POST("/upload/:unique_url", handler.Handle(h.Order.Handler, h.Order.Upload, http.StatusCreated, &handler.ShopRequest{}),
		limited, echoMiddleware.BodyLimit(uploadBodyLimit))
}

func registerOwnerRoutes(api *echo.Group, h *handler.Handlers, m *middleware.Middlewares) {
	owner := api.Group("", m.Auth.RequireAuth)

	owner.POST("/auth", handler.Handle(h.Auth.Handler, h.Auth.Authenticated, http.StatusOK, &handler.EmptyRequest{}))
	owner.POST("/change-password", handler.Handle(h.Auth.Handler, h.Auth.ChangePassword, http.StatusOK, &handler.ChangePasswordRequest{}))

	owner.GET("/dashboards", handler.Handle(h.Dashboard.Handler, h.Dashboard.Dashboard, http.StatusOK, &handler.EmptyRequest{}))
	owner.GET("/orders", handler.Handle(h.Dashboard.Handler, h.Dashboard.Overview, http.StatusOK, &handler.EmptyRequest{}))
	owner.GET("/recent-orders", handler.Handle(h.Dashboard.Handler, h.Dashboard.RecentOrders, http.StatusOK, &handler.EmptyRequest{}))
	owner.GET("/chart-data", handler.Handle(h.Dashboard.Handler, h.Dashboard.Chart, http.StatusOK, &handler.ChartRequest{}))
	owner.GET("/recent-activity", handler.Handle(h.Dashboard.Handler, h.Dashboard.Activities, http.StatusOK, &handler.ActivitiesRequest{}))

	owner.GET("/filter-orders", handler.Handle(h.Order.Handler, h.Order.Filter, http.StatusOK, &handler.FilterOrdersRequest{}))
	owner.POST("/update-print-status", handler.Handle(h.Order.Handler, h.Order.UpdatePrintStatus, http.StatusOK, &handler.UpdatePrintStatusRequest{}))

	owner.GET("/settings", handler.Handle(h.Settings.Handler, h.Settings.Get, http.StatusOK, &handler.EmptyRequest{}))
	owner.POST("/settings", handler.Handle(h.Settings.Handler, h.Settings.Update, http.StatusOK, &handler.UpdateSettingsRequest{}))

	owner.POST("/create-order", handler.Handle(h.Payment.Handler, h.Payment.CreateOrder, http.StatusOK, &handler.CreatePaymentOrderRequest{}))
	owner.POST("/verify-payment", handler.Handle(h.Payment.Handler, h.Payment.VerifyPayment, http.StatusOK, &handler.VerifyPaymentRequest{}))

	owner.GET("/events", h.Events.Stream)
}

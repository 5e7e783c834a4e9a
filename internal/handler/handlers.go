// Package handler is the HTTP layer. It binds and validates requests,
// calls the service layer and writes the responses.
package handler

import (
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/deppfellow/autoprintx/internal/service"
)

type Handlers struct {
	Health    *HealthHandler
	OpenAPI   *OpenAPIHandler
	Auth      *AuthHandler
	OTP       *OTPHandler
	Order     *OrderHandler
	Dashboard *DashboardHandler
	Settings  *SettingsHandler
	Payment   *PaymentHandler
	Events    *EventsHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(s),
		OpenAPI:   NewOpenAPIHandler(s),
		Auth:      NewAuthHandler(s, services.Auth),
		OTP:       NewOTPHandler(s, services.OTP),
		Order:     NewOrderHandler(s, services.Order),
		Dashboard: NewDashboardHandler(s, services.Dashboard),
		Settings:  NewSettingsHandler(s, services.Settings),
		Payment:   NewPaymentHandler(s, services.Payment),
		Events:    NewEventsHandler(s),
	}
}

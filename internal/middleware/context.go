package middleware

import (
	"github.com/deppfellow/autoprintx/internal/logger"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

const (
	// UserIDKey holds the authenticated owner's uuid.UUID.
	UserIDKey = "user_id"
	LoggerKey = "logger"
)

// ContextEnhancer builds the request-scoped logger.
type ContextEnhancer struct {
	server *server.Server
}

func NewContextEnhancer(s *server.Server) *ContextEnhancer {
	return &ContextEnhancer{server: s}
}

// EnhanceContext stores a logger carrying the request id, method, path, ip,
// New Relic trace ids and, once known, the owner id, in both the echo
// context and the request context.
func (ce *ContextEnhancer) EnhanceContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			contextLogger := ce.server.Logger.With().
				Str("request_id", GetRequestID(c)).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("ip", c.RealIP()).
				Logger()

			if txn := newrelic.FromContext(c.Request().Context()); txn != nil {
				contextLogger = logger.WithTraceContext(contextLogger, txn)
			}

			if userID, ok := LookupUserID(c); ok {
				contextLogger = contextLogger.With().Str("user_id", userID.String()).Logger()
			}

			c.Set(LoggerKey, &contextLogger)

			// zerolog.Ctx finds it in code below the handlers
			c.SetRequest(c.Request().WithContext(contextLogger.WithContext(c.Request().Context())))

			return next(c)
		}
	}
}

// LookupUserID returns the owner id RequireAuth stored, if any.
func LookupUserID(c echo.Context) (uuid.UUID, bool) {
	userID, ok := c.Get(UserIDKey).(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}

// GetUserID returns the authenticated owner id, or uuid.Nil outside
// RequireAuth.
func GetUserID(c echo.Context) uuid.UUID {
	userID, _ := LookupUserID(c)
	return userID
}

// GetLogger returns the request logger, or a no-op logger when
// EnhanceContext did not run.
func GetLogger(c echo.Context) *zerolog.Logger {
	if logger, ok := c.Get(LoggerKey).(*zerolog.Logger); ok {
		return logger
	}

	logger := zerolog.Nop()
	return &logger
}

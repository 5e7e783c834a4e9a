package middleware

import (
	"net/http"
	"time"

	"github.com/deppfellow/autoprintx/internal/errs"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// Limits for the unauthenticated endpoints, per client IP.
const (
	PublicRate    = rate.Limit(5)
	PublicBurst   = 20
	publicRateTTL = 3 * time.Minute
)

type RateLimitMiddleware struct {
	server *server.Server
}

func NewRateLimitMiddleware(s *server.Server) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		server: s,
	}
}

// RecordRateLimitHit reports a rejected request to New Relic.
func (r *RateLimitMiddleware) RecordRateLimitHit(endpoint string) {
	if r.server.LoggerService != nil && r.server.LoggerService.GetApplication() != nil {
		r.server.LoggerService.GetApplication().RecordCustomEvent("RateLimitHit", map[string]interface{}{
			"endpoint": endpoint,
		})
	}
}

// Public limits login, registration, OTP and customer upload requests by
// client IP.
func (r *RateLimitMiddleware) Public() echo.MiddlewareFunc {
	return r.limit(PublicRate, PublicBurst)
}

func (r *RateLimitMiddleware) limit(limit rate.Limit, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     burst,
		ExpiresIn: publicRateTTL,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return errs.NewBadRequestError("Could not identify the client.", false, nil, nil, nil)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			r.RecordRateLimitHit(c.Path())
			GetLogger(c).Warn().
				Str("ip", identifier).
				Str("path", c.Path()).
				Msg("rate limit exceeded")

			c.Response().Header().Set("Retry-After", "1")
			return errs.NewTooManyRequestsError(http.StatusText(http.StatusTooManyRequests))
		},
	})
}

package middleware

import (
	"time"

	"github.com/deppfellow/autoprintx/internal/errs"
	"github.com/deppfellow/autoprintx/internal/lib/token"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/labstack/echo/v4"
)

// LoginPath is where an unauthenticated dashboard request is sent.
const LoginPath = "/login"

type AuthMiddleware struct {
	server *server.Server
}

func NewAuthMiddleware(s *server.Server) *AuthMiddleware {
	return &AuthMiddleware{
		server: s,
	}
}

func unauthorized() *errs.HTTPError {
	err := errs.NewUnauthorizedError("Authentication credentials were not provided or are invalid.", false)
	err.Action = &errs.Action{
		Type:    errs.ActionTypeRedirect,
		Message: "Please log in again.",
		Value:   LoginPath,
	}
	return err
}

// RequireAuth accepts requests carrying a valid access token in the
// access_token cookie. The owner id is stored under UserIDKey.
//
// A missing, expired, revoked or refresh-typed token gets a 401 with a
// redirect action pointing at the login page.
func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		cookie, err := c.Cookie(token.AccessCookie)
		if err != nil || cookie.Value == "" {
			auth.server.Logger.Warn().
				Str("function", "RequireAuth").
				Str("request_id", GetRequestID(c)).
				Msg("access token cookie missing")
			return unauthorized()
		}

		claims, err := auth.server.Tokens.Parse(c.Request().Context(), cookie.Value, token.TypeAccess)
		if err != nil {
			auth.server.Logger.Warn().
				Err(err).
				Str("function", "RequireAuth").
				Str("request_id", GetRequestID(c)).
				Dur("duration", time.Since(start)).
				Msg("access token rejected")
			return unauthorized()
		}

		c.Set(UserIDKey, claims.UserID)

		reqLogger := GetLogger(c).With().Str("user_id", claims.UserID.String()).Logger()
		c.Set(LoggerKey, &reqLogger)

		auth.server.Logger.Debug().
			Str("function", "RequireAuth").
			Str("user_id", claims.UserID.String()).
			Str("request_id", GetRequestID(c)).
			Dur("duration", time.Since(start)).
			Msg("user authenticated")

		return next(c)
	}
}

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deppfellow/autoprintx/internal/config"
	"github.com/deppfellow/autoprintx/internal/errs"
	"github.com/deppfellow/autoprintx/internal/lib/token"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *server.Server {
	logger := zerolog.Nop()
	cfg := &config.Config{
		Primary: config.Primary{Env: "test"},
		Auth: config.AuthConfig{
			SecretKey:       "middleware-secret",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
	}
	return &server.Server{
		Config: cfg,
		Logger: &logger,
		Tokens: token.NewManager(cfg.Auth, token.NewMemoryBlacklist()),
	}
}

func newEcho(s *server.Server) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = NewGlobalMiddlewares(s).GlobalErrorHandler
	return e
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errs.HTTPError {
	t.Helper()
	var body errs.HTTPError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireAuth(t *testing.T) {
	s := newTestServer()
	e := newEcho(s)
	auth := NewAuthMiddleware(s)

	var seen uuid.UUID
	e.GET("/private", func(c echo.Context) error {
		seen = GetUserID(c)
		return c.NoContent(http.StatusNoContent)
	}, auth.RequireAuth)

	owner := uuid.New()
	pair, err := s.Tokens.IssuePair(owner)
	require.NoError(t, err)

	cases := []struct {
		name   string
		cookie *http.Cookie
		status int
	}{
		{"no cookie", nil, http.StatusUnauthorized},
		{"garbage", &http.Cookie{Name: token.AccessCookie, Value: "nope"}, http.StatusUnauthorized},
		{"refresh token", &http.Cookie{Name: token.AccessCookie, Value: pair.Refresh}, http.StatusUnauthorized},
		{"access token", &http.Cookie{Name: token.AccessCookie, Value: pair.Access}, http.StatusNoContent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = uuid.Nil
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusUnauthorized {
				body := decodeError(t, rec)
				require.NotNil(t, body.Action)
				assert.Equal(t, errs.ActionTypeRedirect, body.Action.Type)
				assert.Equal(t, LoginPath, body.Action.Value)
				assert.Equal(t, uuid.Nil, seen)
				return
			}
			assert.Equal(t, owner, seen)
		})
	}
}

func TestGlobalErrorHandler(t *testing.T) {
	s := newTestServer()
	e := newEcho(s)

	e.GET("/missing-row", func(c echo.Context) error {
		return pgx.ErrNoRows
	})
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("database exploded")
	})
	e.GET("/bad", func(c echo.Context) error {
		return errs.NewBadRequestError("Invalid order data.", true, nil,
			[]errs.FieldError{{Field: "NumberOfCopies", Error: "must be a number"}}, nil)
	})

	cases := []struct {
		path    string
		status  int
		message string
	}{
		{"/nowhere", http.StatusNotFound, "Route not found"},
		{"/boom", http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)},
		{"/bad", http.StatusBadRequest, "Invalid order data."},
		{"/missing-row", http.StatusNotFound, ""},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))

			assert.Equal(t, tc.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tc.status, body.Status)
			if tc.message != "" {
				assert.Equal(t, tc.message, body.Message)
			}
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, GetRequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Body.String())
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestPublicRateLimit(t *testing.T) {
	s := newTestServer()
	e := newEcho(s)
	e.POST("/token", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, NewRateLimitMiddleware(s).Public())

	var limited int
	for range PublicBurst + 5 {
		req := httptest.NewRequest(http.MethodPost, "/token", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Positive(t, limited)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusOK, statusOf(nil, http.StatusOK))
	assert.Equal(t, http.StatusForbidden, statusOf(errs.NewForbiddenError("no", false), 0))
	assert.Equal(t, http.StatusMethodNotAllowed, statusOf(echo.ErrMethodNotAllowed, 0))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("x"), http.StatusOK))
}

package handler

import (
	"net/http"
	"time"

	"github.com/deppfellow/autoprintx/internal/lib/token"
	"github.com/deppfellow/autoprintx/internal/middleware"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/deppfellow/autoprintx/internal/service"
	"github.com/deppfellow/autoprintx/internal/validation"
	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	Handler
	auth *service.AuthService
}

func NewAuthHandler(s *server.Server, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{
		Handler: NewHandler(s),
		auth:    auth,
	}
}

type LoginRequest struct {
	// Username accepts a username or an email address.
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Validate() error { return validation.Struct(r) }

type LoginResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"AccessToken"`
	RefreshToken string `json:"RefreshToken"`
}

type RefreshResponse struct {
	Refreshed bool `json:"refreshed"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type AuthenticatedResponse struct {
	Authenticated bool `json:"Authenticated"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=4"`
}

func (r *RegisterRequest) Validate() error { return validation.Struct(r) }

type RegisterResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

func (r *ChangePasswordRequest) Validate() error { return validation.Struct(r) }

// sessionCookie builds an HttpOnly cookie for path "/". Production cookies
// are Secure and SameSite=None so the dashboard can live on another
// origin; CookieInsecure relaxes both for plain-HTTP development.
func (h *AuthHandler) sessionCookie(name, value string, expires time.Time) *http.Cookie {
	cfg := h.server.Config.Auth

	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		HttpOnly: true,
		Secure:   !cfg.CookieInsecure,
		SameSite: http.SameSiteNoneMode,
	}
	if cfg.CookieInsecure {
		cookie.SameSite = http.SameSiteLaxMode
	}

	if value == "" {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	} else {
		cookie.Expires = expires
		cookie.MaxAge = int(time.Until(expires).Seconds())
	}
	return cookie
}

func (h *AuthHandler) Login(c echo.Context, req *LoginRequest) (*LoginResponse, error) {
	pair, err := h.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	c.SetCookie(h.sessionCookie(token.AccessCookie, pair.Access, pair.AccessExpiresAt))
	c.SetCookie(h.sessionCookie(token.RefreshCookie, pair.Refresh, pair.RefreshExpiresAt))

	return &LoginResponse{
		Success:      true,
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
	}, nil
}

// Refresh rotates the refresh_token cookie. Failures answer 200 with
// refreshed=false, which the dashboard treats as logged out.
func (h *AuthHandler) Refresh(c echo.Context, _ *EmptyRequest) (*RefreshResponse, error) {
	var raw string
	if cookie, err := c.Cookie(token.RefreshCookie); err == nil {
		raw = cookie.Value
	}

	pair, err := h.auth.Refresh(c.Request().Context(), raw)
	if err != nil {
		middleware.GetLogger(c).Info().Err(err).Msg("token refresh refused")
		return &RefreshResponse{Refreshed: false}, nil
	}

	c.SetCookie(h.sessionCookie(token.AccessCookie, pair.Access, pair.AccessExpiresAt))
	c.SetCookie(h.sessionCookie(token.RefreshCookie, pair.Refresh, pair.RefreshExpiresAt))
	return &RefreshResponse{Refreshed: true}, nil
}

func (h *AuthHandler) Logout(c echo.Context, _ *EmptyRequest) (*SuccessResponse, error) {
	if cookie, err := c.Cookie(token.RefreshCookie); err == nil {
		h.auth.Logout(c.Request().Context(), cookie.Value)
	}

	c.SetCookie(h.sessionCookie(token.AccessCookie, "", time.Time{}))
	c.SetCookie(h.sessionCookie(token.RefreshCookie, "", time.Time{}))
	return &SuccessResponse{Success: true}, nil
}

func (h *AuthHandler) Authenticated(c echo.Context, _ *EmptyRequest) (*AuthenticatedResponse, error) {
	return &AuthenticatedResponse{Authenticated: true}, nil
}

func (h *AuthHandler) Register(c echo.Context, req *RegisterRequest) (*RegisterResponse, error) {
	owner, err := h.auth.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	return &RegisterResponse{
		Success:  true,
		Message:  "User registered successfully!",
		Username: owner.Username,
		Email:    owner.Email,
	}, nil
}

func (h *AuthHandler) ChangePassword(c echo.Context, req *ChangePasswordRequest) (*SuccessResponse, error) {
	err := h.auth.ChangePassword(
		c.Request().Context(),
		middleware.GetUserID(c),
		req.CurrentPassword,
		req.NewPassword,
		req.ConfirmPassword,
	)
	if err != nil {
		return nil, err
	}

	return &SuccessResponse{Success: true, Message: "Password updated successfully."}, nil
}

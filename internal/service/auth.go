package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/deppfellow/autoprintx/internal/errs"
	"github.com/deppfellow/autoprintx/internal/lib/token"
	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxUniqueURLAttempts = 5

var slugUnsafe = regexp.MustCompile(`[^a-z0-9-]+`)

type AuthService struct {
	server *server.Server
	owners OwnerStore
	cost   int
}

func NewAuthService(s *server.Server, owners OwnerStore) *AuthService {
	return &AuthService{
		server: s,
		owners: owners,
		cost:   bcrypt.DefaultCost,
	}
}

func invalidCredentials() *errs.HTTPError {
	return errs.NewUnauthorizedError("No active account found with the given credentials", true)
}

// Login accepts a username or an email address. Usernames are tried first;
// the email lookup is case-insensitive.
func (a *AuthService) Login(ctx context.Context, identifier, password string) (*token.Pair, error) {
	owner, err := a.owners.GetByUsername(ctx, identifier)
	if isNotFound(err) {
		owner, err = a.owners.GetByEmail(ctx, identifier)
	}
	if isNotFound(err) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte(password)) != nil {
		return nil, invalidCredentials()
	}

	pair, err := a.server.Tokens.IssuePair(owner.ID)
	if err != nil {
		return nil, err
	}

	a.server.Logger.Info().
		Str("user_id", owner.ID.String()).
		Msg("owner logged in")
	return pair, nil
}

// Refresh rotates a refresh token. The presented token is blacklisted.
func (a *AuthService) Refresh(ctx context.Context, refresh string) (*token.Pair, error) {
	if refresh == "" {
		return nil, errs.NewUnauthorizedError("Refresh token missing", false)
	}
	pair, err := a.server.Tokens.Rotate(ctx, refresh)
	if err != nil {
		return nil, errs.NewUnauthorizedError("Invalid or expired refresh token", false)
	}
	return pair, nil
}

// Logout blacklists the refresh token if there is one. Failures are logged,
// the cookies are cleared regardless.
func (a *AuthService) Logout(ctx context.Context, refresh string) {
	if refresh == "" {
		return
	}
	if err := a.server.Tokens.Revoke(ctx, refresh); err != nil {
		a.server.Logger.Warn().Err(err).Msg("failed to revoke refresh token")
	}
}

// Register creates an owner with a fresh shareable URL.
func (a *AuthService) Register(ctx context.Context, username, email, password string) (*model.Owner, error) {
	exists, err := a.owners.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errs.NewBadRequestError("This email is already registered.", true, nil,
			[]errs.FieldError{{Field: "email", Error: "This email is already registered."}}, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	uniqueURL, err := a.generateUniqueURL(ctx, username)
	if err != nil {
		return nil, err
	}

	owner, err := a.owners.Create(ctx, model.NewOwner{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		UniqueURL:    uniqueURL,
	})
	if err != nil {
		return nil, err
	}

	a.server.Logger.Info().
		Str("user_id", owner.ID.String()).
		Str("unique_url", owner.UniqueURL).
		Msg("owner registered")
	return owner, nil
}

// Slug lowercases a username and replaces whitespace with hyphens.
func Slug(username string) string {
	s := strings.Join(strings.Fields(strings.ToLower(username)), "-")
	s = slugUnsafe.ReplaceAllString(s, "")
	if s == "" {
		return "shop"
	}
	return s
}

func (a *AuthService) generateUniqueURL(ctx context.Context, username string) (string, error) {
	base := Slug(username)
	for range maxUniqueURLAttempts {
		candidate := base + "-" + uuid.NewString()
		taken, err := a.owners.UniqueURLExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique url for %q", username)
}

// ChangePassword checks, in order: confirmation matches, current password
// is right, new password differs from the current one.
func (a *AuthService) ChangePassword(ctx context.Context, ownerID uuid.UUID, current, next, confirm string) error {
	if next != confirm {
		return errs.NewBadRequestError("New password and confirmation do not match.", true, nil, nil, nil)
	}

	owner, err := a.owners.GetByID(ctx, ownerID)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte(current)) != nil {
		return errs.NewBadRequestError("The old password entered is incorrect.", true, nil, nil, nil)
	}
	if current == next {
		return errs.NewBadRequestError("The new password cannot be the same as the old password.", true, nil, nil, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), a.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := a.owners.UpdatePassword(ctx, ownerID, string(hash)); err != nil {
		return err
	}

	a.server.Logger.Info().Str("user_id", ownerID.String()).Msg("password changed")
	return nil
}

// Owner returns the authenticated owner's record.
func (a *AuthService) Owner(ctx context.Context, ownerID uuid.UUID) (*model.Owner, error) {
	return a.owners.GetByID(ctx, ownerID)
}

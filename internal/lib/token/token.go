// Package token issues and verifies the JWTs that live in the session
// cookies.
//
// Every login yields a pair: a short-lived access token and a long-lived
// refresh token, both HS256 and both carrying a unique jti. Refreshing
// rotates the pair and blacklists the old refresh jti until it would have
// expired anyway, so a stolen refresh token is good for one use at most.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deppfellow/autoprintx/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Cookie names the tokens travel in.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

const issuer = "autoprintx"

var (
	ErrInvalid   = errors.New("token is invalid or expired")
	ErrRevoked   = errors.New("token has been revoked")
	ErrWrongType = errors.New("token has the wrong type")
)

// Claims is the JWT body.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	TokenType Type      `json:"token_type"`
	jwt.RegisteredClaims
}

// Pair is what login and refresh hand back.
type Pair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  Blacklist
	now        func() time.Time
}

func NewManager(cfg config.AuthConfig, blacklist Blacklist) *Manager {
	return &Manager{
		secret:     []byte(cfg.SecretKey),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		blacklist:  blacklist,
		now:        time.Now,
	}
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *Manager) sign(userID uuid.UUID, typ Type, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		UserID:    userID,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, expiresAt, nil
}

// IssuePair signs a fresh access/refresh pair for userID.
func (m *Manager) IssuePair(userID uuid.UUID) (*Pair, error) {
	access, accessExp, err := m.sign(userID, TypeAccess, m.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, refreshExp, err := m.sign(userID, TypeRefresh, m.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &Pair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Parse verifies raw and checks it is of type want and not blacklisted.
func (m *Manager) Parse(ctx context.Context, raw string, want Type) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if claims.TokenType != want {
		return nil, ErrWrongType
	}

	if m.blacklist != nil && claims.ID != "" {
		revoked, err := m.blacklist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token blacklist: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	return claims, nil
}

// Rotate exchanges a valid refresh token for a new pair and blacklists the
// old one. Of concurrent rotations of one token only the first succeeds.
func (m *Manager) Rotate(ctx context.Context, refresh string) (*Pair, error) {
	claims, err := m.Parse(ctx, refresh, TypeRefresh)
	if err != nil {
		return nil, err
	}

	first, err := m.revokeClaims(ctx, claims)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, ErrRevoked
	}

	return m.IssuePair(claims.UserID)
}

// Revoke blacklists a refresh token. Tokens that no longer parse need no
// revoking and return nil.
func (m *Manager) Revoke(ctx context.Context, refresh string) error {
	claims, err := m.Parse(ctx, refresh, TypeRefresh)
	if err != nil {
		return nil
	}
	_, err = m.revokeClaims(ctx, claims)
	return err
}

// revokeClaims blacklists claims and reports whether this call did so.
// Without a blacklist every call counts as the first.
func (m *Manager) revokeClaims(ctx context.Context, claims *Claims) (bool, error) {
	if m.blacklist == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return true, nil
	}

	remaining := claims.ExpiresAt.Sub(m.now())
	if remaining <= 0 {
		return true, nil
	}

	first, err := m.blacklist.Revoke(ctx, claims.ID, remaining)
	if err != nil {
		return false, fmt.Errorf("failed to blacklist token: %w", err)
	}
	return first, nil
}

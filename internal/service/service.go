// Package service contains the business logic.
//
// It sits between the handler and repository layers.
// It receives validated data from the handler, performs
// business operations, and calls repository methods to interact
// with the data.
//
// Services depend on the narrow store interfaces below rather than on the
// concrete repositories, so tests can run them against in-memory fakes.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/deppfellow/autoprintx/internal/lib/job"
	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type OwnerStore interface {
	Create(ctx context.Context, params model.NewOwner) (*model.Owner, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Owner, error)
	GetByUsername(ctx context.Context, username string) (*model.Owner, error)
	GetByEmail(ctx context.Context, email string) (*model.Owner, error)
	GetByPhone(ctx context.Context, phone string) (*model.Owner, error)
	GetByUniqueURL(ctx context.Context, uniqueURL string) (*model.Owner, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UniqueURLExists(ctx context.Context, uniqueURL string) (bool, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateSettings(ctx context.Context, u model.OwnerUpdate) (*model.Owner, error)
}

type OrderStore interface {
	Create(ctx context.Context, o model.NewOrder) (*model.Order, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Order, error)
	LastUpdatedAt(ctx context.Context, ownerID uuid.UUID) (time.Time, bool, error)
	CountFiltered(ctx context.Context, ownerID uuid.UUID, f model.OrderFilter) (int, error)
	ListFiltered(ctx context.Context, ownerID uuid.UUID, f model.OrderFilter) ([]model.Order, error)
	MarkComplete(ctx context.Context, ownerID uuid.UUID, ref string) (*model.Order, error)
	Totals(ctx context.Context, uniqueURL string, w model.StatsWindow) (*model.StatsTotals, error)
	Points(ctx context.Context, uniqueURL string, since time.Time) ([]model.OrderPoint, error)
	ActivitySince(ctx context.Context, ownerID uuid.UUID, since time.Time) (*model.ActivitySource, error)
}

type OTPStore interface {
	Create(ctx context.Context, ownerID *uuid.UUID, emailOrPhone, code string, expiresAt time.Time) (*model.OTPVerification, error)
	Latest(ctx context.Context, emailOrPhone string) (*model.OTPVerification, error)
	LatestVerified(ctx context.Context, emailOrPhone string, now time.Time) (*model.OTPVerification, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
	CountSince(ctx context.Context, emailOrPhone string, since time.Time) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteFor(ctx context.Context, emailOrPhone string) error
}

// OTPMailer queues OTP emails. *job.JobService implements it.
type OTPMailer interface {
	EnqueueOTPEmail(ctx context.Context, p job.OTPEmailPayload) error
}

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/deppfellow/autoprintx/internal/sqlerr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const otpTable = "otp_verifications"

const otpColumns = `id, owner_id, email_or_phone, otp, created_at, expires_at, is_verified, attempts`

type OTPRepository struct {
	db dbtx
}

func NewOTPRepository(db dbtx) *OTPRepository {
	return &OTPRepository{db: db}
}

func (r *OTPRepository) getOne(ctx context.Context, stmt string, args pgx.NamedArgs) (*model.OTPVerification, error) {
	rows, err := r.db.Query(ctx, stmt, args)
	if err != nil {
		return nil, fmt.Errorf("failed to query otp: %w", err)
	}

	otp, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.OTPVerification])
	if err != nil {
		return nil, sqlerr.WrapNotFound(otpTable, err)
	}
	return &otp, nil
}

func (r *OTPRepository) Create(ctx context.Context, ownerID *uuid.UUID, emailOrPhone, code string, expiresAt time.Time) (*model.OTPVerification, error) {
	return r.getOne(ctx, `
		INSERT INTO otp_verifications (owner_id, email_or_phone, otp, expires_at)
		VALUES (@owner_id, @email_or_phone, @otp, @expires_at)
		RETURNING `+otpColumns,
		pgx.NamedArgs{
			"owner_id":       ownerID,
			"email_or_phone": emailOrPhone,
			"otp":            code,
			"expires_at":     expiresAt,
		},
	)
}

// Latest returns the newest code issued for emailOrPhone.
func (r *OTPRepository) Latest(ctx context.Context, emailOrPhone string) (*model.OTPVerification, error) {
	return r.getOne(ctx, `
		SELECT `+otpColumns+` FROM otp_verifications
		WHERE email_or_phone = @email_or_phone
		ORDER BY created_at DESC
		LIMIT 1`,
		pgx.NamedArgs{"email_or_phone": emailOrPhone},
	)
}

// LatestVerified returns the newest verified code that has not expired at now.
func (r *OTPRepository) LatestVerified(ctx context.Context, emailOrPhone string, now time.Time) (*model.OTPVerification, error) {
	return r.getOne(ctx, `
		SELECT `+otpColumns+` FROM otp_verifications
		WHERE email_or_phone = @email_or_phone AND is_verified AND expires_at > @now
		ORDER BY created_at DESC
		LIMIT 1`,
		pgx.NamedArgs{"email_or_phone": emailOrPhone, "now": now},
	)
}

func (r *OTPRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE otp_verifications SET attempts = attempts + 1 WHERE id = @id`,
		pgx.NamedArgs{"id": id},
	)
	if err != nil {
		return fmt.Errorf("failed to increment otp attempts: %w", err)
	}
	return nil
}

func (r *OTPRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE otp_verifications SET is_verified = TRUE WHERE id = @id`,
		pgx.NamedArgs{"id": id},
	)
	if err != nil {
		return fmt.Errorf("failed to mark otp verified: %w", err)
	}
	return nil
}

// CountSince reports how many codes were issued for emailOrPhone at or after
// since.
func (r *OTPRepository) CountSince(ctx context.Context, emailOrPhone string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM otp_verifications
		WHERE email_or_phone = @email_or_phone AND created_at >= @since`,
		pgx.NamedArgs{"email_or_phone": emailOrPhone, "since": since},
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count otps: %w", err)
	}
	return n, nil
}

func (r *OTPRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM otp_verifications WHERE id = @id`,
		pgx.NamedArgs{"id": id},
	)
	if err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}
	return nil
}

// DeleteFor drops every code issued for emailOrPhone.
func (r *OTPRepository) DeleteFor(ctx context.Context, emailOrPhone string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM otp_verifications WHERE email_or_phone = @email_or_phone`,
		pgx.NamedArgs{"email_or_phone": emailOrPhone},
	)
	if err != nil {
		return fmt.Errorf("failed to delete otps: %w", err)
	}
	return nil
}

// DeleteExpired removes codes that expired before cutoff and reports how
// many.
func (r *OTPRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM otp_verifications WHERE expires_at < @cutoff`,
		pgx.NamedArgs{"cutoff": cutoff},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otps: %w", err)
	}
	return tag.RowsAffected(), nil
}

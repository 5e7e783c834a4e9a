package model

import (
	"time"

	"github.com/google/uuid"
)

// OTP rules for password resets. At most OTPMaxSends codes are issued per
// identifier within OTPSendWindow, and issued codes are kept for that long
// so the limit holds after they expire.
const (
	OTPLength      = 4
	OTPTTL         = 10 * time.Minute
	OTPMaxAttempts = 5
	OTPMaxSends    = 3
	OTPSendWindow  = time.Hour
)

// OTPVerification is one issued reset code.
type OTPVerification struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	OwnerID      *uuid.UUID `json:"owner_id" db:"owner_id"`
	EmailOrPhone string     `json:"email_or_phone" db:"email_or_phone"`
	OTP          string     `json:"-" db:"otp"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at" db:"expires_at"`
	IsVerified   bool       `json:"is_verified" db:"is_verified"`
	Attempts     int        `json:"attempts" db:"attempts"`
}

// IsExpired reports whether the code is past its expiry at now.
func (o *OTPVerification) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// CanAttempt reports whether another verification attempt is allowed.
func (o *OTPVerification) CanAttempt() bool {
	return o.Attempts < OTPMaxAttempts
}

package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/deppfellow/autoprintx/internal/errs"
	"github.com/deppfellow/autoprintx/internal/lib/job"
	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/deppfellow/autoprintx/internal/server"
	"golang.org/x/crypto/bcrypt"
)

// OTP codes are drawn from [otpMin, otpMin+otpSpan).
const (
	otpMin  = 1000
	otpSpan = 9000
)

type OTPService struct {
	server *server.Server
	owners OwnerStore
	otps   OTPStore
	mailer OTPMailer
	now    func() time.Time
	cost   int
}

func NewOTPService(s *server.Server, owners OwnerStore, otps OTPStore, mailer OTPMailer) *OTPService {
	return &OTPService{
		server: s,
		owners: owners,
		otps:   otps,
		mailer: mailer,
		now:    time.Now,
		cost:   bcrypt.DefaultCost,
	}
}

func isEmail(emailOrPhone string) bool {
	return strings.Contains(emailOrPhone, "@")
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()+otpMin), nil
}

func (o *OTPService) lookupOwner(ctx context.Context, emailOrPhone string) (*model.Owner, error) {
	if isEmail(emailOrPhone) {
		owner, err := o.owners.GetByEmail(ctx, emailOrPhone)
		if isNotFound(err) {
			return nil, errs.NewNotFoundError("User with this email does not exist.", true, nil)
		}
		return owner, err
	}

	if !model.IsRealPhone(emailOrPhone) {
		return nil, errs.NewNotFoundError("User with this phone number does not exist.", true, nil)
	}

	owner, err := o.owners.GetByPhone(ctx, emailOrPhone)
	if isNotFound(err) {
		return nil, errs.NewNotFoundError("User with this phone number does not exist.", true, nil)
	}
	return owner, err
}

// Send issues a new code for emailOrPhone. Verify only considers the newest
// code, and at most model.OTPMaxSends codes are issued per send window.
// Email codes are delivered by the job queue; phone codes are only recorded
// since no SMS gateway is configured.
func (o *OTPService) Send(ctx context.Context, emailOrPhone string) error {
	owner, err := o.lookupOwner(ctx, emailOrPhone)
	if err != nil {
		return err
	}

	sent, err := o.otps.CountSince(ctx, emailOrPhone, o.now().Add(-model.OTPSendWindow))
	if err != nil {
		return err
	}
	if sent >= model.OTPMaxSends {
		o.server.Logger.Warn().
			Str("user_id", owner.ID.String()).
			Int("sent", sent).
			Msg("otp send limit reached")
		return errs.NewTooManyRequestsError("Too many OTP requests. Please try again later.")
	}

	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("failed to generate otp: %w", err)
	}

	otp, err := o.otps.Create(ctx, &owner.ID, emailOrPhone, code, o.now().Add(model.OTPTTL))
	if err != nil {
		return err
	}

	if !isEmail(emailOrPhone) {
		o.server.Logger.Warn().
			Str("user_id", owner.ID.String()).
			Msg("otp issued for phone number, sms delivery is not configured")
		return nil
	}

	err = o.mailer.EnqueueOTPEmail(ctx, job.OTPEmailPayload{
		To:        emailOrPhone,
		OTP:       code,
		ShopName:  owner.ShopName,
		ExpiresIn: model.OTPTTL,
	})
	if err != nil {
		if delErr := o.otps.Delete(ctx, otp.ID); delErr != nil {
			o.server.Logger.Error().Err(delErr).Msg("failed to drop undelivered otp")
		}
		return fmt.Errorf("failed to enqueue otp email: %w", err)
	}

	o.server.Logger.Info().Str("user_id", owner.ID.String()).Msg("otp issued")
	return nil
}

// Verify checks code against the latest one issued for emailOrPhone. Every
// wrong guess counts against the attempt limit.
func (o *OTPService) Verify(ctx context.Context, emailOrPhone, code string) error {
	otp, err := o.otps.Latest(ctx, emailOrPhone)
	if isNotFound(err) {
		return errs.NewBadRequestError("No OTP found for this email or phone.", true, nil, nil, nil)
	}
	if err != nil {
		return err
	}

	if otp.IsExpired(o.now()) {
		return errs.NewBadRequestError("OTP has expired. Please request a new one.", true, nil, nil, nil)
	}
	if !otp.CanAttempt() {
		return errs.NewBadRequestError("Maximum attempts exceeded. Please request a new OTP.", true, nil, nil, nil)
	}

	if err := o.otps.IncrementAttempts(ctx, otp.ID); err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(otp.OTP), []byte(code)) != 1 {
		remaining := model.OTPMaxAttempts - otp.Attempts - 1
		return errs.NewBadRequestError(fmt.Sprintf("Invalid OTP. %d attempt(s) remaining.", max(remaining, 0)), true, nil, nil, nil)
	}

	return o.otps.MarkVerified(ctx, otp.ID)
}

// ResetPassword sets a new password for the owner the verified code was
// issued to, provided it has not yet expired. The codes are consumed.
func (o *OTPService) ResetPassword(ctx context.Context, emailOrPhone, newPassword string) error {
	otp, err := o.otps.LatestVerified(ctx, emailOrPhone, o.now())
	if isNotFound(err) {
		return errs.NewBadRequestError("OTP not verified or has expired.", true, nil, nil, nil)
	}
	if err != nil {
		return err
	}
	if otp.OwnerID == nil {
		return errs.NewBadRequestError("OTP not verified or has expired.", true, nil, nil, nil)
	}

	owner, err := o.owners.GetByID(ctx, *otp.OwnerID)
	if isNotFound(err) {
		return errs.NewNotFoundError("User no longer exists.", true, nil)
	}
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), o.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := o.owners.UpdatePassword(ctx, owner.ID, string(hash)); err != nil {
		return err
	}

	if err := o.otps.DeleteFor(ctx, emailOrPhone); err != nil {
		o.server.Logger.Warn().Err(err).Msg("failed to clear used otps")
	}

	o.server.Logger.Info().Str("user_id", owner.ID.String()).Msg("password reset")
	return nil
}

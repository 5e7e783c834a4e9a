package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deppfellow/autoprintx/internal/model"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// ExpiredOTPDeleter is the slice of the OTP repository the cleanup task
// needs.
type ExpiredOTPDeleter interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// handleOTPEmailTask decodes the payload and sends the email. Returning an
// error makes Asynq retry.
func (j *JobService) handleOTPEmailTask(ctx context.Context, t *asynq.Task) error {
	var p OTPEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal otp email payload: %w: %w", err, asynq.SkipRetry)
	}

	j.logger.Info().
		Str("type", "otp").
		Str("to", p.To).
		Msg("processing otp email task")

	if err := j.emailClient.SendOTPEmail(p.To, p.OTP, p.ShopName, p.ExpiresIn); err != nil {
		j.logger.Error().
			Str("type", "otp").
			Str("to", p.To).
			Err(err).
			Msg("failed to send otp email")
		return err
	}

	j.logger.Info().
		Str("type", "otp").
		Str("to", p.To).
		Msg("sent otp email")
	return nil
}

func (j *JobService) handleCleanupOTPsTask(ctx context.Context, _ *asynq.Task) error {
	deleted, err := CleanupExpiredOTPs(ctx, j.otpStore, j.logger)
	if err != nil {
		return err
	}
	j.logger.Info().Int64("deleted", deleted).Msg("expired otp cleanup finished")
	return nil
}

// CleanupExpiredOTPs deletes every OTP that expired more than one send
// window ago. The scheduler and the cleanup-otps command share it.
func CleanupExpiredOTPs(ctx context.Context, store ExpiredOTPDeleter, logger *zerolog.Logger) (int64, error) {
	deleted, err := store.DeleteExpired(ctx, time.Now().Add(-model.OTPSendWindow))
	if err != nil {
		logger.Error().Err(err).Msg("failed to delete expired otps")
		return 0, err
	}
	return deleted, nil
}

// asynqLogger adapts zerolog to asynq.Logger.
type asynqLogger struct {
	logger zerolog.Logger
}

func newAsynqLogger(logger *zerolog.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.With().Str("component", "asynq").Logger()}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }

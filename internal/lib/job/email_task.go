package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskOTPEmail is the job type name stored in Redis.
	TaskOTPEmail = "email:otp"

	// TaskCleanupOTPs deletes expired OTP records.
	TaskCleanupOTPs = "otp:cleanup"
)

// OTPEmailPayload is the JSON payload of an OTP email task.
type OTPEmailPayload struct {
	To        string        `json:"to"`
	OTP       string        `json:"otp"`
	ShopName  string        `json:"shop_name"`
	ExpiresIn time.Duration `json:"expires_in"`
}

// NewOTPEmailTask builds an OTP email task. OTPs are short-lived, so the
// task goes to the critical queue and stops retrying once the code would
// have expired anyway.
func NewOTPEmailTask(p OTPEmailPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	opts := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Queue("critical"),
		asynq.Timeout(30 * time.Second),
	}
	if p.ExpiresIn > 0 {
		opts = append(opts, asynq.Deadline(time.Now().Add(p.ExpiresIn)))
	}

	return asynq.NewTask(TaskOTPEmail, payload, opts...), nil
}

// NewCleanupOTPsTask builds the periodic cleanup task.
func NewCleanupOTPsTask() (*asynq.Task, error) {
	return asynq.NewTask(
		TaskCleanupOTPs,
		nil,
		asynq.MaxRetry(1),
		asynq.Queue("low"),
		asynq.Timeout(time.Minute),
	), nil
}

// EnqueueOTPEmail queues an OTP email for delivery.
func (j *JobService) EnqueueOTPEmail(ctx context.Context, p OTPEmailPayload) error {
	task, err := NewOTPEmailTask(p)
	if err != nil {
		return err
	}

	info, err := j.Client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}

	j.logger.Debug().
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Msg("enqueued otp email")
	return nil
}

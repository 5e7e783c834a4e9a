// Package job provides background job processing using Asynq.
//
// Asynq is a Redis-backed job queue:
//   - Handlers enqueue tasks (producer) through the asynq.Client.
//   - A server runs workers that process those tasks (consumer).
//   - A scheduler enqueues periodic tasks, such as the hourly OTP cleanup.
package job

import (
	"fmt"

	"github.com/deppfellow/autoprintx/internal/config"
	"github.com/deppfellow/autoprintx/internal/lib/email"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// CleanupSchedule is the cron spec for deleting expired OTPs.
const CleanupSchedule = "@hourly"

// JobService holds the Asynq client (enqueue), server (worker execution)
// and scheduler (periodic tasks).
type JobService struct {
	// Client is used to enqueue tasks into Redis.
	Client *asynq.Client

	server    *asynq.Server
	scheduler *asynq.Scheduler
	logger    *zerolog.Logger

	emailClient *email.Client
	otpStore    ExpiredOTPDeleter
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// NewJobService creates a JobService configured to use Redis from cfg.
//
// Queue weights give "critical" tasks (OTP emails) the larger share of the
// ten workers.
func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	opt := redisOpt(cfg)

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
		Logger: newAsynqLogger(logger),
	})

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: cfg.Location(),
		Logger:   newAsynqLogger(logger),
	})

	return &JobService{
		Client:      asynq.NewClient(opt),
		server:      server,
		scheduler:   scheduler,
		logger:      logger,
		emailClient: email.NewClient(cfg, logger),
	}
}

// SetOTPStore supplies the store the cleanup task deletes from. Without one
// the cleanup task is not registered.
func (j *JobService) SetOTPStore(store ExpiredOTPDeleter) {
	j.otpStore = store
}

// Mux routes task types to handlers.
func (j *JobService) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskOTPEmail, j.handleOTPEmailTask)
	if j.otpStore != nil {
		mux.HandleFunc(TaskCleanupOTPs, j.handleCleanupOTPsTask)
	}
	return mux
}

// Start launches the workers and the scheduler. Both run in their own
// goroutines; Start does not block.
func (j *JobService) Start() error {
	j.logger.Info().Msg("starting background job server")

	if err := j.server.Start(j.Mux()); err != nil {
		return fmt.Errorf("failed to start job server: %w", err)
	}

	if j.otpStore != nil {
		task, err := NewCleanupOTPsTask()
		if err != nil {
			return err
		}
		if _, err := j.scheduler.Register(CleanupSchedule, task); err != nil {
			return fmt.Errorf("failed to schedule otp cleanup: %w", err)
		}
	}

	if err := j.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start job scheduler: %w", err)
	}

	return nil
}

// Stop gracefully stops the scheduler and workers and closes the client.
func (j *JobService) Stop() {
	j.logger.Info().Msg("stopping background job server")
	j.scheduler.Shutdown()
	j.server.Shutdown()
	if err := j.Client.Close(); err != nil {
		j.logger.Error().Err(err).Msg("failed to close job client")
	}
}

// Package server defines the core Server struct that composes the app's main
// dependencies.
//
// It owns the lifecycle of:
//   - configuration
//   - logger + optional New Relic service wrapper
//   - database pool
//   - redis client, the dashboard cache and the token blacklist on top of it
//   - the SSE hub and its Redis relay
//   - file storage
//   - background job service (asynq) and the health checker
//   - http.Server
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/deppfellow/autoprintx/internal/config"
	"github.com/deppfellow/autoprintx/internal/database"
	"github.com/deppfellow/autoprintx/internal/lib/cache"
	"github.com/deppfellow/autoprintx/internal/lib/health"
	"github.com/deppfellow/autoprintx/internal/lib/hub"
	"github.com/deppfellow/autoprintx/internal/lib/job"
	"github.com/deppfellow/autoprintx/internal/lib/storage"
	"github.com/deppfellow/autoprintx/internal/lib/token"
	"github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	loggerPkg "github.com/deppfellow/autoprintx/internal/logger"
)

// Server is the application container that holds shared resources.
//
// It is not the HTTP server itself; that is the unexported httpServer,
// configured in SetupHTTPServer.
type Server struct {
	Config *config.Config
	Logger *zerolog.Logger

	// LoggerService optionally holds the New Relic application. It may
	// exist with a nil application when New Relic is disabled.
	LoggerService *loggerPkg.LoggerService

	DB    *database.Database
	Redis *redis.Client

	// Cache fronts the dashboard endpoints.
	Cache cache.Store

	// Hub streams dashboard events to connected owners.
	Hub *hub.Hub

	Tokens  *token.Manager
	Storage storage.Provider

	// Job runs background workers and provides a client for enqueueing.
	Job *job.JobService

	Health *health.Checker

	httpServer *http.Server
	cancelRun  context.CancelFunc
}

// New constructs a Server and initializes core dependencies.
//
// It does not start anything that runs in the background; StartBackground
// does that once the caller has finished wiring.
//
// Redis is optional at startup: a failed ping is logged and the server
// continues, with cache misses and local-only event delivery.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService) (*Server, error) {
	db, err := database.New(cfg, logger, loggerService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if loggerService.GetApplication() != nil {
		redisClient.AddHook(nrredis.NewHook(redisClient.Options()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error().Err(err).Msg("failed to connect to redis, continuing without redis")
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	checker := health.NewChecker(logger, loggerService.GetApplication(), cfg.Observability.HealthChecks.Timeout, "database")
	for _, name := range cfg.Observability.HealthChecks.Checks {
		switch name {
		case "database":
			checker.Register(name, db.Ping)
		case "redis":
			checker.Register(name, func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			})
		default:
			logger.Warn().Str("check", name).Msg("unknown health check, ignoring")
		}
	}

	return &Server{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		DB:            db,
		Redis:         redisClient,
		Cache:         cache.NewRedisStore(redisClient),
		Hub:           hub.New(logger, redisClient),
		Tokens:        token.NewManager(cfg.Auth, token.NewRedisBlacklist(redisClient)),
		Storage:       store,
		Job:           job.NewJobService(logger, cfg),
		Health:        checker,
	}, nil
}

// StartBackground starts the job workers, the event relay and, when
// enabled, periodic health checks.
func (s *Server) StartBackground() error {
	if err := s.Job.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelRun = cancel
	go s.Hub.Run(ctx)

	hc := s.Config.Observability.HealthChecks
	if hc.Enabled {
		if err := s.Health.Start(hc.Interval); err != nil {
			return err
		}
	}

	return nil
}

// SetupHTTPServer configures the internal net/http server. Config timeouts
// are seconds.
func (s *Server) SetupHTTPServer(handler http.Handler) {
	s.httpServer = &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      handler,
		ReadTimeout:  time.Duration(s.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.Config.Server.IdleTimeout) * time.Second,
	}
}

// Start runs the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return errors.New("HTTP server not initialized")
	}

	s.Logger.Info().
		Str("port", s.Config.Server.Port).
		Str("env", s.Config.Primary.Env).
		Msg("starting server")

	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires, then stops background work and closes connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	if s.cancelRun != nil {
		s.cancelRun()
	}

	s.Health.Stop()

	if s.Job != nil {
		s.Job.Stop()
	}

	if err := s.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	if err := s.Redis.Close(); err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}

	return nil
}

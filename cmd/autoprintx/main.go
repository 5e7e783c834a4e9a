package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deppfellow/autoprintx/internal/config"
	"github.com/deppfellow/autoprintx/internal/database"
	"github.com/deppfellow/autoprintx/internal/handler"
	"github.com/deppfellow/autoprintx/internal/lib/job"
	"github.com/deppfellow/autoprintx/internal/logger"
	"github.com/deppfellow/autoprintx/internal/repository"
	"github.com/deppfellow/autoprintx/internal/router"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/deppfellow/autoprintx/internal/service"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// app is what every command needs before it can do anything.
type app struct {
	cfg           *config.Config
	log           zerolog.Logger
	loggerService *logger.LoggerService
}

func bootstrap() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	return &app{
		cfg:           cfg,
		log:           logger.NewLoggerWithService(cfg.Observability, loggerService),
		loggerService: loggerService,
	}, nil
}

func main() {
	root := &cobra.Command{
		Use:           "autoprintx",
		Short:         "AutoPrintX print-shop order backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, background workers and event relay",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations",
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "cleanup-otps",
			Short: "Delete expired one-time passwords",
			RunE:  runCleanupOTPs,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.loggerService.Shutdown()

	ctx := cmd.Context()

	if a.cfg.Primary.Env != "local" {
		if err := database.Migrate(ctx, &a.log, a.cfg); err != nil {
			a.log.Error().Err(err).Msg("failed to migrate database")
			return err
		}
	}

	srv, err := server.New(a.cfg, &a.log, a.loggerService)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to initialize server")
		return err
	}

	repos := repository.NewRepositories(srv)
	srv.Job.SetOTPStore(repos.OTP)

	services, err := service.NewService(srv, repos)
	if err != nil {
		a.log.Error().Err(err).Msg("could not create services")
		return err
	}

	handlers := handler.NewHandlers(srv, services)
	srv.SetupHTTPServer(router.NewRouter(srv, handlers))

	if err := srv.StartBackground(); err != nil {
		a.log.Error().Err(err).Msg("failed to start background workers")
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("server stopped unexpectedly")
			return err
		}
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	a.log.Info().Msg("server exited properly")
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	return database.Migrate(cmd.Context(), &a.log, a.cfg)
}

func runCleanupOTPs(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	db, err := database.New(a.cfg, &a.log, a.loggerService)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	deleted, err := job.CleanupExpiredOTPs(cmd.Context(), repository.NewOTPRepository(db.Pool), &a.log)
	if err != nil {
		return err
	}

	a.log.Info().Int64("deleted", deleted).Msg("expired otps removed")
	return nil
}

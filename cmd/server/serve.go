package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"academy/internal/apperr"
	"academy/internal/config"
	"academy/internal/database"
	"academy/internal/handlers"
	"academy/internal/metrics"
	"academy/internal/repository"
	"academy/internal/security"
	"academy/internal/service"
)

const (
	sweepInterval   = time.Hour
	shutdownTimeout = 15 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Connect to the database, apply pending migrations and serve the
authentication API until interrupted.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	started := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startup := handlers.NewStartupStatus()
	gate := handlers.NewStartupGate(startup)

	// Listen before initializing so /api/health/ready can report progress.
	addr := ":" + cfg.ServerPort
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return oops.Code("SERVER_FAILED").With("addr", addr).Wrap(err)
	}
	server := &http.Server{
		Handler:      gate,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	defer server.Close()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", addr, "environment", cfg.Environment)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	startup.SetCurrentStep(handlers.StepDatabase)
	db, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("db_type", cfg.DatabaseType).Wrap(err)
	}
	defer db.Close()
	startup.CompleteStep(handlers.StepDatabase)
	logger.Info("database connection established", "type", cfg.DatabaseType)

	startup.SetCurrentStep(handlers.StepMigrations)
	if err := db.RunMigrations(ctx, logger); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	startup.CompleteStep(handlers.StepMigrations)

	startup.SetCurrentStep(handlers.StepServices)
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	accountRepo := repository.NewAccountRepository(db)
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	tokens := security.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)

	mailer := service.NewDisabledMailer(logger)
	if cfg.EmailEnabled() {
		mailer, err = service.NewSESMailer(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, logger)
		if err != nil {
			return oops.Code("MAILER_INIT_FAILED").With("region", cfg.AWSRegion).Wrap(err)
		}
	} else {
		logger.Warn("email service disabled: SES_FROM_EMAIL not configured, reset links will not be delivered")
	}

	authService := service.NewAuthService(accountRepo, hasher, tokens, cfg.RefreshTokenTTL(), logger, m)
	passwordService := service.NewPasswordService(accountRepo, hasher, tokens, mailer, service.ResetLinkConfig{
		TTL:        cfg.ResetTokenTTL,
		Port:       cfg.ServerPort,
		Production: cfg.IsProduction(),
	}, logger, m)
	accountService := service.NewAccountService(accountRepo)

	limiter := security.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	defer limiter.Close()

	middleware := handlers.NewMiddleware(tokens, accountService, limiter, logger, m)
	routes := handlers.Routes(handlers.Handlers{
		Auth:    handlers.NewAuthHandler(authService, logger),
		Users:   handlers.NewUserHandler(passwordService, cfg.ResetTokenTTL, logger),
		Health:  handlers.NewHealthHandler(started),
		Startup: startup,
	})
	router := handlers.NewRouter(middleware, routes, handlers.RouterOptions{
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		TrustProxy: cfg.TrustProxy,
	}, logger)
	startup.CompleteStep(handlers.StepServices)

	sweeper := service.NewTokenSweeper(accountRepo, sweepInterval, logger, m)
	go sweeper.Run(ctx)

	gate.Open(router)
	logger.Info("server ready", "addr", addr, "trust_proxy", cfg.TrustProxy)

	select {
	case err := <-serveErr:
		return oops.Code("SERVER_FAILED").With("addr", addr).Wrap(err)
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		err = oops.Code("SHUTDOWN_FAILED").Wrap(err)
		apperr.LogError(logger, "graceful shutdown failed", err)
		return err
	}
	return nil
}

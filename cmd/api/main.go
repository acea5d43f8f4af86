package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "idea-portal/docs" // This is for Swagger
	"idea-portal/internal/auth"
	"idea-portal/internal/config"
	"idea-portal/internal/database"
	"idea-portal/internal/email"
	"idea-portal/internal/evaluation"
	"idea-portal/internal/handlers"
	"idea-portal/internal/logger"
	"idea-portal/internal/middleware"
	"idea-portal/internal/repository"
	"idea-portal/internal/scheduler"
	"idea-portal/internal/service"

	"github.com/spf13/pflag"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Idea Portal API
// @version 1.0
// @description Backend API for submitting, reviewing and rating improvement proposals

// @contact.name API Support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const maxRequestBody = 2 << 20

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	opts.apply(cfg)

	if opts.version {
		fmt.Printf("%s %s\n", cfg.App.Name, cfg.App.Version)
		return
	}

	// Setup structured logger
	logger.Setup(logger.Config{
		Level: cfg.Log.Level,
	})

	slog.Info("Starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"env", cfg.App.Env,
		"log_level", cfg.Log.Level,
	)

	if err := run(cfg, opts); err != nil {
		slog.Error("Application stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts *options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.New(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func(db *database.Database) {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}(db)

	slog.Info("Database connection established")

	if opts.skipMigrations {
		slog.Warn("Skipping database migrations")
	} else {
		if err := db.RunMigrations(ctx, cfg.Database.MigrationsDir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("Database migrations completed")
	}

	// Scoring policy
	policy, err := evaluation.Configure(cfg.Evaluation.PolicyFile, cfg.Evaluation.MissingScore, cfg.Evaluation.GradeTable)
	if err != nil {
		return fmt.Errorf("failed to load evaluation policy: %w", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	auditRepo := repository.NewAuditRepository(db.DB)
	templateRepo := repository.NewTemplateRepository(db.DB)
	proposalRepo := repository.NewProposalRepository(db.DB)
	ratingRepo := repository.NewRatingRepository(db.DB)

	// Initialize services
	authService, err := auth.NewService(&cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to initialize token signing: %w", err)
	}
	if cfg.JWT.Secret == "" {
		slog.Warn("JWT_SECRET not set - using an ephemeral signing key, tokens will not survive a restart")
	}
	emailService := email.NewService(&cfg.Email)

	healthChecks := map[string]handlers.HealthChecker{
		"database": db.HealthCheck,
	}

	sealer, err := openSealer(ctx, &cfg.Vault)
	if err != nil {
		return err
	}
	var commentSealer service.CommentSealer
	if sealer != nil {
		commentSealer = sealer
		healthChecks["vault"] = sealer.Health
	}

	screener := buildScreener(ctx, &cfg.LLM, proposalRepo)

	auditService := service.NewAuditService(auditRepo)
	authSvc := service.NewAuthService(userRepo, authService, auditService)
	userService := service.NewUserService(userRepo, authService, auditService)
	templateService := service.NewTemplateService(templateRepo, auditService)
	proposalService := service.NewProposalService(proposalRepo, templateRepo, userRepo, screener, emailService, auditService)
	ratingService := service.NewRatingService(proposalRepo, templateRepo, ratingRepo, commentSealer, policy, auditService)

	if err := bootstrapAdmin(ctx, userService, &cfg.App); err != nil {
		return err
	}

	// Start scheduler
	var rescreener scheduler.Rescreener
	if screener != nil {
		rescreener = proposalService
	}
	sched := scheduler.NewScheduler(proposalRepo, userRepo, rescreener, emailService, &cfg.Scheduler)
	sched.Start()
	defer sched.Stop()

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(authService)
	auditMw := middleware.NewAuditMiddleware(auditRepo)
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	go rateLimiter.Run(ctx)

	router := &handlers.Router{
		Auth:      handlers.NewAuthHandler(authSvc),
		Users:     handlers.NewUserHandler(userService),
		Templates: handlers.NewTemplateHandler(templateService),
		Proposals: handlers.NewProposalHandler(proposalService),
		Ratings:   handlers.NewRatingHandler(ratingService),
		Config:    handlers.NewConfigHandler(cfg, policy),
		Audit:     handlers.NewAuditHandler(auditRepo),
		Roles:     handlers.NewRoleHandler(repository.NewRoleRepository(db.DB)),
		Health:    handlers.NewHealthHandler(cfg.App.Version, healthChecks),
		AuthMw:    authMw,
		AuditMw:   auditMw,
	}

	mux := http.NewServeMux()
	router.Register(mux)

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.Chain(mux,
		middleware.LoggingMiddleware,
		middleware.SecurityHeaders,
		corsMw.Handler,
		rateLimiter.Limit,
		middleware.MaxBodySize(maxRequestBody),
	)

	// Create server
	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal to gracefully shut down the server
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("Server shutting down...")

	shutdownCtx, cancel := getContext(30 * time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// screening and notifications may still be running
	waitFor(shutdownCtx, "background work", proposalService.Wait)

	slog.Info("Server stopped")
	return nil
}

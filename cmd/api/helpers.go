package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"idea-portal/internal/config"
	"idea-portal/internal/service"
	"idea-portal/internal/vault"

	"github.com/spf13/pflag"
)

// options are the command line overrides of the environment configuration
type options struct {
	addr           string
	migrationsDir  string
	skipMigrations bool
	logLevel       string
	version        bool
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}

	flagSet := pflag.NewFlagSet("idea-portal", pflag.ContinueOnError)
	flagSet.StringVar(&opts.addr, "addr", "", "listen address as host:port (overrides SERVER_HOST and SERVER_PORT)")
	flagSet.StringVar(&opts.migrationsDir, "migrations", "", "directory with SQL migrations (overrides DB_MIGRATIONS_DIR)")
	flagSet.BoolVar(&opts.skipMigrations, "skip-migrations", false, "do not apply database migrations on startup")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	flagSet.BoolVar(&opts.version, "version", false, "print the version and exit")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	if opts.addr != "" {
		if _, _, err := net.SplitHostPort(opts.addr); err != nil {
			return nil, fmt.Errorf("invalid --addr %q: %w", opts.addr, err)
		}
	}
	return opts, nil
}

// apply copies the set flags into cfg
func (o *options) apply(cfg *config.Config) {
	if o.addr != "" {
		host, port, _ := net.SplitHostPort(o.addr)
		cfg.Server.Host = host
		cfg.Server.Port = port
	}
	if o.migrationsDir != "" {
		cfg.Database.MigrationsDir = o.migrationsDir
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
}

func getContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// waitFor runs wait until it returns or ctx is done
func waitFor(ctx context.Context, what string, wait func()) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Gave up waiting", "for", what, "error", ctx.Err())
	}
}

// openSealer connects to Vault when comment sealing is enabled. It returns nil when disabled.
func openSealer(ctx context.Context, cfg *config.VaultConfig) (*vault.Client, error) {
	if !cfg.Enabled {
		slog.Info("Vault is disabled - rating comments are stored as plain text")
		return nil, nil
	}

	slog.Info("Vault is enabled - sealing rating comments", "address", cfg.Address, "key", cfg.KeyName)
	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := vault.NewClient(initCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Vault client: %w", err)
	}
	if err := client.Health(initCtx); err != nil {
		return nil, err
	}
	return client, nil
}

// buildScreener sets up the duplicate screening. It returns nil when the model is disabled.
func buildScreener(ctx context.Context, cfg *config.LLMConfig, candidates service.CandidateSource) *service.DuplicateScreener {
	if !cfg.Enabled {
		slog.Info("Duplicate screening is disabled")
		return nil
	}

	llm := service.NewLLMService(cfg)
	// judgments fail until the pull completes and are retried by the rescreen task
	go llm.PullModel(ctx)

	slog.Info("Duplicate screening enabled", "model", cfg.Model, "max_concurrent", cfg.MaxConcurrent)
	return service.NewDuplicateScreener(llm, candidates, service.ScreenerConfig{
		Timeout:       cfg.Timeout,
		MaxConcurrent: cfg.MaxConcurrent,
		CandidatePool: cfg.CandidatePool,
	})
}

// userBootstrapper is satisfied by the user service
type userBootstrapper interface {
	EnsureAdmin(ctx context.Context, email, password string) (bool, error)
}

// bootstrapAdmin provisions the configured administrator account once
func bootstrapAdmin(ctx context.Context, users userBootstrapper, cfg *config.AppConfig) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
	}

	created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to provision admin account: %w", err)
	}
	if !created {
		slog.Debug("Admin account already present", "email", cfg.AdminEmail)
	}
	return nil
}

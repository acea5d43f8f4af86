package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"idea-portal/internal/config"

	"github.com/spf13/pflag"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{name: "no flags", args: nil, want: options{}},
		{
			name: "all flags",
			args: []string{"--addr", "0.0.0.0:9090", "--migrations=/srv/migrations", "--skip-migrations", "--log-level", "debug"},
			want: options{addr: "0.0.0.0:9090", migrationsDir: "/srv/migrations", skipMigrations: true, logLevel: "debug"},
		},
		{name: "version", args: []string{"--version"}, want: options{version: true}},
		{name: "bad addr", args: []string{"--addr", "9090"}, wantErr: true},
		{name: "unknown flag", args: []string{"--port", "1"}, wantErr: true},
		{name: "positional argument", args: []string{"serve"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if !tt.wantErr && *got != tt.want {
				t.Errorf("parseFlags(%v) = %+v, want %+v", tt.args, *got, tt.want)
			}
		})
	}
}

func TestParseFlagsHelp(t *testing.T) {
	if _, err := parseFlags([]string{"--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("--help error = %v, want pflag.ErrHelp", err)
	}
}

func TestOptionsApply(t *testing.T) {
	cfg := &config.Config{
		Server:   config.ServerConfig{Host: "localhost", Port: "8080"},
		Database: config.DatabaseConfig{MigrationsDir: "migrations"},
		Log:      config.LogConfig{Level: "info"},
	}

	(&options{}).apply(cfg)
	if cfg.Server.Host != "localhost" || cfg.Database.MigrationsDir != "migrations" || cfg.Log.Level != "info" {
		t.Fatalf("empty options should not change the configuration: %+v", cfg)
	}

	(&options{addr: ":9000", migrationsDir: "db", logLevel: "warn"}).apply(cfg)
	if cfg.Server.Host != "" || cfg.Server.Port != "9000" {
		t.Errorf("server = %s:%s, want :9000", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Database.MigrationsDir != "db" || cfg.Log.Level != "warn" {
		t.Errorf("migrations = %q, log level = %q", cfg.Database.MigrationsDir, cfg.Log.Level)
	}
}

type fakeBootstrapper struct {
	calls   int
	created bool
	err     error
}

func (f *fakeBootstrapper) EnsureAdmin(_ context.Context, _, _ string) (bool, error) {
	f.calls++
	return f.created, f.err
}

func TestBootstrapAdmin(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.AppConfig
		users     *fakeBootstrapper
		wantCalls int
		wantErr   bool
	}{
		{name: "not configured", cfg: config.AppConfig{}, users: &fakeBootstrapper{}, wantCalls: 0},
		{name: "missing password", cfg: config.AppConfig{AdminEmail: "admin@example.com"}, users: &fakeBootstrapper{}, wantErr: true},
		{
			name:      "created",
			cfg:       config.AppConfig{AdminEmail: "admin@example.com", AdminPassword: "change-me-now"},
			users:     &fakeBootstrapper{created: true},
			wantCalls: 1,
		},
		{
			name:      "service error",
			cfg:       config.AppConfig{AdminEmail: "admin@example.com", AdminPassword: "change-me-now"},
			users:     &fakeBootstrapper{err: errors.New("db down")},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bootstrapAdmin(context.Background(), tt.users, &tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("bootstrapAdmin() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.users.calls != tt.wantCalls {
				t.Errorf("EnsureAdmin called %d times, want %d", tt.users.calls, tt.wantCalls)
			}
		})
	}
}

func TestWaitFor(t *testing.T) {
	waitFor(context.Background(), "instant", func() {})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	waitFor(ctx, "stuck", func() { <-release })
	if time.Since(start) > time.Second {
		t.Error("waitFor should give up once the context is done")
	}
}

func TestDisabledIntegrations(t *testing.T) {
	sealer, err := openSealer(context.Background(), &config.VaultConfig{Enabled: false})
	if err != nil || sealer != nil {
		t.Errorf("openSealer(disabled) = %v, %v; want nil, nil", sealer, err)
	}
	if screener := buildScreener(context.Background(), &config.LLMConfig{Enabled: false}, nil); screener != nil {
		t.Error("buildScreener(disabled) should return nil")
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Email      EmailConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
	App        AppConfig
	Log        LogConfig
	Scheduler  SchedulerConfig
	Vault      VaultConfig
	LLM        LLMConfig
	Evaluation EvaluationConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         string
	TimeoutRead  time.Duration
	TimeoutWrite time.Duration
	TimeoutIdle  time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret     string // PEM encoded EC private key; a key is generated when empty
	Expiration time.Duration
	Issuer     string
}

// EmailConfig holds email-related configuration
type EmailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	PortalURL    string // base URL used for links in notifications
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Duration time.Duration
}

// AppConfig holds general application configuration
type AppConfig struct {
	Env     string
	Name    string
	Version string

	// AdminEmail and AdminPassword provision the first administrator on startup
	AdminEmail    string
	AdminPassword string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	RescreenCron       string // e.g., "*/30 * * * *" (every 30 minutes)
	ManagerDigestCron  string // e.g., "0 8 * * 1" (Monday 8 AM)
	EnableRescreen     bool
	EnableDigest       bool
	RescreenBatchSize  int
	RescreenParallel   int
	DigestMinAgeInDays int // only list proposals waiting at least this long
}

// VaultConfig holds Vault-related configuration
type VaultConfig struct {
	Address      string
	Token        string
	TransitMount string
	KeyName      string
	Enabled      bool
}

// LLMConfig holds configuration of the duplicate judgment model
type LLMConfig struct {
	BaseURL       string
	Model         string
	Enabled       bool
	Timeout       time.Duration
	MaxConcurrent int
	CandidatePool int
}

// EvaluationConfig selects the scoring policy.
// PolicyFile, when set, takes precedence over MissingScore and GradeTable.
type EvaluationConfig struct {
	PolicyFile   string
	MissingScore int
	GradeTable   string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// godotenv doesn't override already-set variables, so order matters
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "8080"),
			TimeoutRead:  getDurationEnv("SERVER_TIMEOUT_READ", 15*time.Second),
			TimeoutWrite: getDurationEnv("SERVER_TIMEOUT_WRITE", 15*time.Second),
			TimeoutIdle:  getDurationEnv("SERVER_TIMEOUT_IDLE", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "ideaportal"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "ideaportal_db"),
			SSLMode:         getEnv("DB_SSLMODE", "prefer"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Expiration: getDurationEnv("JWT_EXPIRATION", 12*time.Hour),
			Issuer:     getEnv("JWT_ISSUER", "idea-portal"),
		},
		Email: EmailConfig{
			Enabled:      getBoolEnv("EMAIL_ENABLED", false),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
			PortalURL:    getEnv("PORTAL_URL", "http://localhost:3000"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
			ExposedHeaders:   getSliceEnv("CORS_EXPOSED_HEADERS", []string{"Link"}),
			AllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getIntEnv("CORS_MAX_AGE", 300),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getBoolEnv("RATE_LIMIT_ENABLED", true),
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			Duration: getDurationEnv("RATE_LIMIT_DURATION", 1*time.Minute),
		},
		App: AppConfig{
			Env:     getEnv("APP_ENV", "development"),
			Name:    getEnv("APP_NAME", "Idea Portal"),
			Version: getEnv("APP_VERSION", "1.0.0"),

			AdminEmail:    getEnv("ADMIN_EMAIL", ""),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Scheduler: SchedulerConfig{
			RescreenCron:       getEnv("SCHEDULER_RESCREEN_CRON", "*/30 * * * *"),
			ManagerDigestCron:  getEnv("SCHEDULER_MANAGER_DIGEST_CRON", "0 8 * * 1"),
			EnableRescreen:     getBoolEnv("SCHEDULER_ENABLE_RESCREEN", true),
			EnableDigest:       getBoolEnv("SCHEDULER_ENABLE_DIGEST", true),
			RescreenBatchSize:  getIntEnv("SCHEDULER_RESCREEN_BATCH_SIZE", 50),
			RescreenParallel:   getIntEnv("SCHEDULER_RESCREEN_PARALLEL", 4),
			DigestMinAgeInDays: getIntEnv("SCHEDULER_DIGEST_MIN_AGE_DAYS", 0),
		},
		Vault: VaultConfig{
			Address:      getEnv("VAULT_ADDR", "http://localhost:8200"),
			Token:        getEnv("VAULT_TOKEN", ""),
			TransitMount: getEnv("VAULT_TRANSIT_MOUNT", "transit"),
			KeyName:      getEnv("VAULT_COMMENT_KEY", "rating-comments"),
			Enabled:      getBoolEnv("VAULT_ENABLED", false),
		},
		LLM: LLMConfig{
			BaseURL:       getEnv("LLM_BASE_URL", "http://localhost:11434"),
			Model:         getEnv("LLM_MODEL", "llama3"),
			Enabled:       getBoolEnv("LLM_ENABLED", true),
			Timeout:       getDurationEnv("LLM_TIMEOUT", 20*time.Second),
			MaxConcurrent: getIntEnv("LLM_MAX_CONCURRENT", 2),
			CandidatePool: getIntEnv("LLM_CANDIDATE_POOL", 20),
		},
		Evaluation: EvaluationConfig{
			PolicyFile:   getEnv("EVALUATION_POLICY_FILE", ""),
			MissingScore: getIntEnv("EVALUATION_MISSING_SCORE", 1),
			GradeTable:   getEnv("EVALUATION_GRADE_TABLE", "table_a"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" && c.App.Env == "production" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.Database.Password == "" && c.App.Env == "production" {
		return fmt.Errorf("DB_PASSWORD is required in production")
	}
	if c.Vault.Enabled && c.Vault.Token == "" {
		return fmt.Errorf("VAULT_TOKEN is required when VAULT_ENABLED is set")
	}
	if c.LLM.MaxConcurrent < 1 {
		return fmt.Errorf("LLM_MAX_CONCURRENT must be at least 1")
	}
	if c.LLM.CandidatePool < 1 {
		return fmt.Errorf("LLM_CANDIDATE_POOL must be at least 1")
	}
	if c.Evaluation.PolicyFile == "" && (c.Evaluation.MissingScore < 0 || c.Evaluation.MissingScore > 5) {
		return fmt.Errorf("EVALUATION_MISSING_SCORE must be between 0 and 5")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, v := range parts {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

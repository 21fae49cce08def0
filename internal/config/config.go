package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Email    EmailConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Metrics  MetricsConfig
	Report   ReportConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	// Lifetimes of emailed secrets
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	// Background sweep cadence and how long an expired, never-verified
	// account survives before it is deleted
	CleanupInterval   time.Duration
	UnverifiedGrace   time.Duration
	OrphanBatchSize   int
	AuthRatePerMinute int
}

type EmailConfig struct {
	Provider        string // "ses" or "smtp"
	FromAddress     string
	SESRegion       string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	APIBaseURL      string // verification links point here
	FrontendBaseURL string // reset links point here
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
	AvatarFolder  string
	AvatarWidth   int
}

type RedisConfig struct {
	Addr     string // empty disables the orphan queue
	Password string
	DB       int
	QueueKey string
}

type MetricsConfig struct {
	Enabled bool
}

type ReportConfig struct {
	OrdersCap int // orders listed when no date range is applied
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "fleurease"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 7*24*time.Hour),
			VerificationTTL:   getEnvAsDuration("VERIFICATION_TOKEN_TTL", 24*time.Hour),
			ResetTTL:          getEnvAsDuration("RESET_TOKEN_TTL", 30*time.Minute),
			CleanupInterval:   getEnvAsDuration("CLEANUP_INTERVAL", 15*time.Minute),
			UnverifiedGrace:   getEnvAsDuration("UNVERIFIED_GRACE", 72*time.Hour),
			OrphanBatchSize:   getEnvAsInt("ORPHAN_BATCH_SIZE", 50),
			AuthRatePerMinute: getEnvAsInt("AUTH_RATE_PER_MINUTE", 10),
		},
		Email: EmailConfig{
			Provider:        strings.ToLower(getEnv("EMAIL_PROVIDER", "smtp")),
			FromAddress:     getEnv("EMAIL_FROM", "FleurEase <no-reply@fleurease.com>"),
			SESRegion:       getEnv("AWS_REGION", "us-east-1"),
			SMTPHost:        getEnv("SMTP_HOST", "localhost"),
			SMTPPort:        getEnvAsInt("SMTP_PORT", 1025),
			SMTPUsername:    getEnv("SMTP_USERNAME", ""),
			SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
			APIBaseURL:      strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/"),
			FrontendBaseURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		},
		Storage: StorageConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:     getEnv("MINIO_SECRET_KEY", ""),
			Bucket:        getEnv("MINIO_BUCKET", "fleurease"),
			UseSSL:        getEnvAsBool("MINIO_USE_SSL", false),
			PublicBaseURL: strings.TrimRight(getEnv("MINIO_PUBLIC_URL", ""), "/"),
			AvatarFolder:  getEnv("AVATAR_FOLDER", "avatars"),
			AvatarWidth:   getEnvAsInt("AVATAR_WIDTH", 150),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			QueueKey: getEnv("ORPHAN_QUEUE_KEY", "fleurease:orphans"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		Report: ReportConfig{
			OrdersCap: getEnvAsInt("REPORT_ORDERS_CAP", 15),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	switch cfg.Email.Provider {
	case "ses", "smtp":
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be ses or smtp (got %q)", cfg.Email.Provider)
	}

	if cfg.Auth.ResetTTL <= 0 || cfg.Auth.VerificationTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum strength for the signing secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weak := []string{"secret", "password", "changeme", "fleurease", "default", "example"}
	lower := strings.ToLower(secret)
	for _, w := range weak {
		if strings.Repeat(w, len(lower)/max(len(w), 1)) == lower {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// IsProduction reports whether the server runs with production settings.
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if origins := splitList(getEnv("ALLOWED_ORIGINS", "")); len(origins) > 0 {
		return origins
	}
	if env == "production" {
		return []string{}
	}

	// Storefront and admin dev servers
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}

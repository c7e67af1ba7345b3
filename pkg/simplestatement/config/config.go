package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",
		LogLevel:    "info",
		DatabaseURL: "memory",
		Storage: StorageConfig{
			Backend:   "memory",
			FSBaseDir: "./data/statements",
			S3: S3Config{
				Region:       "us-east-1",
				Bucket:       "statements",
				UsePathStyle: true,
			},
		},
		RateLimit: RateLimitConfig{
			Backend:       "memory",
			Limit:         10,
			WindowSeconds: 60,
		},
		Upload: UploadConfig{
			AllowedContentType: "application/pdf",
			MaxBytes:           20 << 20,
		},
		Presign: PresignConfig{
			MinTTLSeconds:     30,
			MaxTTLSeconds:     900,
			DefaultTTLSeconds: 300,
		},
		Audit: AuditConfig{
			KafkaTopic: "statement-audit",
		},
	}
}

// ServerConfig represents server configuration for the statement service
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" env-default:"false"`

	// Database configuration: "memory" or a postgres:// URL
	DatabaseURL string `env:"DATABASE_URL" env-default:"memory"`
	DBSchema    string `env:"DB_SCHEMA"`

	Storage   StorageConfig
	RateLimit RateLimitConfig
	Upload    UploadConfig
	Presign   PresignConfig
	Auth      AuthConfig
	Audit     AuditConfig
}

type StorageConfig struct {
	Backend       string `env:"STORAGE_BACKEND" env-default:"memory"` // memory, fs, s3
	FSBaseDir     string `env:"FS_BASE_DIR" env-default:"./data/statements"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	S3            S3Config
}

type S3Config struct {
	Endpoint         string `env:"S3_ENDPOINT"`
	ExternalEndpoint string `env:"S3_EXTERNAL_ENDPOINT"`
	Region           string `env:"S3_REGION" env-default:"us-east-1"`
	AccessKey        string `env:"S3_ACCESS_KEY"`
	SecretKey        string `env:"S3_SECRET_KEY"`
	Bucket           string `env:"S3_BUCKET" env-default:"statements"`
	UsePathStyle     bool   `env:"S3_USE_PATH_STYLE" env-default:"true"`
	CreateBucket     bool   `env:"S3_CREATE_BUCKET" env-default:"false"`
}

type RateLimitConfig struct {
	Backend       string `env:"RATE_LIMIT_BACKEND" env-default:"memory"` // memory, redis
	RedisURL      string `env:"REDIS_URL"`
	Limit         int    `env:"RATE_LIMIT_LIMIT" env-default:"10"`
	WindowSeconds int    `env:"RATE_LIMIT_WINDOW_SECONDS" env-default:"60"`
}

// Window returns the limiter window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

type UploadConfig struct {
	AllowedContentType string `env:"ALLOWED_CONTENT_TYPE" env-default:"application/pdf"`
	MaxBytes           int64  `env:"MAX_UPLOAD_BYTES" env-default:"20971520"`
}

type PresignConfig struct {
	MinTTLSeconds     int    `env:"PRESIGN_MIN_TTL_SECONDS" env-default:"30"`
	MaxTTLSeconds     int    `env:"PRESIGN_MAX_TTL_SECONDS" env-default:"900"`
	DefaultTTLSeconds int    `env:"PRESIGN_DEFAULT_TTL_SECONDS" env-default:"300"`
	Secret            string `env:"PRESIGN_SECRET"`
}

// TTLBounds returns min, max and default TTL as durations.
func (c PresignConfig) TTLBounds() (time.Duration, time.Duration, time.Duration) {
	return time.Duration(c.MinTTLSeconds) * time.Second,
		time.Duration(c.MaxTTLSeconds) * time.Second,
		time.Duration(c.DefaultTTLSeconds) * time.Second
}

type AuthConfig struct {
	JWTSecretBase64 string `env:"JWT_SECRET_BASE64"`
	EnableDevTokens bool   `env:"ENABLE_DEV_TOKENS" env-default:"false"`
}

type AuditConfig struct {
	KafkaBrokers []string `env:"AUDIT_KAFKA_BROKERS" env-separator:","`
	KafkaTopic   string   `env:"AUDIT_KAFKA_TOPIC" env-default:"statement-audit"`
	// LogEvents also writes every audit event to the service log.
	LogEvents bool `env:"AUDIT_LOG_EVENTS" env-default:"false"`
}

// IsProduction reports whether the service runs in production.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// UsesPostgres reports whether DatabaseURL points at Postgres.
func (c *ServerConfig) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseURL != "memory" && !c.UsesPostgres() {
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgres://...')", c.DatabaseURL)
	}

	switch c.Storage.Backend {
	case "memory":
	case "fs":
		if c.Storage.FSBaseDir == "" {
			return errors.New("FS_BASE_DIR is required for fs storage")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("S3_BUCKET is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.RedisURL == "" {
			return errors.New("REDIS_URL is required for redis rate limiting")
		}
	default:
		return fmt.Errorf("unsupported rate limit backend: %s", c.RateLimit.Backend)
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.WindowSeconds <= 0 {
		return errors.New("rate limit and window must be positive")
	}

	p := c.Presign
	if p.MinTTLSeconds <= 0 || p.MaxTTLSeconds < p.MinTTLSeconds {
		return fmt.Errorf("invalid presign ttl bounds: min=%d max=%d", p.MinTTLSeconds, p.MaxTTLSeconds)
	}
	if p.DefaultTTLSeconds < p.MinTTLSeconds || p.DefaultTTLSeconds > p.MaxTTLSeconds {
		return fmt.Errorf("default presign ttl %d outside [%d, %d]", p.DefaultTTLSeconds, p.MinTTLSeconds, p.MaxTTLSeconds)
	}

	if c.Upload.AllowedContentType == "" {
		return errors.New("allowed content type is required")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}

	if c.Auth.JWTSecretBase64 != "" {
		if _, err := base64.StdEncoding.DecodeString(c.Auth.JWTSecretBase64); err != nil {
			return fmt.Errorf("JWT_SECRET_BASE64 is not valid base64: %w", err)
		}
	}

	if c.IsProduction() {
		if c.Auth.JWTSecretBase64 == "" {
			return errors.New("JWT_SECRET_BASE64 is required in production")
		}
		if c.Auth.EnableDevTokens {
			return errors.New("dev tokens cannot be enabled in production")
		}
		if c.Storage.Backend != "s3" && c.Presign.Secret == "" {
			return errors.New("PRESIGN_SECRET is required in production for local storage")
		}
	}

	return nil
}

// JWTSecret returns the decoded signing secret. Outside production a missing
// secret is replaced by a random one, so tokens do not survive a restart.
func (c *ServerConfig) JWTSecret() ([]byte, error) {
	if c.Auth.JWTSecretBase64 == "" {
		return randomSecret()
	}
	return base64.StdEncoding.DecodeString(c.Auth.JWTSecretBase64)
}

// PresignSecret returns the HMAC key for locally signed URLs, random when unset.
func (c *ServerConfig) PresignSecret() (string, error) {
	if c.Presign.Secret != "" {
		return c.Presign.Secret, nil
	}
	b, err := randomSecret()
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func randomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	return b, nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *ServerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

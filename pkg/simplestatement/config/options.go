package config

import (
	"fmt"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase sets the database URL ("memory" or postgres://...) and schema
func WithDatabase(url, schema string) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return fmt.Errorf("database URL cannot be empty")
		}
		c.DatabaseURL = url
		c.DBSchema = schema
		return nil
	}
}

// WithMemoryStorage keeps objects in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage.Backend = "memory"
		return nil
	}
}

// WithFilesystemStorage stores objects under baseDir
func WithFilesystemStorage(baseDir, publicBaseURL string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage.Backend = "fs"
		c.Storage.FSBaseDir = baseDir
		c.Storage.PublicBaseURL = publicBaseURL
		return nil
	}
}

// WithS3Storage stores objects in an S3 bucket
func WithS3Storage(s3 S3Config) Option {
	return func(c *ServerConfig) error {
		if s3.Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		c.Storage.Backend = "s3"
		c.Storage.S3 = s3
		return nil
	}
}

// WithRateLimit sets the per-statement link quota
func WithRateLimit(limit, windowSeconds int) Option {
	return func(c *ServerConfig) error {
		if limit <= 0 || windowSeconds <= 0 {
			return fmt.Errorf("rate limit and window must be positive, got %d/%ds", limit, windowSeconds)
		}
		c.RateLimit.Limit = limit
		c.RateLimit.WindowSeconds = windowSeconds
		return nil
	}
}

// WithRedisRateLimit shares rate limit windows through Redis
func WithRedisRateLimit(redisURL string) Option {
	return func(c *ServerConfig) error {
		if redisURL == "" {
			return fmt.Errorf("redis URL cannot be empty")
		}
		c.RateLimit.Backend = "redis"
		c.RateLimit.RedisURL = redisURL
		return nil
	}
}

// WithPresignTTL sets the accepted TTL range and the default, in seconds
func WithPresignTTL(minSeconds, maxSeconds, defaultSeconds int) Option {
	return func(c *ServerConfig) error {
		c.Presign.MinTTLSeconds = minSeconds
		c.Presign.MaxTTLSeconds = maxSeconds
		c.Presign.DefaultTTLSeconds = defaultSeconds
		return nil
	}
}

// WithPresignSecret sets the HMAC key for locally signed URLs
func WithPresignSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.Presign.Secret = secret
		return nil
	}
}

// WithJWTSecret sets the base64 encoded token signing secret
func WithJWTSecret(secretBase64 string) Option {
	return func(c *ServerConfig) error {
		c.Auth.JWTSecretBase64 = secretBase64
		return nil
	}
}

// WithDevTokens enables the unauthenticated token endpoint
func WithDevTokens(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.Auth.EnableDevTokens = enabled
		return nil
	}
}

// WithAuditLog writes audit events to the service log as well
func WithAuditLog(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.Audit.LogEvents = enabled
		return nil
	}
}

// WithTrustedProxy takes client addresses from proxy headers
func WithTrustedProxy(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.TrustProxyHeaders = enabled
		return nil
	}
}

// WithKafkaAudit publishes audit events to topic
func WithKafkaAudit(brokers []string, topic string) Option {
	return func(c *ServerConfig) error {
		if len(brokers) == 0 {
			return fmt.Errorf("at least one kafka broker is required")
		}
		if topic == "" {
			return fmt.Errorf("kafka topic cannot be empty")
		}
		c.Audit.KafkaBrokers = brokers
		c.Audit.KafkaTopic = topic
		return nil
	}
}

package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tendant/simple-statement/pkg/simplestatement"
	"github.com/tendant/simple-statement/pkg/simplestatement/audit"
	"github.com/tendant/simple-statement/pkg/simplestatement/presigned"
	"github.com/tendant/simple-statement/pkg/simplestatement/ratelimit"
	"github.com/tendant/simple-statement/pkg/simplestatement/repo/memory"
	repopg "github.com/tendant/simple-statement/pkg/simplestatement/repo/postgres"
	fsstorage "github.com/tendant/simple-statement/pkg/simplestatement/storage/fs"
	memorystorage "github.com/tendant/simple-statement/pkg/simplestatement/storage/memory"
	s3storage "github.com/tendant/simple-statement/pkg/simplestatement/storage/s3"
)

// Store is a repository that also keeps the audit trail.
type Store interface {
	simplestatement.Repository
	simplestatement.AuditRepository
}

// Components holds everything the server and admin commands need.
type Components struct {
	Service     simplestatement.Service
	Store       Store
	ObjectStore simplestatement.ObjectStore
	// Signer is nil when the object store presigns on its own (s3).
	Signer   *presigned.Signer
	Limiter  ratelimit.Limiter
	Recorder *audit.Recorder

	closers []func()
}

// Close releases pools, clients and writers in reverse build order.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build wires every backend named by the configuration.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Components, error) {
	comps := &Components{}
	fail := func(err error) (*Components, error) {
		comps.Close()
		return nil, err
	}

	store, closeStore, err := c.BuildRepository(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to build repository: %w", err))
	}
	comps.Store = store
	comps.closers = append(comps.closers, closeStore)

	if c.Storage.Backend != "s3" {
		signer, err := c.BuildSigner()
		if err != nil {
			return fail(err)
		}
		comps.Signer = signer
	}

	objectStore, err := c.BuildObjectStore(ctx, comps.Signer)
	if err != nil {
		return fail(fmt.Errorf("failed to build object store: %w", err))
	}
	comps.ObjectStore = objectStore

	limiter, closeLimiter, err := c.BuildLimiter()
	if err != nil {
		return fail(fmt.Errorf("failed to build rate limiter: %w", err))
	}
	comps.Limiter = limiter
	comps.closers = append(comps.closers, closeLimiter)

	recorder, closeRecorder, err := c.BuildAuditRecorder(store, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to build audit recorder: %w", err))
	}
	comps.Recorder = recorder
	comps.closers = append(comps.closers, closeRecorder)

	svc, err := c.BuildService(store, objectStore, logger)
	if err != nil {
		return fail(err)
	}
	comps.Service = svc

	return comps, nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(repo simplestatement.Repository, store simplestatement.ObjectStore, logger *slog.Logger) (simplestatement.Service, error) {
	min, max, def := c.Presign.TTLBounds()
	return simplestatement.New(
		simplestatement.WithRepository(repo),
		simplestatement.WithObjectStore(c.Storage.Backend, store),
		simplestatement.WithAllowedContentType(c.Upload.AllowedContentType),
		simplestatement.WithTTLBounds(min, max, def),
		simplestatement.WithLogger(logger),
	)
}

// BuildRepository creates the statement store. The returned func releases it.
func (c *ServerConfig) BuildRepository(ctx context.Context) (Store, func(), error) {
	if !c.UsesPostgres() {
		return memory.New(), func() {}, nil
	}
	pool, err := repopg.NewPool(ctx, c.DatabaseURL, c.DBSchema)
	if err != nil {
		return nil, nil, err
	}
	return repopg.NewWithPool(pool), pool.Close, nil
}

// BuildSigner creates the HMAC signer for fs and memory stores.
func (c *ServerConfig) BuildSigner() (*presigned.Signer, error) {
	secret, err := c.PresignSecret()
	if err != nil {
		return nil, err
	}
	return presigned.New(
		presigned.WithSecretKey(secret),
		presigned.WithBaseURL(c.Storage.PublicBaseURL),
	), nil
}

// BuildObjectStore creates the configured object store.
func (c *ServerConfig) BuildObjectStore(ctx context.Context, signer *presigned.Signer) (simplestatement.ObjectStore, error) {
	switch c.Storage.Backend {
	case "memory":
		return memorystorage.New(signer), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: c.Storage.FSBaseDir,
			Signer:  signer,
		})

	case "s3":
		s3 := c.Storage.S3
		return s3storage.New(ctx, s3storage.Config{
			Region:                 s3.Region,
			Bucket:                 s3.Bucket,
			AccessKeyID:            s3.AccessKey,
			SecretAccessKey:        s3.SecretKey,
			Endpoint:               s3.Endpoint,
			ExternalEndpoint:       s3.ExternalEndpoint,
			UsePathStyle:           s3.UsePathStyle,
			CreateBucketIfNotExist: s3.CreateBucket,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Backend)
	}
}

// BuildLimiter creates the download-link rate limiter.
func (c *ServerConfig) BuildLimiter() (ratelimit.Limiter, func(), error) {
	switch c.RateLimit.Backend {
	case "redis":
		client, err := ratelimit.Connect(c.RateLimit.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		limiter, err := ratelimit.NewRedis(client, c.RateLimit.Limit, c.RateLimit.Window())
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return limiter, func() { _ = client.Close() }, nil
	default:
		limiter, err := ratelimit.NewFixedWindow(c.RateLimit.Limit, c.RateLimit.Window())
		if err != nil {
			return nil, nil, err
		}
		return limiter, func() {}, nil
	}
}

// BuildAuditRecorder writes audit events to the repository and, when
// configured, to the service log and Kafka.
func (c *ServerConfig) BuildAuditRecorder(repo simplestatement.AuditRepository, logger *slog.Logger) (*audit.Recorder, func(), error) {
	sinks := audit.Multi{audit.NewRepositorySink(repo)}
	closer := func() {}

	if c.Audit.LogEvents {
		sinks = append(sinks, audit.NewLogSink(logger))
	}

	brokers := nonEmpty(c.Audit.KafkaBrokers)
	if len(brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(brokers, c.Audit.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, kafkaSink)
		closer = func() {
			if err := kafkaSink.Close(); err != nil {
				logger.Warn("failed to close kafka audit writer", "error", err)
			}
		}
	}

	return audit.NewRecorder(sinks, logger), closer, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

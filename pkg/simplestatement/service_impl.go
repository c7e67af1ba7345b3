package simplestatement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-statement/pkg/simplestatement/objectkey"
)

const (
	DefaultMinTTL     = 30 * time.Second
	DefaultMaxTTL     = 900 * time.Second
	DefaultDefaultTTL = 300 * time.Second
)

// service implements the Service interface
type service struct {
	repository   Repository
	objectStore  ObjectStore
	storeName    string
	keyGenerator objectkey.Generator
	contentType  string
	minTTL       time.Duration
	maxTTL       time.Duration
	defaultTTL   time.Duration
	spoolDir     string
	now          func() time.Time
	logger       *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithObjectStore sets the object store; name is used in errors and logs
func WithObjectStore(name string, store ObjectStore) Option {
	return func(s *service) {
		s.storeName = name
		s.objectStore = store
	}
}

// WithKeyGenerator overrides the object key layout
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) {
		s.keyGenerator = gen
	}
}

// WithAllowedContentType sets the single accepted upload content type
func WithAllowedContentType(contentType string) Option {
	return func(s *service) {
		s.contentType = strings.ToLower(strings.TrimSpace(contentType))
	}
}

// WithTTLBounds sets the accepted presign TTL range and the default TTL
func WithTTLBounds(min, max, def time.Duration) Option {
	return func(s *service) {
		s.minTTL = min
		s.maxTTL = max
		s.defaultTTL = def
	}
}

// WithSpoolDir sets the directory for temporary upload files
func WithSpoolDir(dir string) Option {
	return func(s *service) {
		s.spoolDir = dir
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithLogger sets the logger used for operational messages
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		keyGenerator: objectkey.NewDefaultGenerator(),
		contentType:  DefaultContentType,
		minTTL:       DefaultMinTTL,
		maxTTL:       DefaultMaxTTL,
		defaultTTL:   DefaultDefaultTTL,
		now:          time.Now,
		logger:       slog.Default(),
		storeName:    "default",
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.objectStore == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if s.minTTL <= 0 || s.maxTTL < s.minTTL {
		return nil, fmt.Errorf("invalid presign ttl bounds: min=%s max=%s", s.minTTL, s.maxTTL)
	}
	if s.defaultTTL < s.minTTL || s.defaultTTL > s.maxTTL {
		return nil, fmt.Errorf("default presign ttl %s outside [%s, %s]", s.defaultTTL, s.minTTL, s.maxTTL)
	}

	return s, nil
}

func (s *service) validateUpload(req UploadRequest) error {
	if strings.TrimSpace(req.CustomerID) == "" {
		return validationError("customerId", "is required")
	}
	if strings.TrimSpace(req.AccountID) == "" {
		return validationError("accountId", "is required")
	}
	if req.Body == nil || req.Size == 0 {
		return validationError("file", "is required")
	}
	if req.PeriodStart.IsZero() || req.PeriodEnd.IsZero() {
		return validationError("period", "periodStart and periodEnd are required")
	}
	if DateOf(req.PeriodEnd).Before(DateOf(req.PeriodStart)) {
		return validationError("period", "periodEnd must not be before periodStart")
	}
	if !strings.EqualFold(strings.TrimSpace(req.ContentType), s.contentType) {
		return validationError("file", fmt.Sprintf("only %s is supported", s.contentType))
	}
	return nil
}

func (s *service) Upload(ctx context.Context, req UploadRequest) (*Statement, error) {
	if err := s.validateUpload(req); err != nil {
		return nil, err
	}

	spooled, err := Spool(ctx, req.Body, s.spoolDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := spooled.Close(); err != nil {
			s.logger.Warn("failed to remove upload spool", "path", spooled.Path(), "error", err)
		}
	}()

	if spooled.Size == 0 {
		return nil, validationError("file", "is empty")
	}

	key := NaturalKey{
		CustomerID:  req.CustomerID,
		AccountID:   req.AccountID,
		PeriodStart: DateOf(req.PeriodStart),
		PeriodEnd:   DateOf(req.PeriodEnd),
		SHA256:      spooled.SHA256,
	}

	existing, err := s.repository.FindByNaturalKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrStatementNotFound) {
		return nil, fmt.Errorf("failed to look up statement by natural key: %w", err)
	}

	statement := &Statement{
		ID:          uuid.New(),
		CustomerID:  key.CustomerID,
		AccountID:   key.AccountID,
		PeriodStart: key.PeriodStart,
		PeriodEnd:   key.PeriodEnd,
		ContentType: s.contentType,
		SizeBytes:   spooled.Size,
		SHA256:      spooled.SHA256,
		UploadedAt:  s.now().UTC(),
		Status:      StatementStatusActive,
		Version:     1,
	}
	statement.ObjectKey = s.keyGenerator.GenerateKey(statement.ID, &objectkey.KeyMetadata{
		CustomerID:  statement.CustomerID,
		AccountID:   statement.AccountID,
		PeriodStart: statement.PeriodStart,
		ContentType: statement.ContentType,
	})

	body, err := spooled.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to reopen upload spool: %w", err)
	}
	putErr := s.objectStore.Put(ctx, statement.ObjectKey, statement.ContentType, body, statement.SizeBytes)
	_ = body.Close()
	if putErr != nil {
		return nil, &StorageError{
			Backend: s.storeName,
			Key:     statement.ObjectKey,
			Op:      "put",
			Err:     putErr,
		}
	}

	result, err := s.repository.Save(ctx, statement)
	if err != nil {
		return nil, &StatementError{
			StatementID: statement.ID,
			Op:          "save",
			Err:         err,
		}
	}

	switch result.Outcome {
	case SaveOutcomeSaved:
		return result.Statement, nil
	case SaveOutcomeConflict:
		winner, err := s.repository.FindByNaturalKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read statement after natural key conflict: %w", err)
		}
		s.logger.Info("concurrent duplicate upload converged",
			"statement_id", winner.ID,
			"orphan_object_key", statement.ObjectKey)
		return winner, nil
	default:
		return nil, fmt.Errorf("unexpected save outcome %v", result.Outcome)
	}
}

func (s *service) GetForCustomer(ctx context.Context, id uuid.UUID, customerID string) (*Statement, error) {
	return s.repository.FindByIDAndCustomer(ctx, id, customerID)
}

func (s *service) ListForCustomer(ctx context.Context, customerID string, page PageRequest) (*StatementPage, error) {
	return s.repository.FindByCustomer(ctx, customerID, page.Normalize())
}

func (s *service) GetStatement(ctx context.Context, id uuid.UUID) (*Statement, error) {
	return s.repository.FindByID(ctx, id)
}

func (s *service) TTLBounds() (time.Duration, time.Duration, time.Duration) {
	return s.minTTL, s.maxTTL, s.defaultTTL
}

func (s *service) PresignDownloadURL(ctx context.Context, statement *Statement, ttl time.Duration) (*DownloadLink, error) {
	if statement == nil {
		return nil, validationError("statement", "is required")
	}
	if _, err := canDownloadStatement(statement.Status); err != nil {
		return nil, err
	}
	if ttl < s.minTTL || ttl > s.maxTTL {
		return nil, validationError("ttlSeconds",
			fmt.Sprintf("must be between %d and %d", int(s.minTTL.Seconds()), int(s.maxTTL.Seconds())))
	}

	expiresAt := s.now().UTC().Add(ttl)
	url, err := s.objectStore.PresignGet(ctx, statement.ObjectKey, ttl, statement.ContentType)
	if err != nil {
		return nil, &StorageError{
			Backend: s.storeName,
			Key:     statement.ObjectKey,
			Op:      "presign",
			Err:     err,
		}
	}

	return &DownloadLink{URL: url, ExpiresAt: expiresAt}, nil
}

// revokeAttempts bounds optimistic retries when a concurrent writer bumps the version.
const revokeAttempts = 2

func (s *service) Revoke(ctx context.Context, id uuid.UUID) (*Statement, error) {
	var lastErr error
	for attempt := 0; attempt < revokeAttempts; attempt++ {
		current, err := s.repository.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		next, changed, err := TransitionToRevoked(current)
		if err != nil {
			return nil, &StatementError{StatementID: id, Op: "revoke", Err: err}
		}
		if !changed {
			return next, nil
		}

		updated, err := s.repository.UpdateStatus(ctx, id, current.Version, next.Status)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, &StatementError{StatementID: id, Op: "revoke", Err: err}
		}
		lastErr = err
	}

	return nil, &StatementError{StatementID: id, Op: "revoke", Err: lastErr}
}

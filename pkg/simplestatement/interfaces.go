package simplestatement

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// ObjectStore defines the interface for object storage backends
type ObjectStore interface {
	// Put writes the whole object under key
	Put(ctx context.Context, key, contentType string, reader io.Reader, size int64) error

	// PresignGet returns a time-limited URL that serves the object with the given content type
	PresignGet(ctx context.Context, key string, ttl time.Duration, responseContentType string) (string, error)

	// Get opens the object for reading. Missing objects return ErrObjectNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// ObjectInfo describes one stored object
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

// ObjectLister is implemented by stores that can enumerate their objects.
// Results are ordered by key.
type ObjectLister interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectDeleter is implemented by stores that can remove objects
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Repository defines the interface for statement persistence.
// Lookups that find nothing return ErrStatementNotFound.
type Repository interface {
	FindByNaturalKey(ctx context.Context, key NaturalKey) (*Statement, error)

	// Save inserts a new statement. A natural key collision is reported as
	// SaveOutcomeConflict with a nil error.
	Save(ctx context.Context, statement *Statement) (SaveResult, error)

	FindByIDAndCustomer(ctx context.Context, id uuid.UUID, customerID string) (*Statement, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Statement, error)
	FindByCustomer(ctx context.Context, customerID string, page PageRequest) (*StatementPage, error)

	// UpdateStatus sets the status if the stored version equals expectedVersion
	// and returns the updated row. Otherwise it returns ErrVersionConflict.
	UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, status StatementStatus) (*Statement, error)

	ExistsByObjectKey(ctx context.Context, objectKey string) (bool, error)
}

// AuditRepository defines the interface for audit event persistence
type AuditRepository interface {
	AppendAudit(ctx context.Context, event *AuditEvent) error
	ListAudit(ctx context.Context, filter AuditFilter) (*AuditPage, error)
}

// AuditSink receives audit events
type AuditSink interface {
	Record(ctx context.Context, event *AuditEvent) error
}


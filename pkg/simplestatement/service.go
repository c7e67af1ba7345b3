package simplestatement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service is the main interface for statement lifecycle operations
type Service interface {
	// Upload stores a statement, returning the existing one when identical
	// bytes were already uploaded for the same customer, account and period.
	Upload(ctx context.Context, req UploadRequest) (*Statement, error)

	// GetForCustomer returns the statement only if customerID owns it.
	GetForCustomer(ctx context.Context, id uuid.UUID, customerID string) (*Statement, error)
	ListForCustomer(ctx context.Context, customerID string, page PageRequest) (*StatementPage, error)

	// GetStatement looks a statement up without ownership scoping (admin).
	GetStatement(ctx context.Context, id uuid.UUID) (*Statement, error)

	// PresignDownloadURL issues a time-limited link for an ACTIVE statement.
	// It does not record an audit event.
	PresignDownloadURL(ctx context.Context, statement *Statement, ttl time.Duration) (*DownloadLink, error)

	// Revoke moves the statement to REVOKED and returns it. Revoking a
	// revoked statement is a no-op.
	Revoke(ctx context.Context, id uuid.UUID) (*Statement, error)

	// TTLBounds reports the accepted presign TTL range and the default.
	TTLBounds() (min, max, def time.Duration)
}

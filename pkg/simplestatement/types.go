package simplestatement

import (
	"time"

	"github.com/google/uuid"
)

// StatementStatus is the domain type for statement lifecycle states.
type StatementStatus string

// Statement status constants (typed).
const (
	StatementStatusActive  StatementStatus = "ACTIVE"
	StatementStatusRevoked StatementStatus = "REVOKED"
)

// IsValid reports whether s is a known status.
func (s StatementStatus) IsValid() bool {
	switch s {
	case StatementStatusActive, StatementStatusRevoked:
		return true
	}
	return false
}

// DefaultContentType is the only content type accepted unless configured otherwise.
const DefaultContentType = "application/pdf"

// DateLayout is the wire format for statement period dates.
const DateLayout = "2006-01-02"

// Statement is one uploaded statement document plus its lifecycle status.
// Everything except Status and Version is immutable after creation.
type Statement struct {
	ID          uuid.UUID       `json:"id"`
	CustomerID  string          `json:"customer_id"`
	AccountID   string          `json:"account_id"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	ObjectKey   string          `json:"object_key"`
	ContentType string          `json:"content_type"`
	SizeBytes   int64           `json:"size_bytes"`
	SHA256      string          `json:"sha256"`
	UploadedAt  time.Time       `json:"uploaded_at"`
	Status      StatementStatus `json:"status"`
	Version     int             `json:"version"`
}

// NaturalKey returns the uniqueness tuple of the statement.
func (s *Statement) NaturalKey() NaturalKey {
	return NaturalKey{
		CustomerID:  s.CustomerID,
		AccountID:   s.AccountID,
		PeriodStart: s.PeriodStart,
		PeriodEnd:   s.PeriodEnd,
		SHA256:      s.SHA256,
	}
}

// NaturalKey is the business key that determines statement uniqueness.
type NaturalKey struct {
	CustomerID  string
	AccountID   string
	PeriodStart time.Time
	PeriodEnd   time.Time
	SHA256      string
}

// SaveOutcome tags the result of Repository.Save.
type SaveOutcome int

const (
	// SaveOutcomeSaved means the row was inserted.
	SaveOutcomeSaved SaveOutcome = iota
	// SaveOutcomeConflict means a row with the same natural key already exists.
	SaveOutcomeConflict
)

func (o SaveOutcome) String() string {
	if o == SaveOutcomeConflict {
		return "conflict"
	}
	return "saved"
}

// SaveResult is returned by Repository.Save. Statement is set only when
// Outcome is SaveOutcomeSaved.
type SaveResult struct {
	Outcome   SaveOutcome
	Statement *Statement
}

// Saved builds a SaveResult for an inserted statement.
func Saved(s *Statement) SaveResult {
	return SaveResult{Outcome: SaveOutcomeSaved, Statement: s}
}

// Conflict builds a SaveResult for a natural key collision.
func Conflict() SaveResult {
	return SaveResult{Outcome: SaveOutcomeConflict}
}

// PageRequest selects a page of results. Page is zero based.
type PageRequest struct {
	Page int
	Size int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize clamps the request to sane bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// StatementPage is one page of statements.
type StatementPage struct {
	Items []*Statement `json:"items"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
	Total int64        `json:"total"`
}

// DownloadLink is a presigned URL and the instant it stops working.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuditAction is the domain type for audited actions.
type AuditAction string

// Audit action constants (typed).
const (
	AuditActionUpload       AuditAction = "UPLOAD"
	AuditActionGenerateLink AuditAction = "GENERATE_LINK"
	AuditActionRevoke       AuditAction = "REVOKE"
	AuditActionDownload     AuditAction = "DOWNLOAD"
)

// IsValid reports whether a is a known action.
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionUpload, AuditActionGenerateLink, AuditActionRevoke, AuditActionDownload:
		return true
	}
	return false
}

// AuditEvent is an immutable record of an action against a statement.
type AuditEvent struct {
	ID          uuid.UUID   `json:"id"`
	CustomerID  string      `json:"customer_id"`
	Action      AuditAction `json:"action"`
	StatementID *uuid.UUID  `json:"statement_id,omitempty"`
	IP          string      `json:"ip,omitempty"`
	UserAgent   string      `json:"user_agent,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// AuditFilter narrows an audit listing. Empty fields match everything.
type AuditFilter struct {
	CustomerID string
	Action     AuditAction
	Page       PageRequest
}

// AuditPage is one page of audit events.
type AuditPage struct {
	Items []*AuditEvent `json:"items"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Total int64         `json:"total"`
}

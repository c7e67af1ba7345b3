package api

import (
	"time"

	"github.com/tendant/simple-statement/pkg/simplestatement"
)

// uploadForm holds the non-file multipart fields of an upload
type uploadForm struct {
	CustomerID  string `form:"customerId" validate:"required,max=128"`
	AccountID   string `form:"accountId" validate:"required,max=128"`
	PeriodStart string `form:"periodStart" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `form:"periodEnd" validate:"required,datetime=2006-01-02"`
}

// DownloadLinkRequest is the body of POST /statements/{id}/download-link
type DownloadLinkRequest struct {
	TTLSeconds int `json:"ttlSeconds" validate:"ttl"`
}

// DownloadLinkResponse is a presigned URL and its expiry
type DownloadLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StatementResponse is the public view of a statement
type StatementResponse struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customerId"`
	AccountID   string    `json:"accountId"`
	PeriodStart string    `json:"periodStart"`
	PeriodEnd   string    `json:"periodEnd"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	SHA256      string    `json:"sha256"`
	UploadedAt  time.Time `json:"uploadedAt"`
	Status      string    `json:"status"`
}

func toStatementResponse(s *simplestatement.Statement) StatementResponse {
	return StatementResponse{
		ID:          s.ID.String(),
		CustomerID:  s.CustomerID,
		AccountID:   s.AccountID,
		PeriodStart: s.PeriodStart.Format(simplestatement.DateLayout),
		PeriodEnd:   s.PeriodEnd.Format(simplestatement.DateLayout),
		ContentType: s.ContentType,
		SizeBytes:   s.SizeBytes,
		SHA256:      s.SHA256,
		UploadedAt:  s.UploadedAt,
		Status:      string(s.Status),
	}
}

// AuditEventResponse is the public view of an audit event
type AuditEventResponse struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customerId"`
	Action      string    `json:"action"`
	StatementID *string   `json:"statementId"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"userAgent,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toAuditEventResponse(e *simplestatement.AuditEvent) AuditEventResponse {
	resp := AuditEventResponse{
		ID:         e.ID.String(),
		CustomerID: e.CustomerID,
		Action:     string(e.Action),
		IP:         e.IP,
		UserAgent:  e.UserAgent,
		CreatedAt:  e.CreatedAt,
	}
	if e.StatementID != nil {
		sid := e.StatementID.String()
		resp.StatementID = &sid
	}
	return resp
}

// PageResponse is one page of a listing
type PageResponse[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

// DevTokenRequest asks for a development token
type DevTokenRequest struct {
	CustomerID string `json:"customerId" validate:"required"`
	Scope      string `json:"scope" validate:"scopes"`
}

// DevTokenResponse carries a signed token
type DevTokenResponse struct {
	Token string `json:"token"`
}

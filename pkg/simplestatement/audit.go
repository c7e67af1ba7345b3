package simplestatement

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxUserAgentLength bounds the stored user agent.
const MaxUserAgentLength = 512

// NewAuditEvent builds an audit event stamped with a new id and the current
// time. statementID may be nil for actions not tied to a statement.
func NewAuditEvent(customerID string, action AuditAction, statementID *uuid.UUID, ip, userAgent string) *AuditEvent {
	var sid *uuid.UUID
	if statementID != nil {
		id := *statementID
		sid = &id
	}
	return &AuditEvent{
		ID:          uuid.New(),
		CustomerID:  customerID,
		Action:      action,
		StatementID: sid,
		IP:          ip,
		UserAgent:   TruncateUserAgent(userAgent),
		CreatedAt:   time.Now().UTC(),
	}
}

// TruncateUserAgent cuts ua to MaxUserAgentLength runes.
func TruncateUserAgent(ua string) string {
	if utf8.RuneCountInString(ua) <= MaxUserAgentLength {
		return ua
	}
	runes := []rune(ua)
	return string(runes[:MaxUserAgentLength])
}

package simplestatement

import "context"

// NoopAuditSink is a no-operation implementation of AuditSink
// Useful for tests and tools that do not keep an audit trail
type NoopAuditSink struct{}

// NewNoopAuditSink creates a new no-operation audit sink
func NewNoopAuditSink() AuditSink {
	return &NoopAuditSink{}
}

// Record does nothing and returns nil
func (n *NoopAuditSink) Record(ctx context.Context, event *AuditEvent) error {
	return nil
}

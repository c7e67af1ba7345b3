// Package audit delivers statement audit events to one or more sinks.
package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tendant/simple-statement/pkg/simplestatement"
)

// Recorder builds audit events and hands them to a sink. Sink failures are
// logged and swallowed so the audited operation is never failed by them.
type Recorder struct {
	sink   simplestatement.AuditSink
	logger *slog.Logger
}

// NewRecorder creates a recorder. A nil sink records nothing.
func NewRecorder(sink simplestatement.AuditSink, logger *slog.Logger) *Recorder {
	if sink == nil {
		sink = simplestatement.NewNoopAuditSink()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sink: sink, logger: logger}
}

// Record builds and delivers one event.
func (r *Recorder) Record(ctx context.Context, customerID string, action simplestatement.AuditAction, statementID *uuid.UUID, ip, userAgent string) {
	r.RecordEvent(ctx, simplestatement.NewAuditEvent(customerID, action, statementID, ip, userAgent))
}

// RecordEvent delivers a prebuilt event.
func (r *Recorder) RecordEvent(ctx context.Context, event *simplestatement.AuditEvent) {
	if err := r.sink.Record(ctx, event); err != nil {
		r.logger.Warn("failed to record audit event",
			"action", event.Action,
			"customer_id", event.CustomerID,
			"event_id", event.ID,
			"error", err)
	}
}
